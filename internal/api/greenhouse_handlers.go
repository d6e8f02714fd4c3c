package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ghouse/internal/database"
	"ghouse/pkg/types"
)

type greenhouseStatusResponse struct {
	Systems []*types.GreenhouseSetting `json:"systems"`
}

func (s *Server) handleGreenhouseStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ListGreenhouseSettings(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load greenhouse status")
		return
	}
	s.respondJSON(w, http.StatusOK, greenhouseStatusResponse{Systems: settings})
}

func (s *Server) handleGreenhouseSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ListGreenhouseSettings(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load greenhouse settings")
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

type updateSettingRequest struct {
	TargetValue float64 `json:"target_value"`
	IsAuto      bool    `json:"is_auto"`
}

func (s *Server) handleUpdateGreenhouseSetting(w http.ResponseWriter, r *http.Request) {
	systemType := r.URL.Query().Get("system_type")
	if !types.IsValidSystemType(systemType) {
		s.respondError(w, http.StatusBadRequest, types.ErrInvalidSystemType.Error())
		return
	}

	var req updateSettingRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	claims := claimsFrom(r)
	setting, err := s.store.UpdateGreenhouseSetting(r.Context(), systemType, req.TargetValue, req.IsAuto, &claims.UserID)
	if err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "system not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to update setting")
		return
	}

	s.publishGreenhouseCommand(systemType, "set_level", &req.TargetValue)
	s.respondJSON(w, http.StatusOK, setting)
}

type greenhouseActionRequest struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value,omitempty"`
}

func (s *Server) handleGreenhouseAction(w http.ResponseWriter, r *http.Request) {
	systemType := mux.Vars(r)["system"]
	if !types.IsValidSystemType(systemType) {
		s.respondError(w, http.StatusNotFound, types.ErrInvalidSystemType.Error())
		return
	}

	var req greenhouseActionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	claims := claimsFrom(r)
	switch req.Action {
	case "start", "stop":
		// Pure device commands; the next status report updates the store.
	case "set_level":
		if req.Value == nil {
			s.respondError(w, http.StatusBadRequest, "set_level requires a value")
			return
		}
		if _, err := s.store.UpdateGreenhouseSetting(r.Context(), systemType, *req.Value, false, &claims.UserID); err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to update setting")
			return
		}
	default:
		s.respondError(w, http.StatusBadRequest, "unknown action")
		return
	}

	s.publishGreenhouseCommand(systemType, req.Action, req.Value)
	s.registry.SendCommandResponse(claims.UserID, systemType+":"+req.Action, "sent", nil)

	setting, err := s.store.GetGreenhouseSetting(r.Context(), systemType)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load setting")
		return
	}
	s.respondJSON(w, http.StatusOK, setting)
}

func (s *Server) handleGreenhouseHistory(w http.ResponseWriter, r *http.Request) {
	systemType := r.URL.Query().Get("system_type")
	if systemType != "" && !types.IsValidSystemType(systemType) {
		s.respondError(w, http.StatusBadRequest, types.ErrInvalidSystemType.Error())
		return
	}

	history, err := s.store.ListGreenhouseHistory(r.Context(), systemType, queryLimit(r, 50))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	s.respondJSON(w, http.StatusOK, history)
}

// publishGreenhouseCommand forwards a control action to the device. A broker
// outage is logged; the setting change is already persisted.
func (s *Server) publishGreenhouseCommand(systemType, action string, value *float64) {
	command := map[string]interface{}{"action": action}
	if value != nil {
		command["value"] = *value
	}
	if err := s.commander.SendCommand(types.CategoryGreenhouse, systemType, command); err != nil {
		s.log.Warn().Err(err).Str("system", systemType).Msg("failed to publish greenhouse command")
	}
}

// queryLimit parses the limit query parameter with a default and a cap.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
