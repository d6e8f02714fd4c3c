package api

import (
	"net/http"
	"strconv"

	"ghouse/pkg/types"
)

func (s *Server) handleConveyorStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.GetConveyorState(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load conveyor status")
		return
	}
	s.respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleConveyorStart(w http.ResponseWriter, r *http.Request) {
	s.conveyorAction(w, r, "start", true)
}

func (s *Server) handleConveyorStop(w http.ResponseWriter, r *http.Request) {
	s.conveyorAction(w, r, "stop", false)
}

func (s *Server) conveyorAction(w http.ResponseWriter, r *http.Request, action string, running bool) {
	if err := s.commander.SendCommand(types.CategoryConveyor, "", map[string]string{"action": action}); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("failed to publish conveyor command")
		s.respondError(w, http.StatusBadGateway, "device link unavailable")
		return
	}

	state, err := s.store.SetConveyorRunning(r.Context(), running)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to update conveyor state")
		return
	}

	claims := claimsFrom(r)
	s.registry.SendCommandResponse(claims.UserID, "conveyor:"+action, "sent", state)
	s.respondJSON(w, http.StatusOK, state)
}

type conveyorSpeedRequest struct {
	Speed           float64 `json:"speed"`
	IntervalSeconds int64   `json:"interval_seconds,omitempty"`
}

func (s *Server) handleConveyorSpeed(w http.ResponseWriter, r *http.Request) {
	var req conveyorSpeedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Speed < 0 {
		s.respondError(w, http.StatusBadRequest, "speed cannot be negative")
		return
	}
	if req.IntervalSeconds == 0 {
		current, err := s.store.GetConveyorState(r.Context())
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to load conveyor state")
			return
		}
		req.IntervalSeconds = current.IntervalSeconds
	}

	state, err := s.store.UpdateConveyorSettings(r.Context(), req.Speed, req.IntervalSeconds)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to update conveyor settings")
		return
	}

	command := map[string]interface{}{"action": "set_speed", "speed": req.Speed, "interval_seconds": req.IntervalSeconds}
	if err := s.commander.SendCommand(types.CategoryConveyor, "", command); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish conveyor speed command")
	}

	s.respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleConveyorStatistics(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 365 {
			s.respondError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	stats, err := s.store.ListConveyorStatistics(r.Context(), days)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load conveyor statistics")
		return
	}
	if stats == nil {
		stats = []*types.ConveyorStatistic{}
	}
	s.respondJSON(w, http.StatusOK, stats)
}
