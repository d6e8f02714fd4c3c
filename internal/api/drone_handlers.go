package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ghouse/internal/database"
	"ghouse/pkg/types"
)

func (s *Server) handleListDrones(w http.ResponseWriter, r *http.Request) {
	drones, err := s.store.ListDrones(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load drones")
		return
	}
	if drones == nil {
		drones = []*types.Drone{}
	}
	s.respondJSON(w, http.StatusOK, drones)
}

func (s *Server) handleGetDrone(w http.ResponseWriter, r *http.Request) {
	id, ok := s.droneID(w, r)
	if !ok {
		return
	}

	drone, err := s.store.GetDrone(r.Context(), id)
	if err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "drone not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load drone")
		return
	}
	s.respondJSON(w, http.StatusOK, drone)
}

type droneCommandRequest struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

var droneCommands = map[string]bool{
	"takeoff":       true,
	"land":          true,
	"return_home":   true,
	"start_mission": true,
	"abort_mission": true,
}

func (s *Server) handleDroneCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := s.droneID(w, r)
	if !ok {
		return
	}

	var req droneCommandRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !droneCommands[req.Command] {
		s.respondError(w, http.StatusBadRequest, "unknown command")
		return
	}

	if _, err := s.store.GetDrone(r.Context(), id); err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "drone not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load drone")
		return
	}

	command := map[string]interface{}{"command": req.Command}
	if len(req.Params) > 0 {
		command["params"] = req.Params
	}

	claims := claimsFrom(r)
	status := "sent"
	if err := s.commander.SendCommand(types.CategoryDrones, strconv.FormatInt(id, 10), command); err != nil {
		s.log.Warn().Err(err).Int64("drone_id", id).Msg("failed to publish drone command")
		status = "failed"
	}
	s.registry.SendCommandResponse(claims.UserID, req.Command, status, map[string]int64{"drone_id": id})

	if status == "failed" {
		s.respondError(w, http.StatusBadGateway, "device link unavailable")
		return
	}

	var mission *types.DroneMission
	if req.Command == "start_mission" {
		missionType := "survey"
		if raw, ok := req.Params["mission_type"].(string); ok && raw != "" {
			missionType = raw
		}
		var err error
		mission, err = s.store.CreateDroneMission(r.Context(), id, missionType)
		if err != nil {
			s.log.Error().Err(err).Int64("drone_id", id).Msg("failed to record mission")
		}
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"drone_id": id,
		"command":  req.Command,
		"status":   status,
		"mission":  mission,
	})
}

func (s *Server) handleDroneMissions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.droneID(w, r)
	if !ok {
		return
	}

	missions, err := s.store.ListDroneMissions(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load missions")
		return
	}
	if missions == nil {
		missions = []*types.DroneMission{}
	}
	s.respondJSON(w, http.StatusOK, missions)
}

func (s *Server) droneID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid drone id")
		return 0, false
	}
	return id, true
}
