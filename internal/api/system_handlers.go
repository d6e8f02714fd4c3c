package api

import (
	"net/http"
	"time"

	"ghouse/pkg/types"
)

const version = "1.0.0"

type healthResponse struct {
	Status    string              `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Database  string              `json:"database"`
	Bridge    string              `json:"bridge"`
	Registry  types.RegistryStats `json:"registry"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "connected",
		Bridge:    "connected",
		Registry:  s.registry.Stats(),
	}
	statusCode := http.StatusOK

	if err := s.store.HealthCheck(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "error"
		statusCode = http.StatusServiceUnavailable
	}
	if !s.commander.Connected() {
		// The dashboard works without live telemetry; degraded, not down.
		resp.Bridge = "disconnected"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	}

	s.respondJSON(w, statusCode, resp)
}

type systemInfoResponse struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	ServerTime  time.Time `json:"server_time"`
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, systemInfoResponse{
		Name:        "ghouse-backend",
		Version:     version,
		Environment: s.cfg.App.Env,
		ServerTime:  time.Now().UTC(),
	})
}
