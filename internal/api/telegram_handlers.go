package api

import (
	"net/http"
	"time"

	"ghouse/pkg/types"
)

type telegramStatusResponse struct {
	Configured  bool       `json:"configured"`
	Status      string     `json:"status"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   *time.Time `json:"last_error,omitempty"`
}

func (s *Server) handleTelegramStatus(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.ListTelegramLogs(r.Context(), 5)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load telegram logs")
		return
	}

	resp := telegramStatusResponse{Configured: s.telegram.Enabled(), Status: "disconnected"}
	for _, log := range logs {
		sentAt := log.SentAt
		if log.Status == "sent" && resp.LastSuccess == nil {
			resp.LastSuccess = &sentAt
		}
		if log.Status == "failed" && resp.LastError == nil {
			resp.LastError = &sentAt
		}
	}
	if resp.Configured && resp.LastSuccess != nil {
		resp.Status = "connected"
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelegramLog(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.ListTelegramLogs(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load telegram logs")
		return
	}
	if logs == nil {
		logs = []*types.TelegramLog{}
	}
	s.respondJSON(w, http.StatusOK, logs)
}

// handleTelegramTest sends a test message to the caller's configured chat so
// operators can verify the bot wiring end to end.
func (s *Server) handleTelegramTest(w http.ResponseWriter, r *http.Request) {
	if !s.telegram.Enabled() {
		s.respondError(w, http.StatusServiceUnavailable, "telegram bot not configured")
		return
	}

	claims := claimsFrom(r)
	settings, err := s.store.GetNotificationSettings(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if settings.TelegramChatID == "" {
		s.respondError(w, http.StatusBadRequest, "no telegram chat id configured for this account")
		return
	}

	if err := s.telegram.SendMessage(r.Context(), settings.TelegramChatID, "Test message from GHouse"); err != nil {
		s.respondError(w, http.StatusBadGateway, "test message failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "sent", "chat_id": settings.TelegramChatID})
}
