package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ghouse/internal/database"
	"ghouse/pkg/types"
)

type listNotificationsResponse struct {
	Notifications []*types.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	notifications, err := s.store.ListNotifications(r.Context(), claims.UserID, unreadOnly, queryLimit(r, 50))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if notifications == nil {
		notifications = []*types.Notification{}
	}

	unread, err := s.store.CountUnreadNotifications(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	s.respondJSON(w, http.StatusOK, listNotificationsResponse{Notifications: notifications, UnreadCount: unread})
}

type createNotificationRequest struct {
	UserID  int64  `json:"user_id,omitempty"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !types.IsValidNotificationType(req.Type) {
		s.respondError(w, http.StatusBadRequest, "unknown notification type")
		return
	}
	if req.Title == "" || req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "title and message are required")
		return
	}

	claims := claimsFrom(r)
	target := claims.UserID
	if req.UserID != 0 && req.UserID != claims.UserID {
		// Only administrators may notify other users.
		if claims.Role != "admin" {
			s.respondError(w, http.StatusForbidden, "cannot notify other users")
			return
		}
		target = req.UserID
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}

	created, err := s.notifier.Notify(r.Context(), target, req.Type, req.Title, req.Message, source)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	claims := claimsFrom(r)
	if err := s.store.MarkNotificationRead(r.Context(), claims.UserID, id); err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "notification not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if err := s.store.MarkAllNotificationsRead(r.Context(), claims.UserID); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleGetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	settings, err := s.store.GetNotificationSettings(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var settings types.NotificationSettings
	if !s.decodeBody(w, r, &settings) {
		return
	}

	claims := claimsFrom(r)
	settings.UserID = claims.UserID

	if err := s.store.UpdateNotificationSettings(r.Context(), &settings); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}
