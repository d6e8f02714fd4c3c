package api

import (
	"net/http"

	"ghouse/internal/auth"
	"ghouse/internal/database"
	"ghouse/pkg/types"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if !user.IsActive || !auth.CheckPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	s.respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// handleRefresh issues a fresh access token for a caller whose current token
// is still valid, extending the session without re-entering credentials.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		s.respondError(w, http.StatusUnauthorized, "account unavailable")
		return
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	s.respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 4 {
		s.respondError(w, http.StatusBadRequest, "new password too short")
		return
	}

	claims := claimsFrom(r)
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if !auth.CheckPassword(req.OldPassword, user.PasswordHash) {
		s.respondError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}

	if err := s.store.UpdateUserPassword(r.Context(), user.ID, auth.HashPassword(req.NewPassword)); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}
