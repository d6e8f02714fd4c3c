package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ghouse/internal/auth"
	"ghouse/internal/database"
	"ghouse/pkg/types"
)

// requireAdmin rejects the request unless the caller holds the admin role.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims := claimsFrom(r)
	if claims == nil || claims.Role != types.RoleAdmin {
		s.respondError(w, http.StatusForbidden, "administrator role required")
		return false
	}
	return true
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}

	users, err := s.store.ListUsers(r.Context(), queryLimit(r, 100), offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	if users == nil {
		users = []*types.User{}
	}
	s.respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	user, err := s.store.GetUserByID(r.Context(), id)
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

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req createUserRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = types.RoleOperator
	}
	if !types.IsValidRole(req.Role) {
		s.respondError(w, http.StatusBadRequest, "unknown role")
		return
	}

	if _, err := s.store.GetUserByUsername(r.Context(), req.Username); err == nil {
		s.respondError(w, http.StatusBadRequest, "username already taken")
		return
	} else if err != database.ErrNotFound {
		s.respondError(w, http.StatusInternalServerError, "failed to check username")
		return
	}

	created, err := s.store.CreateUser(r.Context(), &types.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: auth.HashPassword(req.Password),
		Role:         req.Role,
		IsActive:     true,
	})
	if err != nil {
		// The email column is unique as well; a constraint hit lands here.
		s.respondError(w, http.StatusBadRequest, "failed to create user")
		return
	}

	claims := claimsFrom(r)
	s.log.Info().Str("admin", claims.Username).Str("username", created.Username).Msg("user created")
	s.respondJSON(w, http.StatusCreated, created)
}

type updateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Role != nil && !types.IsValidRole(*req.Role) {
		s.respondError(w, http.StatusBadRequest, "unknown role")
		return
	}

	updated, err := s.store.UpdateUser(r.Context(), id, &database.UserUpdate{
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	claims := claimsFrom(r)
	if id == claims.UserID {
		s.respondError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		if err == database.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	s.log.Info().Str("admin", claims.Username).Int64("user_id", id).Msg("user deleted")
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type roleInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// handleListRoles reports the fixed role set. Roles are a checked column on
// the users table, not rows, so this list is static.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, []roleInfo{
		{Name: types.RoleAdmin, Description: "Full system access", Permissions: []string{"*"}},
		{Name: types.RoleOperator, Description: "Operate facility systems", Permissions: []string{
			"greenhouse:read", "greenhouse:write", "air:read", "drones:read", "drones:write",
			"conveyor:read", "conveyor:write", "soil:read",
		}},
		{Name: types.RoleViewer, Description: "Read-only dashboard access", Permissions: []string{
			"greenhouse:read", "air:read", "drones:read", "conveyor:read", "soil:read",
		}},
	})
}

// pathID parses the id path variable shared by the user routes.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
