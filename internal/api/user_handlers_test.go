package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghouse/pkg/types"
)

func TestUsers_AdminGate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/users", env.token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/users", env.adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var users []*types.User
	decodeInto(t, rec, &users)
	assert.Len(t, users, 2)
}

func TestUsers_Create(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/users", env.adminTok, map[string]string{
		"username": "viewer1", "email": "viewer1@ghouse.local", "password": "v-pass", "role": "viewer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created types.User
	decodeInto(t, rec, &created)
	assert.Equal(t, "viewer", created.Role)
	assert.True(t, created.IsActive)

	// New accounts can log in immediately.
	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "viewer1", "password": "v-pass",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/users", env.adminTok, map[string]string{
		"username": "viewer1", "email": "other@ghouse.local", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/users", env.adminTok, map[string]string{
		"username": "viewer2", "email": "viewer2@ghouse.local", "password": "x", "role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/users", env.adminTok, map[string]string{
		"username": "viewer2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers_GetUpdateDelete(t *testing.T) {
	env := newTestEnv(t)

	path := fmt.Sprintf("/api/v1/users/%d", env.userID)
	rec := env.request(t, http.MethodGet, path, env.adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user types.User
	decodeInto(t, rec, &user)
	assert.Equal(t, "operator", user.Username)

	rec = env.request(t, http.MethodGet, "/api/v1/users/9999", env.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPut, path, env.adminTok, map[string]interface{}{
		"role": "viewer", "is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeInto(t, rec, &user)
	assert.Equal(t, "viewer", user.Role)
	assert.False(t, user.IsActive)
	assert.Equal(t, "op@ghouse.local", user.Email)

	// Deactivated accounts cannot log in.
	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "operator", "password": "op-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPut, path, env.adminTok, map[string]interface{}{
		"role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodDelete, path, env.adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, path, env.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodDelete, path, env.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_SelfDeleteForbidden(t *testing.T) {
	env := newTestEnv(t)

	path := fmt.Sprintf("/api/v1/users/%d", env.adminID)
	rec := env.request(t, http.MethodDelete, path, env.adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodGet, path, env.adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsers_ListRoles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/users/roles", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var roles []roleInfo
	decodeInto(t, rec, &roles)
	require.Len(t, roles, 3)
	assert.Equal(t, types.RoleAdmin, roles[0].Name)
	assert.Contains(t, roles[0].Permissions, "*")
}
