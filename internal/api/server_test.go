package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghouse/internal/auth"
	"ghouse/internal/config"
	"ghouse/internal/database"
	"ghouse/internal/notify"
	"ghouse/internal/telegram"
	"ghouse/internal/websocket"
	dbconfig "ghouse/pkg/database"
	"ghouse/pkg/types"
)

type sentCommand struct {
	category types.DeviceCategory
	deviceID string
	command  interface{}
}

type fakeCommander struct {
	mu        sync.Mutex
	commands  []sentCommand
	connected bool
	err       error
}

func (c *fakeCommander) SendCommand(category types.DeviceCategory, deviceID string, command interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.commands = append(c.commands, sentCommand{category, deviceID, command})
	return nil
}

func (c *fakeCommander) Connected() bool { return c.connected }

func (c *fakeCommander) last(t *testing.T) sentCommand {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.commands)
	return c.commands[len(c.commands)-1]
}

type testEnv struct {
	server    *Server
	store     *database.Manager
	commander *fakeCommander
	token     string
	adminTok  string
	userID    int64
	adminID   int64
}

func newTestEnv(t *testing.T) *testEnv {
	return newTelegramTestEnv(t, config.TelegramConfig{})
}

// newTelegramTestEnv builds the standard environment with a Telegram client
// pointed at the given configuration, for tests that need a live-looking bot.
func newTelegramTestEnv(t *testing.T, tgCfg config.TelegramConfig) *testEnv {
	t.Helper()

	dbCfg := dbconfig.DefaultConfig()
	dbCfg.DatabasePath = filepath.Join(t.TempDir(), "api.db")
	store, err := database.NewManager(dbCfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	operator, err := store.CreateUser(ctx, &types.User{
		Username: "operator", Email: "op@ghouse.local",
		PasswordHash: auth.HashPassword("op-pass"), Role: "operator", IsActive: true,
	})
	require.NoError(t, err)
	admin, err := store.CreateUser(ctx, &types.User{
		Username: "admin", Email: "admin@ghouse.local",
		PasswordHash: auth.HashPassword("admin-pass"), Role: "admin", IsActive: true,
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"

	tokens := auth.NewManager("test-secret", time.Hour)
	registry := websocket.NewRegistry(zerolog.Nop())
	commander := &fakeCommander{connected: true}
	tg := telegram.NewClient(tgCfg, store, zerolog.Nop())
	notifier := notify.NewService(store, registry, tg, zerolog.Nop())
	wsHandler := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	server := NewServer(cfg, store, registry, commander, notifier, tg, tokens, wsHandler, zerolog.Nop())

	token, err := tokens.IssueToken(operator)
	require.NoError(t, err)
	adminTok, err := tokens.IssueToken(admin)
	require.NoError(t, err)

	return &testEnv{
		server:    server,
		store:     store,
		commander: commander,
		token:     token,
		adminTok:  adminTok,
		userID:    operator.ID,
		adminID:   admin.ID,
	}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "operator", "password": "op-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	decodeInto(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "operator", resp.User.Username)

	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "operator", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "ghost", "password": "x",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/auth/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/auth/me", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user types.User
	decodeInto(t, rec, &user)
	assert.Equal(t, env.userID, user.ID)
}

func TestAuthRefresh(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/auth/refresh", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	decodeInto(t, rec, &resp)
	require.NotEmpty(t, resp.Token)

	// The refreshed token must be usable in its own right.
	rec = env.request(t, http.MethodGet, "/api/v1/auth/me", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPut, "/api/v1/auth/password", env.token, map[string]string{
		"old_password": "wrong", "new_password": "fresh-pass",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPut, "/api/v1/auth/password", env.token, map[string]string{
		"old_password": "op-pass", "new_password": "fresh-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "operator", "password": "op-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "operator", "password": "fresh-pass",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGreenhouseSettings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/greenhouse/settings", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings []*types.GreenhouseSetting
	decodeInto(t, rec, &settings)
	assert.Len(t, settings, 3)

	rec = env.request(t, http.MethodPut, "/api/v1/greenhouse/settings?system_type=watering", env.token, map[string]interface{}{
		"target_value": 65.0, "is_auto": false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var setting types.GreenhouseSetting
	decodeInto(t, rec, &setting)
	assert.Equal(t, 65.0, setting.TargetValue)

	cmd := env.commander.last(t)
	assert.Equal(t, types.CategoryGreenhouse, cmd.category)
	assert.Equal(t, "watering", cmd.deviceID)

	rec = env.request(t, http.MethodGet, "/api/v1/greenhouse/history", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []*types.GreenhouseHistory
	decodeInto(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, env.userID, *history[0].ChangedBy)

	rec = env.request(t, http.MethodPut, "/api/v1/greenhouse/settings?system_type=heating", env.token, map[string]interface{}{
		"target_value": 1.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), types.ErrInvalidSystemType.Error())
}

func TestGreenhouseAction(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/greenhouse/lighting", env.token, map[string]interface{}{
		"action": "start",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cmd := env.commander.last(t)
	assert.Equal(t, "lighting", cmd.deviceID)

	rec = env.request(t, http.MethodPost, "/api/v1/greenhouse/lighting", env.token, map[string]interface{}{
		"action": "set_level",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/greenhouse/lighting", env.token, map[string]interface{}{
		"action": "explode",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAirCurrent_DefaultsWhenEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/air/current", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp airCurrentResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, "optimal", resp.Status)
	require.NotNil(t, resp.Metric.Temperature)
	assert.Empty(t, resp.Alerts)
}

func TestAirCurrent_WarningOnThresholdBreach(t *testing.T) {
	env := newTestEnv(t)

	temperature := 35.0
	require.NoError(t, env.store.SaveAirMetric(context.Background(), &types.AirMetricsPayload{
		Temperature: &temperature,
	}))

	rec := env.request(t, http.MethodGet, "/api/v1/air/current", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp airCurrentResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, "warning", resp.Status)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "temperature", resp.Alerts[0].Metric)
}

func TestAirThresholds(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPut, "/api/v1/air/thresholds/co2", env.token, map[string]float64{
		"min_value": 350, "max_value": 900,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodPut, "/api/v1/air/thresholds/co2", env.token, map[string]float64{
		"min_value": 900, "max_value": 350,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPut, "/api/v1/air/thresholds/radon", env.token, map[string]float64{
		"min_value": 0, "max_value": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrones(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/drones", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	battery := 80.0
	require.NoError(t, env.store.ApplyDroneTelemetry(context.Background(), &types.DroneTelemetryPayload{
		DroneID: 4, Battery: &battery, Status: types.DroneStatusActive,
	}))

	rec = env.request(t, http.MethodGet, "/api/v1/drones/4", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/drones/99", env.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDroneCommand(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.store.ApplyDroneTelemetry(context.Background(), &types.DroneTelemetryPayload{
		DroneID: 4, Status: types.DroneStatusActive,
	}))

	rec := env.request(t, http.MethodPost, "/api/v1/drones/4/command", env.token, map[string]interface{}{
		"command": "start_mission",
		"params":  map[string]interface{}{"mission_type": "spray"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	cmd := env.commander.last(t)
	assert.Equal(t, types.CategoryDrones, cmd.category)
	assert.Equal(t, "4", cmd.deviceID)

	missions, err := env.store.ListDroneMissions(context.Background(), 4, 10)
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, "spray", missions[0].MissionType)

	rec = env.request(t, http.MethodPost, "/api/v1/drones/4/command", env.token, map[string]interface{}{
		"command": "self_destruct",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/drones/99/command", env.token, map[string]interface{}{
		"command": "land",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConveyor(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/conveyor/start", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state types.ConveyorState
	decodeInto(t, rec, &state)
	assert.True(t, state.IsRunning)

	rec = env.request(t, http.MethodPut, "/api/v1/conveyor/speed", env.token, map[string]interface{}{
		"speed": 2.5,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &state)
	assert.Equal(t, 2.5, state.Speed)

	rec = env.request(t, http.MethodPost, "/api/v1/conveyor/stop", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &state)
	assert.False(t, state.IsRunning)

	cmd := env.commander.last(t)
	assert.Equal(t, types.CategoryConveyor, cmd.category)
	assert.Equal(t, "", cmd.deviceID)
}

func TestConveyor_DeviceLinkDown(t *testing.T) {
	env := newTestEnv(t)
	env.commander.err = fmt.Errorf("broker gone")

	rec := env.request(t, http.MethodPost, "/api/v1/conveyor/start", env.token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSoil(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/soil/zones", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var zones []*types.SoilZone
	decodeInto(t, rec, &zones)
	assert.Len(t, zones, 3)

	// Placeholder before any analyzer report.
	rec = env.request(t, http.MethodGet, "/api/v1/soil/zones/zone-a/latest", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var analysis types.SoilAnalysis
	decodeInto(t, rec, &analysis)
	assert.Equal(t, types.SoilStatusOptimal, analysis.Status)

	moisture := 25.0
	require.NoError(t, env.store.SaveSoilAnalysis(context.Background(), &types.SoilAnalysisPayload{
		ZoneID: "zone-a", Moisture: &moisture, Status: types.SoilStatusCritical,
	}))

	rec = env.request(t, http.MethodGet, "/api/v1/soil/zones/zone-a/latest", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &analysis)
	assert.Equal(t, types.SoilStatusCritical, analysis.Status)

	rec = env.request(t, http.MethodGet, "/api/v1/soil/analyses?zone_id=zone-a", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/soil/analyses", env.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/notifications", env.token, map[string]string{
		"type": "warning", "title": "Check pump", "message": "pressure drop",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created types.Notification
	decodeInto(t, rec, &created)
	assert.Equal(t, env.userID, created.UserID)

	rec = env.request(t, http.MethodGet, "/api/v1/notifications", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listNotificationsResponse
	decodeInto(t, rec, &list)
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, 1, list.UnreadCount)

	path := fmt.Sprintf("/api/v1/notifications/%d/read", created.ID)
	rec = env.request(t, http.MethodPost, path, env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/notifications?unread_only=true", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &list)
	assert.Empty(t, list.Notifications)
	assert.Equal(t, 0, list.UnreadCount)
}

func TestNotifications_TargetingOtherUsers(t *testing.T) {
	env := newTestEnv(t)

	// Operators cannot notify others.
	rec := env.request(t, http.MethodPost, "/api/v1/notifications", env.token, map[string]interface{}{
		"user_id": env.adminID, "type": "info", "title": "t", "message": "m",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins can.
	rec = env.request(t, http.MethodPost, "/api/v1/notifications", env.adminTok, map[string]interface{}{
		"user_id": env.userID, "type": "info", "title": "t", "message": "m",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created types.Notification
	decodeInto(t, rec, &created)
	assert.Equal(t, env.userID, created.UserID)
}

func TestNotificationSettings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/notifications/settings", env.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings types.NotificationSettings
	decodeInto(t, rec, &settings)
	assert.True(t, settings.NotifyCritical)

	settings.TelegramEnabled = true
	settings.TelegramChatID = "777"
	rec = env.request(t, http.MethodPut, "/api/v1/notifications/settings", env.token, settings)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodGet, "/api/v1/notifications/settings", env.token, nil)
	decodeInto(t, rec, &settings)
	assert.True(t, settings.TelegramEnabled)
	assert.Equal(t, "777", settings.TelegramChatID)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "connected", resp.Bridge)

	env.commander.connected = false
	rec = env.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &resp)
	assert.Equal(t, "degraded", resp.Status)
}

func TestSystemInfo(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/system/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp systemInfoResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, "ghouse-backend", resp.Name)
	assert.Equal(t, "test", resp.Environment)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < requestsPerWindow; i++ {
		require.True(t, rl.Allow("client"))
	}
	assert.False(t, rl.Allow("client"))
	assert.True(t, rl.Allow("other"))

	rl.Cleanup()
	assert.False(t, rl.Allow("client"))
}
