package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ghouse/internal/auth"
	"ghouse/internal/config"
	"ghouse/internal/database"
	"ghouse/internal/notify"
	"ghouse/internal/telegram"
	"ghouse/internal/websocket"
	"ghouse/pkg/types"
)

// Commander is the outbound device-command surface the handlers publish to.
type Commander interface {
	SendCommand(category types.DeviceCategory, deviceID string, command interface{}) error
	Connected() bool
}

// Server is the HTTP layer: routing, middleware, and JSON serialization.
// Business rules live in the store, the bridge, and the notify service.
type Server struct {
	cfg       *config.Config
	store     *database.Manager
	registry  *websocket.Registry
	commander Commander
	notifier  *notify.Service
	telegram  *telegram.Client
	tokens    *auth.Manager
	wsHandler http.HandlerFunc
	router    *mux.Router
	limiter   *RateLimiter
	log       zerolog.Logger
}

// NewServer wires the HTTP API over its collaborators.
func NewServer(
	cfg *config.Config,
	store *database.Manager,
	registry *websocket.Registry,
	commander Commander,
	notifier *notify.Service,
	tg *telegram.Client,
	tokens *auth.Manager,
	wsHandler http.HandlerFunc,
	log zerolog.Logger,
) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		commander: commander,
		notifier:  notifier,
		telegram:  tg,
		tokens:    tokens,
		wsHandler: wsHandler,
		router:    mux.NewRouter(),
		limiter:   NewRateLimiter(),
		log:       log.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware, s.loggingMiddleware)

	// Health and the WebSocket handshake sit outside the versioned prefix.
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.wsHandler).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.jsonMiddleware, s.rateLimitMiddleware)

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/system/info", s.handleSystemInfo).Methods(http.MethodGet, http.MethodOptions)

	// Everything below requires a bearer token.
	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	protected.HandleFunc("/auth/password", s.handleChangePassword).Methods(http.MethodPut)

	protected.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	protected.HandleFunc("/users/roles", s.handleListRoles).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/users/{id:[0-9]+}", s.handleGetUser).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/users/{id:[0-9]+}", s.handleUpdateUser).Methods(http.MethodPut)
	protected.HandleFunc("/users/{id:[0-9]+}", s.handleDeleteUser).Methods(http.MethodDelete)

	protected.HandleFunc("/greenhouse/status", s.handleGreenhouseStatus).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/greenhouse/settings", s.handleGreenhouseSettings).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/greenhouse/settings", s.handleUpdateGreenhouseSetting).Methods(http.MethodPut)
	protected.HandleFunc("/greenhouse/history", s.handleGreenhouseHistory).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/greenhouse/{system}", s.handleGreenhouseAction).Methods(http.MethodPost)

	protected.HandleFunc("/air/current", s.handleAirCurrent).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/air/history", s.handleAirHistory).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/air/thresholds", s.handleAirThresholds).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/air/thresholds/{metric}", s.handleUpdateAirThreshold).Methods(http.MethodPut)

	protected.HandleFunc("/drones", s.handleListDrones).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/drones/{id:[0-9]+}", s.handleGetDrone).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/drones/{id:[0-9]+}/command", s.handleDroneCommand).Methods(http.MethodPost)
	protected.HandleFunc("/drones/{id:[0-9]+}/missions", s.handleDroneMissions).Methods(http.MethodGet, http.MethodOptions)

	protected.HandleFunc("/conveyor/status", s.handleConveyorStatus).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/conveyor/start", s.handleConveyorStart).Methods(http.MethodPost)
	protected.HandleFunc("/conveyor/stop", s.handleConveyorStop).Methods(http.MethodPost)
	protected.HandleFunc("/conveyor/speed", s.handleConveyorSpeed).Methods(http.MethodPut)
	protected.HandleFunc("/conveyor/statistics", s.handleConveyorStatistics).Methods(http.MethodGet, http.MethodOptions)

	protected.HandleFunc("/soil/zones", s.handleSoilZones).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/soil/zones/{zone}/latest", s.handleSoilZoneLatest).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/soil/analyses", s.handleSoilAnalyses).Methods(http.MethodGet, http.MethodOptions)

	protected.HandleFunc("/telegram/status", s.handleTelegramStatus).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/telegram/log", s.handleTelegramLog).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/telegram/test", s.handleTelegramTest).Methods(http.MethodPost)

	protected.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/notifications", s.handleCreateNotification).Methods(http.MethodPost)
	protected.HandleFunc("/notifications/read_all", s.handleMarkAllRead).Methods(http.MethodPost)
	protected.HandleFunc("/notifications/settings", s.handleGetNotificationSettings).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/notifications/settings", s.handleUpdateNotificationSettings).Methods(http.MethodPut)
	protected.HandleFunc("/notifications/{id:[0-9]+}/read", s.handleMarkRead).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RunLimiterCleanup evicts idle rate limiter entries until the context is
// cancelled. Run it in a background goroutine alongside the HTTP server.
func (s *Server) RunLimiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(windowLength)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
