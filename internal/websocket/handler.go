package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ghouse/internal/auth"
	"ghouse/internal/config"
	"ghouse/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard frontend is served from a separate origin.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// TokenVerifier validates the bearer credential presented at handshake time.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// Handler upgrades client connections, enforces the handshake credential,
// and runs the per-connection session protocol loop.
type Handler struct {
	registry *Registry
	verifier TokenVerifier
	cfg      config.WebSocketConfig
	log      zerolog.Logger
}

// NewHandler creates a WebSocket handler backed by the given registry and
// credential verifier.
func NewHandler(registry *Registry, verifier TokenVerifier, cfg config.WebSocketConfig, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		cfg:      cfg,
		log:      log.With().Str("component", "websocket").Logger(),
	}
}

// HandleWebSocket is the /ws endpoint. The connection reaches the Open state
// only after the token query parameter yields a valid user id; otherwise it
// is closed with a reason code distinguishing the failure.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.closeWithReason(wsConn, types.CloseTokenRequired, "Token required")
		return
	}

	claims, err := h.verifier.VerifyToken(token)
	if err != nil {
		if err == auth.ErrTokenMissingUserID {
			h.closeWithReason(wsConn, types.CloseTokenMissingUserID, "Invalid token payload")
		} else {
			h.closeWithReason(wsConn, types.CloseTokenInvalid, "Invalid token")
		}
		return
	}

	conn := NewConnection(wsConn, claims.UserID, h.cfg.BufferSize, h.cfg.WriteTimeout)
	h.registry.Register(conn, claims.UserID)
	h.log.Info().Str("conn_id", conn.ID()).Int64("user_id", claims.UserID).Msg("connection open")

	go h.readLoop(conn)
}

// closeWithReason sends a close frame with a protocol-specific code before
// tearing the socket down. Handshake failures never touch the registry.
func (h *Handler) closeWithReason(wsConn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = wsConn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = wsConn.Close()
	h.log.Debug().Int("code", code).Str("reason", reason).Msg("handshake rejected")
}

// readLoop processes inbound envelopes in arrival order until the connection
// drops, then unregisters it from every index.
func (h *Handler) readLoop(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.cfg.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("conn_id", conn.ID()).Int64("user_id", conn.UserID()).Msg("read failed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		h.dispatch(conn, data)
	}
}

// dispatch handles one inbound envelope. Malformed data and unknown kinds
// produce error replies; the connection stays open.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var envelope types.InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.sendError(conn, "Invalid JSON")
		return
	}

	switch envelope.Type {
	case types.MessageTypeSubscribe:
		if !types.IsValidChannel(envelope.Channel) {
			h.sendError(conn, types.ErrInvalidChannelName.Error())
			return
		}
		h.registry.Subscribe(conn, envelope.Channel)
		h.reply(conn, types.NewEnvelope(types.MessageTypeSubscribed, envelope.Channel, nil))

	case types.MessageTypeUnsubscribe:
		if !types.IsValidChannel(envelope.Channel) {
			h.sendError(conn, types.ErrInvalidChannelName.Error())
			return
		}
		h.registry.Unsubscribe(conn, envelope.Channel)
		h.reply(conn, types.NewEnvelope(types.MessageTypeUnsubscribed, envelope.Channel, nil))

	case types.MessageTypePing:
		h.reply(conn, types.NewEnvelope(types.MessageTypePong, "", nil))

	case types.MessageTypeGetStats:
		stats := h.registry.Stats()
		h.reply(conn, types.NewEnvelope(types.MessageTypeStats, "", stats))

	default:
		h.sendError(conn, fmt.Sprintf("Unknown message type: %s", envelope.Type))
	}
}

func (h *Handler) reply(conn *Connection, env *types.Envelope) {
	if err := conn.WriteEnvelope(env); err != nil {
		h.registry.Unregister(conn)
		_ = conn.Close()
	}
}

func (h *Handler) sendError(conn *Connection, message string) {
	env := types.NewEnvelope(types.MessageTypeError, "", &types.ErrorPayload{Message: message})
	h.reply(conn, env)
}
