package types

import (
	"encoding/json"
	"time"
)

// Inbound message kinds accepted from clients over the WebSocket.
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypeGetStats    = "get_stats"
)

// Outbound message kinds sent to clients. Every outbound envelope carries a
// server-assigned timestamp; client timestamps are never trusted.
const (
	MessageTypeSubscribed      = "subscribed"
	MessageTypeUnsubscribed    = "unsubscribed"
	MessageTypePong            = "pong"
	MessageTypeStats           = "stats"
	MessageTypeTelemetryUpdate = "telemetry_update"
	MessageTypeAlert           = "alert"
	MessageTypeNotification    = "notification"
	MessageTypeCommandResponse = "command_response"
	MessageTypeError           = "error"
)

// Channel names used for fan-out delivery. Channels are created implicitly
// on first subscribe and are not persisted anywhere.
const (
	ChannelGreenhouse    = "greenhouse"
	ChannelAir           = "air"
	ChannelDrones        = "drones"
	ChannelConveyor      = "conveyor"
	ChannelSoil          = "soil"
	ChannelNotifications = "notifications"
	ChannelSystem        = "system"
)

// WebSocket close codes for handshake failures.
const (
	CloseTokenRequired      = 4001
	CloseTokenInvalid       = 4002
	CloseTokenMissingUserID = 4003
)

// InboundEnvelope is the unit of wire exchange from client to server.
// The payload is kept raw; only the kinds above are dispatched.
type InboundEnvelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is the unit of wire exchange from server to client.
type Envelope struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEnvelope builds an outbound envelope stamped with the current server time.
func NewEnvelope(kind, channel string, payload interface{}) *Envelope {
	return &Envelope{
		Type:      kind,
		Channel:   channel,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ErrorPayload is the payload of an error-kind envelope.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RegistryStats reports the registry state returned by get_stats and /health.
type RegistryStats struct {
	TotalConnections int            `json:"total_connections"`
	Channels         map[string]int `json:"channels"`
}

// CommandResponsePayload is the payload of a command_response envelope.
type CommandResponsePayload struct {
	Command string      `json:"command"`
	Status  string      `json:"status"`
	Data    interface{} `json:"data"`
}
