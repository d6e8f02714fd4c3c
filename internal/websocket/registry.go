package websocket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"ghouse/pkg/types"
)

// Conn is the transport surface the registry needs from a connection.
// *Connection satisfies it; tests may substitute fakes.
type Conn interface {
	WriteRaw(data []byte) error
	Close() error
}

// Registry tracks live connections, their owning users, and their channel
// subscriptions, and provides unicast, multicast, and broadcast delivery.
// It is the sole owner of the three indices; all access is serialized under
// one mutex. Delivery happens against a snapshot taken under the lock, so a
// subscriber removed mid-sweep still receives that sweep's message and a
// subscriber added mid-sweep receives the next one.
type Registry struct {
	mu       sync.Mutex
	active   map[Conn]int64
	users    map[int64]map[Conn]struct{}
	channels map[string]map[Conn]struct{}
	log      zerolog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		active:   make(map[Conn]int64),
		users:    make(map[int64]map[Conn]struct{}),
		channels: make(map[string]map[Conn]struct{}),
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Register adds a connection to the active set and the user index. The
// caller must have validated the user's credential first. A user may hold
// any number of concurrent connections.
func (r *Registry) Register(conn Conn, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[conn] = userID
	if r.users[userID] == nil {
		r.users[userID] = make(map[Conn]struct{})
	}
	r.users[userID][conn] = struct{}{}

	r.log.Info().Int64("user_id", userID).Int("total", len(r.active)).Msg("connection registered")
}

// Unregister removes a connection from the active set, its user's set
// (pruning the user entry when it empties), and every channel's subscriber
// set. Idempotent: calls after the first removal are no-ops.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(conn)
}

func (r *Registry) unregisterLocked(conn Conn) {
	userID, exists := r.active[conn]
	if !exists {
		return
	}
	delete(r.active, conn)

	if conns, ok := r.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r.users, userID)
		}
	}

	for _, subscribers := range r.channels {
		delete(subscribers, conn)
	}

	r.log.Info().Int64("user_id", userID).Int("total", len(r.active)).Msg("connection unregistered")
}

// Subscribe adds a connection to the named channel, creating the channel's
// subscriber set on first use.
func (r *Registry) Subscribe(conn Conn, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels[channel] == nil {
		r.channels[channel] = make(map[Conn]struct{})
	}
	r.channels[channel][conn] = struct{}{}

	r.log.Debug().Str("channel", channel).Msg("subscribed")
}

// Unsubscribe removes a connection from the named channel. An empty
// subscriber set left behind is harmless and skipped by delivery and stats.
func (r *Registry) Unsubscribe(conn Conn, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if subscribers, ok := r.channels[channel]; ok {
		delete(subscribers, conn)
	}
}

// BroadcastToChannel delivers an envelope to every current subscriber of the
// channel. The subscriber set is snapshotted at call time.
func (r *Registry) BroadcastToChannel(channel string, env *types.Envelope) {
	r.mu.Lock()
	snapshot := snapshotSet(r.channels[channel])
	r.mu.Unlock()

	r.deliver(snapshot, env)
}

// SendToUser delivers an envelope to every open connection of one user. A
// user with no connections is a silent no-op; users may be offline.
func (r *Registry) SendToUser(userID int64, env *types.Envelope) {
	r.mu.Lock()
	snapshot := snapshotSet(r.users[userID])
	r.mu.Unlock()

	r.deliver(snapshot, env)
}

// BroadcastToAll delivers an envelope to every active connection.
func (r *Registry) BroadcastToAll(env *types.Envelope) {
	r.mu.Lock()
	snapshot := make([]Conn, 0, len(r.active))
	for conn := range r.active {
		snapshot = append(snapshot, conn)
	}
	r.mu.Unlock()

	r.deliver(snapshot, env)
}

// deliver serializes the envelope once and attempts every recipient. A
// failed send never aborts the sweep and is never retried; failed
// connections are unregistered after the sweep completes.
func (r *Registry) deliver(recipients []Conn, env *types.Envelope) {
	if len(recipients) == 0 {
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		r.log.Error().Err(err).Str("type", env.Type).Msg("failed to serialize envelope")
		return
	}

	var failed []Conn
	for _, conn := range recipients {
		if err := conn.WriteRaw(data); err != nil {
			r.log.Warn().Err(err).Str("type", env.Type).Msg("delivery failed, dropping connection")
			failed = append(failed, conn)
		}
	}

	if len(failed) == 0 {
		return
	}
	r.mu.Lock()
	for _, conn := range failed {
		r.unregisterLocked(conn)
	}
	r.mu.Unlock()
	for _, conn := range failed {
		_ = conn.Close()
	}
}

// Stats reports the number of active connections and per-channel subscriber
// counts. Channels with no subscribers are omitted.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := types.RegistryStats{
		TotalConnections: len(r.active),
		Channels:         make(map[string]int),
	}
	for channel, subscribers := range r.channels {
		if len(subscribers) > 0 {
			stats.Channels[channel] = len(subscribers)
		}
	}
	return stats
}

// SendTelemetry publishes a telemetry_update envelope on a channel.
func (r *Registry) SendTelemetry(channel string, payload interface{}) {
	r.BroadcastToChannel(channel, types.NewEnvelope(types.MessageTypeTelemetryUpdate, channel, payload))
}

// SendAlert publishes an alert envelope on a channel.
func (r *Registry) SendAlert(channel string, payload interface{}) {
	r.BroadcastToChannel(channel, types.NewEnvelope(types.MessageTypeAlert, channel, payload))
}

// SendNotification delivers a notification envelope to one user.
// Fire-and-forget: offline users are silently skipped.
func (r *Registry) SendNotification(userID int64, payload interface{}) {
	r.SendToUser(userID, types.NewEnvelope(types.MessageTypeNotification, types.ChannelNotifications, payload))
}

// SendCommandResponse delivers a command_response envelope to one user.
func (r *Registry) SendCommandResponse(userID int64, command, status string, data interface{}) {
	payload := &types.CommandResponsePayload{Command: command, Status: status, Data: data}
	r.SendToUser(userID, types.NewEnvelope(types.MessageTypeCommandResponse, types.ChannelSystem, payload))
}

func snapshotSet(set map[Conn]struct{}) []Conn {
	if len(set) == 0 {
		return nil
	}
	snapshot := make([]Conn, 0, len(set))
	for conn := range set {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}
