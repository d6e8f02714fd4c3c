package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghouse/pkg/types"
)

// fakeConn records delivered frames and can be told to fail writes.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	failWith error
	closed   bool
}

func (f *fakeConn) WriteRaw(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) lastEnvelope(t *testing.T) types.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.frames)
	var env types.Envelope
	require.NoError(t, json.Unmarshal(f.frames[len(f.frames)-1], &env))
	return env
}

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestRegistry_RegisterAndStats(t *testing.T) {
	r := newTestRegistry()

	a, b := &fakeConn{}, &fakeConn{}
	r.Register(a, 1)
	r.Register(b, 2)

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Empty(t, stats.Channels)
}

func TestRegistry_MultipleConnectionsPerUser(t *testing.T) {
	r := newTestRegistry()

	a, b := &fakeConn{}, &fakeConn{}
	r.Register(a, 7)
	r.Register(b, 7)

	r.SendToUser(7, types.NewEnvelope(types.MessageTypeNotification, "", nil))
	assert.Equal(t, 1, a.frameCount())
	assert.Equal(t, 1, b.frameCount())

	// Dropping one connection must not affect the other.
	r.Unregister(a)
	r.SendToUser(7, types.NewEnvelope(types.MessageTypeNotification, "", nil))
	assert.Equal(t, 1, a.frameCount())
	assert.Equal(t, 2, b.frameCount())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry()

	a := &fakeConn{}
	r.Register(a, 1)
	r.Subscribe(a, types.ChannelAir)

	r.Unregister(a)
	r.Unregister(a)

	stats := r.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Empty(t, stats.Channels)
}

func TestRegistry_UnregisterRemovesChannelSubscriptions(t *testing.T) {
	r := newTestRegistry()

	a := &fakeConn{}
	r.Register(a, 1)
	r.Subscribe(a, types.ChannelAir)
	r.Subscribe(a, types.ChannelSoil)
	r.Unregister(a)

	r.BroadcastToChannel(types.ChannelAir, types.NewEnvelope(types.MessageTypeTelemetryUpdate, types.ChannelAir, nil))
	assert.Equal(t, 0, a.frameCount())
}

func TestRegistry_BroadcastToChannel(t *testing.T) {
	r := newTestRegistry()

	sub1, sub2, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Register(sub1, 1)
	r.Register(sub2, 2)
	r.Register(other, 3)
	r.Subscribe(sub1, types.ChannelDrones)
	r.Subscribe(sub2, types.ChannelDrones)
	r.Subscribe(other, types.ChannelAir)

	r.BroadcastToChannel(types.ChannelDrones, types.NewEnvelope(types.MessageTypeTelemetryUpdate, types.ChannelDrones, map[string]int{"battery": 90}))

	assert.Equal(t, 1, sub1.frameCount())
	assert.Equal(t, 1, sub2.frameCount())
	assert.Equal(t, 0, other.frameCount())

	env := sub1.lastEnvelope(t)
	assert.Equal(t, types.MessageTypeTelemetryUpdate, env.Type)
	assert.Equal(t, types.ChannelDrones, env.Channel)
	assert.False(t, env.Timestamp.IsZero())
}

func TestRegistry_FailedRecipientDoesNotAbortSweep(t *testing.T) {
	r := newTestRegistry()

	good1 := &fakeConn{}
	bad := &fakeConn{failWith: errors.New("broken pipe")}
	good2 := &fakeConn{}
	r.Register(good1, 1)
	r.Register(bad, 2)
	r.Register(good2, 3)
	for _, c := range []Conn{good1, bad, good2} {
		r.Subscribe(c, types.ChannelGreenhouse)
	}

	r.BroadcastToChannel(types.ChannelGreenhouse, types.NewEnvelope(types.MessageTypeTelemetryUpdate, types.ChannelGreenhouse, nil))

	assert.Equal(t, 1, good1.frameCount())
	assert.Equal(t, 1, good2.frameCount())
	assert.True(t, bad.closed)

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalConnections)
	assert.Equal(t, 2, stats.Channels[types.ChannelGreenhouse])
}

func TestRegistry_SendToOfflineUserIsNoOp(t *testing.T) {
	r := newTestRegistry()

	a := &fakeConn{}
	r.Register(a, 1)

	r.SendToUser(999, types.NewEnvelope(types.MessageTypeNotification, "", nil))
	assert.Equal(t, 0, a.frameCount())
}

func TestRegistry_BroadcastToAll(t *testing.T) {
	r := newTestRegistry()

	conns := []*fakeConn{{}, {}, {}}
	for i, c := range conns {
		r.Register(c, int64(i+1))
	}

	r.BroadcastToAll(types.NewEnvelope(types.MessageTypeNotification, "", "maintenance at noon"))
	for _, c := range conns {
		assert.Equal(t, 1, c.frameCount())
	}
}

func TestRegistry_StatsPerChannel(t *testing.T) {
	r := newTestRegistry()

	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Register(a, 1)
	r.Register(b, 2)
	r.Register(c, 3)
	r.Subscribe(a, types.ChannelAir)
	r.Subscribe(b, types.ChannelAir)
	r.Subscribe(c, types.ChannelSoil)

	stats := r.Stats()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, map[string]int{types.ChannelAir: 2, types.ChannelSoil: 1}, stats.Channels)
}

func TestRegistry_StatsSkipsDrainedChannels(t *testing.T) {
	r := newTestRegistry()

	a := &fakeConn{}
	r.Register(a, 1)
	r.Subscribe(a, types.ChannelConveyor)
	r.Unsubscribe(a, types.ChannelConveyor)

	stats := r.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Empty(t, stats.Channels)
}

func TestRegistry_SendCommandResponse(t *testing.T) {
	r := newTestRegistry()

	a := &fakeConn{}
	r.Register(a, 5)

	r.SendCommandResponse(5, "takeoff", "accepted", map[string]int{"drone_id": 2})

	env := a.lastEnvelope(t)
	assert.Equal(t, types.MessageTypeCommandResponse, env.Type)
	assert.Equal(t, types.ChannelSystem, env.Channel)

	raw, err := json.Marshal(env.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"takeoff","status":"accepted","data":{"drone_id":2}}`, string(raw))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := &fakeConn{}
			r.Register(c, id)
			r.Subscribe(c, types.ChannelAir)
			r.BroadcastToChannel(types.ChannelAir, types.NewEnvelope(types.MessageTypeTelemetryUpdate, types.ChannelAir, nil))
			r.Stats()
			r.Unsubscribe(c, types.ChannelAir)
			r.Unregister(c)
		}(int64(i))
	}
	wg.Wait()

	stats := r.Stats()
	assert.Equal(t, 0, stats.TotalConnections)
	assert.Empty(t, stats.Channels)
}
