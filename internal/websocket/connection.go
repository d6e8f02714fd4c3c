package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ghouse/pkg/types"
)

// Connection wraps one client WebSocket. All writes go through a single
// writer goroutine so concurrent broadcasts never interleave frames.
type Connection struct {
	id           string
	conn         *websocket.Conn
	writeCh      chan []byte
	userID       int64
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps an upgraded WebSocket for an authenticated user and
// starts its writer goroutine.
func NewConnection(conn *websocket.Conn, userID int64, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:           uuid.NewString(),
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		userID:       userID,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the connection's unique identifier, assigned at creation and
// used to correlate log lines across a connection's lifetime.
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the identity resolved from the handshake credential.
func (c *Connection) UserID() int64 {
	return c.userID
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteRaw queues pre-serialized data for delivery. It fails fast when the
// connection is closed or its buffer stays full past the write timeout; the
// caller is expected to unregister the connection on failure.
func (c *Connection) WriteRaw(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// WriteEnvelope serializes and queues an outbound envelope.
func (c *Connection) WriteEnvelope(env *types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return ErrInvalidPayload
	}
	return c.WriteRaw(data)
}

// Close terminates the connection and stops the writer goroutine. Safe to
// call multiple times.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
