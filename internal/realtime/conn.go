package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tandemhq/tandem/internal/auth"
)

// sendQueueSize is the per-connection outbound buffer. A consumer that
// falls this far behind is dropped rather than allowed to stall a room.
const sendQueueSize = 64

// Conn is one live client connection. It exists only for the lifetime of
// the socket and is never persisted. The transport layer owns it
// exclusively; everything else addresses it by ID through the hub.
type Conn struct {
	ID       string
	Identity auth.Identity

	sock *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewConn wraps an upgraded websocket. Tests may pass a nil socket and
// read from Outbound directly.
func NewConn(id string, identity auth.Identity, sock *websocket.Conn) *Conn {
	return &Conn{
		ID:       id,
		Identity: identity,
		sock:     sock,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// Outbound exposes the send queue for the writer pump and for tests.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Done is closed when the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// enqueue appends a frame to the send queue without blocking. It reports
// false when the queue is full, which the hub treats as a dead consumer.
// Frames offered to a closed connection are silently discarded.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close tears down the socket. Safe to call from multiple goroutines; only
// the first call acts.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.sock != nil {
			_ = c.sock.Close()
		}
	})
}
