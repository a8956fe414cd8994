package realtime

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/auth"
)

func newTestConn(id, userID string) *Conn {
	return NewConn(id, auth.Identity{UserID: userID}, nil)
}

// drain reads every buffered frame from a connection's send queue.
func drain(c *Conn) [][]byte {
	var frames [][]byte
	for {
		select {
		case data := <-c.Outbound():
			frames = append(frames, data)
		default:
			return frames
		}
	}
}

func TestHubBroadcastReachesRoomMembersOnly(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := newTestConn("c1", "alice")
	b := newTestConn("c2", "bob")
	c := newTestConn("c3", "carol")
	for _, conn := range []*Conn{a, b, c} {
		h.Register(conn)
	}
	h.Join("c1", "tenant:t1")
	h.Join("c2", "tenant:t1")

	h.Broadcast("tenant:t1", []byte("hello"))

	if got := len(drain(a)); got != 1 {
		t.Errorf("alice received %d frames, want 1", got)
	}
	if got := len(drain(b)); got != 1 {
		t.Errorf("bob received %d frames, want 1", got)
	}
	if got := len(drain(c)); got != 0 {
		t.Errorf("carol received %d frames, want 0", got)
	}
}

func TestHubBroadcastEmptyRoomIsNoop(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newTestConn("c1", "alice")
	h.Register(c)

	// No members; must not panic or deliver anywhere
	h.Broadcast("tenant:nobody", []byte("hello"))
	if got := len(drain(c)); got != 0 {
		t.Errorf("received %d frames from empty-room broadcast, want 0", got)
	}
}

func TestHubBroadcastExcept(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := newTestConn("c1", "alice")
	b := newTestConn("c2", "bob")
	h.Register(a)
	h.Register(b)
	h.Join("c1", "tenant:t1")
	h.Join("c2", "tenant:t1")

	h.BroadcastExcept("tenant:t1", "c1", []byte("typing"))

	if got := len(drain(a)); got != 0 {
		t.Errorf("sender received %d frames, want 0", got)
	}
	if got := len(drain(b)); got != 1 {
		t.Errorf("other member received %d frames, want 1", got)
	}
}

func TestHubUnregisterRemovesFromAllRooms(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newTestConn("c1", "alice")
	h.Register(c)
	h.Join("c1", "tenant:t1")
	h.Join("c1", "channel:ch1")

	h.Unregister("c1")

	if got := h.MembersOf("tenant:t1"); len(got) != 0 {
		t.Errorf("tenant room members = %v, want empty", got)
	}
	if got := h.MembersOf("channel:ch1"); len(got) != 0 {
		t.Errorf("channel room members = %v, want empty", got)
	}

	// Idempotent
	h.Unregister("c1")
}

func TestHubJoinUnknownConnIgnored(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.Join("ghost", "tenant:t1")
	if got := h.MembersOf("tenant:t1"); len(got) != 0 {
		t.Errorf("members = %v, want empty", got)
	}
}

func TestHubDropsSlowConsumer(t *testing.T) {
	h := NewHub(zerolog.Nop())
	slow := newTestConn("c1", "alice")
	h.Register(slow)
	h.Join("c1", "tenant:t1")

	// Fill the queue past capacity; the overflowing frame closes the conn
	for i := 0; i <= sendQueueSize; i++ {
		h.Broadcast("tenant:t1", []byte(fmt.Sprintf("frame %d", i)))
	}

	select {
	case <-slow.Done():
	default:
		t.Error("slow consumer should have been closed")
	}
}
