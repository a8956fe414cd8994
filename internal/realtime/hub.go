package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/metrics"
)

// Hub is the in-process RoomTransport: it owns the connection table and
// the room membership tables. All mutation happens under one mutex with no
// I/O inside the critical section; delivery is a non-blocking push onto
// each connection's send queue.
type Hub struct {
	log zerolog.Logger

	mu        sync.Mutex
	conns     map[string]*Conn
	rooms     map[string]map[string]*Conn // room key -> conn id -> conn
	connRooms map[string]map[string]bool  // conn id -> room keys
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:       log,
		conns:     make(map[string]*Conn),
		rooms:     make(map[string]map[string]*Conn),
		connRooms: make(map[string]map[string]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.connRooms[c.ID] = make(map[string]bool)
	total := len(h.conns)
	h.mu.Unlock()

	metrics.ActiveConnections.Set(float64(total))
	h.log.Debug().Str("conn", c.ID).Str("user", c.Identity.UserID).Int("total", total).Msg("connection registered")
}

// Unregister removes a connection from the hub and from every room it had
// joined. Idempotent.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		for room := range h.connRooms[connID] {
			h.removeFromRoom(connID, room)
		}
		delete(h.connRooms, connID)
		delete(h.conns, connID)
	}
	total := len(h.conns)
	h.mu.Unlock()

	if ok {
		c.Close()
		metrics.ActiveConnections.Set(float64(total))
		h.log.Debug().Str("conn", connID).Int("total", total).Msg("connection unregistered")
	}
}

// Join adds the connection to a room. Joining a room key is always valid
// even if no entity with that id exists; unknown connections are ignored.
func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[connID] = c
	h.connRooms[connID][room] = true
}

// Leave removes the connection from a room. No-op if not a member.
func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(connID, room)
	if rooms, ok := h.connRooms[connID]; ok {
		delete(rooms, room)
	}
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// MembersOf returns the sorted connection ids currently in the room.
func (h *Hub) MembersOf(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Send delivers a frame to one connection.
func (h *Hub) Send(connID string, data []byte) {
	if data == nil {
		return
	}
	h.mu.Lock()
	c, ok := h.conns[connID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.deliver(c, data)
}

// Broadcast delivers a frame to every member of the room. An empty room is
// a silent no-op.
func (h *Hub) Broadcast(room string, data []byte) {
	h.broadcast(room, "", data)
}

// BroadcastExcept delivers to every member of the room except one
// connection, used for typing relays where the sender already knows.
func (h *Hub) BroadcastExcept(room, exceptConnID string, data []byte) {
	h.broadcast(room, exceptConnID, data)
}

func (h *Hub) broadcast(room, exceptConnID string, data []byte) {
	if data == nil {
		return
	}
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id == exceptConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.deliver(c, data)
	}
}

// deliver pushes a frame onto the connection's queue. A full queue means
// the consumer stopped reading; the connection is closed and its reader
// pump performs the membership teardown.
func (h *Hub) deliver(c *Conn, data []byte) {
	if c.enqueue(data) {
		return
	}
	metrics.SlowConsumersDropped.Inc()
	h.log.Warn().Str("conn", c.ID).Str("user", c.Identity.UserID).Msg("send queue full, dropping connection")
	c.Close()
}
