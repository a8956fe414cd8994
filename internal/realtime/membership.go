package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/models"
)

// connState tracks what the membership manager needs to undo on
// disconnect: who the connection belongs to and which tenant rooms it has
// joined. Chat rooms need no tracking here; the hub drops them with the
// connection and they carry no presence.
type connState struct {
	userID  string
	tenants map[string]bool
}

// Membership joins and leaves connections to rooms and keeps the presence
// registry consistent with tenant-room membership. It is the single writer
// of presence state: every mutation happens under m.mu and completes,
// including the presence re-broadcast, before the next begins.
type Membership struct {
	transport RoomTransport
	presence  *PresenceRegistry
	events    *Broadcaster
	log       zerolog.Logger

	mu    sync.Mutex
	conns map[string]*connState
}

// NewMembership creates a membership manager over the given transport.
func NewMembership(transport RoomTransport, presence *PresenceRegistry, events *Broadcaster, log zerolog.Logger) *Membership {
	return &Membership{
		transport: transport,
		presence:  presence,
		events:    events,
		log:       log,
		conns:     make(map[string]*connState),
	}
}

// Attach registers an authenticated connection and joins it to its own
// user room for direct addressing. The user room is never left until
// disconnect.
func (m *Membership) Attach(connID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[connID]; ok {
		return
	}
	m.conns[connID] = &connState{userID: userID, tenants: make(map[string]bool)}
	m.transport.Join(connID, UserRoom(userID))
}

// JoinTenant adds the connection to the tenant room, marks the user
// present, and broadcasts the updated online list to the room. Returns the
// room key, or "" for an unknown connection. A repeated join by the same
// connection is a no-op.
func (m *Membership) JoinTenant(connID, tenantID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.conns[connID]
	if !ok {
		return ""
	}
	room := TenantRoom(tenantID)
	if state.tenants[tenantID] {
		return room
	}
	state.tenants[tenantID] = true
	m.transport.Join(connID, room)
	m.presence.Add(tenantID, state.userID)
	m.events.PresenceUpdate(tenantID, m.presence.OnlineUsers(tenantID))
	return room
}

// LeaveTenant is the inverse of JoinTenant. The user drops out of the
// presence set only when this was their last connection in the tenant;
// either way the updated list is re-broadcast.
func (m *Membership) LeaveTenant(connID, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveTenantLocked(connID, tenantID)
}

func (m *Membership) leaveTenantLocked(connID, tenantID string) {
	state, ok := m.conns[connID]
	if !ok || !state.tenants[tenantID] {
		return
	}
	delete(state.tenants, tenantID)
	m.transport.Leave(connID, TenantRoom(tenantID))
	m.presence.Remove(tenantID, state.userID)
	m.events.PresenceUpdate(tenantID, m.presence.OnlineUsers(tenantID))
}

// JoinChatTarget joins a channel or conversation room. No presence
// broadcast: presence is tenant-scoped only. Authorization for room
// semantics (private chat access) is the caller's responsibility.
func (m *Membership) JoinChatTarget(connID string, kind models.TargetKind, targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[connID]; !ok {
		return
	}
	m.transport.Join(connID, ChatRoom(kind, targetID))
}

// LeaveChatTarget leaves a channel or conversation room.
func (m *Membership) LeaveChatTarget(connID string, kind models.TargetKind, targetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[connID]; !ok {
		return
	}
	m.transport.Leave(connID, ChatRoom(kind, targetID))
}

// Disconnect performs leaveTenant for every tenant room the connection was
// part of and forgets the connection. Idempotent: the state record is
// removed on the first call, so a second call (reader and writer pumps can
// both observe the close) does nothing.
func (m *Membership) Disconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.conns[connID]
	if !ok {
		return
	}
	for tenantID := range state.tenants {
		m.leaveTenantLocked(connID, tenantID)
	}
	m.transport.Leave(connID, UserRoom(state.userID))
	delete(m.conns, connID)
	m.log.Debug().Str("conn", connID).Str("user", state.userID).Msg("membership torn down")
}

// UserID resolves the user a connection belongs to, or "".
func (m *Membership) UserID(connID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.conns[connID]; ok {
		return state.userID
	}
	return ""
}
