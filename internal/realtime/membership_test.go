package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeTransport records room membership and delivered frames in memory.
type fakeTransport struct {
	mu     sync.Mutex
	rooms  map[string]map[string]bool
	frames []sentFrame
}

type sentFrame struct {
	room   string
	connID string
	except string
	data   []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[string]map[string]bool)}
}

func (f *fakeTransport) Join(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[room] == nil {
		f.rooms[room] = make(map[string]bool)
	}
	f.rooms[room][connID] = true
}

func (f *fakeTransport) Leave(connID, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms[room], connID)
	if len(f.rooms[room]) == 0 {
		delete(f.rooms, room)
	}
}

func (f *fakeTransport) MembersOf(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.rooms[room]))
	for id := range f.rooms[room] {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

func (f *fakeTransport) Send(connID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sentFrame{connID: connID, data: data})
}

func (f *fakeTransport) Broadcast(room string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sentFrame{room: room, data: data})
}

func (f *fakeTransport) BroadcastExcept(room, exceptConnID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sentFrame{room: room, except: exceptConnID, data: data})
}

// sentTo returns the frames broadcast to a room, decoded as envelopes.
func (f *fakeTransport) sentTo(t *testing.T, room string) []Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var envelopes []Envelope
	for _, frame := range f.frames {
		if frame.room != room {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(frame.data, &env); err != nil {
			t.Fatalf("bad frame in room %s: %v", room, err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes
}

func newTestMembership() (*Membership, *fakeTransport, *PresenceRegistry) {
	transport := newFakeTransport()
	presence := NewPresenceRegistry()
	events := NewBroadcaster(transport, nil, zerolog.Nop())
	return NewMembership(transport, presence, events, zerolog.Nop()), transport, presence
}

func TestMembershipAttachJoinsUserRoom(t *testing.T) {
	m, transport, _ := newTestMembership()
	m.Attach("c1", "alice")

	members := transport.MembersOf(UserRoom("alice"))
	if len(members) != 1 || members[0] != "c1" {
		t.Errorf("user room members = %v, want [c1]", members)
	}
	if got := m.UserID("c1"); got != "alice" {
		t.Errorf("UserID = %q, want alice", got)
	}
}

func TestMembershipJoinTenant(t *testing.T) {
	m, transport, presence := newTestMembership()
	m.Attach("c1", "alice")

	room := m.JoinTenant("c1", "t1")
	if room != TenantRoom("t1") {
		t.Errorf("JoinTenant returned %q, want %q", room, TenantRoom("t1"))
	}
	if !presence.IsOnline("t1", "alice") {
		t.Error("alice should be online after joining tenant")
	}

	// The join broadcasts the updated presence list to the room
	envelopes := transport.sentTo(t, TenantRoom("t1"))
	if len(envelopes) != 1 || envelopes[0].Event != EventPresenceUpdate {
		t.Fatalf("expected one presence:update broadcast, got %v", envelopes)
	}

	// Repeated join by the same connection changes nothing
	m.JoinTenant("c1", "t1")
	if got := len(transport.sentTo(t, TenantRoom("t1"))); got != 1 {
		t.Errorf("repeated join broadcast count = %d, want 1", got)
	}
}

func TestMembershipJoinTenantUnknownConn(t *testing.T) {
	m, _, presence := newTestMembership()
	if room := m.JoinTenant("nope", "t1"); room != "" {
		t.Errorf("JoinTenant for unknown conn = %q, want empty", room)
	}
	if len(presence.OnlineUsers("t1")) != 0 {
		t.Error("presence should be empty")
	}
}

func TestMembershipDisconnectLeavesAllTenants(t *testing.T) {
	m, transport, presence := newTestMembership()
	m.Attach("c1", "alice")
	m.Attach("c2", "bob")
	m.JoinTenant("c1", "t1")
	m.JoinTenant("c1", "t2")
	m.JoinTenant("c2", "t1")

	m.Disconnect("c1")

	if presence.IsOnline("t1", "alice") {
		t.Error("alice should be offline in t1 after disconnect")
	}
	if presence.IsOnline("t2", "alice") {
		t.Error("alice should be offline in t2 after disconnect")
	}
	if !presence.IsOnline("t1", "bob") {
		t.Error("bob should remain online in t1")
	}

	members := transport.MembersOf(TenantRoom("t1"))
	if len(members) != 1 || members[0] != "c2" {
		t.Errorf("t1 members after disconnect = %v, want [c2]", members)
	}
	if got := transport.MembersOf(UserRoom("alice")); len(got) != 0 {
		t.Errorf("alice's user room should be empty, got %v", got)
	}
	if got := m.UserID("c1"); got != "" {
		t.Errorf("UserID after disconnect = %q, want empty", got)
	}

	// The last presence:update in t1 tells remaining members who is left
	envelopes := transport.sentTo(t, TenantRoom("t1"))
	if len(envelopes) == 0 {
		t.Fatal("no broadcasts to t1")
	}
	last := envelopes[len(envelopes)-1]
	if last.Event != EventPresenceUpdate {
		t.Fatalf("last t1 event = %q, want %q", last.Event, EventPresenceUpdate)
	}
	raw, err := json.Marshal(last.Data)
	if err != nil {
		t.Fatalf("re-encode presence data: %v", err)
	}
	var data PresenceData
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("decode presence data: %v", err)
	}
	if len(data.OnlineUsers) != 1 || data.OnlineUsers[0] != "bob" {
		t.Errorf("onlineUsers after disconnect = %v, want [bob]", data.OnlineUsers)
	}
}

func TestMembershipDisconnectIdempotent(t *testing.T) {
	m, transport, _ := newTestMembership()
	m.Attach("c1", "alice")
	m.JoinTenant("c1", "t1")

	m.Disconnect("c1")
	broadcasts := len(transport.sentTo(t, TenantRoom("t1")))

	// The reader and writer pumps can both observe the close
	m.Disconnect("c1")
	if got := len(transport.sentTo(t, TenantRoom("t1"))); got != broadcasts {
		t.Errorf("second Disconnect broadcast presence again: %d -> %d", broadcasts, got)
	}
}

func TestMembershipRefcountedPresence(t *testing.T) {
	m, _, presence := newTestMembership()

	// Same user on two connections
	m.Attach("c1", "alice")
	m.Attach("c2", "alice")
	m.JoinTenant("c1", "t1")
	m.JoinTenant("c2", "t1")

	m.Disconnect("c1")
	if !presence.IsOnline("t1", "alice") {
		t.Error("alice should remain online while her second connection is joined")
	}

	m.Disconnect("c2")
	if presence.IsOnline("t1", "alice") {
		t.Error("alice should be offline after her last connection leaves")
	}
}

func TestMembershipChatRooms(t *testing.T) {
	m, transport, _ := newTestMembership()
	m.Attach("c1", "alice")

	m.JoinChatTarget("c1", "channel", "ch1")
	if got := transport.MembersOf(ChatRoom("channel", "ch1")); len(got) != 1 {
		t.Errorf("channel room members = %v, want [c1]", got)
	}

	m.LeaveChatTarget("c1", "channel", "ch1")
	if got := transport.MembersOf(ChatRoom("channel", "ch1")); len(got) != 0 {
		t.Errorf("channel room should be empty after leave, got %v", got)
	}
}
