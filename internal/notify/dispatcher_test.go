package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/realtime"
)

type memTransport struct {
	broadcasts map[string][][]byte
}

func newMemTransport() *memTransport {
	return &memTransport{broadcasts: make(map[string][][]byte)}
}

func (m *memTransport) Join(connID, room string)        {}
func (m *memTransport) Leave(connID, room string)       {}
func (m *memTransport) MembersOf(room string) []string  { return nil }
func (m *memTransport) Send(connID string, data []byte) {}
func (m *memTransport) Broadcast(room string, data []byte) {
	m.broadcasts[room] = append(m.broadcasts[room], data)
}
func (m *memTransport) BroadcastExcept(room, exceptConnID string, data []byte) {
	m.Broadcast(room, data)
}

// userRoomEvents decodes the event names pushed to a user's room.
func (m *memTransport) userRoomEvents(t *testing.T, userID string) []string {
	t.Helper()
	var names []string
	for _, frame := range m.broadcasts[realtime.UserRoom(userID)] {
		var env realtime.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		names = append(names, env.Event)
	}
	return names
}

type memNotificationStore struct {
	records []*models.Notification
	err     error
	// failFor makes CreateNotification fail for one recipient only
	failFor uuid.UUID
}

func (s *memNotificationStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if s.err != nil {
		return s.err
	}
	if s.failFor != uuid.Nil && n.UserID == s.failFor {
		return errors.New("write refused")
	}
	s.records = append(s.records, n)
	return nil
}

func (s *memNotificationStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, before time.Time) ([]models.Notification, error) {
	return nil, nil
}
func (s *memNotificationStore) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	return nil
}
func (s *memNotificationStore) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	return nil
}
func (s *memNotificationStore) ClearNotification(ctx context.Context, id, userID uuid.UUID) error {
	return nil
}

type memDirectory struct {
	members []uuid.UUID
}

func (d *memDirectory) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	return nil, nil
}
func (d *memDirectory) TargetMemberIDs(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) ([]uuid.UUID, error) {
	return d.members, nil
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		typ  string
		want models.NotificationCategory
	}{
		{TypeMention, models.CategoryPrimary},
		{TypeAssignment, models.CategoryPrimary},
		{TypeMessage, models.CategoryPrimary},
		{TypeTaskDue, models.CategoryPrimary},
		{TypeSystem, models.CategoryOther},
		{TypeLoginAudit, models.CategoryOther},
		{"SOMETHING_ELSE", models.CategoryOther},
	}
	for _, c := range cases {
		if got := Categorize(c.typ); got != c.want {
			t.Errorf("Categorize(%q) = %q, want %q", c.typ, got, c.want)
		}
	}
}

func TestCreatePersistsAndPushes(t *testing.T) {
	store := &memNotificationStore{}
	transport := newMemTransport()
	events := realtime.NewBroadcaster(transport, nil, zerolog.Nop())
	d := NewDispatcher(store, &memDirectory{}, events, zerolog.Nop())

	tenantID, userID := uuid.New(), uuid.New()
	n, err := d.Create(context.Background(), tenantID, userID, TypeMention, "You were mentioned", "in #general", map[string]string{"channelId": "ch1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Category != models.CategoryPrimary {
		t.Errorf("category = %q, want PRIMARY", n.Category)
	}
	if len(store.records) != 1 {
		t.Fatalf("persisted %d records, want 1", len(store.records))
	}

	pushed := transport.userRoomEvents(t, userID.String())
	if len(pushed) != 1 || pushed[0] != realtime.EventNotificationNew {
		t.Errorf("user room events = %v, want [notification.new]", pushed)
	}

	// No idempotency: a second call creates a second record
	if _, err := d.Create(context.Background(), tenantID, userID, TypeMention, "again", "", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(store.records) != 2 {
		t.Errorf("persisted %d records after second call, want 2", len(store.records))
	}
}

func TestCreateStoreFailurePropagates(t *testing.T) {
	store := &memNotificationStore{err: errors.New("db down")}
	events := realtime.NewBroadcaster(newMemTransport(), nil, zerolog.Nop())
	d := NewDispatcher(store, &memDirectory{}, events, zerolog.Nop())

	if _, err := d.Create(context.Background(), uuid.New(), uuid.New(), TypeMention, "x", "", nil); err == nil {
		t.Fatal("expected persistence failure to propagate")
	}
}

func TestNotifyMessageFanOut(t *testing.T) {
	sender := uuid.New()
	m1, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	directory := &memDirectory{members: []uuid.UUID{sender, m1, m2, m3}}
	store := &memNotificationStore{}
	transport := newMemTransport()
	events := realtime.NewBroadcaster(transport, nil, zerolog.Nop())
	d := NewDispatcher(store, directory, events, zerolog.Nop())

	msg := &models.ChatMessage{
		ID:         "msg1",
		TenantID:   uuid.NewString(),
		TargetID:   uuid.NewString(),
		TargetKind: models.TargetChannel,
		SenderID:   sender.String(),
		SenderName: "Alice",
		Body:       "lunch?",
	}

	if err := d.NotifyMessage(context.Background(), msg); err != nil {
		t.Fatalf("NotifyMessage: %v", err)
	}

	// One record per other member, none for the sender
	if len(store.records) != 3 {
		t.Fatalf("persisted %d records, want 3", len(store.records))
	}
	for _, n := range store.records {
		if n.UserID == sender {
			t.Error("sender must not be notified about their own message")
		}
		if n.Type != TypeMessage || n.Category != models.CategoryPrimary {
			t.Errorf("record type=%q category=%q", n.Type, n.Category)
		}
	}

	// Each recipient gets notification.new plus message.notify
	for _, member := range []uuid.UUID{m1, m2, m3} {
		got := transport.userRoomEvents(t, member.String())
		if len(got) != 2 {
			t.Errorf("recipient %s got events %v, want 2", member, got)
		}
	}
	if got := transport.userRoomEvents(t, sender.String()); len(got) != 0 {
		t.Errorf("sender got events %v, want none", got)
	}
}

func TestNotifyMessagePartialFailure(t *testing.T) {
	sender := uuid.New()
	bad, good := uuid.New(), uuid.New()
	directory := &memDirectory{members: []uuid.UUID{sender, bad, good}}
	store := &memNotificationStore{failFor: bad}
	transport := newMemTransport()
	events := realtime.NewBroadcaster(transport, nil, zerolog.Nop())
	d := NewDispatcher(store, directory, events, zerolog.Nop())

	msg := &models.ChatMessage{
		ID:         "msg1",
		TenantID:   uuid.NewString(),
		TargetID:   uuid.NewString(),
		TargetKind: models.TargetConversation,
		SenderID:   sender.String(),
		Body:       "hi",
	}

	err := d.NotifyMessage(context.Background(), msg)
	if err == nil {
		t.Fatal("expected partial failure to surface")
	}

	// The other recipient is still served
	if len(store.records) != 1 || store.records[0].UserID != good {
		t.Errorf("records = %+v, want one record for the healthy recipient", store.records)
	}
	if got := transport.userRoomEvents(t, good.String()); len(got) != 2 {
		t.Errorf("healthy recipient events = %v, want 2", got)
	}
	if got := transport.userRoomEvents(t, bad.String()); len(got) != 0 {
		t.Errorf("failed recipient events = %v, want none", got)
	}
}

func TestRecordLogin(t *testing.T) {
	store := &memNotificationStore{}
	events := realtime.NewBroadcaster(newMemTransport(), nil, zerolog.Nop())
	d := NewDispatcher(store, &memDirectory{}, events, zerolog.Nop())

	if err := d.RecordLogin(context.Background(), uuid.NewString(), uuid.NewString()); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("persisted %d records, want 1", len(store.records))
	}
	if store.records[0].Category != models.CategoryOther {
		t.Errorf("login audit category = %q, want OTHER", store.records[0].Category)
	}

	if err := d.RecordLogin(context.Background(), "not-a-uuid", uuid.NewString()); err == nil {
		t.Error("expected error for malformed tenant id")
	}
}
