package automation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/mailer"
	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/realtime"
)

// nullTransport records broadcast frames per room.
type nullTransport struct {
	broadcasts map[string][][]byte
}

func newNullTransport() *nullTransport {
	return &nullTransport{broadcasts: make(map[string][][]byte)}
}

func (n *nullTransport) Join(connID, room string)     {}
func (n *nullTransport) Leave(connID, room string)    {}
func (n *nullTransport) MembersOf(room string) []string { return nil }
func (n *nullTransport) Send(connID string, data []byte) {}
func (n *nullTransport) Broadcast(room string, data []byte) {
	n.broadcasts[room] = append(n.broadcasts[room], data)
}
func (n *nullTransport) BroadcastExcept(room, exceptConnID string, data []byte) {
	n.Broadcast(room, data)
}

type fakeTaskStore struct {
	assigned map[uuid.UUID]uuid.UUID
	err      error
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return nil, nil
}

func (f *fakeTaskStore) UpdateTaskAssignee(ctx context.Context, taskID, userID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	if f.assigned == nil {
		f.assigned = make(map[uuid.UUID]uuid.UUID)
	}
	f.assigned[taskID] = userID
	return nil
}

type fakeDirectory struct {
	employees map[uuid.UUID]*models.Employee
}

func (f *fakeDirectory) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	return f.employees[id], nil
}

func (f *fakeDirectory) TargetMemberIDs(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeMailer struct {
	sent []mailer.Email
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, e mailer.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

func assignEvent(tenantID uuid.UUID) TaskEvent {
	return TaskEvent{
		Type:     models.TaskEventStatusChange,
		TenantID: tenantID,
		ActorID:  uuid.New(),
		Task: &models.Task{
			ID:       uuid.New(),
			TenantID: tenantID,
			ListID:   uuid.New(),
			Title:    "triage inbox",
			Status:   models.TaskStatusInProgress,
		},
	}
}

func TestAssignUserHandler(t *testing.T) {
	tenantID := uuid.New()
	assignee := uuid.New()
	tasks := &fakeTaskStore{}
	transport := newNullTransport()
	events := realtime.NewBroadcaster(transport, nil, zerolog.Nop())
	h := NewAssignUserHandler(tasks, events)

	evt := assignEvent(tenantID)
	action := models.Action{Type: models.ActionAssignUser, Params: map[string]string{"userId": assignee.String()}}

	if err := h.Execute(context.Background(), action, evt); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := tasks.assigned[evt.Task.ID]; got != assignee {
		t.Errorf("assignee written = %s, want %s", got, assignee)
	}

	// The mutation is broadcast as a task.updated with the new assignee
	frames := transport.broadcasts[realtime.TenantRoom(tenantID.String())]
	if len(frames) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(frames))
	}
	var env struct {
		Event string `json:"event"`
		Data  struct {
			Task *models.Task `json:"task"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frames[0], &env); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if env.Event != realtime.EventTaskUpdated {
		t.Errorf("event = %q, want %q", env.Event, realtime.EventTaskUpdated)
	}
	if env.Data.Task.AssigneeID == nil || *env.Data.Task.AssigneeID != assignee {
		t.Errorf("broadcast assignee = %v, want %s", env.Data.Task.AssigneeID, assignee)
	}

	// The shared task carries the assignment so the caller's own broadcast,
	// which follows evaluation, reflects it too
	if evt.Task.AssigneeID == nil || *evt.Task.AssigneeID != assignee {
		t.Errorf("event task assignee = %v, want %s", evt.Task.AssigneeID, assignee)
	}
}

// A listener applying task.updated frames in order must end with the
// automation's assignment, not the pre-rule snapshot the caller started
// from.
func TestAssignUserVisibleInFinalBroadcast(t *testing.T) {
	tenantID := uuid.New()
	listID := uuid.New()
	assignee := uuid.New()

	transport := newNullTransport()
	events := realtime.NewBroadcaster(transport, nil, zerolog.Nop())

	rules := &fakeRuleStore{rules: []models.AutomationRule{
		statusRule(tenantID, nil, "TODO", "DONE",
			models.Action{Type: models.ActionAssignUser, Params: map[string]string{"userId": assignee.String()}}),
	}}
	e := NewEvaluator(rules, zerolog.Nop())
	e.Register(models.ActionAssignUser, NewAssignUserHandler(&fakeTaskStore{}, events))

	evt := statusChangeEvent(tenantID, listID, models.TaskStatusTodo, models.TaskStatusDone)
	results, err := e.Evaluate(context.Background(), evt)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v, want one success", results)
	}

	// The caller's update broadcast of the same task follows evaluation
	events.TaskEvent(realtime.EventTaskUpdated,
		tenantID.String(), listID.String(), evt.Task.ID.String(), evt.ActorID.String(), evt.Task)

	frames := transport.broadcasts[realtime.TenantRoom(tenantID.String())]
	if len(frames) != 2 {
		t.Fatalf("got %d broadcasts, want 2", len(frames))
	}
	var last struct {
		Event string `json:"event"`
		Data  struct {
			Task *models.Task `json:"task"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frames[len(frames)-1], &last); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if last.Data.Task.AssigneeID == nil || *last.Data.Task.AssigneeID != assignee {
		t.Errorf("final frame assignee = %v, want %s", last.Data.Task.AssigneeID, assignee)
	}
}

func TestAssignUserHandlerErrors(t *testing.T) {
	events := realtime.NewBroadcaster(newNullTransport(), nil, zerolog.Nop())
	evt := assignEvent(uuid.New())

	h := NewAssignUserHandler(&fakeTaskStore{}, events)
	if err := h.Execute(context.Background(), models.Action{Params: map[string]string{"userId": "not-a-uuid"}}, evt); err == nil {
		t.Error("expected error for malformed userId")
	}

	h = NewAssignUserHandler(&fakeTaskStore{err: errors.New("db down")}, events)
	action := models.Action{Params: map[string]string{"userId": uuid.NewString()}}
	if err := h.Execute(context.Background(), action, evt); err == nil {
		t.Error("expected store error to propagate")
	}
}

func TestSendEmailHandlerExplicitRecipient(t *testing.T) {
	mail := &fakeMailer{}
	h := NewSendEmailHandler(mail, &fakeDirectory{}, "no-reply@tandem.local")

	evt := assignEvent(uuid.New())
	action := models.Action{Type: models.ActionSendEmail, Params: map[string]string{
		"to":      "ops@example.com",
		"subject": "task stuck",
	}}

	if err := h.Execute(context.Background(), action, evt); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mail.sent))
	}
	sent := mail.sent[0]
	if sent.To[0] != "ops@example.com" || sent.Subject != "task stuck" {
		t.Errorf("sent to=%v subject=%q", sent.To, sent.Subject)
	}
	if sent.From != "no-reply@tandem.local" {
		t.Errorf("from = %q", sent.From)
	}
}

func TestSendEmailHandlerAssigneeFallback(t *testing.T) {
	assignee := uuid.New()
	directory := &fakeDirectory{employees: map[uuid.UUID]*models.Employee{
		assignee: {ID: assignee, Email: "dev@example.com"},
	}}
	mail := &fakeMailer{}
	h := NewSendEmailHandler(mail, directory, "no-reply@tandem.local")

	evt := assignEvent(uuid.New())
	evt.Task.AssigneeID = &assignee

	if err := h.Execute(context.Background(), models.Action{Type: models.ActionSendEmail}, evt); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].To[0] != "dev@example.com" {
		t.Fatalf("sent = %+v, want one email to the assignee", mail.sent)
	}
	// Default subject and body are filled in
	if mail.sent[0].Subject == "" || mail.sent[0].Text == "" {
		t.Error("default subject/body missing")
	}
}

func TestSendEmailHandlerNoRecipient(t *testing.T) {
	h := NewSendEmailHandler(&fakeMailer{}, &fakeDirectory{}, "no-reply@tandem.local")
	evt := assignEvent(uuid.New()) // no assignee, no "to"
	if err := h.Execute(context.Background(), models.Action{Type: models.ActionSendEmail}, evt); err == nil {
		t.Error("expected error when no recipient can be resolved")
	}
}

func TestWebhookHandler(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("bad webhook body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewWebhookHandler()
	evt := assignEvent(uuid.New())
	action := models.Action{Type: models.ActionWebhook, Params: map[string]string{"url": srv.URL}}

	if err := h.Execute(context.Background(), action, evt); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if received.Event != evt.Type || received.Task == nil || received.Task.ID != evt.Task.ID {
		t.Errorf("webhook payload = %+v", received)
	}
}

func TestWebhookHandlerNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	h := NewWebhookHandler()
	action := models.Action{Type: models.ActionWebhook, Params: map[string]string{"url": srv.URL}}
	if err := h.Execute(context.Background(), action, assignEvent(uuid.New())); err == nil {
		t.Error("expected error for non-2xx response")
	}
}

func TestWebhookHandlerMissingURL(t *testing.T) {
	h := NewWebhookHandler()
	if err := h.Execute(context.Background(), models.Action{Type: models.ActionWebhook}, assignEvent(uuid.New())); err == nil {
		t.Error("expected error for missing url param")
	}
}
