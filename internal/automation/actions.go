package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tandemhq/tandem/internal/mailer"
	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/realtime"
	"github.com/tandemhq/tandem/internal/store"
)

// AssignUserHandler implements the ASSIGN_USER action: write the assignee
// through the task store, apply it to the event's task so the caller's
// final broadcast carries the new assignee, and broadcast an intermediate
// task.updated of its own.
type AssignUserHandler struct {
	tasks  store.TaskStore
	events *realtime.Broadcaster
}

// NewAssignUserHandler creates the handler.
func NewAssignUserHandler(tasks store.TaskStore, events *realtime.Broadcaster) *AssignUserHandler {
	return &AssignUserHandler{tasks: tasks, events: events}
}

// Execute assigns the user named by the action's "userId" param.
func (h *AssignUserHandler) Execute(ctx context.Context, action models.Action, evt TaskEvent) error {
	raw := action.Params["userId"]
	userID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("assign_user: bad userId %q: %w", raw, err)
	}

	if err := h.tasks.UpdateTaskAssignee(ctx, evt.Task.ID, userID); err != nil {
		return fmt.Errorf("assign_user: %w", err)
	}

	// Mutate the shared task so every broadcast after this point, including
	// the caller's, reflects the assignment.
	evt.Task.AssigneeID = &userID
	h.events.TaskEvent(realtime.EventTaskUpdated,
		evt.TenantID.String(), evt.Task.ListID.String(), evt.Task.ID.String(), evt.ActorID.String(), evt.Task)
	return nil
}

// SendEmailHandler implements the SEND_EMAIL action. The recipient comes
// from the action's "to" param, or from the assignee's directory record
// when "to" is absent.
type SendEmailHandler struct {
	mail      mailer.Mailer
	directory store.DirectoryStore
	from      string
}

// NewSendEmailHandler creates the handler.
func NewSendEmailHandler(mail mailer.Mailer, directory store.DirectoryStore, from string) *SendEmailHandler {
	return &SendEmailHandler{mail: mail, directory: directory, from: from}
}

// Execute sends the email described by the action params.
func (h *SendEmailHandler) Execute(ctx context.Context, action models.Action, evt TaskEvent) error {
	to := action.Params["to"]
	if to == "" {
		if evt.Task.AssigneeID == nil {
			return fmt.Errorf("send_email: no recipient: no \"to\" param and task has no assignee")
		}
		emp, err := h.directory.GetEmployee(ctx, *evt.Task.AssigneeID)
		if err != nil {
			return fmt.Errorf("send_email: resolve assignee: %w", err)
		}
		if emp == nil || emp.Email == "" {
			return fmt.Errorf("send_email: assignee %s has no email", evt.Task.AssigneeID)
		}
		to = emp.Email
	}

	subject := action.Params["subject"]
	if subject == "" {
		subject = fmt.Sprintf("[%s] %s", evt.Type, evt.Task.Title)
	}
	body := action.Params["body"]
	if body == "" {
		body = fmt.Sprintf("Task %q is now %s.", evt.Task.Title, evt.Task.Status)
	}

	err := h.mail.Send(ctx, mailer.Email{
		From:    h.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("send_email: %w", err)
	}
	return nil
}

// webhookTimeout bounds one webhook call; a stuck endpoint must not stall
// the rest of the evaluation.
const webhookTimeout = 10 * time.Second

// webhookPayload is the body POSTed to the configured URL.
type webhookPayload struct {
	Event          string       `json:"event"`
	TenantID       string       `json:"tenantId"`
	ActorID        string       `json:"actorId"`
	PreviousStatus string       `json:"previousStatus,omitempty"`
	Task           *models.Task `json:"task"`
}

// WebhookHandler implements the WEBHOOK action: POST the event as JSON to
// the action's "url" param.
type WebhookHandler struct {
	client *http.Client
}

// NewWebhookHandler creates the handler with its own bounded client.
func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{client: &http.Client{Timeout: webhookTimeout}}
}

// Execute fires the webhook. Any non-2xx response is an error.
func (h *WebhookHandler) Execute(ctx context.Context, action models.Action, evt TaskEvent) error {
	url := action.Params["url"]
	if url == "" {
		return fmt.Errorf("webhook: missing url param")
	}

	body, err := json.Marshal(webhookPayload{
		Event:          evt.Type,
		TenantID:       evt.TenantID.String(),
		ActorID:        evt.ActorID.String(),
		PreviousStatus: string(evt.PreviousStatus),
		Task:           evt.Task,
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: %s returned %d", url, resp.StatusCode)
	}
	return nil
}
