package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/tandemhq/tandem/internal/automation"
	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/notify"
	"github.com/tandemhq/tandem/internal/realtime"
)

// TaskEventRequest is the task intake payload from the task service.
type TaskEventRequest struct {
	Type           string       `json:"type"`
	TenantID       uuid.UUID    `json:"tenant_id"`
	ActorID        uuid.UUID    `json:"actor_id"`
	Task           *models.Task `json:"task"`
	PreviousStatus string       `json:"previous_status,omitempty"`
}

// taskBroadcastEvent maps an intake event type to the wire event name.
func taskBroadcastEvent(eventType string) string {
	switch eventType {
	case models.TaskEventCreated:
		return realtime.EventTaskCreated
	case models.TaskEventDeleted:
		return realtime.EventTaskDeleted
	case models.TaskEventUpdated, models.TaskEventStatusChange, models.TaskEventAssigneeChange:
		return realtime.EventTaskUpdated
	}
	return ""
}

// IngestTaskEvent handles a task lifecycle event from the task service.
// Rules run first so action side effects (reassignment) are visible in the
// broadcast snapshot; an evaluation failure is reported but never blocks
// the broadcast itself.
func (h *Handler) IngestTaskEvent(w http.ResponseWriter, r *http.Request) {
	var req TaskEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	wireEvent := taskBroadcastEvent(req.Type)
	if wireEvent == "" {
		h.Error(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if req.Task == nil {
		h.Error(w, http.StatusBadRequest, "task is required")
		return
	}
	if req.TenantID == uuid.Nil {
		h.Error(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	evt := automation.TaskEvent{
		Type:           req.Type,
		TenantID:       req.TenantID,
		ActorID:        req.ActorID,
		Task:           req.Task,
		PreviousStatus: models.TaskStatus(req.PreviousStatus),
	}

	results, evalErr := h.evaluator.Evaluate(r.Context(), evt)
	if evalErr != nil {
		h.log.Error().Err(evalErr).Str("tenant", req.TenantID.String()).Msg("rule evaluation failed")
	}

	if req.Type == models.TaskEventAssigneeChange {
		h.notifyAssignment(r, &req)
	}

	h.events.TaskEvent(wireEvent, req.TenantID.String(), req.Task.ListID.String(), req.Task.ID.String(), req.ActorID.String(), req.Task)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	h.JSON(w, http.StatusAccepted, map[string]interface{}{
		"event":          wireEvent,
		"actions":        len(results),
		"actions_failed": failed,
	})
}

// notifyAssignment creates the assignment notification for the new
// assignee. Best-effort: a failure here belongs to the automation side,
// not to the broadcast.
func (h *Handler) notifyAssignment(r *http.Request, req *TaskEventRequest) {
	if req.Task.AssigneeID == nil || *req.Task.AssigneeID == req.ActorID {
		return
	}
	_, err := h.dispatcher.Create(r.Context(), req.TenantID, *req.Task.AssigneeID,
		notify.TypeAssignment, "You were assigned a task", req.Task.Title,
		map[string]string{"taskId": req.Task.ID.String(), "listId": req.Task.ListID.String()})
	if err != nil {
		h.log.Error().Err(err).Str("task", req.Task.ID.String()).Msg("assignment notification failed")
	}
}

// EmployeeEventRequest is the employee intake payload.
type EmployeeEventRequest struct {
	Event      string           `json:"event"`
	TenantID   uuid.UUID        `json:"tenant_id"`
	EmployeeID uuid.UUID        `json:"employee_id"`
	ActorID    uuid.UUID        `json:"actor_id"`
	Status     string           `json:"status,omitempty"`
	Employee   *models.Employee `json:"employee,omitempty"`
}

// validEmployeeEvents are the wire names the employee service may emit.
var validEmployeeEvents = map[string]bool{
	realtime.EventEmployeeUpdated:         true,
	realtime.EventEmployeeStatusChanged:   true,
	realtime.EventEmployeeDeleted:         true,
	realtime.EventEmployeeCapacityUpdated: true,
}

// IngestEmployeeEvent handles an employee change from the directory service.
func (h *Handler) IngestEmployeeEvent(w http.ResponseWriter, r *http.Request) {
	var req EmployeeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !validEmployeeEvents[req.Event] {
		h.Error(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if req.TenantID == uuid.Nil || req.EmployeeID == uuid.Nil {
		h.Error(w, http.StatusBadRequest, "tenant_id and employee_id are required")
		return
	}

	h.events.EmployeeEvent(req.Event, req.TenantID.String(), req.EmployeeID.String(), req.ActorID.String(), req.Status, req.Employee)
	h.JSON(w, http.StatusAccepted, map[string]string{"event": req.Event})
}

// MessageEventRequest is the chat message intake payload.
type MessageEventRequest struct {
	Message *models.ChatMessage `json:"message"`
}

// IngestMessageEvent handles a new chat message: one message.new broadcast
// to the target room, then per-recipient notification fan-out.
func (h *Handler) IngestMessageEvent(w http.ResponseWriter, r *http.Request) {
	var req MessageEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg := req.Message
	if msg == nil {
		h.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if !models.ValidTargetKind(string(msg.TargetKind)) {
		h.Error(w, http.StatusBadRequest, "unknown target kind")
		return
	}
	if msg.TargetID == "" || msg.SenderID == "" {
		h.Error(w, http.StatusBadRequest, "target_id and sender_id are required")
		return
	}

	h.events.MessageNew(msg)

	if err := h.dispatcher.NotifyMessage(r.Context(), msg); err != nil {
		h.log.Error().Err(err).Str("target", msg.TargetID).Msg("message fan-out incomplete")
		h.JSON(w, http.StatusAccepted, map[string]string{
			"status":  "broadcast",
			"warning": "notification fan-out incomplete",
		})
		return
	}

	h.JSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// CommentEventRequest is the task comment intake payload.
type CommentEventRequest struct {
	Event     string          `json:"event"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	TaskID    uuid.UUID       `json:"task_id"`
	Comment   json.RawMessage `json:"comment,omitempty"`
	CommentID string          `json:"comment_id,omitempty"`
}

var validCommentEvents = map[string]bool{
	realtime.EventTaskCommentCreated: true,
	realtime.EventTaskCommentUpdated: true,
	realtime.EventTaskCommentDeleted: true,
}

// IngestCommentEvent handles a task comment change.
func (h *Handler) IngestCommentEvent(w http.ResponseWriter, r *http.Request) {
	var req CommentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !validCommentEvents[req.Event] {
		h.Error(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if req.TenantID == uuid.Nil || req.TaskID == uuid.Nil {
		h.Error(w, http.StatusBadRequest, "tenant_id and task_id are required")
		return
	}

	data := realtime.CommentEventData{TaskID: req.TaskID.String(), CommentID: req.CommentID}
	if len(req.Comment) > 0 {
		data.Comment = req.Comment
	}

	h.events.CommentEvent(req.Event, req.TenantID.String(), data)
	h.JSON(w, http.StatusAccepted, map[string]string{"event": req.Event})
}
