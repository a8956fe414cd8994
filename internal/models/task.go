package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
)

// Task is a read-only snapshot of a task record. Task CRUD lives in the
// external task service; this subsystem reads snapshots for rule evaluation
// and broadcasts, and writes only the assignee (the ASSIGN_USER action).
type Task struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	ListID     uuid.UUID  `json:"list_id"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	Priority   string     `json:"priority,omitempty"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Field returns the named field as a string for rule condition matching.
// Unknown field names report false so a rule referencing a field that does
// not exist never matches.
func (t *Task) Field(name string) (string, bool) {
	switch name {
	case "status":
		return string(t.Status), true
	case "priority":
		return t.Priority, true
	case "title":
		return t.Title, true
	case "list_id":
		return t.ListID.String(), true
	case "assignee_id":
		if t.AssigneeID == nil {
			return "", true
		}
		return t.AssigneeID.String(), true
	default:
		return "", false
	}
}
