package models

import (
	"time"

	"github.com/google/uuid"
)

// Task event types that automation triggers can match.
const (
	TaskEventCreated        = "TASK_CREATED"
	TaskEventUpdated        = "TASK_UPDATED"
	TaskEventStatusChange   = "STATUS_CHANGE"
	TaskEventAssigneeChange = "ASSIGNEE_CHANGE"
	TaskEventDeleted        = "TASK_DELETED"
)

// ActionType identifies an automation action handler.
type ActionType string

const (
	ActionAssignUser ActionType = "ASSIGN_USER"
	ActionSendEmail  ActionType = "SEND_EMAIL"
	ActionWebhook    ActionType = "WEBHOOK"
)

// ValidActionType reports whether t names a known action type.
func ValidActionType(t ActionType) bool {
	switch t {
	case ActionAssignUser, ActionSendEmail, ActionWebhook:
		return true
	}
	return false
}

// TriggerSpec describes which task events a rule reacts to. FromStatus and
// ToStatus are optional transition constraints; empty means wildcard.
type TriggerSpec struct {
	Type       string `json:"type"`
	FromStatus string `json:"from,omitempty"`
	ToStatus   string `json:"to,omitempty"`
}

// Condition is a field equality check against the current task snapshot.
type Condition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Action is one step of a rule, executed in stored order.
type Action struct {
	Type   ActionType        `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// AutomationRule is a stored trigger/condition/action tuple. A nil ListID
// means the rule is tenant-wide.
type AutomationRule struct {
	ID         uuid.UUID   `json:"id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	ListID     *uuid.UUID  `json:"list_id,omitempty"`
	Name       string      `json:"name"`
	Active     bool        `json:"active"`
	Trigger    TriggerSpec `json:"trigger"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    []Action    `json:"actions"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
