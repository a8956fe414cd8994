package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tandemhq/tandem/internal/models"
)

// RuleStore persists automation rules. Rules are created and updated by
// tenant administrators and read by the evaluator; a rule never mutates
// itself.
type RuleStore interface {
	CreateRule(ctx context.Context, r *models.AutomationRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	ListRules(ctx context.Context, tenantID uuid.UUID) ([]models.AutomationRule, error)
	// ActiveRules returns the active rules for the tenant whose scope is
	// either the given list or tenant-wide (null list).
	ActiveRules(ctx context.Context, tenantID, listID uuid.UUID) ([]models.AutomationRule, error)
	UpdateRule(ctx context.Context, r *models.AutomationRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

// NotificationStore persists notification records.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, before time.Time) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error
	ClearNotification(ctx context.Context, id, userID uuid.UUID) error
}

// TaskStore is the read (plus assignee write) view of the external task
// service's data this subsystem needs.
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	UpdateTaskAssignee(ctx context.Context, taskID, userID uuid.UUID) error
}

// DirectoryStore resolves people: employee snapshots and chat-target
// membership for notification fan-out.
type DirectoryStore interface {
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	TargetMemberIDs(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) ([]uuid.UUID, error)
}

// DataStore is the full persistence interface. Both PostgresStore and
// SQLiteStore implement it.
type DataStore interface {
	Close()
	Ping(ctx context.Context) error

	RuleStore
	NotificationStore
	TaskStore
	DirectoryStore
}
