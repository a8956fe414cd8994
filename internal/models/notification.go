package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationCategory buckets notifications for the inbox UI.
type NotificationCategory string

const (
	CategoryPrimary NotificationCategory = "PRIMARY"
	CategoryOther   NotificationCategory = "OTHER"
)

// Notification is a durable, per-user notification record. Delivery to a
// live connection is best-effort; the record is what survives for the next
// login.
type Notification struct {
	ID        uuid.UUID            `json:"id"`
	TenantID  uuid.UUID            `json:"tenant_id"`
	UserID    uuid.UUID            `json:"user_id"`
	Type      string               `json:"type"`
	Category  NotificationCategory `json:"category"`
	Title     string               `json:"title"`
	Body      string               `json:"body,omitempty"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
	Read      bool                 `json:"read"`
	Cleared   bool                 `json:"cleared"`
	CreatedAt time.Time            `json:"created_at"`
}
