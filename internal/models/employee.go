package models

import (
	"time"

	"github.com/google/uuid"
)

// Employee is a read-only snapshot of an employee record, broadcast to the
// tenant room when the external employee service reports a change.
type Employee struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	Status    string    `json:"status,omitempty"`
	Capacity  int       `json:"capacity"`
	UpdatedAt time.Time `json:"updated_at"`
}
