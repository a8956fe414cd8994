package realtime

import (
	"encoding/json"

	"github.com/tandemhq/tandem/internal/models"
)

// Server → client event names.
const (
	EventPresenceUpdate = "presence:update"
	EventRoomJoined     = "room:joined"
	EventTypingUpdate   = "task:typing_update"

	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"

	EventEmployeeUpdated         = "employee.updated"
	EventEmployeeStatusChanged   = "employee.status_changed"
	EventEmployeeDeleted         = "employee.deleted"
	EventEmployeeCapacityUpdated = "employee.capacity_updated"

	EventMessageNew      = "message.new"
	EventMessageNotify   = "message.notify"
	EventNotificationNew = "notification.new"

	EventTaskCommentCreated = "task_comment:created"
	EventTaskCommentUpdated = "task_comment:updated"
	EventTaskCommentDeleted = "task_comment:deleted"
)

// Envelope is the wire unit broadcast to rooms. Constructed fresh per
// broadcast, never persisted (the Redis history cache keeps serialized
// copies with a TTL, which is a cache, not a store of record).
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// PresenceData carries the full current online-user list for a tenant.
type PresenceData struct {
	TenantID    string   `json:"tenantId"`
	OnlineUsers []string `json:"onlineUsers"`
}

// RoomJoinedData confirms a room:join request.
type RoomJoinedData struct {
	Room string `json:"room"`
}

// TypingData is relayed to other tenant-room members while a user types.
type TypingData struct {
	TaskID    string `json:"taskId"`
	UserID    string `json:"userId"`
	UserLabel string `json:"userLabel"`
	IsTyping  bool   `json:"isTyping"`
}

// TaskEventData is broadcast to the tenant room for task lifecycle events.
type TaskEventData struct {
	TenantID  string       `json:"tenantId"`
	ListID    string       `json:"listId"`
	TaskID    string       `json:"taskId"`
	ActorID   string       `json:"actorId"`
	Timestamp int64        `json:"timestamp"`
	Task      *models.Task `json:"task,omitempty"`
}

// EmployeeEventData is broadcast to the tenant room for employee events.
type EmployeeEventData struct {
	TenantID   string           `json:"tenantId"`
	EmployeeID string           `json:"employeeId"`
	ActorID    string           `json:"actorId"`
	Timestamp  int64            `json:"timestamp"`
	Status     string           `json:"status,omitempty"`
	Employee   *models.Employee `json:"employee,omitempty"`
}

// MessageEventData carries a chat message to its target room (message.new)
// or to a recipient's user room (message.notify).
type MessageEventData struct {
	TargetID   string              `json:"targetId"`
	TargetType models.TargetKind   `json:"targetType"`
	Message    *models.ChatMessage `json:"message"`
}

// NotificationEventData carries a freshly persisted notification to its
// recipient's user room.
type NotificationEventData struct {
	Notification *models.Notification `json:"notification"`
}

// CommentEventData is broadcast to the tenant room for task comments.
type CommentEventData struct {
	TaskID    string `json:"taskId"`
	Comment   any    `json:"comment,omitempty"`
	CommentID string `json:"commentId,omitempty"`
}

// marshalEnvelope serializes an envelope. All payload types here are plain
// structs, so failure indicates a programming error; callers treat a nil
// result as nothing-to-send.
func marshalEnvelope(event string, data any) []byte {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return b
}
