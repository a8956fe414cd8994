package models

// TargetKind distinguishes the two kinds of chat target.
type TargetKind string

const (
	TargetChannel      TargetKind = "channel"
	TargetConversation TargetKind = "conversation"
)

// ValidTargetKind reports whether k names a known chat target kind.
func ValidTargetKind(k string) bool {
	return TargetKind(k) == TargetChannel || TargetKind(k) == TargetConversation
}

// ChatMessage is the wire snapshot of a chat message. The record itself is
// persisted by the external message service; this subsystem only relays it
// to the target room and fans out notifications.
type ChatMessage struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	TargetID   string     `json:"target_id"`
	TargetKind TargetKind `json:"target_kind"`
	SenderID   string     `json:"sender_id"`
	SenderName string     `json:"sender_name,omitempty"`
	Body       string     `json:"body"`
	Timestamp  int64      `json:"ts"` // Unix ms
}
