package realtime

import (
	"github.com/tandemhq/tandem/internal/models"
)

// Room key prefixes. A room is a computed key, never a stored entity.
const (
	roomPrefixTenant       = "tenant:"
	roomPrefixUser         = "user:"
	roomPrefixChannel      = "channel:"
	roomPrefixConversation = "conversation:"
)

// TenantRoom returns the broadcast room key for a tenant.
func TenantRoom(tenantID string) string { return roomPrefixTenant + tenantID }

// UserRoom returns the direct-addressing room key for a user. Every
// authenticated connection is a member of its own user room.
func UserRoom(userID string) string { return roomPrefixUser + userID }

// ChatRoom returns the room key for a chat target.
func ChatRoom(kind models.TargetKind, targetID string) string {
	if kind == models.TargetConversation {
		return roomPrefixConversation + targetID
	}
	return roomPrefixChannel + targetID
}

// RoomTransport is the seam between broadcast logic and the wire. The
// in-process Hub is the only implementation today; a broker-backed one can
// be substituted to scale horizontally without touching membership,
// broadcast, or notification code.
//
// Implementations must make Join/Leave synchronous: when either returns,
// a subsequent Broadcast observes the new membership.
type RoomTransport interface {
	Join(connID, room string)
	Leave(connID, room string)
	MembersOf(room string) []string

	// Send delivers to a single connection; Broadcast to every member of a
	// room. Broadcasting to an empty or unknown room is a silent no-op.
	Send(connID string, data []byte)
	Broadcast(room string, data []byte)
	BroadcastExcept(room, exceptConnID string, data []byte)
}
