package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/metrics"
	"github.com/tandemhq/tandem/internal/models"
)

// EventCache keeps recent envelopes per room for reconnect catch-up.
// Implemented by store.RedisStore; nil disables caching.
type EventCache interface {
	AddEvent(ctx context.Context, room string, data []byte) error
}

// cacheWriteTimeout bounds the best-effort history write so a slow cache
// never stalls event processing.
const cacheWriteTimeout = 2 * time.Second

// Broadcaster builds envelopes and delivers them to rooms through the
// transport. It guarantees nothing beyond what the transport does: no
// acknowledgment, no persistence, FIFO only per room per caller.
type Broadcaster struct {
	transport RoomTransport
	history   EventCache
	log       zerolog.Logger
}

// NewBroadcaster creates a broadcaster. history may be nil.
func NewBroadcaster(transport RoomTransport, history EventCache, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{transport: transport, history: history, log: log}
}

// emit serializes and broadcasts, optionally mirroring into the history
// cache. Cache failure is logged and never fails the broadcast.
func (b *Broadcaster) emit(room, event string, data any, cache bool) {
	frame := marshalEnvelope(event, data)
	if frame == nil {
		return
	}
	b.transport.Broadcast(room, frame)
	metrics.EventsBroadcast.WithLabelValues(event).Inc()

	if cache && b.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := b.history.AddEvent(ctx, room, frame); err != nil {
			b.log.Warn().Err(err).Str("room", room).Str("event", event).Msg("event cache write failed")
		}
	}
}

// sendTo delivers an envelope to a single connection.
func (b *Broadcaster) sendTo(connID, event string, data any) {
	frame := marshalEnvelope(event, data)
	if frame == nil {
		return
	}
	b.transport.Send(connID, frame)
	metrics.EventsBroadcast.WithLabelValues(event).Inc()
}

// PresenceUpdate broadcasts the full online-user list to the tenant room.
func (b *Broadcaster) PresenceUpdate(tenantID string, online []string) {
	b.emit(TenantRoom(tenantID), EventPresenceUpdate, PresenceData{TenantID: tenantID, OnlineUsers: online}, false)
}

// RoomJoined confirms a join to the requesting connection only.
func (b *Broadcaster) RoomJoined(connID, room string) {
	b.sendTo(connID, EventRoomJoined, RoomJoinedData{Room: room})
}

// TaskEvent broadcasts a task lifecycle event to the tenant room. event
// must be one of EventTaskCreated, EventTaskUpdated, EventTaskDeleted.
func (b *Broadcaster) TaskEvent(event, tenantID, listID, taskID, actorID string, task *models.Task) {
	b.emit(TenantRoom(tenantID), event, TaskEventData{
		TenantID:  tenantID,
		ListID:    listID,
		TaskID:    taskID,
		ActorID:   actorID,
		Timestamp: time.Now().UnixMilli(),
		Task:      task,
	}, true)
}

// EmployeeEvent broadcasts an employee change to the tenant room.
func (b *Broadcaster) EmployeeEvent(event, tenantID, employeeID, actorID, status string, employee *models.Employee) {
	b.emit(TenantRoom(tenantID), event, EmployeeEventData{
		TenantID:   tenantID,
		EmployeeID: employeeID,
		ActorID:    actorID,
		Timestamp:  time.Now().UnixMilli(),
		Status:     status,
		Employee:   employee,
	}, false)
}

// MessageNew broadcasts a chat message to its target room.
func (b *Broadcaster) MessageNew(msg *models.ChatMessage) {
	room := ChatRoom(msg.TargetKind, msg.TargetID)
	b.emit(room, EventMessageNew, MessageEventData{
		TargetID:   msg.TargetID,
		TargetType: msg.TargetKind,
		Message:    msg,
	}, true)
}

// MessageNotify pushes a chat message to one recipient's user room, for
// recipients who are not watching the target room.
func (b *Broadcaster) MessageNotify(userID string, msg *models.ChatMessage) {
	b.emit(UserRoom(userID), EventMessageNotify, MessageEventData{
		TargetID:   msg.TargetID,
		TargetType: msg.TargetKind,
		Message:    msg,
	}, false)
}

// NotificationNew pushes a persisted notification to its recipient.
func (b *Broadcaster) NotificationNew(userID string, n *models.Notification) {
	b.emit(UserRoom(userID), EventNotificationNew, NotificationEventData{Notification: n}, false)
}

// Typing relays a typing indicator to every other member of the tenant
// room. Never persisted, never cached.
func (b *Broadcaster) Typing(tenantID, senderConnID string, data TypingData) {
	frame := marshalEnvelope(EventTypingUpdate, data)
	if frame == nil {
		return
	}
	b.transport.BroadcastExcept(TenantRoom(tenantID), senderConnID, frame)
	metrics.EventsBroadcast.WithLabelValues(EventTypingUpdate).Inc()
}

// CommentEvent broadcasts a task comment change to the tenant room. event
// must be one of the EventTaskComment* constants.
func (b *Broadcaster) CommentEvent(event, tenantID string, data CommentEventData) {
	b.emit(TenantRoom(tenantID), event, data, false)
}
