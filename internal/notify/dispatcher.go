package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/metrics"
	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/realtime"
	"github.com/tandemhq/tandem/internal/store"
)

// Notification types this subsystem emits.
const (
	TypeMention    = "MENTION"
	TypeAssignment = "ASSIGNMENT"
	TypeTaskDue    = "TASK_DUE"
	TypeMessage    = "MESSAGE"
	TypeLoginAudit = "LOGIN_AUDIT"
	TypeSystem     = "SYSTEM"
)

// primaryTypes is the fixed allow-list mapping to category PRIMARY;
// everything else is OTHER.
var primaryTypes = map[string]bool{
	TypeMention:    true,
	TypeAssignment: true,
	TypeTaskDue:    true,
	TypeMessage:    true,
}

// Categorize derives the inbox category from a notification type.
func Categorize(notificationType string) models.NotificationCategory {
	if primaryTypes[notificationType] {
		return models.CategoryPrimary
	}
	return models.CategoryOther
}

// Dispatcher persists notifications and pushes them to their recipient's
// user room. Delivery is at-least-once from the recipient's point of view:
// the record is the durable copy, the push is best-effort for whoever is
// connected right now.
type Dispatcher struct {
	store     store.NotificationStore
	directory store.DirectoryStore
	events    *realtime.Broadcaster
	log       zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(st store.NotificationStore, directory store.DirectoryStore, events *realtime.Broadcaster, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: st, directory: directory, events: events, log: log}
}

// Create persists a notification and pushes it to the recipient. The
// store error propagates: an unpersisted, undelivered notification is
// silent data loss the caller must know about. Calling twice creates two
// records; the caller owns not double-firing for one logical event.
func (d *Dispatcher) Create(ctx context.Context, tenantID, userID uuid.UUID, notificationType, title, body string, metadata map[string]string) (*models.Notification, error) {
	n := &models.Notification{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   userID,
		Type:     notificationType,
		Category: Categorize(notificationType),
		Title:    title,
		Body:     body,
		Metadata: metadata,
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("notify: persist: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Category)).Inc()

	d.events.NotificationNew(userID.String(), n)
	return n, nil
}

// NotifyMessage fans a chat message out to every other member of its
// target: one NotificationRecord and one direct push per recipient, never
// a single multicast object. Per-recipient store failures are collected so
// one bad write does not starve the rest.
func (d *Dispatcher) NotifyMessage(ctx context.Context, msg *models.ChatMessage) error {
	targetID, err := uuid.Parse(msg.TargetID)
	if err != nil {
		return fmt.Errorf("notify: bad target id %q: %w", msg.TargetID, err)
	}
	tenantID, err := uuid.Parse(msg.TenantID)
	if err != nil {
		return fmt.Errorf("notify: bad tenant id %q: %w", msg.TenantID, err)
	}

	members, err := d.directory.TargetMemberIDs(ctx, msg.TargetKind, targetID)
	if err != nil {
		return fmt.Errorf("notify: resolve members: %w", err)
	}

	title := "New message"
	if msg.SenderName != "" {
		title = "New message from " + msg.SenderName
	}

	var errs []error
	for _, member := range members {
		if member.String() == msg.SenderID {
			continue
		}

		_, err := d.Create(ctx, tenantID, member, TypeMessage, title, msg.Body, map[string]string{
			"targetId":   msg.TargetID,
			"targetKind": string(msg.TargetKind),
			"messageId":  msg.ID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", member, err))
			continue
		}
		d.events.MessageNotify(member.String(), msg)
	}
	return errors.Join(errs...)
}

// RecordLogin writes the login-audit notification. Unlike Create, the
// caller treats failure as non-fatal; this method still returns it so the
// socket layer can log it.
func (d *Dispatcher) RecordLogin(ctx context.Context, tenantID, userID string) error {
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return fmt.Errorf("notify: bad tenant id %q: %w", tenantID, err)
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("notify: bad user id %q: %w", userID, err)
	}

	n := &models.Notification{
		ID:       uuid.New(),
		TenantID: tid,
		UserID:   uid,
		Type:     TypeLoginAudit,
		Category: Categorize(TypeLoginAudit),
		Title:    "Signed in",
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("notify: login audit: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Category)).Inc()
	return nil
}
