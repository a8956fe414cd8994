package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tandemhq/tandem/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestRuleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := uuid.New()
	listID := uuid.New()

	rule := &models.AutomationRule{
		TenantID:   tenantID,
		ListID:     &listID,
		Name:       "notify on done",
		Active:     true,
		Trigger:    models.TriggerSpec{Type: models.TaskEventStatusChange, ToStatus: "DONE"},
		Conditions: []models.Condition{{Field: "priority", Value: "high"}},
		Actions:    []models.Action{{Type: models.ActionWebhook, Params: map[string]string{"url": "http://example.test"}}},
	}
	if err := s.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	got, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got == nil {
		t.Fatal("GetRule returned nil for existing rule")
	}
	if got.Name != rule.Name || got.Trigger.ToStatus != "DONE" {
		t.Errorf("got name=%q trigger.to=%q", got.Name, got.Trigger.ToStatus)
	}
	if got.ListID == nil || *got.ListID != listID {
		t.Errorf("list id = %v, want %s", got.ListID, listID)
	}
	if len(got.Conditions) != 1 || got.Conditions[0].Field != "priority" {
		t.Errorf("conditions = %+v", got.Conditions)
	}
	if len(got.Actions) != 1 || got.Actions[0].Params["url"] != "http://example.test" {
		t.Errorf("actions = %+v", got.Actions)
	}

	// Update
	got.Active = false
	got.Name = "renamed"
	if err := s.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	again, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if again.Active || again.Name != "renamed" {
		t.Errorf("after update: active=%v name=%q", again.Active, again.Name)
	}

	// Delete
	if err := s.DeleteRule(ctx, rule.ID); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	gone, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if gone != nil {
		t.Error("rule still present after delete")
	}
}

func TestActiveRulesScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := uuid.New()
	listA := uuid.New()
	listB := uuid.New()

	mkRule := func(name string, listID *uuid.UUID, active bool) {
		t.Helper()
		err := s.CreateRule(ctx, &models.AutomationRule{
			TenantID: tenantID,
			ListID:   listID,
			Name:     name,
			Active:   active,
			Trigger:  models.TriggerSpec{Type: models.TaskEventStatusChange},
			Actions:  []models.Action{{Type: models.ActionWebhook}},
		})
		if err != nil {
			t.Fatalf("CreateRule %s: %v", name, err)
		}
	}

	mkRule("tenant-wide", nil, true)
	mkRule("list-a", &listA, true)
	mkRule("list-b", &listB, true)
	mkRule("inactive", nil, false)

	rules, err := s.ActiveRules(ctx, tenantID, listA)
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	names := make(map[string]bool)
	for _, r := range rules {
		names[r.Name] = true
	}
	if len(rules) != 2 || !names["tenant-wide"] || !names["list-a"] {
		t.Errorf("ActiveRules for list A = %v", names)
	}

	// Another tenant sees nothing
	rules, err = s.ActiveRules(ctx, uuid.New(), listA)
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("foreign tenant sees %d rules, want 0", len(rules))
	}
}

func TestNotificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	var first uuid.UUID
	for i, title := range []string{"one", "two", "three"} {
		n := &models.Notification{
			TenantID: tenantID,
			UserID:   userID,
			Type:     "MENTION",
			Category: models.CategoryPrimary,
			Title:    title,
			Metadata: map[string]string{"n": title},
		}
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
		if i == 0 {
			first = n.ID
		}
		time.Sleep(2 * time.Millisecond) // distinct created_at for ordering
	}

	all, err := s.ListNotifications(ctx, userID, false, 10, time.Time{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d notifications, want 3", len(all))
	}
	// Newest first
	if all[0].Title != "three" {
		t.Errorf("first listed = %q, want three", all[0].Title)
	}
	if all[0].Metadata["n"] != "three" {
		t.Errorf("metadata = %v", all[0].Metadata)
	}

	// Read one, list unread only
	if err := s.MarkNotificationRead(ctx, first, userID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, err := s.ListNotifications(ctx, userID, true, 10, time.Time{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(unread) != 2 {
		t.Errorf("unread = %d, want 2", len(unread))
	}

	// Clear hides from the inbox
	if err := s.ClearNotification(ctx, all[0].ID, userID); err != nil {
		t.Fatalf("ClearNotification: %v", err)
	}
	visible, err := s.ListNotifications(ctx, userID, false, 10, time.Time{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(visible) != 2 {
		t.Errorf("visible after clear = %d, want 2", len(visible))
	}

	// Another user must not mutate this inbox
	if err := s.MarkNotificationRead(ctx, visible[0].ID, uuid.New()); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	unread, err = s.ListNotifications(ctx, userID, true, 10, time.Time{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(unread) != 2 {
		t.Errorf("foreign user read-marking changed inbox: unread = %d, want 2", len(unread))
	}

	// Read all
	if err := s.MarkAllNotificationsRead(ctx, userID); err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	unread, err = s.ListNotifications(ctx, userID, true, 10, time.Time{})
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("unread after read-all = %d, want 0", len(unread))
	}
}
