package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tandemhq/tandem/internal/models"
)

// SQLiteStore handles SQLite database operations, for single-node and
// development deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/tandem.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/tandem.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS automation_rules (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		list_id TEXT,
		name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		trigger_spec TEXT NOT NULL,
		conditions TEXT NOT NULL DEFAULT '[]',
		actions TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		read INTEGER NOT NULL DEFAULT 0,
		cleared INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		list_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'TODO',
		priority TEXT NOT NULL DEFAULT '',
		assignee_id TEXT,
		due_date DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_members (
		target_kind TEXT NOT NULL,
		target_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (target_kind, target_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_rules_tenant_active ON automation_rules(tenant_id, active);
	CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_tenant_list ON tasks(tenant_id, list_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// CreateRule inserts an automation rule.
func (s *SQLiteStore) CreateRule(ctx context.Context, r *models.AutomationRule) error {
	trigger, conditions, actions, err := encodeRuleFields(r)
	if err != nil {
		return err
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automation_rules (id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), r.TenantID.String(), nullableID(r.ListID), r.Name, r.Active,
		string(trigger), string(conditions), string(actions), now, now)
	return err
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStore) GetRule(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at
		FROM automation_rules WHERE id = ?
	`, id.String())

	rule, err := s.scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all rules for a tenant, newest first.
func (s *SQLiteStore) ListRules(ctx context.Context, tenantID uuid.UUID) ([]models.AutomationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`, tenantID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectRules(rows)
}

// ActiveRules retrieves the active rules matching the tenant whose scope
// is the given list or tenant-wide, in creation order.
func (s *SQLiteStore) ActiveRules(ctx context.Context, tenantID, listID uuid.UUID) ([]models.AutomationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = ? AND active = 1 AND (list_id IS NULL OR list_id = ?)
		ORDER BY created_at ASC
	`, tenantID.String(), listID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectRules(rows)
}

// UpdateRule updates a rule's mutable fields.
func (s *SQLiteStore) UpdateRule(ctx context.Context, r *models.AutomationRule) error {
	trigger, conditions, actions, err := encodeRuleFields(r)
	if err != nil {
		return err
	}

	r.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE automation_rules
		SET list_id = ?, name = ?, active = ?, trigger_spec = ?, conditions = ?, actions = ?, updated_at = ?
		WHERE id = ?
	`, nullableID(r.ListID), r.Name, r.Active, string(trigger), string(conditions), string(actions), r.UpdatedAt, r.ID.String())
	return err
}

// DeleteRule removes a rule.
func (s *SQLiteStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = ?`, id.String())
	return err
}

func (s *SQLiteStore) scanRule(row rowScanner) (*models.AutomationRule, error) {
	rule := &models.AutomationRule{}
	var idStr, tenantStr string
	var listStr sql.NullString
	var trigger, conditions, actions string
	err := row.Scan(
		&idStr,
		&tenantStr,
		&listStr,
		&rule.Name,
		&rule.Active,
		&trigger,
		&conditions,
		&actions,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rule.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if rule.TenantID, err = uuid.Parse(tenantStr); err != nil {
		return nil, err
	}
	if listStr.Valid {
		listID, err := uuid.Parse(listStr.String)
		if err != nil {
			return nil, err
		}
		rule.ListID = &listID
	}
	if err := decodeRuleFields(rule, []byte(trigger), []byte(conditions), []byte(actions)); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *SQLiteStore) collectRules(rows *sql.Rows) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// CreateNotification inserts a notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	metadata, err := encodeMetadata(n.Metadata)
	if err != nil {
		return err
	}

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, type, category, title, body, metadata, read, cleared, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
	`, n.ID.String(), n.TenantID.String(), n.UserID.String(), n.Type, string(n.Category),
		n.Title, n.Body, string(metadata), n.CreatedAt)
	return err
}

// ListNotifications retrieves a user's notifications, newest first,
// excluding cleared ones.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, before time.Time) ([]models.Notification, error) {
	// Zero before means no paging bound
	if before.IsZero() {
		before = time.Now().UTC().Add(time.Hour)
	}
	query := `
		SELECT id, tenant_id, user_id, type, category, title, body, metadata, read, cleared, created_at
		FROM notifications
		WHERE user_id = ? AND cleared = 0 AND created_at < ?
	`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID.String(), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n := models.Notification{}
		var idStr, tenantStr, userStr, metadata string
		err := rows.Scan(
			&idStr,
			&tenantStr,
			&userStr,
			&n.Type,
			&n.Category,
			&n.Title,
			&n.Body,
			&metadata,
			&n.Read,
			&n.Cleared,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if n.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if n.TenantID, err = uuid.Parse(tenantStr); err != nil {
			return nil, err
		}
		if n.UserID, err = uuid.Parse(userStr); err != nil {
			return nil, err
		}
		if n.Metadata, err = decodeMetadata([]byte(metadata)); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())
	return err
}

// MarkAllNotificationsRead marks all of the user's notifications read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0
	`, userID.String())
	return err
}

// ClearNotification hides a notification from the user's inbox.
func (s *SQLiteStore) ClearNotification(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET cleared = 1 WHERE id = ? AND user_id = ?
	`, id.String(), userID.String())
	return err
}

// GetTask retrieves a task snapshot.
func (s *SQLiteStore) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task := &models.Task{}
	var idStr, tenantStr, listStr string
	var assigneeStr sql.NullString
	var dueDate sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, list_id, title, status, priority, assignee_id, due_date, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&tenantStr,
		&listStr,
		&task.Title,
		&task.Status,
		&task.Priority,
		&assigneeStr,
		&dueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if task.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if task.TenantID, err = uuid.Parse(tenantStr); err != nil {
		return nil, err
	}
	if task.ListID, err = uuid.Parse(listStr); err != nil {
		return nil, err
	}
	if assigneeStr.Valid {
		assigneeID, err := uuid.Parse(assigneeStr.String)
		if err != nil {
			return nil, err
		}
		task.AssigneeID = &assigneeID
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	return task, nil
}

// UpdateTaskAssignee sets a task's assignee (the ASSIGN_USER action).
func (s *SQLiteStore) UpdateTaskAssignee(ctx context.Context, taskID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET assignee_id = ?, updated_at = ? WHERE id = ?
	`, userID.String(), time.Now().UTC(), taskID.String())
	return err
}

// GetEmployee retrieves an employee snapshot.
func (s *SQLiteStore) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	emp := &models.Employee{}
	var idStr, tenantStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, email, role, status, capacity, updated_at
		FROM employees WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&tenantStr,
		&emp.Name,
		&emp.Email,
		&emp.Role,
		&emp.Status,
		&emp.Capacity,
		&emp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if emp.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if emp.TenantID, err = uuid.Parse(tenantStr); err != nil {
		return nil, err
	}
	return emp, nil
}

// TargetMemberIDs retrieves the user ids belonging to a chat target.
func (s *SQLiteStore) TargetMemberIDs(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_members WHERE target_kind = ? AND target_id = ?
	`, string(kind), targetID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
