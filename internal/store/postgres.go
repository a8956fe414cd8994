package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tandemhq/tandem/internal/metrics"
	"github.com/tandemhq/tandem/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRule inserts an automation rule.
func (s *PostgresStore) CreateRule(ctx context.Context, r *models.AutomationRule) error {
	trigger, conditions, actions, err := encodeRuleFields(r)
	if err != nil {
		return err
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO automation_rules (id, tenant_id, list_id, name, active, trigger_spec, conditions, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, r.ID, r.TenantID, r.ListID, r.Name, r.Active, trigger, conditions, actions).Scan(
		&r.CreatedAt,
		&r.UpdatedAt,
	)
}

// GetRule retrieves a rule by ID.
func (s *PostgresStore) GetRule(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at
		FROM automation_rules WHERE id = $1
	`, id)

	rule, err := scanRuleRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rule, nil
}

// ListRules retrieves all rules for a tenant, newest first.
func (s *PostgresStore) ListRules(ctx context.Context, tenantID uuid.UUID) ([]models.AutomationRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

// ActiveRules retrieves the active rules matching the tenant whose scope
// is the given list or tenant-wide, in creation order so actions of older
// rules run first.
func (s *PostgresStore) ActiveRules(ctx context.Context, tenantID, listID uuid.UUID) ([]models.AutomationRule, error) {
	start := time.Now()
	defer func() { metrics.StoreLatency.Observe(time.Since(start).Seconds()) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, list_id, name, active, trigger_spec, conditions, actions, created_at, updated_at
		FROM automation_rules
		WHERE tenant_id = $1 AND active = TRUE AND (list_id IS NULL OR list_id = $2)
		ORDER BY created_at ASC
	`, tenantID, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

// UpdateRule updates a rule's mutable fields.
func (s *PostgresStore) UpdateRule(ctx context.Context, r *models.AutomationRule) error {
	trigger, conditions, actions, err := encodeRuleFields(r)
	if err != nil {
		return err
	}

	return s.pool.QueryRow(ctx, `
		UPDATE automation_rules
		SET list_id = $2, name = $3, active = $4, trigger_spec = $5, conditions = $6, actions = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, r.ID, r.ListID, r.Name, r.Active, trigger, conditions, actions).Scan(&r.UpdatedAt)
}

// DeleteRule removes a rule.
func (s *PostgresStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM automation_rules WHERE id = $1`, id)
	return err
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleRow(row rowScanner) (*models.AutomationRule, error) {
	rule := &models.AutomationRule{}
	var trigger, conditions, actions []byte
	err := row.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.ListID,
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
	if err := decodeRuleFields(rule, trigger, conditions, actions); err != nil {
		return nil, err
	}
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	for rows.Next() {
		rule, err := scanRuleRow(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// CreateNotification inserts a notification record.
func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	metadata, err := encodeMetadata(n.Metadata)
	if err != nil {
		return err
	}

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, type, category, title, body, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING read, cleared, created_at
	`, n.ID, n.TenantID, n.UserID, n.Type, n.Category, n.Title, n.Body, metadata).Scan(
		&n.Read,
		&n.Cleared,
		&n.CreatedAt,
	)
}

// ListNotifications retrieves a user's notifications, newest first,
// excluding cleared ones.
func (s *PostgresStore) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int, before time.Time) ([]models.Notification, error) {
	// Zero before means no paging bound
	if before.IsZero() {
		before = time.Now().UTC().Add(time.Hour)
	}
	query := `
		SELECT id, tenant_id, user_id, type, category, title, body, metadata, read, cleared, created_at
		FROM notifications
		WHERE user_id = $1 AND cleared = FALSE AND created_at < $2
	`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	rows, err := s.pool.Query(ctx, query, userID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n := models.Notification{}
		var metadata []byte
		err := rows.Scan(
			&n.ID,
			&n.TenantID,
			&n.UserID,
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
		if n.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	return err
}

// MarkAllNotificationsRead marks all of the user's notifications read.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE
	`, userID)
	return err
}

// ClearNotification hides a notification from the user's inbox.
func (s *PostgresStore) ClearNotification(ctx context.Context, id, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET cleared = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	return err
}

// GetTask retrieves a task snapshot.
func (s *PostgresStore) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task := &models.Task{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, list_id, title, status, priority, assignee_id, due_date, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id).Scan(
		&task.ID,
		&task.TenantID,
		&task.ListID,
		&task.Title,
		&task.Status,
		&task.Priority,
		&task.AssigneeID,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// UpdateTaskAssignee sets a task's assignee (the ASSIGN_USER action).
func (s *PostgresStore) UpdateTaskAssignee(ctx context.Context, taskID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tasks SET assignee_id = $2, updated_at = NOW() WHERE id = $1
	`, taskID, userID)
	return err
}

// GetEmployee retrieves an employee snapshot.
func (s *PostgresStore) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	emp := &models.Employee{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, role, status, capacity, updated_at
		FROM employees WHERE id = $1
	`, id).Scan(
		&emp.ID,
		&emp.TenantID,
		&emp.Name,
		&emp.Email,
		&emp.Role,
		&emp.Status,
		&emp.Capacity,
		&emp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return emp, nil
}

// TargetMemberIDs retrieves the user ids belonging to a chat target.
func (s *PostgresStore) TargetMemberIDs(ctx context.Context, kind models.TargetKind, targetID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM chat_members WHERE target_kind = $1 AND target_id = $2
	`, string(kind), targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
