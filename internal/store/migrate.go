package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresSchema is applied idempotently at boot. The tasks, employees,
// and chat_members tables are owned by the external CRUD services in a
// shared database; they are created here only so a standalone deployment
// (and the test harness) has something to read.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS automation_rules (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	list_id UUID,
	name TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	trigger_spec JSONB NOT NULL,
	conditions JSONB NOT NULL DEFAULT '[]',
	actions JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	user_id UUID NOT NULL,
	type TEXT NOT NULL,
	category TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}',
	read BOOLEAN NOT NULL DEFAULT FALSE,
	cleared BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tasks (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	list_id UUID NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'TODO',
	priority TEXT NOT NULL DEFAULT '',
	assignee_id UUID,
	due_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS employees (
	id UUID PRIMARY KEY,
	tenant_id UUID NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	capacity INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chat_members (
	target_kind TEXT NOT NULL,
	target_id UUID NOT NULL,
	user_id UUID NOT NULL,
	PRIMARY KEY (target_kind, target_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_rules_tenant_active ON automation_rules(tenant_id, active);
CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_tenant_list ON tasks(tenant_id, list_id);
CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id);
`

// RunMigrations applies the PostgreSQL schema. SQLite deployments apply
// their schema at open instead.
func RunMigrations(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, postgresSchema)
	return err
}
