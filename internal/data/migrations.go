package data

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	version int
	sql     string
}

// migrations must stay ordered; versions are sequential starting at 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS users (
	id                    bigserial PRIMARY KEY,
	created_at            timestamptz NOT NULL DEFAULT now(),
	updated_at            timestamptz NOT NULL DEFAULT now(),
	name                  text NOT NULL,
	email                 text NOT NULL UNIQUE,
	password_hash         bytea NOT NULL,
	is_admin              boolean NOT NULL DEFAULT false,
	reset_password_token  text,
	reset_password_expire timestamptz,
	version               integer NOT NULL DEFAULT 1,
	CHECK ((reset_password_token IS NULL) = (reset_password_expire IS NULL))
);

CREATE TABLE IF NOT EXISTS tasks (
	id          bigserial PRIMARY KEY,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now(),
	user_id     bigint NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title       text NOT NULL,
	description text NOT NULL DEFAULT '',
	due_date    timestamptz,
	status      text NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in-progress', 'completed')),
	priority    text NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
	version     integer NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_open_due ON tasks(due_date) WHERE status <> 'completed';

CREATE TABLE IF NOT EXISTS notifications (
	id            bigserial PRIMARY KEY,
	created_at    timestamptz NOT NULL DEFAULT now(),
	user_id       bigint NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	task_id       bigint NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	type          text NOT NULL CHECK (type IN ('due_soon', 'overdue', 'completed', 'updated')),
	title         text NOT NULL,
	message       text NOT NULL,
	priority      text NOT NULL DEFAULT 'normal' CHECK (priority IN ('low', 'normal', 'high')),
	read          boolean NOT NULL DEFAULT false,
	scheduled_for timestamptz NOT NULL,
	sent          boolean NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_task_type ON notifications(task_id, type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unsent ON notifications(scheduled_for) WHERE sent = false;
`,
	},
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version integer NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	if err := db.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration v%d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("applying migration v%d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.version); err != nil {
		return fmt.Errorf("recording migration v%d: %w", m.version, err)
	}
	return tx.Commit()
}
