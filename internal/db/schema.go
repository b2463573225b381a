package db

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	org_id          TEXT NOT NULL,
	name            TEXT NOT NULL,
	job_function    TEXT NOT NULL DEFAULT '',
	permission_role TEXT NOT NULL DEFAULT 'employee',
	weekly_capacity DOUBLE PRECISION,
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_org ON users (org_id) WHERE active;

CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	org_id     TEXT NOT NULL,
	name       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_projects_org ON projects (org_id) WHERE active;

CREATE TABLE IF NOT EXISTS phases (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES projects (id),
	name       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS allocations (
	user_id       TEXT NOT NULL REFERENCES users (id),
	project_id    TEXT NOT NULL REFERENCES projects (id),
	week_start    TEXT NOT NULL,
	planned_hours DOUBLE PRECISION NOT NULL CHECK (planned_hours >= 0),
	phase_id      TEXT REFERENCES phases (id),
	notes         TEXT,
	is_billable   BOOLEAN NOT NULL DEFAULT TRUE,
	version       INTEGER NOT NULL DEFAULT 1,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, project_id, week_start)
);
CREATE INDEX IF NOT EXISTS idx_allocations_week ON allocations (week_start);

CREATE TABLE IF NOT EXISTS timesheets (
	user_id      TEXT NOT NULL REFERENCES users (id),
	project_id   TEXT NOT NULL REFERENCES projects (id),
	week_start   TEXT NOT NULL,
	actual_hours DOUBLE PRECISION NOT NULL CHECK (actual_hours >= 0),
	submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, project_id, week_start)
);
`

// EnsureSchema creates the tables if they do not exist yet. Statements are
// idempotent so repeated startup runs are safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}
