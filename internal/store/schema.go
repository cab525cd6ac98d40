package store

import (
	"context"
	"strings"
)

// schema is written once with {{TS}} and {{JSON}} placeholders for the column types that differ
// between Postgres and SQLite.
const schema = `
CREATE TABLE IF NOT EXISTS children (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	dob               DATE,
	allergies         TEXT,
	health_info       TEXT,
	medications       TEXT,
	emergency_contact TEXT,
	created_at        {{TS}} NOT NULL,
	updated_at        {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS child_parents (
	child_id     TEXT NOT NULL REFERENCES children(id) ON DELETE CASCADE,
	parent_id    TEXT NOT NULL,
	relationship TEXT NOT NULL DEFAULT 'GUARDIAN',
	PRIMARY KEY (child_id, parent_id)
);

CREATE INDEX IF NOT EXISTS idx_child_parents_parent ON child_parents(parent_id);

CREATE TABLE IF NOT EXISTS attendance_records (
	id         TEXT PRIMARY KEY,
	child_id   TEXT NOT NULL REFERENCES children(id) ON DELETE CASCADE,
	day        DATE NOT NULL,
	status     TEXT NOT NULL,
	check_in   {{TS}},
	check_out  {{TS}},
	notes      TEXT NOT NULL DEFAULT '',
	created_at {{TS}} NOT NULL,
	updated_at {{TS}} NOT NULL,
	UNIQUE (child_id, day)
);

CREATE TABLE IF NOT EXISTS meals (
	id            TEXT PRIMARY KEY,
	attendance_id TEXT NOT NULL REFERENCES attendance_records(id) ON DELETE CASCADE,
	meal_type     TEXT NOT NULL,
	food          TEXT NOT NULL DEFAULT '',
	quantity      TEXT,
	UNIQUE (attendance_id, meal_type)
);

CREATE TABLE IF NOT EXISTS naps (
	id            TEXT PRIMARY KEY,
	attendance_id TEXT NOT NULL UNIQUE REFERENCES attendance_records(id) ON DELETE CASCADE,
	start_time    {{TS}} NOT NULL,
	finish_time   {{TS}} NOT NULL
);

CREATE TABLE IF NOT EXISTS nappy_changes (
	id            TEXT PRIMARY KEY,
	attendance_id TEXT NOT NULL REFERENCES attendance_records(id) ON DELETE CASCADE,
	changed_at    {{TS}} NOT NULL,
	notes         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_nappy_changes_attendance ON nappy_changes(attendance_id);

CREATE TABLE IF NOT EXISTS discarded_daily_logs (
	id              TEXT PRIMARY KEY,
	attendance_id   TEXT NOT NULL,
	child_id        TEXT NOT NULL,
	day             DATE NOT NULL,
	previous_status TEXT NOT NULL,
	new_status      TEXT NOT NULL,
	payload         {{JSON}} NOT NULL,
	discarded_at    {{TS}} NOT NULL,
	notified_at     {{TS}}
);

CREATE INDEX IF NOT EXISTS idx_discarded_daily_logs_child ON discarded_daily_logs(child_id, day);
`

func (d *DB) schema() string {
	ts, js := "TIMESTAMPTZ", "JSONB"
	if d.Driver == DriverSQLite {
		ts, js = "TIMESTAMP", "JSON"
	}
	return strings.NewReplacer("{{TS}}", ts, "{{JSON}}", js).Replace(schema)
}

// Migrate creates missing tables. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(d.schema(), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
