package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Statements are idempotent and re-run on
// every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN has no IF NOT EXISTS form.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillTotals(db); err != nil {
		return fmt.Errorf("backfilling report totals: %w", err)
	}
	return nil
}

// migrateBackfillTotals fills total_seconds for reports written before the
// column existed.
func migrateBackfillTotals(db *sql.DB) error {
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `UPDATE usage_reports
		SET total_seconds = (
			SELECT COALESCE(SUM(seconds_used), 0) FROM usage_report_entries e
			WHERE e.report_id = usage_reports.id
		)
		WHERE total_seconds IS NULL`)
	return err
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS usage_reports (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		chunk_size    INTEGER NOT NULL CHECK(chunk_size > 0),
		include_after INTEGER NOT NULL DEFAULT 0 CHECK(include_after IN (0, 1)),
		event_count   INTEGER NOT NULL DEFAULT 0,
		chunk_count   INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_reports_session ON usage_reports(session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS usage_report_entries (
		report_id    TEXT NOT NULL REFERENCES usage_reports(id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		app_name     TEXT NOT NULL CHECK(app_name <> ''),
		seconds_used REAL NOT NULL CHECK(seconds_used >= 0),
		chunks       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (report_id, position)
	)`,
	`ALTER TABLE usage_reports ADD COLUMN total_seconds REAL`,
}
