package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'timesheet_write_status') THEN
			CREATE TYPE timesheet_write_status AS ENUM ('OK', 'FAILED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS timesheet_write_log (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id UUID NOT NULL,
		timesheet_id BIGINT NOT NULL,
		kind VARCHAR(16) NOT NULL,
		entry_id BIGINT,
		column_key VARCHAR(32),
		field VARCHAR(64),
		value NUMERIC(10,2),
		records INTEGER NOT NULL DEFAULT 0,
		status timesheet_write_status NOT NULL,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_timesheet_write_log_session ON timesheet_write_log (session_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_timesheet_write_log_failed ON timesheet_write_log (timesheet_id, created_at) WHERE status = 'FAILED';`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
