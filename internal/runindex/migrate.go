package runindex

import (
	"database/sql"
	"fmt"
	"log"
)

// migration is a single schema step tracked by PRAGMA user_version.
type migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations must stay ordered; append new steps with the next version.
var migrations = []migration{
	{
		Version:     1,
		Description: "test runs table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS test_runs (
    run_id TEXT PRIMARY KEY,
    business_dir TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    metadata TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_test_runs_started_at ON test_runs(started_at);`)
			return err
		},
	},
	{
		Version:     2,
		Description: "business lookup index",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_test_runs_business ON test_runs(business_dir, started_at);`)
			return err
		},
	},
}

func migrate(conn *sql.DB) error {
	var current int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Printf("[runindex] applying migration %d: %s", m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		// user_version cannot be set inside the transaction with modernc/sqlite.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}
	return nil
}
