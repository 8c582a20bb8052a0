package runindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex keeps run metadata in an embedded SQLite database indexed by
// start time, so nearest-run lookups do not scan the results directory.
type SQLiteIndex struct {
	conn *sql.DB
	path string
}

// OpenSQLite creates or opens the index database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening run index: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating run index: %w", err)
	}
	return &SQLiteIndex{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *SQLiteIndex) Path() string {
	return s.path
}

// PutRun implements Index. Re-putting a run replaces it.
func (s *SQLiteIndex) PutRun(ctx context.Context, meta RunMetadata) error {
	data, err := json.Marshal(meta.normalized())
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", meta.TestRunID, err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO test_runs (run_id, business_dir, started_at, metadata)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET business_dir = excluded.business_dir,
		   started_at = excluded.started_at, metadata = excluded.metadata`,
		meta.TestRunID, meta.BusinessDir, meta.Timestamp.UnixMilli(), string(data),
	)
	if err != nil {
		return fmt.Errorf("storing run %s: %w", meta.TestRunID, err)
	}
	return nil
}

// GetRun implements Index.
func (s *SQLiteIndex) GetRun(ctx context.Context, runID string) (*RunMetadata, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx,
		`SELECT metadata FROM test_runs WHERE run_id = ?`, runID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return decodeRow(raw)
}

// FindRun implements Index.
func (s *SQLiteIndex) FindRun(ctx context.Context, businessDir string, at time.Time, tolerance time.Duration) (*RunMetadata, error) {
	target := at.UnixMilli()
	window := tolerance.Milliseconds()

	var raw string
	err := s.conn.QueryRowContext(ctx,
		`SELECT metadata FROM test_runs
		 WHERE started_at > ? AND started_at < ?
		   AND (? = '' OR business_dir = '' OR business_dir = ?)
		 ORDER BY ABS(started_at - ?), started_at
		 LIMIT 1`,
		target-window, target+window, businessDir, businessDir, target,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding run near %s: %w", at.Format(time.RFC3339), err)
	}
	return decodeRow(raw)
}

// ListRuns implements Index.
func (s *SQLiteIndex) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT metadata FROM test_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		meta, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	return runs, rows.Err()
}

// DeleteRun implements Index.
func (s *SQLiteIndex) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM test_runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	return nil
}

func decodeRow(raw string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("decoding run metadata: %w", err)
	}
	return &meta, nil
}
