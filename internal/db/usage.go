package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TestUsage is how many test runs a user started in one month.
type TestUsage struct {
	UserID    string    `json:"user_id"`
	MonthYear string    `json:"month_year"`
	TestCount int       `json:"test_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MonthKey formats t as the YYYY-MM usage period.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// GetUsage returns a user's usage for a month. Returns nil, nil when the
// user has not run a test that month.
func (db *DB) GetUsage(ctx context.Context, userID, monthYear string) (*TestUsage, error) {
	var u TestUsage
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, month_year, test_count, updated_at
		 FROM test_usage WHERE user_id = $1 AND month_year = $2`,
		userID, monthYear,
	).Scan(&u.UserID, &u.MonthYear, &u.TestCount, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return &u, nil
}

// IncrementUsage adds one test to a user's month and returns the new count.
func (db *DB) IncrementUsage(ctx context.Context, userID, monthYear string) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`INSERT INTO test_usage (user_id, month_year, test_count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, month_year)
		 DO UPDATE SET test_count = test_usage.test_count + 1, updated_at = NOW()
		 RETURNING test_count`,
		userID, monthYear,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, nil
}
