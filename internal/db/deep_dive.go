package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/ai-visibility/internal/types"
)

const deepDiveColumns = `id, business_name, business_url, email, ai_engines, query_count,
	query_types, notes, status, results, created_at, completed_at`

// CreateDeepDive inserts a new deep-dive request.
func (db *DB) CreateDeepDive(ctx context.Context, req *types.DeepDiveRequest) error {
	results, err := marshalResults(req.Results)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO deep_dive_requests
			(id, business_name, business_url, email, ai_engines, query_count, query_types, notes, status, results, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.BusinessName, req.BusinessURL, req.Email, nonNil(req.AIEngines), req.QueryCount,
		nonNil(req.QueryTypes), req.Notes, req.Status, results, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deep dive request: %w", err)
	}
	return nil
}

// GetDeepDive retrieves a deep-dive request by ID. Returns nil, nil when
// the request does not exist.
func (db *DB) GetDeepDive(ctx context.Context, id string) (*types.DeepDiveRequest, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+deepDiveColumns+` FROM deep_dive_requests WHERE id = $1`, id)
	req, err := scanDeepDive(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deep dive request: %w", err)
	}
	return req, nil
}

// ListDeepDives returns every deep-dive request, newest first.
func (db *DB) ListDeepDives(ctx context.Context) ([]types.DeepDiveRequest, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+deepDiveColumns+` FROM deep_dive_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deep dive requests: %w", err)
	}
	defer rows.Close()

	var out []types.DeepDiveRequest
	for rows.Next() {
		req, err := scanDeepDive(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deep dive request: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// CompleteDeepDive stores results on a pending request and marks it
// completed. It returns false when no pending request has that ID.
func (db *DB) CompleteDeepDive(ctx context.Context, id string, results types.DeepDiveResults, at time.Time) (bool, error) {
	payload, err := marshalResults(&results)
	if err != nil {
		return false, err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE deep_dive_requests
		 SET status = $2, results = $3, completed_at = $4
		 WHERE id = $1 AND status = $5`,
		id, types.DeepDiveCompleted, payload, at, types.DeepDivePending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete deep dive request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteDeepDive removes a request and reports whether it existed.
func (db *DB) DeleteDeepDive(ctx context.Context, id string) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM deep_dive_requests WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete deep dive request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanDeepDive(row pgx.Row) (*types.DeepDiveRequest, error) {
	var req types.DeepDiveRequest
	var results []byte
	if err := row.Scan(&req.ID, &req.BusinessName, &req.BusinessURL, &req.Email, &req.AIEngines,
		&req.QueryCount, &req.QueryTypes, &req.Notes, &req.Status, &results, &req.CreatedAt, &req.CompletedAt); err != nil {
		return nil, err
	}
	if len(results) > 0 {
		var r types.DeepDiveResults
		if err := json.Unmarshal(results, &r); err != nil {
			return nil, fmt.Errorf("failed to decode deep dive results: %w", err)
		}
		req.Results = &r
	}
	return &req, nil
}

func marshalResults(r *types.DeepDiveResults) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deep dive results: %w", err)
	}
	return data, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
