package deepdive

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/ai-visibility/internal/db"
	"github.com/jonathan/ai-visibility/internal/types"
)

// PostgresStore keeps requests in the deep_dive_requests table.
type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore creates a store over database.
func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, req *types.DeepDiveRequest) error {
	return s.db.CreateDeepDive(ctx, req)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*types.DeepDiveRequest, error) {
	req, err := s.db.GetDeepDive(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return req, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]types.DeepDiveRequest, error) {
	list, err := s.db.ListDeepDives(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []types.DeepDiveRequest{}
	}
	return list, nil
}

// Complete implements Store.
func (s *PostgresStore) Complete(ctx context.Context, id string, results types.DeepDiveResults, at time.Time) (*types.DeepDiveRequest, error) {
	ok, err := s.db.CompleteDeepDive(ctx, id, results, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Either unknown or already completed; Get tells which.
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing.Status == types.DeepDiveCompleted {
			return nil, fmt.Errorf("%s: %w", id, ErrCompleted)
		}
		return nil, fmt.Errorf("deep dive request %s was not updated", id)
	}
	return s.Get(ctx, id)
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ok, err := s.db.DeleteDeepDive(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
