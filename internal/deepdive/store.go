// Package deepdive manages manual deep-dive analysis requests: customers
// submit them, admins attach results once, and anyone with the id can
// track them.
package deepdive

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/ai-visibility/internal/types"
)

var (
	// ErrNotFound is returned for unknown request ids.
	ErrNotFound = errors.New("deep dive request not found")
	// ErrCompleted is returned when results are attached twice.
	ErrCompleted = errors.New("deep dive request already completed")
)

// Store persists deep-dive requests.
type Store interface {
	Create(ctx context.Context, req *types.DeepDiveRequest) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*types.DeepDiveRequest, error)
	// List returns every request, newest first.
	List(ctx context.Context) ([]types.DeepDiveRequest, error)
	// Complete attaches results to a pending request. It returns
	// ErrNotFound or ErrCompleted when the request cannot be completed.
	Complete(ctx context.Context, id string, results types.DeepDiveResults, at time.Time) (*types.DeepDiveRequest, error)
	// Delete returns ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}
