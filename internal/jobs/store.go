// Package jobs tracks background test runs. Stores enforce that a job's
// status only moves forward and its progress never decreases.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/ai-visibility/internal/types"
)

// DefaultRetention is how long a job stays queryable after its last update.
const DefaultRetention = 24 * time.Hour

var (
	// ErrNotFound is returned for unknown or expired job ids.
	ErrNotFound = errors.New("job not found")
	// ErrExists is returned when creating a job whose id is taken.
	ErrExists = errors.New("job already exists")
	// ErrTransition matches every TransitionError.
	ErrTransition = errors.New("invalid job transition")
)

// TransitionError reports an update that would move a job backwards.
type TransitionError struct {
	ID           string
	From, To     types.JobStatus
	FromProgress int
	ToProgress   int
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot move from %s (%d%%) to %s (%d%%)",
		e.ID, e.From, e.FromProgress, e.To, e.ToProgress)
}

func (e *TransitionError) Unwrap() error {
	return ErrTransition
}

// Store persists jobs. Update applies fn to a copy of the job and saves it
// only when fn succeeds and the change is a valid forward transition.
type Store interface {
	Create(ctx context.Context, job *types.Job) error
	Get(ctx context.Context, id string) (*types.Job, error)
	Update(ctx context.Context, id string, fn func(*types.Job) error) (*types.Job, error)
	Delete(ctx context.Context, id string) error
}

// apply runs fn against a copy of current and validates the result.
func apply(current *types.Job, fn func(*types.Job) error, now time.Time) (*types.Job, error) {
	next := clone(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt

	if !types.CanTransition(current.Status, next.Status) ||
		next.Progress < current.Progress || next.Progress > 100 {
		return nil, &TransitionError{
			ID:           current.ID,
			From:         current.Status,
			To:           next.Status,
			FromProgress: current.Progress,
			ToProgress:   next.Progress,
		}
	}
	next.UpdatedAt = now
	return next, nil
}

// prepare fills defaults on a job being created.
func prepare(job *types.Job, now time.Time) (*types.Job, error) {
	if job.ID == "" {
		return nil, errors.New("job id is required")
	}
	j := clone(job)
	if j.Status == "" {
		j.Status = types.JobPending
	}
	if j.Progress < 0 || j.Progress > 100 {
		return nil, fmt.Errorf("job %s: progress %d out of range", j.ID, j.Progress)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	return j, nil
}

func clone(job *types.Job) *types.Job {
	c := *job
	if job.Results != nil {
		c.Results = append([]types.ProviderResult(nil), job.Results...)
	}
	if job.ReportPaths != nil {
		c.ReportPaths = append([]string(nil), job.ReportPaths...)
	}
	return &c
}
