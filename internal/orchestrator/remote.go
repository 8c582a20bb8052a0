package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/ai-visibility/internal/types"
)

// Remote polling limits.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 60
	// MaxConsecutiveFailures is how many poll failures in a row are
	// tolerated; the next one aborts the run.
	MaxConsecutiveFailures = 3
)

// BackendHint is attached to every backend communication failure.
const BackendHint = "Make sure BACKEND_URL is set correctly and the backend is running"

// ErrTimedOut is returned when a remote run is still going after the last
// poll attempt.
var ErrTimedOut = errors.New("Test run timed out. Check backend logs.")

// BackendError reports a backend that could not be reached or answered
// with something unusable.
type BackendError struct {
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Hint tells the operator what to check.
func (e *BackendError) Hint() string {
	return BackendHint
}

// JobFailedError carries the error a backend reported for a failed job.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}

// Backend is a remote service that runs test jobs.
type Backend interface {
	SubmitJob(ctx context.Context, spec types.JobSpec) (string, error)
	PollJob(ctx context.Context, jobID string) (*types.JobStatusPayload, error)
	DeleteReport(ctx context.Context, reportID string) error
}

// Remote submits a run to a backend and polls it until it finishes.
type Remote struct {
	backend     Backend
	interval    time.Duration
	maxAttempts int
	maxFailures int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRemote creates a poller with the default limits.
func NewRemote(backend Backend) *Remote {
	return &Remote{
		backend:     backend,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxAttempts,
		maxFailures: MaxConsecutiveFailures,
		sleep:       sleepContext,
	}
}

// WithPollInterval sets the wait before each poll.
func (r *Remote) WithPollInterval(d time.Duration) *Remote {
	if d > 0 {
		r.interval = d
	}
	return r
}

// Backend returns the backend the poller talks to.
func (r *Remote) Backend() Backend {
	return r.backend
}

// Run submits spec and waits for the job. Completed jobs return their
// results untouched. A failed job returns *JobFailedError with the
// backend's message, an exhausted poll budget returns ErrTimedOut, and
// communication failures return *BackendError.
func (r *Remote) Run(ctx context.Context, spec types.JobSpec, progress ProgressFunc) (json.RawMessage, error) {
	jobID, err := r.backend.SubmitJob(ctx, spec)
	if err != nil {
		return nil, asBackendError(err)
	}
	log.Printf("[orchestrator] remote job %s submitted", jobID)

	failures := 0
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.sleep(ctx, r.interval); err != nil {
			return nil, err
		}

		status, err := r.backend.PollJob(ctx, jobID)
		if err != nil {
			failures++
			log.Printf("[orchestrator] poll %d for job %s failed (%d in a row): %v", attempt, jobID, failures, err)
			if failures > r.maxFailures {
				return nil, asBackendError(err)
			}
			continue
		}
		failures = 0
		log.Printf("[orchestrator] poll %d: %s - %d%% - %s", attempt, status.Status, status.Progress, status.Message)
		if progress != nil {
			progress(status.Progress, status.Message)
		}

		switch status.Status {
		case types.JobCompleted:
			if len(status.Results) == 0 || string(status.Results) == "null" {
				return json.RawMessage("[]"), nil
			}
			return status.Results, nil
		case types.JobFailed:
			msg := status.Error
			if msg == "" {
				msg = "Test run failed"
			}
			return nil, &JobFailedError{Message: msg}
		}
	}
	return nil, ErrTimedOut
}

func asBackendError(err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &BackendError{Message: "Failed to communicate with backend", Cause: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
