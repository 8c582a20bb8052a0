package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/jobs"
	"github.com/jonathan/ai-visibility/internal/types"
)

// DefaultWatchInterval is how often Watch checks a job for changes.
const DefaultWatchInterval = time.Second

// ErrRemoteMode is returned by local-only operations when runs are
// delegated to a remote backend, and vice versa.
var ErrRemoteMode = errors.New("operation not available in this run mode")

// Service is the entry point for test runs. With a remote backend
// configured runs block on the backend; otherwise they run locally in the
// background and are tracked as jobs.
type Service struct {
	jobs          jobs.Store
	local         *Local
	remote        *Remote
	watchInterval time.Duration
	wg            sync.WaitGroup
}

// NewService creates a service. Exactly one of local and remote is
// normally set; remote wins when both are.
func NewService(jobStore jobs.Store, local *Local, remote *Remote) *Service {
	return &Service{
		jobs:          jobStore,
		local:         local,
		remote:        remote,
		watchInterval: DefaultWatchInterval,
	}
}

// WithWatchInterval sets how often Watch re-reads a job.
func (s *Service) WithWatchInterval(d time.Duration) *Service {
	if d > 0 {
		s.watchInterval = d
	}
	return s
}

// RemoteMode reports whether runs go to a remote backend.
func (s *Service) RemoteMode() bool {
	return s.remote != nil
}

// Remote returns the remote poller, or nil in local mode.
func (s *Service) Remote() *Remote {
	return s.remote
}

// Submit validates req and the business profile, records a pending job
// and starts the run in the background. The run is detached from ctx: it
// keeps going after the caller returns and cannot be cancelled.
func (s *Service) Submit(ctx context.Context, req *types.TestRunRequest) (*types.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.RemoteMode() || s.local == nil {
		return nil, fmt.Errorf("local runs: %w", ErrRemoteMode)
	}
	business, err := s.local.LoadBusiness()
	if err != nil {
		return nil, err
	}

	job := &types.Job{ID: uuid.NewString(), Status: types.JobPending, Message: "Test run queued"}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	created, err := s.jobs.Get(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.WithoutCancel(ctx), job.ID, req, business)
	}()
	return created, nil
}

// Wait blocks until every background run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) execute(ctx context.Context, id string, req *types.TestRunRequest, business *config.BusinessConfig) {
	s.update(ctx, id, func(j *types.Job) {
		j.Status = types.JobRunning
		j.Message = "Starting test run"
	})

	res, err := s.local.RunFor(ctx, req, business, func(progress int, message string) {
		s.update(ctx, id, func(j *types.Job) {
			if progress > j.Progress {
				j.Progress = progress
			}
			j.Message = message
		})
	})
	if err != nil {
		log.Printf("[orchestrator] job %s failed: %v", id, err)
		s.update(ctx, id, func(j *types.Job) {
			j.Status = types.JobFailed
			j.Message = "Test run failed"
			j.Error = err.Error()
		})
		return
	}

	s.update(ctx, id, func(j *types.Job) {
		j.Status = types.JobCompleted
		j.Progress = 100
		j.Message = "Test run completed successfully"
		j.RunID = res.RunID
		j.Results = res.Results
		j.ReportPaths = res.ReportPaths
	})
}

// update applies fn, logging instead of failing: a lost progress update
// must not stop the run.
func (s *Service) update(ctx context.Context, id string, fn func(*types.Job)) {
	_, err := s.jobs.Update(ctx, id, func(j *types.Job) error {
		fn(j)
		return nil
	})
	if err != nil {
		log.Printf("[orchestrator] job %s: update failed: %v", id, err)
	}
}

// Status returns the current state of a job.
func (s *Service) Status(ctx context.Context, id string) (*types.Job, error) {
	return s.jobs.Get(ctx, id)
}

// RunRemote validates req and runs it on the remote backend, blocking
// until it finishes. See Remote.Run for the error contract.
func (s *Service) RunRemote(ctx context.Context, req *types.TestRunRequest) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.remote == nil {
		return nil, fmt.Errorf("remote runs: %w", ErrRemoteMode)
	}
	return s.remote.Run(ctx, req.Spec(), nil)
}

// Watch streams a job's state whenever it changes. The first value is the
// current state; the channel closes after a terminal state, when the job
// disappears, or when ctx ends.
func (s *Service) Watch(ctx context.Context, id string) (<-chan types.Job, error) {
	current, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ch := make(chan types.Job, 1)
	go func() {
		defer close(ch)
		last := *current
		select {
		case ch <- last:
		case <-ctx.Done():
			return
		}
		if last.Status.Terminal() {
			return
		}

		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err := s.jobs.Get(ctx, id)
			if err != nil {
				return
			}
			if job.UpdatedAt.Equal(last.UpdatedAt) && job.Status == last.Status && job.Progress == last.Progress {
				continue
			}
			last = *job
			select {
			case ch <- last:
			case <-ctx.Done():
				return
			}
			if last.Status.Terminal() {
				return
			}
		}
	}()
	return ch, nil
}
