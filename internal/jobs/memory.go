package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonathan/ai-visibility/internal/types"
)

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*types.Job
	retention time.Duration
	now       func() time.Time
}

// NewMemoryStore creates an in-memory store. A non-positive retention uses
// DefaultRetention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		jobs:      make(map[string]*types.Job),
		retention: retention,
		now:       time.Now,
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, job *types.Job) error {
	j, err := prepare(job, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("%s: %w", j.ID, ErrExists)
	}
	s.jobs[j.ID] = j
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok || s.expired(j) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return clone(j), nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*types.Job) error) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[id]
	if !ok || s.expired(current) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	next, err := apply(current, fn, s.now())
	if err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return clone(next), nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	delete(s.jobs, id)
	return nil
}

// Sweep removes jobs whose last update is older than the retention window
// and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, j := range s.jobs {
		if s.expired(j) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("[jobs] swept %d expired job(s)", n)
				}
			}
		}
	}()
}

func (s *MemoryStore) expired(j *types.Job) bool {
	return s.now().Sub(j.UpdatedAt) > s.retention
}
