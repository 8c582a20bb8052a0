// Package orchestrator runs visibility test runs: either locally, as a
// generate, collect and report pipeline per provider, or by submitting the
// run to a remote backend and polling it to completion.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/types"
)

// Task is one provider's share of a test run.
type Task struct {
	RunID           string
	Provider        string
	BusinessDir     string
	Stamp           string // run start, filename form
	Business        *config.BusinessConfig
	QueryTypes      []string
	ConsumerQueries int
	BusinessQueries int
}

// Count returns how many queries of queryType the task generates.
func (t Task) Count(queryType string) int {
	switch queryType {
	case types.QueryTypeConsumer:
		return t.ConsumerQueries
	case types.QueryTypeBusiness:
		return t.BusinessQueries
	default:
		return 0
	}
}

// Worker runs the three phases of a provider pipeline. Every phase returns
// the storage key of the artifact it wrote; the next phase receives it.
type Worker interface {
	// Generate writes a query file and returns its key.
	Generate(ctx context.Context, task Task) (string, error)
	// Collect asks the provider every query in queriesKey and returns the
	// key of the responses file.
	Collect(ctx context.Context, task Task, queriesKey string) (string, error)
	// Report analyses responsesKey and returns the key of the HTML report.
	Report(ctx context.Context, task Task, responsesKey string) (string, error)
}

// Registry maps providers to workers, with a fallback for providers that
// have no dedicated worker.
type Registry struct {
	mu       sync.RWMutex
	workers  map[string]Worker
	fallback Worker
}

// NewRegistry creates a registry whose unregistered providers use fallback.
// A nil fallback makes unknown providers an error.
func NewRegistry(fallback Worker) *Registry {
	return &Registry{workers: make(map[string]Worker), fallback: fallback}
}

// Register binds provider to w.
func (r *Registry) Register(provider string, w Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[provider] = w
}

// For returns the worker for provider.
func (r *Registry) For(provider string) (Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[provider]; ok {
		return w, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no worker registered for provider %q", provider)
}
