// Package runindex records test run metadata and finds the run whose start
// time lies nearest a given instant.
package runindex

import (
	"context"
	"time"
)

// DefaultTolerance is how far a report timestamp may lie from a run's
// start time and still be attributed to that run.
const DefaultTolerance = 5 * time.Minute

// RunMetadata describes one test run. It is written before any provider
// work starts.
type RunMetadata struct {
	TestRunID       string    `json:"test_run_id"`
	Providers       []string  `json:"providers"`
	Timestamp       time.Time `json:"timestamp"`
	TotalProviders  int       `json:"total_providers"`
	QueryTypes      []string  `json:"query_types"`
	ConsumerQueries int       `json:"consumer_queries"`
	BusinessQueries int       `json:"business_queries"`
	BusinessDir     string    `json:"business_dir,omitempty"`
}

// normalized returns a copy with nil lists replaced by empty ones so the
// encoded form always carries arrays.
func (m RunMetadata) normalized() RunMetadata {
	if m.Providers == nil {
		m.Providers = []string{}
	}
	if m.QueryTypes == nil {
		m.QueryTypes = []string{}
	}
	return m
}

// Index stores run metadata. Lookups return nil, nil when nothing matches.
type Index interface {
	PutRun(ctx context.Context, meta RunMetadata) error
	GetRun(ctx context.Context, runID string) (*RunMetadata, error)
	// FindRun returns the run of businessDir whose timestamp is nearest at,
	// provided the distance is strictly less than tolerance. Runs recorded
	// without a business directory match any business; an empty businessDir
	// matches every run.
	FindRun(ctx context.Context, businessDir string, at time.Time, tolerance time.Duration) (*RunMetadata, error)
	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]RunMetadata, error)
	DeleteRun(ctx context.Context, runID string) error
}

// belongsTo reports whether the run may hold artifacts of businessDir.
func (m RunMetadata) belongsTo(businessDir string) bool {
	return businessDir == "" || m.BusinessDir == "" || m.BusinessDir == businessDir
}

// nearest picks the run of businessDir closest to at within tolerance;
// ties go to the earlier entry in runs.
func nearest(runs []RunMetadata, businessDir string, at time.Time, tolerance time.Duration) *RunMetadata {
	var best *RunMetadata
	var bestDist time.Duration
	for i := range runs {
		if !runs[i].belongsTo(businessDir) {
			continue
		}
		d := runs[i].Timestamp.Sub(at)
		if d < 0 {
			d = -d
		}
		if d >= tolerance {
			continue
		}
		if best == nil || d < bestDist {
			best = &runs[i]
			bestDist = d
		}
	}
	return best
}

// Multi fans writes out to every index and answers reads from the first
// index that has a result.
type Multi []Index

// PutRun implements Index.
func (m Multi) PutRun(ctx context.Context, meta RunMetadata) error {
	for _, idx := range m {
		if err := idx.PutRun(ctx, meta); err != nil {
			return err
		}
	}
	return nil
}

// GetRun implements Index.
func (m Multi) GetRun(ctx context.Context, runID string) (*RunMetadata, error) {
	for _, idx := range m {
		meta, err := idx.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			return meta, nil
		}
	}
	return nil, nil
}

// FindRun implements Index.
func (m Multi) FindRun(ctx context.Context, businessDir string, at time.Time, tolerance time.Duration) (*RunMetadata, error) {
	for _, idx := range m {
		meta, err := idx.FindRun(ctx, businessDir, at, tolerance)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			return meta, nil
		}
	}
	return nil, nil
}

// ListRuns implements Index using the first index only.
func (m Multi) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].ListRuns(ctx)
}

// DeleteRun implements Index.
func (m Multi) DeleteRun(ctx context.Context, runID string) error {
	for _, idx := range m {
		if err := idx.DeleteRun(ctx, runID); err != nil {
			return err
		}
	}
	return nil
}
