// Package correlation maps report ids to the artifacts of one test run.
// Explicit run ids win; artifacts without one are matched by minute.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/runindex"
	"github.com/jonathan/ai-visibility/internal/storage"
)

// ErrNotFound is returned when a report id resolves to no artifacts.
var ErrNotFound = errors.New("report not found")

// ArtifactSet is every artifact attributed to one report.
type ArtifactSet struct {
	ReportID    string
	BusinessDir string
	Timestamp   string
	RunID       string
	Artifacts   []artifacts.Artifact
}

// OfKind returns the set's artifacts of kind, one per provider, first in
// name order winning. An empty provider matches all providers.
func (s *ArtifactSet) OfKind(kind artifacts.Kind, provider string) []artifacts.Artifact {
	seen := make(map[string]bool)
	var out []artifacts.Artifact
	for _, a := range s.Artifacts {
		if a.Kind != kind || seen[a.Provider] {
			continue
		}
		if provider != "" && a.Provider != provider {
			continue
		}
		seen[a.Provider] = true
		out = append(out, a)
	}
	return out
}

// RunGroup is the set of HTML reports the listing shows as one test run.
type RunGroup struct {
	ID          string
	BusinessDir string
	Timestamp   string
	RunID       string
	Reports     []artifacts.Artifact
}

// Resolver finds artifacts in a store, consulting the run index first.
type Resolver struct {
	store     storage.Store
	index     runindex.Index
	tolerance time.Duration
}

// NewResolver creates a resolver. index may be nil, in which case only
// minute matching is used.
func NewResolver(store storage.Store, index runindex.Index) *Resolver {
	return &Resolver{store: store, index: index, tolerance: runindex.DefaultTolerance}
}

// Scan returns the recognised artifacts of one business directory in name
// order.
func (r *Resolver) Scan(ctx context.Context, businessDir string) ([]artifacts.Artifact, error) {
	objects, err := r.store.List(ctx, businessDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", businessDir, err)
	}
	var out []artifacts.Artifact
	for _, obj := range objects {
		if a, ok := artifacts.ParseName(businessDir, obj.Name); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Resolve locates the artifacts behind a report id. A run of the same
// business recorded in the index within tolerance of the id's timestamp is
// used when its id appears in artifact names; otherwise artifacts from the
// same minute are used.
func (r *Resolver) Resolve(ctx context.Context, reportID string) (*ArtifactSet, error) {
	businessDir, stamp, err := artifacts.ParseReportID(reportID)
	if err != nil {
		return nil, err
	}
	all, err := r.Scan(ctx, businessDir)
	if err != nil {
		return nil, err
	}

	set := &ArtifactSet{ReportID: reportID, BusinessDir: businessDir, Timestamp: stamp}

	if meta := r.correlatedRun(ctx, businessDir, stamp); meta != nil {
		for _, a := range all {
			if a.RunID == meta.TestRunID {
				set.Artifacts = append(set.Artifacts, a)
			}
		}
		if len(set.Artifacts) > 0 {
			set.RunID = meta.TestRunID
			set.Artifacts = append(set.Artifacts, r.untaggedQueries(all, meta)...)
			return set, nil
		}
	}

	minute := artifacts.MinuteOf(stamp)
	for _, a := range all {
		if a.Minute() == minute {
			set.Artifacts = append(set.Artifacts, a)
		}
	}
	if len(set.Artifacts) == 0 {
		return nil, fmt.Errorf("%s: %w", reportID, ErrNotFound)
	}
	return set, nil
}

// untaggedQueries returns query files without a run id written within
// tolerance of the run's start. Provider scripts name their query files
// before the run id is known.
func (r *Resolver) untaggedQueries(all []artifacts.Artifact, meta *runindex.RunMetadata) []artifacts.Artifact {
	var out []artifacts.Artifact
	for _, a := range all {
		if a.Kind != artifacts.KindQueries || a.RunID != "" {
			continue
		}
		at, err := artifacts.ParseStamp(a.Timestamp)
		if err != nil {
			continue
		}
		d := at.Sub(meta.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < r.tolerance {
			out = append(out, a)
		}
	}
	return out
}

// correlatedRun returns the indexed run of businessDir nearest stamp, or nil.
func (r *Resolver) correlatedRun(ctx context.Context, businessDir, stamp string) *runindex.RunMetadata {
	if r.index == nil {
		return nil
	}
	at, err := artifacts.ParseStamp(stamp)
	if err != nil {
		return nil
	}
	meta, err := r.index.FindRun(ctx, businessDir, at, r.tolerance)
	if err != nil {
		log.Printf("[correlation] run lookup failed: %v", err)
		return nil
	}
	return meta
}

// ListRuns groups every HTML report in the store into test runs: by run id
// when the filename carries one, otherwise by business and minute. Each
// group keeps the first report per provider. Groups are returned newest
// first.
func (r *Resolver) ListRuns(ctx context.Context) ([]RunGroup, error) {
	scopes, err := r.store.ListScopes(ctx)
	if err != nil {
		return nil, err
	}

	var groups []*RunGroup
	for _, scope := range scopes {
		all, err := r.Scan(ctx, scope)
		if err != nil {
			return nil, err
		}

		byKey := make(map[string]*RunGroup)
		seen := make(map[string]bool)
		for _, a := range all {
			if a.Kind != artifacts.KindReport {
				continue
			}
			key := "minute:" + a.Minute()
			if a.RunID != "" {
				key = "run:" + a.RunID
			}
			g, ok := byKey[key]
			if !ok {
				g = &RunGroup{BusinessDir: scope, RunID: a.RunID, Timestamp: a.Timestamp}
				byKey[key] = g
				groups = append(groups, g)
			}
			if seen[key+"|"+a.Provider] {
				continue
			}
			seen[key+"|"+a.Provider] = true
			if a.Timestamp < g.Timestamp {
				g.Timestamp = a.Timestamp
			}
			g.Reports = append(g.Reports, a)
		}
	}

	out := make([]RunGroup, 0, len(groups))
	for _, g := range groups {
		g.ID = artifacts.ReportID(g.BusinessDir, g.Timestamp)
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].BusinessDir < out[j].BusinessDir
	})
	return out, nil
}

// DeleteReport removes every file in the report's business directory whose
// embedded timestamp equals the report timestamp exactly. It returns the
// deleted keys, or ErrNotFound when nothing matched.
func (r *Resolver) DeleteReport(ctx context.Context, reportID string) ([]string, error) {
	businessDir, stamp, err := artifacts.ParseReportID(reportID)
	if err != nil {
		return nil, err
	}
	objects, err := r.store.List(ctx, businessDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", businessDir, err)
	}

	var deleted []string
	for _, obj := range objects {
		if s, ok := artifacts.StampOf(obj.Name); !ok || s != stamp {
			continue
		}
		ok, err := r.store.Delete(ctx, businessDir, obj.Name)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, obj.Key())
		}
	}
	if len(deleted) == 0 {
		return nil, fmt.Errorf("%s: %w", reportID, ErrNotFound)
	}
	log.Printf("[correlation] deleted %d artifact(s) for %s", len(deleted), reportID)
	return deleted, nil
}
