package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/runindex"
	"github.com/jonathan/ai-visibility/internal/storage"
	"github.com/jonathan/ai-visibility/internal/types"
)

// DefaultParallelism bounds how many provider pipelines run at once.
const DefaultParallelism = 5

// ProgressFunc receives run progress (0-100) with a human readable
// message. Calls are serialised and progress never decreases.
type ProgressFunc func(progress int, message string)

// BusinessSource loads the business profile a run tests.
type BusinessSource interface {
	Load() (*config.BusinessConfig, error)
}

// RunResult is the outcome of a local run. Results follow the order of the
// requested providers.
type RunResult struct {
	RunID       string                 `json:"test_run_id"`
	Results     []types.ProviderResult `json:"results"`
	ReportPaths []string               `json:"report_paths"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Local runs every provider's generate, collect and report phases in
// process, one pipeline per provider.
type Local struct {
	store       storage.Store
	index       runindex.Index
	workers     *Registry
	business    BusinessSource
	parallelism int
	now         func() time.Time
}

// NewLocal creates a local orchestrator. parallelism <= 0 uses
// DefaultParallelism.
func NewLocal(store storage.Store, index runindex.Index, workers *Registry, business BusinessSource, parallelism int) *Local {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Local{
		store:       store,
		index:       index,
		workers:     workers,
		business:    business,
		parallelism: parallelism,
		now:         time.Now,
	}
}

// LoadBusiness reads and validates the business profile a run tests. An
// incomplete profile is reported as a *types.ValidationError.
func (l *Local) LoadBusiness() (*config.BusinessConfig, error) {
	business, err := l.business.Load()
	if err != nil {
		return nil, err
	}
	if err := business.Validate(); err != nil {
		return nil, &types.ValidationError{Field: "businessConfig", Message: err.Error()}
	}
	return business, nil
}

// Run loads the business profile and executes a test run for it.
func (l *Local) Run(ctx context.Context, req *types.TestRunRequest, progress ProgressFunc) (*RunResult, error) {
	business, err := l.LoadBusiness()
	if err != nil {
		return nil, err
	}
	return l.RunFor(ctx, req, business, progress)
}

// RunFor executes a test run against an already validated profile.
// Provider failures are recorded in the results and never fail the run;
// only setup failures (run metadata, custom queries) return an error.
func (l *Local) RunFor(ctx context.Context, req *types.TestRunRequest, business *config.BusinessConfig, progress ProgressFunc) (*RunResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	started := l.now()
	runID := strconv.FormatInt(started.UnixMilli(), 10)
	stamp := artifacts.FormatStamp(started)
	dir := business.Dir()

	meta := runindex.RunMetadata{
		TestRunID:       runID,
		Providers:       req.Providers,
		Timestamp:       started,
		TotalProviders:  len(req.Providers),
		QueryTypes:      req.QueryTypes,
		ConsumerQueries: req.ConsumerQueries,
		BusinessQueries: req.BusinessQueries,
		BusinessDir:     dir,
	}
	if err := l.index.PutRun(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to record test run: %w", err)
	}
	log.Printf("[orchestrator] run %s started for %s with %d provider(s)", runID, dir, len(req.Providers))
	progress(5, "Test run created")

	customKey := ""
	if req.CustomQueries != nil {
		var err error
		customKey, err = l.saveCustomQueries(ctx, dir, runID, stamp, req.CustomQueries)
		if err != nil {
			return nil, err
		}
	}

	tracker := &progressTracker{total: 3 * len(req.Providers), report: progress}
	results := make([]types.ProviderResult, len(req.Providers))

	g := new(errgroup.Group)
	g.SetLimit(l.parallelism)
	for i, provider := range req.Providers {
		task := Task{
			RunID:           runID,
			Provider:        provider,
			BusinessDir:     dir,
			Stamp:           stamp,
			Business:        business,
			QueryTypes:      req.QueryTypes,
			ConsumerQueries: req.ConsumerQueries,
			BusinessQueries: req.BusinessQueries,
		}
		g.Go(func() error {
			results[i] = l.runProvider(ctx, task, customKey, req.TotalQueries(), tracker)
			return nil
		})
	}
	_ = g.Wait()

	out := &RunResult{RunID: runID, Results: results, ReportPaths: []string{}, Timestamp: started}
	for _, r := range results {
		if r.ReportPath != "" {
			out.ReportPaths = append(out.ReportPaths, r.ReportPath)
		}
	}
	log.Printf("[orchestrator] run %s finished: %d report(s)", runID, len(out.ReportPaths))
	return out, nil
}

// runProvider runs one provider's phases in order. A failed phase skips
// the ones after it.
func (l *Local) runProvider(ctx context.Context, task Task, customKey string, totalQueries int, tracker *progressTracker) types.ProviderResult {
	res := types.ProviderResult{Provider: task.Provider, TotalQueries: totalQueries}

	w, err := l.workers.For(task.Provider)
	if err != nil {
		res.Error = err.Error()
		tracker.advance(3, task.Provider+": no worker")
		return res
	}

	queriesKey := customKey
	if queriesKey == "" {
		queriesKey, err = w.Generate(ctx, task)
		if err != nil {
			log.Printf("[orchestrator] %s: generate failed: %v", task.Provider, err)
			res.Error = err.Error()
			tracker.advance(3, task.Provider+": query generation failed")
			return res
		}
	}
	res.Success = true
	res.QueriesPath = queriesKey
	tracker.advance(1, task.Provider+": queries ready")

	responsesKey, err := w.Collect(ctx, task, queriesKey)
	if err != nil {
		log.Printf("[orchestrator] %s: collect failed: %v", task.Provider, err)
		res.CollectError = err.Error()
		tracker.advance(2, task.Provider+": response collection failed")
		return res
	}
	res.ResponsesPath = responsesKey
	tracker.advance(1, task.Provider+": responses collected")

	reportKey, err := w.Report(ctx, task, responsesKey)
	if err != nil {
		log.Printf("[orchestrator] %s: report failed: %v", task.Provider, err)
		res.ReportError = err.Error()
		tracker.advance(1, task.Provider+": report generation failed")
		return res
	}
	res.ReportPath = reportKey
	tracker.advance(1, task.Provider+": report ready")
	return res
}

// saveCustomQueries writes the caller's questions once for every provider.
func (l *Local) saveCustomQueries(ctx context.Context, dir, runID, stamp string, custom *types.CustomQueries) (string, error) {
	records := make([][]string, 0, custom.Total())
	for _, q := range custom.Consumer {
		records = append(records, []string{q, types.QueryTypeConsumer})
	}
	for _, q := range custom.Business {
		records = append(records, []string{q, types.QueryTypeBusiness})
	}

	name := artifacts.CustomQueriesName(runID, stamp)
	if err := l.store.Write(ctx, dir, name, []byte(artifacts.RenderDelimitedTable(QueriesHeader, records))); err != nil {
		return "", fmt.Errorf("failed to save custom queries: %w", err)
	}
	return storage.JoinKey(dir, name), nil
}

// progressTracker maps finished phases onto 5-95%.
type progressTracker struct {
	mu     sync.Mutex
	done   int
	total  int
	report ProgressFunc
}

func (t *progressTracker) advance(steps int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += steps
	if t.done > t.total {
		t.done = t.total
	}
	pct := 95
	if t.total > 0 {
		pct = 5 + t.done*90/t.total
	}
	t.report(pct, message)
}
