package report

import (
	"context"
	"fmt"
	"log"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/storage"
	"github.com/jonathan/ai-visibility/internal/types"
)

// StatusCompleted is the status of every report built from artifacts.
const StatusCompleted = "completed"

// Builder derives test run reports from the artifact store on demand.
// Nothing it produces is persisted.
type Builder struct {
	store    storage.Store
	resolver *correlation.Resolver
}

// NewBuilder creates a report builder.
func NewBuilder(store storage.Store, resolver *correlation.Resolver) *Builder {
	return &Builder{store: store, resolver: resolver}
}

// List returns every test run report, most recent first.
func (b *Builder) List(ctx context.Context) ([]types.TestRunReport, error) {
	groups, err := b.resolver.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	reports := make([]types.TestRunReport, 0, len(groups))
	for _, g := range groups {
		providers := b.providerReports(ctx, g.Reports)
		if len(providers) == 0 {
			continue
		}
		reports = append(reports, compose(g.ID, g.BusinessDir, g.Timestamp, g.RunID, providers))
	}
	return reports, nil
}

// Get returns the report with id.
func (b *Builder) Get(ctx context.Context, id string) (*types.TestRunReport, error) {
	set, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	providers := b.providerReports(ctx, set.OfKind(artifacts.KindReport, ""))
	if len(providers) == 0 {
		return nil, fmt.Errorf("%s has no readable reports: %w", id, correlation.ErrNotFound)
	}
	r := compose(id, set.BusinessDir, set.Timestamp, set.RunID, providers)
	return &r, nil
}

// providerReports reads and summarises each HTML report. Unreadable
// reports are logged and skipped.
func (b *Builder) providerReports(ctx context.Context, list []artifacts.Artifact) []types.ProviderReport {
	out := make([]types.ProviderReport, 0, len(list))
	for _, a := range list {
		data, err := b.store.Read(ctx, a.BusinessDir, a.Name)
		if err != nil {
			log.Printf("[report] skipping %s: %v", a.Key(), err)
			continue
		}
		m := artifacts.ExtractSummaryMetrics(string(data))
		out = append(out, types.ProviderReport{
			Provider:         a.Provider,
			Queries:          m.TotalQueries,
			BusinessMentions: m.BusinessMentions,
			CompetitorsFound: m.CompetitorsFound,
			VisibilityScore:  m.VisibilityScore,
			TopCompetitors:   m.TopCompetitors,
			HTMLReportPath:   a.Key(),
		})
	}
	return out
}

func compose(id, businessDir, stamp, runID string, providers []types.ProviderReport) types.TestRunReport {
	t := Aggregate(providers)
	return types.TestRunReport{
		ID:               id,
		BusinessName:     artifacts.BusinessName(businessDir),
		Timestamp:        artifacts.ISOFromStamp(stamp),
		RunID:            runID,
		Providers:        t.Providers,
		TotalQueries:     t.TotalQueries,
		BusinessMentions: t.BusinessMentions,
		VisibilityScore:  t.VisibilityScore,
		Competitors:      t.Competitors,
		CompetitorsFound: t.CompetitorsFound,
		Status:           StatusCompleted,
		HasAnalysis:      true,
		ProviderReports:  providers,
	}
}
