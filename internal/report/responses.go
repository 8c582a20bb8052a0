package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/storage"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// CompetitorsColumn marks an analysed responses table.
const CompetitorsColumn = "Competitors_Mentioned"

// combinedHeader is the header of a multi-provider CSV export.
var combinedHeader = []string{"Provider", "Query ID", "Query Text", "Response Text"}

// Download is a file served to the caller as an attachment.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ProviderRows is one provider's responses in a JSON export.
type ProviderRows struct {
	Provider string          `json:"provider"`
	Data     []artifacts.Row `json:"data"`
}

// Responses returns the rows of the first responses table of the report,
// optionally restricted to provider. When the analysed sibling exists and
// carries competitor mentions, its rows are returned instead.
func (b *Builder) Responses(ctx context.Context, id, provider string) ([]artifacts.Row, error) {
	files, err := b.responseFiles(ctx, id, provider)
	if err != nil {
		return nil, err
	}
	first := files[0]

	analysisName := artifacts.AnalysisName(first.Name)
	if data, err := b.store.Read(ctx, first.BusinessDir, analysisName); err == nil {
		table := artifacts.ParseTable(string(data))
		if table.HasColumn(CompetitorsColumn) && len(table.Rows) > 0 {
			return table.Rows, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[report] reading %s: %v", analysisName, err)
	}

	data, err := b.store.Read(ctx, first.BusinessDir, first.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", first.Key(), err)
	}
	rows := artifacts.ParseDelimitedTable(string(data))
	if rows == nil {
		rows = []artifacts.Row{}
	}
	return rows, nil
}

// Export bundles every responses table of the report. A single CSV is
// passed through unchanged; several are combined with a leading Provider
// column. JSON groups the parsed rows by provider.
func (b *Builder) Export(ctx context.Context, id, format string) (*Download, error) {
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatJSON {
		return nil, &FormatError{Format: format}
	}

	files, err := b.responseFiles(ctx, id, "")
	if err != nil {
		return nil, err
	}
	contents := make([][]byte, len(files))
	for i, f := range files {
		data, err := b.store.Read(ctx, f.BusinessDir, f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Key(), err)
		}
		contents[i] = data
	}

	if format == FormatJSON {
		out := make([]ProviderRows, len(files))
		for i, f := range files {
			rows := artifacts.ParseDelimitedTable(string(contents[i]))
			if rows == nil {
				rows = []artifacts.Row{}
			}
			out[i] = ProviderRows{Provider: f.Provider, Data: rows}
		}
		body, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode responses: %w", err)
		}
		return &Download{
			Filename:    fmt.Sprintf("ai-responses-%s.json", id),
			ContentType: "application/json",
			Body:        body,
		}, nil
	}

	if len(files) == 1 {
		return &Download{Filename: files[0].Name, ContentType: "text/csv", Body: contents[0]}, nil
	}

	var records [][]string
	for i, f := range files {
		for _, rec := range artifacts.ParseTable(string(contents[i])).Records() {
			records = append(records, append([]string{f.Provider}, rec...))
		}
	}
	return &Download{
		Filename:    fmt.Sprintf("ai-responses-combined-%s.csv", id),
		ContentType: "text/csv",
		Body:        []byte(artifacts.RenderDelimitedTable(combinedHeader, records)),
	}, nil
}

// HTML returns a provider's HTML report. Without a provider the report
// stamped exactly at the report timestamp is preferred.
func (b *Builder) HTML(ctx context.Context, id, provider string) (*Download, error) {
	set, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	a, ok := pick(set, artifacts.KindReport, provider)
	if !ok {
		return nil, fmt.Errorf("%s has no HTML report: %w", id, correlation.ErrNotFound)
	}
	data, err := b.store.Read(ctx, a.BusinessDir, a.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a.Key(), err)
	}
	return &Download{Filename: a.Name, ContentType: "text/html; charset=utf-8", Body: data}, nil
}

// Queries returns a provider's generated query file, or the run's shared
// custom query file when the provider generated none.
func (b *Builder) Queries(ctx context.Context, id, provider string) (*Download, error) {
	set, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	a, ok := pick(set, artifacts.KindQueries, provider)
	if !ok && provider != "" {
		a, ok = pick(set, artifacts.KindQueries, artifacts.SharedProvider)
	}
	if !ok {
		return nil, fmt.Errorf("%s has no query file: %w", id, correlation.ErrNotFound)
	}
	data, err := b.store.Read(ctx, a.BusinessDir, a.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", a.Key(), err)
	}
	contentType := "text/plain; charset=utf-8"
	if a.Ext == "csv" {
		contentType = "text/csv"
	}
	return &Download{Filename: a.Name, ContentType: contentType, Body: data}, nil
}

// responseFiles lists the report's responses tables in name order.
func (b *Builder) responseFiles(ctx context.Context, id, provider string) ([]artifacts.Artifact, error) {
	set, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	var files []artifacts.Artifact
	for _, a := range set.Artifacts {
		if a.Kind != artifacts.KindResponses || a.Ext != "csv" {
			continue
		}
		if provider != "" && a.Provider != provider {
			continue
		}
		files = append(files, a)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrNoResponses)
	}
	return files, nil
}

func pick(set *correlation.ArtifactSet, kind artifacts.Kind, provider string) (artifacts.Artifact, bool) {
	candidates := set.OfKind(kind, provider)
	if len(candidates) == 0 {
		return artifacts.Artifact{}, false
	}
	for _, a := range candidates {
		if a.Timestamp == set.Timestamp {
			return a, true
		}
	}
	return candidates[0], true
}
