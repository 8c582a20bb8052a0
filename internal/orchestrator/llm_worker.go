package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/llm"
	"github.com/jonathan/ai-visibility/internal/prompts"
	"github.com/jonathan/ai-visibility/internal/report"
	"github.com/jonathan/ai-visibility/internal/storage"
)

// Query file columns.
const (
	ColumnQuery     = "Query"
	ColumnQueryType = "Query_Type"
)

// QueriesHeader is the header of generated and custom query files.
var QueriesHeader = []string{ColumnQuery, ColumnQueryType}

// LLMWorker runs the pipeline in-process. One language model stands in for
// every provider; each answer is prompted as the named assistant. Every
// file of a run carries the run's start stamp.
type LLMWorker struct {
	client llm.Client
	store  storage.Store
}

// NewLLMWorker creates an in-process worker.
func NewLLMWorker(client llm.Client, store storage.Store) *LLMWorker {
	return &LLMWorker{client: client, store: store}
}

type queryList struct {
	Queries []string `json:"queries"`
}

// Generate implements Worker.
func (w *LLMWorker) Generate(ctx context.Context, task Task) (string, error) {
	if task.Business == nil {
		return "", fmt.Errorf("business profile is required to generate queries")
	}

	var records [][]string
	for _, queryType := range task.QueryTypes {
		count := task.Count(queryType)
		if count <= 0 {
			continue
		}
		queries, err := w.generate(ctx, task, queryType, count)
		if err != nil {
			return "", err
		}
		for _, q := range queries {
			records = append(records, []string{q, queryType})
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no queries generated for %s", task.Provider)
	}

	name := artifacts.QueriesName(task.Provider, task.RunID, task.Stamp)
	if err := w.store.Write(ctx, task.BusinessDir, name, []byte(artifacts.RenderDelimitedTable(QueriesHeader, records))); err != nil {
		return "", fmt.Errorf("failed to save queries: %w", err)
	}
	log.Printf("[orchestrator] %s: generated %d queries", task.Provider, len(records))
	return storage.JoinKey(task.BusinessDir, name), nil
}

func (w *LLMWorker) generate(ctx context.Context, task Task, queryType string, count int) ([]string, error) {
	key, err := prompts.QueriesKey(queryType)
	if err != nil {
		return nil, err
	}
	b := task.Business
	instructions, err := prompts.Render(key, map[string]string{
		"Count":        strconv.Itoa(count),
		"BusinessName": b.Name,
		"URL":          b.URL,
		"Location":     b.Location,
	})
	if err != nil {
		return nil, err
	}

	prompt := llm.BuildStructuredPrompt(llm.QueryListSchema(instructions), fmt.Sprintf("Business: %s\nWebsite: %s\nLocation: %s", b.Name, b.URL, b.Location))
	text, err := w.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s queries: %w", queryType, err)
	}

	var list queryList
	if err := llm.DecodeJSON(text, &list); err != nil {
		return nil, err
	}
	queries := make([]string, 0, count)
	for _, q := range list.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
		if len(queries) == count {
			break
		}
	}
	return queries, nil
}

// Collect implements Worker.
func (w *LLMWorker) Collect(ctx context.Context, task Task, queriesKey string) (string, error) {
	data, err := storage.ReadKey(ctx, w.store, queriesKey)
	if err != nil {
		return "", fmt.Errorf("failed to read queries: %w", err)
	}
	rows := artifacts.ParseDelimitedTable(string(data))
	if len(rows) == 0 {
		return "", fmt.Errorf("query file %s is empty", queriesKey)
	}

	location := ""
	if task.Business != nil {
		location = task.Business.Location
	}

	responses := make([]report.Response, 0, len(rows))
	for i, row := range rows {
		query := row[ColumnQuery]
		prompt, err := prompts.Render(prompts.KeyAnswerQuery, map[string]string{
			"Assistant": report.ProviderTitle(task.Provider),
			"Location":  location,
			"Query":     query,
		})
		if err != nil {
			return "", err
		}
		answer, err := w.client.GenerateContent(ctx, prompt, llm.TierLite)
		if err != nil {
			return "", fmt.Errorf("query %d: %w", i+1, err)
		}
		responses = append(responses, report.Response{
			QueryID:      strconv.Itoa(i + 1),
			QueryText:    query,
			ResponseText: strings.TrimSpace(answer),
		})
	}

	name := artifacts.ResponsesName(task.Provider, task.RunID, task.Stamp)
	body := artifacts.RenderDelimitedTable(report.ResponsesHeader, report.ResponseRecords(responses))
	if err := w.store.Write(ctx, task.BusinessDir, name, []byte(body)); err != nil {
		return "", fmt.Errorf("failed to save responses: %w", err)
	}
	log.Printf("[orchestrator] %s: collected %d responses", task.Provider, len(responses))
	return storage.JoinKey(task.BusinessDir, name), nil
}

// Report implements Worker. It writes the analysed responses next to the
// responses file and the HTML report.
func (w *LLMWorker) Report(ctx context.Context, task Task, responsesKey string) (string, error) {
	data, err := storage.ReadKey(ctx, w.store, responsesKey)
	if err != nil {
		return "", fmt.Errorf("failed to read responses: %w", err)
	}

	subject := report.Subject{Name: artifacts.BusinessName(task.BusinessDir)}
	if b := task.Business; b != nil {
		subject = report.Subject{Name: b.Name, Aliases: b.Aliases, Competitors: b.Competitors}
	}
	analysis := report.Analyze(task.Provider, report.ResponsesFromRows(artifacts.ParseDelimitedTable(string(data))), subject)

	scope, responsesName := storage.SplitKey(responsesKey)
	header, records := analysis.Table()
	if err := w.store.Write(ctx, scope, artifacts.AnalysisName(responsesName), []byte(artifacts.RenderDelimitedTable(header, records))); err != nil {
		return "", fmt.Errorf("failed to save analysis: %w", err)
	}

	html, err := report.RenderHTML(analysis)
	if err != nil {
		return "", err
	}
	name := artifacts.ReportName(task.Provider, task.RunID, task.Stamp)
	if err := w.store.Write(ctx, scope, name, html); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return storage.JoinKey(scope, name), nil
}
