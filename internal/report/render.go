package report

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/jonathan/ai-visibility/internal/types"
)

var providerTitles = map[string]string{
	types.ProviderOpenAI:     "OpenAI",
	types.ProviderClaude:     "Claude",
	types.ProviderGemini:     "Gemini",
	types.ProviderCopilot:    "Copilot",
	types.ProviderPerplexity: "Perplexity",
}

// ProviderTitle is the display name of a provider. It is always a single
// word so report headings stay machine-readable.
func ProviderTitle(provider string) string {
	if t, ok := providerTitles[provider]; ok {
		return t
	}
	if provider == "" {
		return "Unknown"
	}
	return strings.ToUpper(provider[:1]) + strings.Join(strings.Fields(provider[1:]), "")
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AI Visibility Report - {{.Business}}</title>
<style>
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2rem; color: #1f2937; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { border: 1px solid #e5e7eb; padding: 0.5rem; text-align: left; vertical-align: top; }
td.rank { width: 3rem; text-align: center; }
.mentioned { color: #047857; font-weight: 600; }
</style>
</head>
<body>
<h1>AI Visibility Report: {{.Business}}</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>

<h3>{{.Title}} AI Engine</h3>
<div class="summary">
<p><strong>Total Queries:</strong> {{.TotalQueries}}</p>
<p><strong>Business Found:</strong> {{.BusinessMentions}} times ({{printf "%.1f" .VisibilityPercent}}%)</p>
</div>

<h2>Competitor Ranking</h2>
<table class="competitors">
<thead><tr><th>Rank</th><th>Competitor</th><th>Mentions</th></tr></thead>
<tbody>
{{range $i, $c := .Competitors}}<tr><td class="rank">{{inc $i}}</td><td>{{$c.Name}}</td><td>{{$c.Count}}</td></tr>
{{end}}</tbody>
</table>

<h2>Responses</h2>
<table class="responses">
<thead><tr><th>ID</th><th>Query</th><th>Response</th><th>Business Mentioned</th><th>Competitors</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.QueryID}}</td><td>{{.QueryText}}</td><td>{{.ResponseText}}</td><td{{if .BusinessMentioned}} class="mentioned"{{end}}>{{if .BusinessMentioned}}Yes{{else}}No{{end}}</td><td>{{join .CompetitorsMentioned ", "}}</td></tr>
{{end}}</tbody>
</table>
</body>
</html>
`

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}).Parse(reportTemplate))

type reportView struct {
	*Analysis
	Title string
}

// RenderHTML writes the analysis as an HTML report whose summary lines and
// competitor table can be read back by artifacts.ExtractSummaryMetrics.
func RenderHTML(a *Analysis) ([]byte, error) {
	if a == nil {
		return nil, &RenderError{Message: "analysis is nil"}
	}
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, reportView{Analysis: a, Title: ProviderTitle(a.Provider)}); err != nil {
		return nil, &RenderError{Message: "failed to execute report template", Cause: err}
	}
	return buf.Bytes(), nil
}
