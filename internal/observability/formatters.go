// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/ai-visibility/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintJob outputs a run's state and, once it has them, the per-provider results.
func (p *Printer) PrintJob(job *types.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Status:   %s (%d%%)\n", job.Status, job.Progress))
	if job.Message != "" {
		sb.WriteString(fmt.Sprintf("Message:  %s\n", job.Message))
	}
	if job.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:      %s\n", job.RunID))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", job.Error))
	}

	if len(job.Results) > 0 {
		sb.WriteString("\nProviders:\n")
		for _, r := range job.Results {
			mark := "✓"
			if !r.Success {
				mark = "✗"
			}
			sb.WriteString(fmt.Sprintf("  %s %-12s %d queries\n", mark, r.Provider, r.TotalQueries))
			if r.Error != "" {
				sb.WriteString(fmt.Sprintf("      %s\n", r.Error))
			}
		}
	}

	p.printBox("TEST RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReport outputs the unified summary of one test run.
func (p *Printer) PrintReport(report *types.TestRunReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Business:   %s\n", report.BusinessName))
	sb.WriteString(fmt.Sprintf("Timestamp:  %s\n", report.Timestamp))
	sb.WriteString(fmt.Sprintf("Providers:  %s\n", strings.Join(report.Providers, ", ")))
	sb.WriteString(fmt.Sprintf("Queries:    %d\n", report.TotalQueries))
	sb.WriteString(fmt.Sprintf("Mentions:   %d\n", report.BusinessMentions))
	sb.WriteString(fmt.Sprintf("Visibility: %d%%\n", report.VisibilityScore))

	if len(report.ProviderReports) > 0 {
		sb.WriteString("\nBy provider:\n")
		for _, pr := range report.ProviderReports {
			sb.WriteString(fmt.Sprintf("  • %-12s %3d%% (%d/%d)\n", pr.Provider, pr.VisibilityScore, pr.BusinessMentions, pr.Queries))
		}
	}

	if len(report.Competitors) > 0 {
		sb.WriteString("\nTop competitors:\n")
		count := min(len(report.Competitors), maxItemsToShow)
		for i := 0; i < count; i++ {
			c := report.Competitors[i]
			sb.WriteString(fmt.Sprintf("  %d. %s (%d)\n", i+1, c.Name, c.Count))
		}
		if len(report.Competitors) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Competitors)-maxItemsToShow))
		}
	}

	p.printBox("VISIBILITY REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintReportList outputs one line per report, newest first as given.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintReportList(reports []types.TestRunReport) {
	if len(reports) == 0 {
		fmt.Fprintln(p.out, "No reports found.")
		return
	}

	var sb strings.Builder
	for i, r := range reports {
		sb.WriteString(fmt.Sprintf("%s\n", r.ID))
		sb.WriteString(fmt.Sprintf("  %d%% visibility, %d queries, %s", r.VisibilityScore, r.TotalQueries, strings.Join(r.Providers, ", ")))
		if i < len(reports)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(fmt.Sprintf("REPORTS (%d)", len(reports)), sb.String())
}

// PrintDeepDives outputs deep-dive requests with their status.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDeepDives(requests []types.DeepDiveRequest) {
	if len(requests) == 0 {
		fmt.Fprintln(p.out, "No deep dive requests.")
		return
	}

	var sb strings.Builder
	for i, r := range requests {
		sb.WriteString(fmt.Sprintf("%s  [%s]\n", r.ID, r.Status))
		sb.WriteString(fmt.Sprintf("  %s, %d queries on %s", r.BusinessName, r.QueryCount, strings.Join(r.AIEngines, ", ")))
		if i < len(requests)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("DEEP DIVE REQUESTS", sb.String())
}
