package report

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/types"
)

// Responses table columns.
const (
	ColumnQueryID           = "Query ID"
	ColumnQueryText         = "Query Text"
	ColumnResponseText      = "Response Text"
	ColumnBusinessMentioned = "Business_Mentioned"
)

// ResponsesHeader is the header of a collected responses table.
var ResponsesHeader = []string{ColumnQueryID, ColumnQueryText, ColumnResponseText}

// Response is one answered query.
type Response struct {
	QueryID      string
	QueryText    string
	ResponseText string
}

// Subject is the business under test and the names it competes with.
type Subject struct {
	Name        string
	Aliases     []string
	Competitors []string
}

// AnalyzedResponse is a response annotated with the names it mentions.
type AnalyzedResponse struct {
	Response
	BusinessMentioned    bool
	CompetitorsMentioned []string
}

// Analysis is one provider's visibility result.
type Analysis struct {
	Provider          string
	Business          string
	GeneratedAt       time.Time
	TotalQueries      int
	BusinessMentions  int
	VisibilityPercent float64
	Competitors       []types.Competitor
	Rows              []AnalyzedResponse
}

// ResponsesFromRows reads responses out of a parsed responses table.
func ResponsesFromRows(rows []artifacts.Row) []Response {
	out := make([]Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, Response{
			QueryID:      r[ColumnQueryID],
			QueryText:    r[ColumnQueryText],
			ResponseText: r[ColumnResponseText],
		})
	}
	return out
}

// ResponseRecords renders responses as records matching ResponsesHeader.
func ResponseRecords(responses []Response) [][]string {
	out := make([][]string, 0, len(responses))
	for _, r := range responses {
		out = append(out, []string{r.QueryID, r.QueryText, r.ResponseText})
	}
	return out
}

// Analyze counts how often the business and each competitor are named.
// Matching is case-insensitive substring matching on the response text;
// each response counts at most once per name.
func Analyze(provider string, responses []Response, subject Subject) *Analysis {
	a := &Analysis{
		Provider:     provider,
		Business:     subject.Name,
		GeneratedAt:  time.Now(),
		TotalQueries: len(responses),
		Competitors:  []types.Competitor{},
	}

	businessNames := append([]string{subject.Name}, subject.Aliases...)
	counts := make(map[string]int)
	for _, r := range responses {
		text := strings.ToLower(r.ResponseText)
		row := AnalyzedResponse{Response: r, BusinessMentioned: mentionsAny(text, businessNames)}
		if row.BusinessMentioned {
			a.BusinessMentions++
		}
		for _, c := range subject.Competitors {
			if mentionsAny(text, []string{c}) {
				row.CompetitorsMentioned = append(row.CompetitorsMentioned, c)
				counts[c]++
			}
		}
		a.Rows = append(a.Rows, row)
	}

	if a.TotalQueries > 0 {
		a.VisibilityPercent = float64(a.BusinessMentions) * 100 / float64(a.TotalQueries)
	}
	for name, n := range counts {
		a.Competitors = append(a.Competitors, types.Competitor{Name: name, Count: n})
	}
	sort.Slice(a.Competitors, func(i, j int) bool {
		if a.Competitors[i].Count != a.Competitors[j].Count {
			return a.Competitors[i].Count > a.Competitors[j].Count
		}
		return a.Competitors[i].Name < a.Competitors[j].Name
	})
	return a
}

// Table renders the analysis as an analysed responses table.
func (a *Analysis) Table() (header []string, records [][]string) {
	header = append(append([]string{}, ResponsesHeader...), ColumnBusinessMentioned, CompetitorsColumn)
	for _, r := range a.Rows {
		records = append(records, []string{
			r.QueryID,
			r.QueryText,
			r.ResponseText,
			strconv.FormatBool(r.BusinessMentioned),
			strings.Join(r.CompetitorsMentioned, "; "),
		})
	}
	return header, records
}

func mentionsAny(lowerText string, names []string) bool {
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && strings.Contains(lowerText, n) {
			return true
		}
	}
	return false
}
