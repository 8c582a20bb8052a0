// Package report composes unified test run reports from per-provider
// artifacts and writes the in-process worker's analysis and HTML output.
package report

import (
	"math"
	"sort"

	"github.com/jonathan/ai-visibility/internal/types"
)

// Totals are the run-level figures derived from provider reports.
type Totals struct {
	Providers        []string
	TotalQueries     int
	BusinessMentions int
	VisibilityScore  int
	Competitors      []types.Competitor
	CompetitorsFound int
}

// Aggregate merges provider reports into run totals: queries and mentions
// are summed, the score is the rounded mean, and competitors keep their
// highest per-provider count.
func Aggregate(reports []types.ProviderReport) Totals {
	t := Totals{
		Providers:   make([]string, 0, len(reports)),
		Competitors: []types.Competitor{},
	}
	scores := make([]int, 0, len(reports))
	lists := make([][]types.Competitor, 0, len(reports))
	for _, r := range reports {
		t.Providers = append(t.Providers, r.Provider)
		t.TotalQueries += r.Queries
		t.BusinessMentions += r.BusinessMentions
		scores = append(scores, r.VisibilityScore)
		lists = append(lists, r.TopCompetitors)
	}
	t.VisibilityScore = MeanScore(scores)
	t.Competitors = MergeCompetitors(lists...)
	t.CompetitorsFound = len(t.Competitors)
	return t
}

// MeanScore is the unweighted mean of scores rounded half up. An empty
// input scores zero.
func MeanScore(scores []int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return roundHalfUp(float64(sum) / float64(len(scores)))
}

// weightedMeanScore weights each provider's score by its query count.
// Reports use the unweighted mean. Without queries it falls back to
// MeanScore.
func weightedMeanScore(reports []types.ProviderReport) int {
	var weighted, queries float64
	scores := make([]int, 0, len(reports))
	for _, r := range reports {
		weighted += float64(r.VisibilityScore) * float64(r.Queries)
		queries += float64(r.Queries)
		scores = append(scores, r.VisibilityScore)
	}
	if queries == 0 {
		return MeanScore(scores)
	}
	return roundHalfUp(weighted / queries)
}

// MergeCompetitors combines competitor lists keeping the maximum count per
// name. The result is sorted by count descending, then name ascending.
func MergeCompetitors(lists ...[]types.Competitor) []types.Competitor {
	best := make(map[string]int)
	for _, list := range lists {
		for _, c := range list {
			if cur, ok := best[c.Name]; !ok || c.Count > cur {
				best[c.Name] = c.Count
			}
		}
	}

	out := make([]types.Competitor, 0, len(best))
	for name, count := range best {
		out = append(out, types.Competitor{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
