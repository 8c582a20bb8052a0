package artifacts

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/ai-visibility/internal/types"
)

var (
	totalQueriesPattern   = regexp.MustCompile(`<strong>Total Queries:</strong>\s*(\d+)`)
	businessFoundPattern  = regexp.MustCompile(`(?s)<strong>Business Found:</strong>.*?(\d+)\s*times.*?\(([\d.]+)%\)`)
	engineHeadingPattern  = regexp.MustCompile(`(?i)^(\w+)\s+AI\s+Engine$`)
	competitorRankPattern = regexp.MustCompile(`^\d+$`)
)

// SummaryMetrics are the figures a provider's HTML report states.
// Fields whose pattern did not match keep their zero value.
type SummaryMetrics struct {
	TotalQueries     int
	BusinessMentions int
	VisibilityScore  int
	Providers        []string
	TopCompetitors   []types.Competitor
	CompetitorsFound int
}

// ExtractSummaryMetrics pulls summary figures out of an HTML report.
// It is best-effort and never fails: unmatched patterns are left at zero.
func ExtractSummaryMetrics(html string) SummaryMetrics {
	var m SummaryMetrics

	if match := totalQueriesPattern.FindStringSubmatch(html); match != nil {
		m.TotalQueries, _ = strconv.Atoi(match[1])
	}
	if match := businessFoundPattern.FindStringSubmatch(html); match != nil {
		m.BusinessMentions, _ = strconv.Atoi(match[1])
		if pct, err := strconv.ParseFloat(match[2], 64); err == nil {
			m.VisibilityScore = int(math.Floor(pct + 0.5))
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return m
	}

	doc.Find("h3").Each(func(_ int, s *goquery.Selection) {
		if match := engineHeadingPattern.FindStringSubmatch(strings.TrimSpace(s.Text())); match != nil {
			m.Providers = append(m.Providers, strings.ToLower(match[1]))
		}
	})

	doc.Find("tr").Each(func(_ int, s *goquery.Selection) {
		cells := s.ChildrenFiltered("td")
		if cells.Length() != 3 || !cells.First().HasClass("rank") {
			return
		}
		rank := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		count, err := strconv.Atoi(strings.TrimSpace(cells.Eq(2).Text()))
		if !competitorRankPattern.MatchString(rank) || name == "" || err != nil {
			return
		}
		m.TopCompetitors = append(m.TopCompetitors, types.Competitor{Name: name, Count: count})
	})
	m.CompetitorsFound = len(m.TopCompetitors)

	return m
}
