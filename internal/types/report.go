package types

// Competitor is a business named in AI responses other than the tested one.
type Competitor struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ProviderReport is the summary extracted from one provider's HTML report.
type ProviderReport struct {
	Provider         string       `json:"provider"`
	Queries          int          `json:"queries"`
	BusinessMentions int          `json:"businessMentions"`
	CompetitorsFound int          `json:"competitorsFound"`
	VisibilityScore  int          `json:"visibilityScore"`
	TopCompetitors   []Competitor `json:"topCompetitors,omitempty"`
	HTMLReportPath   string       `json:"htmlReportPath"`
}

// TestRunReport is the unified view of one test run across providers.
// It is derived from artifacts on every request and never persisted.
type TestRunReport struct {
	ID               string           `json:"id"`
	BusinessName     string           `json:"businessName"`
	Timestamp        string           `json:"timestamp"`
	RunID            string           `json:"testRunId,omitempty"`
	Providers        []string         `json:"providers"`
	TotalQueries     int              `json:"totalQueries"`
	BusinessMentions int              `json:"businessMentions"`
	VisibilityScore  int              `json:"visibilityScore"`
	Competitors      []Competitor     `json:"competitors"`
	CompetitorsFound int              `json:"competitorsFound"`
	Status           string           `json:"status"`
	HasAnalysis      bool             `json:"hasAnalysis"`
	ProviderReports  []ProviderReport `json:"providerReports"`
}
