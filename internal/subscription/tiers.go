// Package subscription holds the plan tiers and their monthly test limits.
package subscription

import (
	"fmt"
	"strings"
)

// Tier names.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Unlimited marks a limit that does not apply.
const Unlimited = -1

// Features are the capabilities a tier unlocks.
type Features struct {
	BasicReports       bool `json:"basicReports"`
	CompetitorAnalysis bool `json:"competitorAnalysis"`
	AdvancedAnalytics  bool `json:"advancedAnalytics"`
	APIAccess          bool `json:"apiAccess"`
	PrioritySupport    bool `json:"prioritySupport"`
	CustomQueries      bool `json:"customQueries"`
}

// Limits are the quotas of a tier; Unlimited disables a quota.
type Limits struct {
	MaxTestsPerMonth  int      `json:"maxTestsPerMonth"`
	MaxQueriesPerTest int      `json:"maxQueriesPerTest"`
	MaxCompetitors    int      `json:"maxCompetitors"`
	Features          Features `json:"features"`
}

var tiers = map[string]Limits{
	TierFree: {
		MaxTestsPerMonth:  5,
		MaxQueriesPerTest: 10,
		MaxCompetitors:    3,
		Features:          Features{BasicReports: true, CompetitorAnalysis: true},
	},
	TierPro: {
		MaxTestsPerMonth:  50,
		MaxQueriesPerTest: 50,
		MaxCompetitors:    10,
		Features: Features{
			BasicReports: true, CompetitorAnalysis: true, AdvancedAnalytics: true,
			PrioritySupport: true, CustomQueries: true,
		},
	},
	TierEnterprise: {
		MaxTestsPerMonth:  Unlimited,
		MaxQueriesPerTest: Unlimited,
		MaxCompetitors:    Unlimited,
		Features: Features{
			BasicReports: true, CompetitorAnalysis: true, AdvancedAnalytics: true,
			APIAccess: true, PrioritySupport: true, CustomQueries: true,
		},
	},
}

// Normalize maps unknown or empty tiers to free.
func Normalize(tier string) string {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if _, ok := tiers[tier]; ok {
		return tier
	}
	return TierFree
}

// LimitsFor returns the limits of tier, falling back to free.
func LimitsFor(tier string) Limits {
	return tiers[Normalize(tier)]
}

// Decision is the answer to "may this user start another test".
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanRunTest reports whether a user on tier who already ran used tests
// this month may start another.
func CanRunTest(used int, tier string) Decision {
	tier = Normalize(tier)
	limits := tiers[tier]
	if limits.MaxTestsPerMonth == Unlimited {
		return Decision{Allowed: true}
	}
	if used >= limits.MaxTestsPerMonth {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("You've reached your %s tier limit of %d tests per month", tier, limits.MaxTestsPerMonth),
		}
	}
	return Decision{Allowed: true}
}

// TestsRemaining returns how many tests are left this month, or Unlimited.
func TestsRemaining(used int, tier string) int {
	limits := LimitsFor(tier)
	if limits.MaxTestsPerMonth == Unlimited {
		return Unlimited
	}
	if left := limits.MaxTestsPerMonth - used; left > 0 {
		return left
	}
	return 0
}

// CheckRequest rejects run sizes the tier does not allow. queries is the
// number of questions per provider.
func CheckRequest(tier string, queries int, custom bool) error {
	tier = Normalize(tier)
	limits := tiers[tier]
	if custom && !limits.Features.CustomQueries {
		return &LimitError{Tier: tier, Message: "custom queries are not available"}
	}
	if limits.MaxQueriesPerTest != Unlimited && queries > limits.MaxQueriesPerTest {
		return &LimitError{Tier: tier, Message: fmt.Sprintf("at most %d queries per test", limits.MaxQueriesPerTest)}
	}
	return nil
}

// LimitError reports a request beyond the user's tier.
type LimitError struct {
	Tier    string
	Message string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s tier: %s", e.Tier, e.Message)
}

// DisplayName capitalises a tier for display.
func DisplayName(tier string) string {
	tier = Normalize(tier)
	return strings.ToUpper(tier[:1]) + tier[1:]
}
