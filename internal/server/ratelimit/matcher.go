package ratelimit

import "strings"

// healthRule marks the health check as unlimited.
var healthRule = Rule{Path: "/health", Method: "GET"}

// Match returns the rule for a request. Exact paths win over prefixes and
// nil means the default limit applies.
func Match(path, method string, rules []Rule) *Rule {
	if path == healthRule.Path && method == healthRule.Method {
		return &healthRule
	}

	var prefix *Rule
	for i := range rules {
		r := &rules[i]
		if r.Method != method {
			continue
		}
		if r.Path == path {
			return r
		}
		if prefix == nil && strings.HasSuffix(r.Path, "/") && strings.HasPrefix(path, r.Path) {
			prefix = r
		}
	}
	return prefix
}
