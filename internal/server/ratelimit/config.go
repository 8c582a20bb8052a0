package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits one endpoint. A Path ending in "/" matches every path below it.
type Rule struct {
	Path   string
	Method string
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // bucket capacity; defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration // buckets unused this long are dropped
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Rules           []Rule
}

// DefaultConfig returns the built-in limits.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		Rules:           DefaultRules(),
	}
}

// LoadConfig reads RATE_LIMIT_* environment variables over DefaultConfig.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.DefaultLimit = getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.DefaultWindow = getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow)
	cfg.CleanupInterval = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.Whitelist = parseIPList(os.Getenv("RATE_LIMIT_WHITELIST"))
	cfg.Blacklist = parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST"))
	if n := getEnvInt("RATE_LIMIT_TEST_RUNS_PER_HOUR", 0); n > 0 {
		for i := range cfg.Rules {
			if cfg.Rules[i].Path == "/api/test/run" {
				cfg.Rules[i].Limit = n
			}
		}
	}
	return cfg
}

// DefaultRules returns the per-endpoint limits. Reads fall through to the
// default limit; /health is never limited.
func DefaultRules() []Rule {
	return []Rule{
		// test runs call paid AI providers
		{Path: "/api/test/run", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},

		{Path: "/api/admin/login", Method: "POST", Limit: 10, Window: time.Minute, Burst: 5},
		{Path: "/api/deep-dive/submit", Method: "POST", Limit: 20, Window: time.Hour, Burst: 5},

		{Path: "/api/config", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/test/usage", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/reports/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/deep-dive/admin/", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/api/deep-dive/admin/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
	}
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
