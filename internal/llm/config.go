// Package llm provides the language model client used by the in-process
// provider worker, with models chosen per task tier.
package llm

import "os"

// ModelTier represents the capability level a task needs.
type ModelTier string

const (
	// TierLite answers individual customer questions.
	TierLite ModelTier = "lite"
	// TierStandard generates query sets as structured output.
	TierStandard ModelTier = "standard"
	// TierAdvanced is reserved for longer analytical prompts.
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM backend.
type Provider string

// ProviderGemini is the Google Gemini backend.
const ProviderGemini Provider = "gemini"

// Config maps tiers to model names.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// ConfigFromEnv returns DefaultConfig with per-tier overrides from
// GEMINI_MODEL_LITE, GEMINI_MODEL_STANDARD and GEMINI_MODEL_ADVANCED.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	overrides := map[ModelTier]string{
		TierLite:     "GEMINI_MODEL_LITE",
		TierStandard: "GEMINI_MODEL_STANDARD",
		TierAdvanced: "GEMINI_MODEL_ADVANCED",
	}
	for tier, key := range overrides {
		if model := os.Getenv(key); model != "" {
			cfg = cfg.WithModel(tier, model)
		}
	}
	return cfg
}

// GetModel returns the model for tier, falling back to the standard and
// then the lite model. It returns "" when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model, ok := c.Models[t]; ok {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of the config with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := &Config{Provider: c.Provider, Models: make(map[ModelTier]string, len(c.Models)+1)}
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return next
}
