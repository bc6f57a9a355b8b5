// Package llm provides the Gemini-backed capabilities of the pipeline: image
// vectorization and prompt-to-program planning.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is the last fallback when a tier has no model
	TierLite ModelTier = "lite"
	// TierStandard is for contour extraction from images
	TierStandard ModelTier = "standard"
	// TierAdvanced is for planning parametric programs
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Config selects the model per tier and the sampling settings.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// Temperature is kept low; answers are parsed, not read.
	Temperature float32
	// MaxImageBytes rejects images before they are uploaded. Zero disables the check.
	MaxImageBytes int
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:      ProviderGemini,
		Temperature:   0.1,
		MaxImageBytes: 20 << 20,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return "" // No model configured
}

// WithModel returns a copy of c using model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}
