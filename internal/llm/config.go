package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider selects the request dialect used by a Client.
type Provider string

const (
	// ProviderOpenAI enforces the schema natively through response_format.
	ProviderOpenAI Provider = "openai"
	// ProviderHFRouter describes the schema in the system instruction.
	ProviderHFRouter Provider = "hf-router"
)

// Providers lists every supported provider, in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderHFRouter}
}

// ParseProvider accepts a provider name case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderHFRouter, "hf", "huggingface":
		return ProviderHFRouter, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// DefaultEndpoint is the chat-completions base URL for a provider.
func (p Provider) DefaultEndpoint() string {
	switch p {
	case ProviderHFRouter:
		return "https://router.huggingface.co/v1"
	default:
		return "https://api.openai.com/v1"
	}
}

// Config holds all configuration for the LLM client.
type Config struct {
	Provider    Provider `yaml:"provider"`
	Endpoint    string   `yaml:"endpoint"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"-"`
	TimeoutMs   int      `yaml:"timeout_ms"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float64  `yaml:"temperature"`
	LogCalls    bool     `yaml:"log_calls"`
}

// DefaultConfig returns a Config with no model and no credential; both
// must be supplied before a client can be built.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		TimeoutMs:   120000,
		MaxTokens:   2048,
		Temperature: 0,
	}
}

// LoadConfig reads LLM configuration from environment variables, falling
// back to defaults for any unset values.
func LoadConfig() Config {
	cfg := DefaultConfig()
	ApplyEnv(&cfg)
	return cfg
}

// ApplyEnv overlays CLICKTRAIL_LLM_* environment variables onto cfg. The
// API key is only ever read from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("CLICKTRAIL_LLM_PROVIDER"); v != "" {
		if p, err := ParseProvider(v); err == nil {
			cfg.Provider = p
		}
	}
	if v := os.Getenv("CLICKTRAIL_LLM_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("CLICKTRAIL_LLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("CLICKTRAIL_LLM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("CLICKTRAIL_LLM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutMs = n
		}
	}
	if v := os.Getenv("CLICKTRAIL_LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("CLICKTRAIL_LLM_LOG_CALLS"); v != "" {
		cfg.LogCalls, _ = strconv.ParseBool(v)
	}
}

// EffectiveEndpoint is Endpoint, or the provider default when unset.
func (c Config) EffectiveEndpoint() string {
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/")
	}
	return c.Provider.DefaultEndpoint()
}

// Validate reports the first missing piece needed to call the API.
func (c Config) Validate() error {
	if _, err := ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingCredential
	}
	if strings.TrimSpace(c.Model) == "" {
		return ErrMissingModelSelection
	}
	return nil
}
