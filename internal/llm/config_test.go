package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_RequiresModelAndKey(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredential)

	cfg.APIKey = "k"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingModelSelection)

	cfg.Model = "gpt-4o"
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CLICKTRAIL_LLM_PROVIDER", "HF-Router")
	t.Setenv("CLICKTRAIL_LLM_MODEL", "Qwen/Qwen2.5-VL-7B-Instruct")
	t.Setenv("CLICKTRAIL_LLM_API_KEY", "hf_xxx")
	t.Setenv("CLICKTRAIL_LLM_TIMEOUT_MS", "5000")

	cfg := LoadConfig()

	assert.Equal(t, ProviderHFRouter, cfg.Provider)
	assert.Equal(t, "Qwen/Qwen2.5-VL-7B-Instruct", cfg.Model)
	assert.Equal(t, "hf_xxx", cfg.APIKey)
	assert.Equal(t, 5000, cfg.TimeoutMs)
	assert.Equal(t, "https://router.huggingface.co/v1", cfg.EffectiveEndpoint())
}

func TestLoadConfig_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("CLICKTRAIL_LLM_PROVIDER", "nope")
	t.Setenv("CLICKTRAIL_LLM_TIMEOUT_MS", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, DefaultConfig().TimeoutMs, cfg.TimeoutMs)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p)

	p, err = ParseProvider("huggingface")
	require.NoError(t, err)
	assert.Equal(t, ProviderHFRouter, p)

	_, err = ParseProvider("gemini")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestEffectiveEndpoint_TrimsSlash(t *testing.T) {
	cfg := Config{Provider: ProviderOpenAI, Endpoint: "http://localhost:8080/v1/"}
	assert.Equal(t, "http://localhost:8080/v1", cfg.EffectiveEndpoint())
}
