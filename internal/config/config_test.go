package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.DataDir, cfg.DataDir)
	assert.Equal(t, 10, cfg.Analysis.ChunkSize)
	assert.True(t, cfg.Capture.Annotate)

	s, err := cfg.Stability()
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, s.Interval)
	assert.Equal(t, time.Second, s.Timeout)
	assert.Equal(t, 3, s.Window)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/ct/sessions
logging:
  level: debug
  format: json
capture:
  annotate: false
  stability_timeout_ms: 2000
platform:
  screenshot_command: ["grim", "-t", "png", "-"]
  context_helper: ["clicktrail-helper"]
analysis:
  chunk_size: 5
  include_after: true
llm:
  provider: hf-router
  model: Qwen/Qwen2.5-VL-72B-Instruct
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ct/sessions", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Capture.Annotate)
	assert.Equal(t, 100, cfg.Capture.StabilityIntervalMs, "unset keys keep defaults")
	assert.Equal(t, 2000, cfg.Capture.StabilityTimeoutMs)
	assert.Equal(t, []string{"grim", "-t", "png", "-"}, cfg.Platform.ScreenshotCommand)
	assert.Equal(t, []string{"clicktrail-helper"}, cfg.Platform.ContextHelper)
	assert.Equal(t, 5, cfg.Analysis.ChunkSize)
	assert.True(t, cfg.Analysis.IncludeAfter)
	assert.Equal(t, llm.ProviderHFRouter, cfg.LLM.Provider)
	assert.Equal(t, "Qwen/Qwen2.5-VL-72B-Instruct", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_APIKeyIgnoredInFile(t *testing.T) {
	path := writeConfig(t, "llm:\n  api_key: leaked\n  APIKey: leaked\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "data_dir: /from/file\n")
	t.Setenv("CLICKTRAIL_DATA_DIR", "/from/env")
	t.Setenv("CLICKTRAIL_LLM_API_KEY", "sk-env")
	t.Setenv("CLICKTRAIL_SCREENSHOT_COMMAND", "scrot -o /dev/stdout")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, []string{"scrot", "-o", "/dev/stdout"}, cfg.Platform.ScreenshotCommand)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":         "data_dir: [unclosed",
		"chunk size":       "analysis:\n  chunk_size: 0\n",
		"stability":        "capture:\n  stability_window: 1\n",
		"unknown provider": "llm:\n  provider: gemini\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv("CLICKTRAIL_CONFIG", "/etc/clicktrail.yaml")
	assert.Equal(t, "/etc/clicktrail.yaml", DefaultPath())
}
