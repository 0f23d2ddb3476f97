// Package config loads clicktrail settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// DataDir is the session store root.
	DataDir string `yaml:"data_dir"`

	// DBPath is the SQLite database holding analysis reports.
	DBPath string `yaml:"db_path"`

	Logging  LoggingConfig  `yaml:"logging"`
	Capture  CaptureConfig  `yaml:"capture"`
	Platform PlatformConfig `yaml:"platform"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LLM      llm.Config     `yaml:"llm"`

	// MetricsAddr serves Prometheus metrics while monitoring when set,
	// e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CaptureConfig struct {
	// Annotate burns a click marker into the before image.
	Annotate bool `yaml:"annotate"`
	// AnnotateScale converts click points to screenshot pixels.
	AnnotateScale float64 `yaml:"annotate_scale"`

	StabilityIntervalMs int `yaml:"stability_interval_ms"`
	StabilityTimeoutMs  int `yaml:"stability_timeout_ms"`
	StabilityWindow     int `yaml:"stability_window"`
}

// PlatformConfig names the external helpers that talk to the desktop.
type PlatformConfig struct {
	// ScreenshotCommand writes one PNG of the full screen to stdout.
	ScreenshotCommand []string `yaml:"screenshot_command"`
	// ContextHelper answers active-app, element-at, windows and
	// running-apps queries as JSON.
	ContextHelper []string `yaml:"context_helper"`
	// HelperTimeoutMs bounds each helper invocation.
	HelperTimeoutMs int `yaml:"helper_timeout_ms"`
}

type AnalysisConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	IncludeAfter bool `yaml:"include_after"`
}

// DefaultConfig returns settings rooted at ~/.clicktrail.
func DefaultConfig() *Config {
	home := homeDir()
	stability := capture.DefaultStabilityConfig()
	return &Config{
		DataDir: filepath.Join(home, ".clicktrail", "sessions"),
		DBPath:  filepath.Join(home, ".clicktrail", "clicktrail.db"),
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Capture: CaptureConfig{
			Annotate:            true,
			AnnotateScale:       1,
			StabilityIntervalMs: int(stability.Interval / time.Millisecond),
			StabilityTimeoutMs:  int(stability.Timeout / time.Millisecond),
			StabilityWindow:     stability.Window,
		},
		Platform: PlatformConfig{
			ScreenshotCommand: defaultScreenshotCommand(),
			HelperTimeoutMs:   2000,
		},
		Analysis: AnalysisConfig{ChunkSize: 10},
		LLM:      llm.DefaultConfig(),
	}
}

// DefaultPath is $CLICKTRAIL_CONFIG or ~/.clicktrail/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("CLICKTRAIL_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(homeDir(), ".clicktrail", "config.yaml")
}

// Load reads the YAML file at path, falling back to defaults when it does
// not exist, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CLICKTRAIL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CLICKTRAIL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CLICKTRAIL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CLICKTRAIL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CLICKTRAIL_ANNOTATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Capture.Annotate = b
		}
	}
	if v := os.Getenv("CLICKTRAIL_SCREENSHOT_COMMAND"); v != "" {
		cfg.Platform.ScreenshotCommand = strings.Fields(v)
	}
	if v := os.Getenv("CLICKTRAIL_CONTEXT_HELPER"); v != "" {
		cfg.Platform.ContextHelper = strings.Fields(v)
	}
	if v := os.Getenv("CLICKTRAIL_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	llm.ApplyEnv(&cfg.LLM)
}

// Validate checks the settings that do not depend on which command runs.
// LLM credentials are checked only when an analysis is started.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data_dir must be set")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("config: db_path must be set")
	}
	if _, err := c.Stability(); err != nil {
		return err
	}
	if c.Analysis.ChunkSize < 1 {
		return fmt.Errorf("config: analysis.chunk_size must be at least 1, got %d", c.Analysis.ChunkSize)
	}
	if c.Capture.AnnotateScale <= 0 {
		return fmt.Errorf("config: capture.annotate_scale must be positive, got %g", c.Capture.AnnotateScale)
	}
	if c.LLM.Provider != "" {
		if _, err := llm.ParseProvider(string(c.LLM.Provider)); err != nil {
			return fmt.Errorf("config: llm.provider: %w", err)
		}
	}
	return nil
}

// Stability converts the capture settings for the detector.
func (c *Config) Stability() (capture.StabilityConfig, error) {
	s := capture.StabilityConfig{
		Interval: time.Duration(c.Capture.StabilityIntervalMs) * time.Millisecond,
		Timeout:  time.Duration(c.Capture.StabilityTimeoutMs) * time.Millisecond,
		Window:   c.Capture.StabilityWindow,
	}
	if s.Interval <= 0 || s.Timeout < s.Interval || s.Window < 2 {
		return capture.StabilityConfig{}, fmt.Errorf("config: invalid stability settings interval=%dms timeout=%dms window=%d",
			c.Capture.StabilityIntervalMs, c.Capture.StabilityTimeoutMs, c.Capture.StabilityWindow)
	}
	return s, nil
}

// HelperTimeout is the per-invocation limit for platform helpers.
func (c *Config) HelperTimeout() time.Duration {
	if c.Platform.HelperTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Platform.HelperTimeoutMs) * time.Millisecond
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
