// Package config assembles parley's settings from defaults, an optional
// YAML file and PARLEY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/parley/internal/llm"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/session"
	"github.com/abhisek/parley/internal/summarizer"
)

// Config is the full application configuration.
type Config struct {
	// DB is the sqlite database path. Empty resolves to the default data
	// directory.
	DB string `yaml:"db"`

	Log        LogConfig         `yaml:"log"`
	Server     ServerConfig      `yaml:"server"`
	LLM        llm.Config        `yaml:"llm"`
	Oracle     oracle.Config     `yaml:"oracle"`
	Session    session.Config    `yaml:"session"`
	Summarizer summarizer.Config `yaml:"summarizer"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"` // empty logs to stderr
}

// ServerConfig configures `parley serve`.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	// ShutdownTimeout bounds the wait for in-flight requests and
	// summaries on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AnalyticsSchedule is a cron expression for recomputing analytics of
	// all published interviews. Empty disables the job.
	AnalyticsSchedule string `yaml:"analytics_schedule"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM:        llm.DefaultConfig(),
		Oracle:     oracle.DefaultConfig(),
		Session:    session.DefaultConfig(),
		Summarizer: summarizer.DefaultConfig(),
	}
}

// Load returns the defaults overlaid with the YAML file at path, when path
// is non-empty, and then with the environment. When no provider is set
// explicitly the standard API key variables are consulted.
func Load(path string) (Config, error) {
	cfg := Default()
	explicitProvider := false

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var peek struct {
			LLM struct {
				Provider string `yaml:"provider"`
			} `yaml:"llm"`
		}
		if err := yaml.Unmarshal(raw, &peek); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		explicitProvider = peek.LLM.Provider != ""
	}

	if os.Getenv("PARLEY_LLM_PROVIDER") == "" && !explicitProvider {
		if discovered, ok := llm.DiscoverConfig(); ok {
			cfg.LLM.Provider = discovered.Provider
			cfg.LLM.Anthropic.APIKey = discovered.Anthropic.APIKey
			cfg.LLM.OpenAI.APIKey = discovered.OpenAI.APIKey
			cfg.LLM.Gemini.APIKey = discovered.Gemini.APIKey
			cfg.LLM.OpenRouter.APIKey = discovered.OpenRouter.APIKey
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overlays PARLEY_* environment variables onto c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PARLEY_DB"); v != "" {
		c.DB = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v, ok := envBool("PARLEY_LOG_DEVELOPMENT"); ok {
		c.Log.Development = v
	}
	if v := os.Getenv("PARLEY_LOG_FILE"); v != "" {
		c.Log.File = v
	}

	if v := os.Getenv("PARLEY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PARLEY_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("PARLEY_ANALYTICS_SCHEDULE"); ok {
		c.Server.AnalyticsSchedule = v
	}

	if d, ok := envDuration("PARLEY_SESSION_MIN_DELAY"); ok {
		c.Session.MinDelay = d
	}
	if d, ok := envDuration("PARLEY_SESSION_MAX_DELAY"); ok {
		c.Session.MaxDelay = d
	}
	if v, ok := envBool("PARLEY_SESSION_HARD_STOP"); ok {
		c.Session.HardStop = v
	}

	if d, ok := envDuration("PARLEY_SUMMARY_TIMEOUT"); ok {
		c.Summarizer.Timeout = d
	}
	if v, ok := envBool("PARLEY_SUMMARY_REFRESH_ANALYTICS"); ok {
		c.Summarizer.RefreshAnalytics = v
	}

	c.LLM.ApplyEnv()
	c.Oracle.ApplyEnv()
}

// Validate checks every section. LLM credentials are not checked here;
// commands that talk to a provider call c.LLM.Validate themselves.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if c.Summarizer.Timeout <= 0 {
		errs = append(errs, errors.New("summary timeout must be positive"))
	}
	if err := c.Oracle.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
