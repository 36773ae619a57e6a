package oracle

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds oracle call settings.
type Config struct {
	// Timeout bounds every oracle call. Zero disables the bound.
	Timeout time.Duration `yaml:"timeout"`

	// NativeStructuredOutput passes the reflected schema to the provider
	// so it can use tool calling or JSON mode. When false the schema is
	// only used to validate the text extracted from a free-form reply.
	NativeStructuredOutput bool `yaml:"native_structured_output"`

	Temperature        float64 `yaml:"temperature"`
	QuestionsMaxTokens int     `yaml:"questions_max_tokens"`
	NextTurnMaxTokens  int     `yaml:"next_turn_max_tokens"`
	SummaryMaxTokens   int     `yaml:"summary_max_tokens"`
}

// DefaultConfig returns sensible defaults for oracle calls.
func DefaultConfig() Config {
	return Config{
		Timeout:            30 * time.Second,
		Temperature:        0.7,
		QuestionsMaxTokens: 2048,
		NextTurnMaxTokens:  1024,
		SummaryMaxTokens:   2048,
	}
}

// ApplyEnv overlays PARLEY_ORACLE_* environment variables onto c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PARLEY_ORACLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
	if v := os.Getenv("PARLEY_ORACLE_NATIVE_SCHEMA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.NativeStructuredOutput = b
		}
	}
	if v := os.Getenv("PARLEY_ORACLE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
}

// Validate checks c for out-of-range values.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("oracle timeout must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("oracle temperature must be within [0, 1], got %v", c.Temperature)
	}
	if c.QuestionsMaxTokens <= 0 || c.NextTurnMaxTokens <= 0 || c.SummaryMaxTokens <= 0 {
		return fmt.Errorf("oracle max token limits must be positive")
	}
	return nil
}
