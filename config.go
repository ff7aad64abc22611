package scribe

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deepnoodle-ai/scribe/retry"
)

// RetrySettings configures the bounded-retry policy used for external calls.
// Waits are expressed in seconds, fractional values allowed.
type RetrySettings struct {
	MaxRetries      int     `yaml:"max_retries"`
	BaseWaitSeconds float64 `yaml:"base_wait_seconds"`
	MaxWaitSeconds  float64 `yaml:"max_wait_seconds"`
}

// Policy converts the settings into a retry policy, applying defaults for
// unset fields.
func (s RetrySettings) Policy() retry.Policy {
	policy := retry.DefaultPolicy()
	if s.MaxRetries > 0 {
		policy.MaxRetries = s.MaxRetries
	}
	if s.BaseWaitSeconds > 0 {
		policy.BaseWait = time.Duration(s.BaseWaitSeconds * float64(time.Second))
	}
	if s.MaxWaitSeconds > 0 {
		policy.MaxWait = time.Duration(s.MaxWaitSeconds * float64(time.Second))
	}
	return policy
}

// ProviderSettings configures the text-generation backend.
type ProviderSettings struct {
	Endpoint  string  `yaml:"endpoint"`
	Model     string  `yaml:"model"`
	APIKeyEnv string  `yaml:"api_key_env"`
	MaxTokens int     `yaml:"max_tokens"`
	Timeout   float64 `yaml:"timeout"` // in seconds, default 60
}

// SearchSettings configures the optional web search backend. When Endpoint
// is empty only the built-in knowledge base is registered.
type SearchSettings struct {
	Endpoint  string  `yaml:"endpoint"`
	APIKeyEnv string  `yaml:"api_key_env"`
	Timeout   float64 `yaml:"timeout"` // in seconds, default 30
}

// ExecutorSettings configures the worker pool.
type ExecutorSettings struct {
	Workers            int     `yaml:"workers"`
	MaxAttempts        int     `yaml:"max_attempts"`
	BaseBackoffSeconds float64 `yaml:"base_backoff_seconds"`
}

// Config is the process configuration, loadable from YAML.
type Config struct {
	ResearchTool string           `yaml:"research_tool"`
	DataDir      string           `yaml:"data_dir"`
	PostgresDSN  string           `yaml:"postgres_dsn"`
	Retry        RetrySettings    `yaml:"retry"`
	Provider     ProviderSettings `yaml:"provider"`
	Search       SearchSettings   `yaml:"search"`
	Executor     ExecutorSettings `yaml:"executor"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ResearchTool: DefaultResearchTool,
		Provider: ProviderSettings{
			APIKeyEnv: "LLM_API_KEY",
			Timeout:   60,
		},
		Executor: ExecutorSettings{
			Workers:            4,
			MaxAttempts:        3,
			BaseBackoffSeconds: 1,
		},
	}
}

// LoadConfig reads a YAML configuration file, filling unset fields with
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return config, nil
}
