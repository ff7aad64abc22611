package scribe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultResearchTool, config.ResearchTool)
	assert.Equal(t, "LLM_API_KEY", config.Provider.APIKeyEnv)
	assert.Equal(t, 4, config.Executor.Workers)
	assert.Equal(t, 3, config.Executor.MaxAttempts)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
research_tool: web
postgres_dsn: "postgres://localhost/scribe"
retry:
  max_retries: 5
  base_wait_seconds: 0.5
provider:
  model: gpt-4o
  max_tokens: 2048
search:
  endpoint: "https://search.example.com/v1"
executor:
  workers: 8
`), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "web", config.ResearchTool)
	assert.Equal(t, "postgres://localhost/scribe", config.PostgresDSN)
	assert.Equal(t, 5, config.Retry.MaxRetries)
	assert.Equal(t, "gpt-4o", config.Provider.Model)
	assert.Equal(t, 2048, config.Provider.MaxTokens)
	assert.Equal(t, "https://search.example.com/v1", config.Search.Endpoint)
	assert.Equal(t, 8, config.Executor.Workers)

	// Unset fields keep their defaults
	assert.Equal(t, "LLM_API_KEY", config.Provider.APIKeyEnv)
	assert.Equal(t, 3, config.Executor.MaxAttempts)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestRetrySettingsPolicy(t *testing.T) {
	policy := RetrySettings{MaxRetries: 7, BaseWaitSeconds: 0.25, MaxWaitSeconds: 10}.Policy()
	assert.Equal(t, 7, policy.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, policy.BaseWait)
	assert.Equal(t, 10*time.Second, policy.MaxWait)

	// Zero settings fall back to defaults
	fallback := RetrySettings{}.Policy()
	assert.Equal(t, 3, fallback.MaxRetries)
	assert.Equal(t, time.Second, fallback.BaseWait)
}
