package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Len(t, cfg.Backends, 1)
	assert.Equal(t, "command", cfg.Backends[0].Kind)
	assert.Equal(t, "ollama run codellama", cfg.Backends[0].Command)
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, 6000, cfg.Agent.TokenBudget)
	assert.Equal(t, 3, cfg.Agent.MaxEmptyReplies)
	assert.Equal(t, "TASK COMPLETE", cfg.Agent.CompletionPhrase)
	assert.Equal(t, []string{"command not found", "not found"}, cfg.Agent.FailurePatterns)
	assert.Equal(t, 3, cfg.Failover.MaxAttempts)
	assert.Equal(t, 5, cfg.Failover.RetryDelaySeconds)
	assert.Equal(t, 4, cfg.Executor.PingCount)
	assert.True(t, cfg.Executor.ResolveHosts)
	assert.True(t, cfg.Directives.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("no backends", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends = nil

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "at least one backend")
	})

	t.Run("invalid kind", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends = []BackendConfig{{Name: "x", Kind: "cohere", Model: "m", APIKey: "k"}}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid kind")
	})

	t.Run("duplicate names", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends = append(cfg.Backends, cfg.Backends[0])

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends = []BackendConfig{{Name: "claude", Kind: "anthropic", APIKey: "sk-ant-x"}}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "model is required")
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends = []BackendConfig{{Name: "gpt", Kind: "openai", Model: "gpt-4o-mini"}}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "api_key is required")
	})

	t.Run("local openai compatible server needs no key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends = []BackendConfig{{
			Name:    "ollama",
			Kind:    "openai",
			Model:   "codellama",
			BaseURL: "http://localhost:11434/v1",
		}}

		assert.NoError(t, cfg.Validate())
	})

	t.Run("key from environment", func(t *testing.T) {
		t.Setenv("TEST_SHELLAGENT_KEY", "sk-ant-from-env")
		cfg := DefaultConfig()
		cfg.Backends = []BackendConfig{{
			Name:      "claude",
			Kind:      "anthropic",
			Model:     "claude-3-5-haiku-latest",
			APIKeyEnv: "TEST_SHELLAGENT_KEY",
		}}

		assert.NoError(t, cfg.Validate())
		assert.Equal(t, "sk-ant-from-env", cfg.Backends[0].ResolvedAPIKey())
	})

	t.Run("command backend without command", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backends[0].Command = "  "

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "command is required")
	})

	t.Run("unknown hook event", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Hooks.Enabled = true
		cfg.Hooks.Entries = []HookConfig{{Event: "task.started", Script: "true", Enabled: true}}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event")
	})

	t.Run("docs url needs placeholder", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Directives.DocsURL = "https://example.com/docs"

		assert.Error(t, cfg.Validate())
	})

	t.Run("bad tokenizer", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Agent.Tokenizer = "words"

		assert.Error(t, cfg.Validate())
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	str := cfg.String()

	assert.Contains(t, str, `"backends"`)
	assert.Contains(t, str, `"history_window": 10`)
}
