package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harun/shellagent/pkg/hooks"
)

// Config represents the shellagent configuration
type Config struct {
	// Backends in failover priority order
	Backends []BackendConfig `json:"backends" mapstructure:"backends"`

	Failover   FailoverConfig   `json:"failover" mapstructure:"failover"`
	Agent      AgentConfig      `json:"agent" mapstructure:"agent"`
	Executor   ExecutorConfig   `json:"executor" mapstructure:"executor"`
	Directives DirectivesConfig `json:"directives" mapstructure:"directives"`
	Hooks      HooksConfig      `json:"hooks" mapstructure:"hooks"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	HistoryFile string `json:"history_file" mapstructure:"history_file"`
	NotesFile   string `json:"notes_file" mapstructure:"notes_file"`
}

// BackendConfig describes one model backend
type BackendConfig struct {
	Name  string `json:"name" mapstructure:"name"`
	Kind  string `json:"kind" mapstructure:"kind"` // openai, anthropic, gemini, command
	Model string `json:"model" mapstructure:"model"`
	// APIKey takes precedence over the variable named by APIKeyEnv
	APIKey         string            `json:"api_key" mapstructure:"api_key"`
	APIKeyEnv      string            `json:"api_key_env" mapstructure:"api_key_env"`
	BaseURL        string            `json:"base_url" mapstructure:"base_url"`
	Command        string            `json:"command" mapstructure:"command"`
	Headers        map[string]string `json:"headers,omitempty" mapstructure:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ResolvedAPIKey returns the configured key, falling back to the environment.
func (b BackendConfig) ResolvedAPIKey() string {
	if b.APIKey != "" {
		return b.APIKey
	}
	if b.APIKeyEnv != "" {
		return os.Getenv(b.APIKeyEnv)
	}
	return ""
}

func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// FailoverConfig holds retry settings shared by all backends
type FailoverConfig struct {
	MaxAttempts       int `json:"max_attempts" mapstructure:"max_attempts"`
	RetryDelaySeconds int `json:"retry_delay_seconds" mapstructure:"retry_delay_seconds"`
}

func (f FailoverConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelaySeconds) * time.Second
}

// AgentConfig holds loop settings
type AgentConfig struct {
	SystemPrompt  string `json:"system_prompt" mapstructure:"system_prompt"`
	HistoryWindow int    `json:"history_window" mapstructure:"history_window"`
	TokenBudget   int    `json:"token_budget" mapstructure:"token_budget"`
	// Tokenizer selects the token counter: estimate or tiktoken
	Tokenizer        string   `json:"tokenizer" mapstructure:"tokenizer"`
	TiktokenEncoding string   `json:"tiktoken_encoding" mapstructure:"tiktoken_encoding"`
	MaxEmptyReplies  int      `json:"max_empty_replies" mapstructure:"max_empty_replies"`
	MaxTurns         int      `json:"max_turns" mapstructure:"max_turns"`
	MaxTokens        int      `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature      float64  `json:"temperature" mapstructure:"temperature"`
	CompletionPhrase string   `json:"completion_phrase" mapstructure:"completion_phrase"`
	FailurePatterns  []string `json:"failure_patterns" mapstructure:"failure_patterns"`
	NotePrefix       string   `json:"note_prefix" mapstructure:"note_prefix"`
}

// ExecutorConfig holds command execution settings
type ExecutorConfig struct {
	Shell string `json:"shell" mapstructure:"shell"`
	// TimeoutSeconds of zero lets commands run until they exit
	TimeoutSeconds     int  `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	PingCount          int  `json:"ping_count" mapstructure:"ping_count"`
	ResolveHosts       bool `json:"resolve_hosts" mapstructure:"resolve_hosts"`
	DNSCacheSize       int  `json:"dns_cache_size" mapstructure:"dns_cache_size"`
	DNSCacheTTLSeconds int  `json:"dns_cache_ttl_seconds" mapstructure:"dns_cache_ttl_seconds"`
}

func (e ExecutorConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// DirectivesConfig holds documentation and search lookup settings
type DirectivesConfig struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	DocsURL         string `json:"docs_url" mapstructure:"docs_url"`
	SearchURL       string `json:"search_url" mapstructure:"search_url"`
	MaxChars        int    `json:"max_chars" mapstructure:"max_chars"`
	MaxResults      int    `json:"max_results" mapstructure:"max_results"`
	TimeoutSeconds  int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	RatePerMinute   int    `json:"rate_per_minute" mapstructure:"rate_per_minute"`
	CacheSize       int    `json:"cache_size" mapstructure:"cache_size"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

// HooksConfig holds lifecycle hook settings
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Entries []HookConfig `json:"entries,omitempty" mapstructure:"entries"`
}

// HookConfig binds a script to an event
type HookConfig struct {
	ID             string `json:"id" mapstructure:"id"`
	Event          string `json:"event" mapstructure:"event"`
	Script         string `json:"script" mapstructure:"script"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
}

// MetricsConfig holds the metrics endpoint and tracing switch
type MetricsConfig struct {
	Addr    string `json:"addr" mapstructure:"addr"`
	Tracing bool   `json:"tracing" mapstructure:"tracing"`
}

// DefaultBackends is the backend list used when none is configured.
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{
			Name:           "codellama",
			Kind:           "command",
			Model:          "codellama",
			Command:        "ollama run codellama",
			TimeoutSeconds: 300,
		},
	}
}

// DefaultFailurePatterns mark command output as a failure.
func DefaultFailurePatterns() []string {
	return []string{"command not found", "not found"}
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Backends: DefaultBackends(),
		Failover: FailoverConfig{
			MaxAttempts:       3,
			RetryDelaySeconds: 5,
		},
		Agent: AgentConfig{
			HistoryWindow:    10,
			TokenBudget:      6000,
			Tokenizer:        "estimate",
			TiktokenEncoding: "cl100k_base",
			MaxEmptyReplies:  3,
			MaxTurns:         0,
			MaxTokens:        1024,
			Temperature:      0.2,
			CompletionPhrase: "TASK COMPLETE",
			FailurePatterns:  DefaultFailurePatterns(),
			NotePrefix:       "NOTE:",
		},
		Executor: ExecutorConfig{
			TimeoutSeconds:     0,
			PingCount:          4,
			ResolveHosts:       true,
			DNSCacheSize:       256,
			DNSCacheTTLSeconds: 600,
		},
		Directives: DirectivesConfig{
			Enabled:         true,
			DocsURL:         "https://raw.githubusercontent.com/tldr-pages/tldr/main/pages/common/%s.md",
			SearchURL:       "https://html.duckduckgo.com/html/",
			MaxChars:        2000,
			MaxResults:      5,
			TimeoutSeconds:  15,
			RatePerMinute:   20,
			CacheSize:       64,
			CacheTTLSeconds: 3600,
		},
		Hooks: HooksConfig{
			Enabled: false,
			Entries: []HookConfig{},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Pretty:    true,
		},
		Metrics: MetricsConfig{},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

var validKinds = []string{"openai", "anthropic", "gemini", "command"}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be configured")
	}

	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend %d: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backend %s: duplicate name", b.Name)
		}
		seen[b.Name] = true

		if !contains(validKinds, b.Kind) {
			return fmt.Errorf("backend %s: invalid kind %q (must be: %s)", b.Name, b.Kind, strings.Join(validKinds, ", "))
		}
		if b.Kind == "command" {
			if strings.TrimSpace(b.Command) == "" {
				return fmt.Errorf("backend %s: command is required", b.Name)
			}
			continue
		}
		if b.Model == "" {
			return fmt.Errorf("backend %s: model is required", b.Name)
		}
		// A custom base URL usually points at a local server that needs no key.
		if b.ResolvedAPIKey() == "" && !(b.Kind == "openai" && b.BaseURL != "") {
			return fmt.Errorf("backend %s: api_key is required", b.Name)
		}
	}

	if c.Failover.MaxAttempts < 1 {
		return fmt.Errorf("failover.max_attempts must be >= 1")
	}
	if c.Failover.RetryDelaySeconds < 0 {
		return fmt.Errorf("failover.retry_delay_seconds must be >= 0")
	}
	if c.Agent.HistoryWindow < 0 {
		return fmt.Errorf("agent.history_window must be >= 0")
	}
	if c.Agent.MaxEmptyReplies < 1 {
		return fmt.Errorf("agent.max_empty_replies must be >= 1")
	}
	if c.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent.max_turns must be >= 0")
	}
	if c.Agent.Tokenizer != "" && c.Agent.Tokenizer != "estimate" && c.Agent.Tokenizer != "tiktoken" {
		return fmt.Errorf("agent.tokenizer must be estimate or tiktoken, got %s", c.Agent.Tokenizer)
	}
	if c.Executor.TimeoutSeconds < 0 {
		return fmt.Errorf("executor.timeout_seconds must be >= 0")
	}
	if c.Directives.Enabled && strings.Count(c.Directives.DocsURL, "%s") != 1 {
		return fmt.Errorf("directives.docs_url must contain exactly one %%s")
	}

	if c.Hooks.Enabled {
		for i, h := range c.Hooks.Entries {
			if !h.Enabled {
				continue
			}
			if !knownEvent(h.Event) {
				return fmt.Errorf("hook %d: unknown event %q", i, h.Event)
			}
			if strings.TrimSpace(h.Script) == "" {
				return fmt.Errorf("hook %d: script is required", i)
			}
		}
	}

	return nil
}

func knownEvent(name string) bool {
	for _, e := range hooks.Events {
		if string(e) == name {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
