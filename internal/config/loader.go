package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	dirName  = ".shellagent"
	fileName = "config.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file. A missing file yields the
// defaults; environment overrides apply either way.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to determine config path")
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("SHELLAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := DefaultConfig()
	// Slices decode into existing elements, so file values must start empty.
	cfg.Backends = nil
	cfg.Agent.FailurePatterns = nil

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := ValidateSchema(data); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Backends) == 0 {
		cfg.Backends = DefaultBackends()
	}
	for i := range cfg.Backends {
		if cfg.Backends[i].Name == "" {
			cfg.Backends[i].Name = fmt.Sprintf("%s-%d", cfg.Backends[i].Kind, i+1)
		}
	}
	if cfg.Agent.FailurePatterns == nil {
		cfg.Agent.FailurePatterns = DefaultFailurePatterns()
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(configPath)
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(cfg.DataDir, "history.jsonl")
	}
	if cfg.NotesFile == "" {
		cfg.NotesFile = filepath.Join(cfg.DataDir, "notes.md")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "shellagent.log")
	}

	return cfg, nil
}

// setDefaults registers scalar defaults so that environment variables can
// override keys absent from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("failover.max_attempts", d.Failover.MaxAttempts)
	v.SetDefault("failover.retry_delay_seconds", d.Failover.RetryDelaySeconds)

	v.SetDefault("agent.system_prompt", d.Agent.SystemPrompt)
	v.SetDefault("agent.history_window", d.Agent.HistoryWindow)
	v.SetDefault("agent.token_budget", d.Agent.TokenBudget)
	v.SetDefault("agent.tokenizer", d.Agent.Tokenizer)
	v.SetDefault("agent.tiktoken_encoding", d.Agent.TiktokenEncoding)
	v.SetDefault("agent.max_empty_replies", d.Agent.MaxEmptyReplies)
	v.SetDefault("agent.max_turns", d.Agent.MaxTurns)
	v.SetDefault("agent.max_tokens", d.Agent.MaxTokens)
	v.SetDefault("agent.temperature", d.Agent.Temperature)
	v.SetDefault("agent.completion_phrase", d.Agent.CompletionPhrase)
	v.SetDefault("agent.note_prefix", d.Agent.NotePrefix)

	v.SetDefault("executor.shell", d.Executor.Shell)
	v.SetDefault("executor.timeout_seconds", d.Executor.TimeoutSeconds)
	v.SetDefault("executor.ping_count", d.Executor.PingCount)
	v.SetDefault("executor.resolve_hosts", d.Executor.ResolveHosts)
	v.SetDefault("executor.dns_cache_size", d.Executor.DNSCacheSize)
	v.SetDefault("executor.dns_cache_ttl_seconds", d.Executor.DNSCacheTTLSeconds)

	v.SetDefault("directives.enabled", d.Directives.Enabled)
	v.SetDefault("directives.docs_url", d.Directives.DocsURL)
	v.SetDefault("directives.search_url", d.Directives.SearchURL)
	v.SetDefault("directives.max_chars", d.Directives.MaxChars)
	v.SetDefault("directives.max_results", d.Directives.MaxResults)
	v.SetDefault("directives.timeout_seconds", d.Directives.TimeoutSeconds)
	v.SetDefault("directives.rate_per_minute", d.Directives.RatePerMinute)
	v.SetDefault("directives.cache_size", d.Directives.CacheSize)
	v.SetDefault("directives.cache_ttl_seconds", d.Directives.CacheTTLSeconds)

	v.SetDefault("hooks.enabled", d.Hooks.Enabled)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
	v.SetDefault("logging.pretty", d.Logging.Pretty)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.tracing", d.Metrics.Tracing)

	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("history_file", d.HistoryFile)
	v.SetDefault("notes_file", d.NotesFile)
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(cfg.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dirName, fileName)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
