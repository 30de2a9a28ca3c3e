package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harun/shellagent/internal/config"
	"github.com/harun/shellagent/internal/logger"
	"github.com/harun/shellagent/internal/metrics"
	"github.com/harun/shellagent/internal/tracing"
	"github.com/harun/shellagent/pkg/agent"
	"github.com/harun/shellagent/pkg/backend"
	"github.com/harun/shellagent/pkg/conversation"
	"github.com/harun/shellagent/pkg/directive"
	"github.com/harun/shellagent/pkg/executor"
	"github.com/harun/shellagent/pkg/extract"
	"github.com/harun/shellagent/pkg/hooks"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	freshRun    bool
	cmdTimeout  time.Duration
	maxTurns    int
	metricsAddr string
)

func init() {
	rootCmd.Flags().BoolVar(&freshRun, "fresh", false, "start from an empty conversation instead of the saved history")
	rootCmd.Flags().DurationVar(&cmdTimeout, "timeout", 0, "kill each command after this long (0 keeps the configured value)")
	rootCmd.Flags().IntVar(&maxTurns, "max-turns", 0, "stop after this many commands (0 keeps the configured value)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
}

func runTask(cmd *cobra.Command, args []string) error {
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		_ = cmd.Usage()
		return errMissingTask
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.GetZerolog()
	log.Debug().Str("history", cfg.HistoryFile).Str("notes", cfg.NotesFile).Msg("Configuration loaded")

	for _, w := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(w).Msg("Suspicious configuration")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Metrics.Tracing {
		if err := tracing.InitOpenTelemetry("shellagent"); err != nil {
			log.Warn().Err(err).Msg("Tracing disabled")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
			}()
		}
	}
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Start(cfg.Metrics.Addr, zl)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(); err != nil {
				log.Error().Err(err).Msg("Failed to stop metrics server")
			}
		}()
	}

	console := NewConsole(cmd.OutOrStdout())
	store := conversation.NewStore(cfg.HistoryFile, zl)
	a, names, err := buildAgent(ctx, cfg, zl, store, console, cmd)
	if err != nil {
		return err
	}

	prompt := cfg.Agent.SystemPrompt
	if prompt == "" {
		prompt = agent.DefaultSystemPrompt
	}
	var conv *conversation.Conversation
	if freshRun {
		conv = conversation.New(prompt)
	} else {
		conv, err = store.Initialize(prompt)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
	}

	console.Banner(task, strings.Join(names, ", "))
	res, err := a.Run(ctx, conv, task)
	console.Summary(res)
	if res != nil {
		log.Info().Str("run_id", res.RunID).Str("state", string(res.State)).Int("turns", res.Turns).Msg("Run finished")
	}
	return err
}

// newLogger applies the logging section of cfg over the logger defaults.
// Console logs go to stderr so that stdout carries only the run.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.File = cfg.Logging.File
	lc.Pretty = cfg.Logging.Pretty
	lc.Redaction = cfg.Logging.Redaction
	lc.MaxSize = cfg.Logging.MaxSize
	lc.MaxAge = cfg.Logging.MaxAge
	lc.Compress = cfg.Logging.Compress
	lc.Output = cmd.ErrOrStderr()
	return logger.New(lc)
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Logging.Level = logLevel
	}
	if historyPath != "" {
		cfg.HistoryFile = historyPath
	}
	if notesPath != "" {
		cfg.NotesFile = notesPath
	}
	if cmdTimeout > 0 {
		cfg.Executor.TimeoutSeconds = int(math.Ceil(cmdTimeout.Seconds()))
	}
	if maxTurns > 0 {
		cfg.Agent.MaxTurns = maxTurns
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildAgent wires the loop's collaborators from cfg. It also returns the
// backend names in priority order.
func buildAgent(ctx context.Context, cfg *config.Config, zl zerolog.Logger, store *conversation.Store, console *Console, cmd *cobra.Command) (*agent.Agent, []string, error) {
	backends := make([]backend.Backend, 0, len(cfg.Backends))
	names := make([]string, 0, len(cfg.Backends))
	for _, bc := range cfg.Backends {
		b, err := backend.New(ctx, backend.Config{
			Name:        bc.Name,
			Kind:        bc.Kind,
			Model:       bc.Model,
			APIKey:      bc.ResolvedAPIKey(),
			BaseURL:     bc.BaseURL,
			Command:     bc.Command,
			Headers:     bc.Headers,
			Timeout:     bc.Timeout(),
			MaxTokens:   cfg.Agent.MaxTokens,
			Temperature: cfg.Agent.Temperature,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("backend %s: %w", bc.Name, err)
		}
		backends = append(backends, b)
		names = append(names, b.Name())
	}
	failover := backend.NewFailover(backends, backend.FailoverConfig{
		MaxAttempts: cfg.Failover.MaxAttempts,
		RetryDelay:  cfg.Failover.RetryDelay(),
		Logger:      zl,
	})

	var hosts *executor.HostRewriter
	if cfg.Executor.ResolveHosts {
		hosts = executor.NewHostRewriter(nil, cfg.Executor.DNSCacheSize, time.Duration(cfg.Executor.DNSCacheTTLSeconds)*time.Second)
	}
	exec := executor.New(executor.Config{
		Shell:     cfg.Executor.Shell,
		Timeout:   cfg.Executor.Timeout(),
		PingCount: cfg.Executor.PingCount,
		Hosts:     hosts,
		Output:    cmd.OutOrStdout(),
		Logger:    zl,
	})

	hookList := make([]hooks.Hook, 0, len(cfg.Hooks.Entries))
	for _, h := range cfg.Hooks.Entries {
		hookList = append(hookList, hooks.Hook{
			ID:      h.ID,
			Event:   hooks.Event(h.Event),
			Script:  h.Script,
			Timeout: time.Duration(h.TimeoutSeconds) * time.Second,
			Enabled: h.Enabled,
		})
	}
	hookManager, err := hooks.NewManager(hooks.Config{
		Enabled: cfg.Hooks.Enabled,
		Hooks:   hookList,
		Logger:  zl,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure hooks: %w", err)
	}

	var counter conversation.TokenCounter = conversation.Estimator{}
	if cfg.Agent.Tokenizer == "tiktoken" {
		tc, err := conversation.NewTiktokenCounter(cfg.Agent.TiktokenEncoding)
		if err != nil {
			zl.Warn().Err(err).Msg("Tiktoken unavailable, estimating tokens")
		} else {
			counter = tc
		}
	}

	notePrefix := cfg.Agent.NotePrefix
	if notePrefix == "" {
		notePrefix = conversation.DefaultNotePrefix
	}

	agentCfg := agent.Config{
		Backend:          failover,
		Executor:         exec,
		Store:            store,
		Notes:            conversation.NewNotesLog(cfg.NotesFile, notePrefix),
		Hooks:            hookManager,
		Display:          console,
		Extractor:        extract.New(notePrefix, cfg.Agent.CompletionPhrase),
		Logger:           zl,
		HistoryWindow:    cfg.Agent.HistoryWindow,
		TokenBudget:      cfg.Agent.TokenBudget,
		Counter:          counter,
		MaxEmptyReplies:  cfg.Agent.MaxEmptyReplies,
		MaxTurns:         cfg.Agent.MaxTurns,
		MaxTokens:        cfg.Agent.MaxTokens,
		Temperature:      cfg.Agent.Temperature,
		CompletionPhrase: cfg.Agent.CompletionPhrase,
		FailurePatterns:  cfg.Agent.FailurePatterns,
	}
	if cfg.Directives.Enabled {
		timeout := time.Duration(cfg.Directives.TimeoutSeconds) * time.Second
		agentCfg.Directives = directive.NewResolver(directive.Config{
			Docs:          directive.NewHTTPDocFetcher(cfg.Directives.DocsURL, timeout),
			Search:        directive.NewDuckDuckGoSearcher(cfg.Directives.SearchURL, timeout),
			MaxChars:      cfg.Directives.MaxChars,
			MaxResults:    cfg.Directives.MaxResults,
			CacheSize:     cfg.Directives.CacheSize,
			CacheTTL:      time.Duration(cfg.Directives.CacheTTLSeconds) * time.Second,
			RatePerMinute: cfg.Directives.RatePerMinute,
			Logger:        zl,
		})
	}

	a, err := agent.New(agentCfg)
	if err != nil {
		return nil, nil, err
	}
	return a, names, nil
}
