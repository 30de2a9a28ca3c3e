package config

import (
	"fmt"
	"strings"
)

// Validator reports configuration values that are accepted but likely wrong.
// Config.Validate covers the hard errors.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("invalid Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateTokenBudget checks that the budget leaves room for the history window.
func (v *Validator) ValidateTokenBudget(budget, window int) error {
	if budget == 0 {
		return nil
	}
	if budget < 256 {
		return fmt.Errorf("token budget %d is too small to hold a single exchange", budget)
	}
	if window > 0 && budget/window < 50 {
		return fmt.Errorf("token budget %d leaves under 50 tokens per entry for a window of %d", budget, window)
	}
	return nil
}

// ValidateConfig collects warnings about a configuration
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	for i, b := range cfg.Backends {
		if b.Kind == "command" {
			continue
		}
		// Keys for proxies and local servers follow their own formats.
		if b.BaseURL != "" {
			continue
		}
		if key := b.ResolvedAPIKey(); key != "" {
			if err := v.ValidateAPIKey(key, b.Kind); err != nil {
				errors = append(errors, fmt.Errorf("backend %d (%s): %w", i, b.Name, err))
			}
		}
	}

	if err := v.ValidateTemperature(cfg.Agent.Temperature); err != nil {
		errors = append(errors, fmt.Errorf("agent: %w", err))
	}
	if cfg.Agent.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
			errors = append(errors, fmt.Errorf("agent: %w", err))
		}
	}
	if err := v.ValidateTokenBudget(cfg.Agent.TokenBudget, cfg.Agent.HistoryWindow); err != nil {
		errors = append(errors, fmt.Errorf("agent: %w", err))
	}
	if cfg.Executor.TimeoutSeconds == 0 {
		errors = append(errors, fmt.Errorf("executor: no command timeout set, interactive commands will block the loop"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
