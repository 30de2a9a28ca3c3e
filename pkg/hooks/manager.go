// Package hooks runs operator-configured shell scripts on agent lifecycle
// events.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Event names a point in the agent lifecycle.
type Event string

const (
	TaskStart       Event = "task.start"
	CommandExecuted Event = "command.executed"
	TaskComplete    Event = "task.complete"
	TaskAborted     Event = "task.aborted"
	TaskInterrupted Event = "task.interrupted"
)

// Events lists every event a hook may subscribe to.
var Events = []Event{TaskStart, CommandExecuted, TaskComplete, TaskAborted, TaskInterrupted}

const envPrefix = "SHELLAGENT_HOOK_"

// DefaultTimeout bounds hooks that do not set their own timeout.
const DefaultTimeout = 30 * time.Second

// Hook is a script bound to an event.
type Hook struct {
	ID      string
	Event   Event
	Script  string
	Timeout time.Duration
	Enabled bool
}

type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager executes configured hooks. A nil *Manager is valid and does
// nothing.
type Manager struct {
	enabled bool
	logger  zerolog.Logger
	byEvent map[Event][]Hook
}

func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		enabled: cfg.Enabled,
		logger:  cfg.Logger.With().Str("component", "hooks").Logger(),
		byEvent: make(map[Event][]Hook),
	}
	if !cfg.Enabled {
		return m, nil
	}

	for _, hook := range cfg.Hooks {
		if !hook.Enabled {
			continue
		}
		if !knownEvent(hook.Event) {
			return nil, fmt.Errorf("unknown hook event %q", hook.Event)
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", hook.Event)
		}
		m.byEvent[hook.Event] = append(m.byEvent[hook.Event], hook)
	}
	return m, nil
}

func knownEvent(e Event) bool {
	for _, known := range Events {
		if e == known {
			return true
		}
	}
	return false
}

// Trigger runs every hook bound to event in configuration order. The payload
// is exported as SHELLAGENT_HOOK_<KEY> variables and written to stdin as a
// JSON object.
func (m *Manager) Trigger(ctx context.Context, event Event, payload map[string]string) error {
	if m == nil || !m.enabled {
		return nil
	}
	hooks := m.byEvent[event]
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.run(ctx, event, hook, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) run(ctx context.Context, event Event, hook Hook, payload map[string]string) error {
	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = string(event)
	}

	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(struct {
		Event   Event             `json:"event"`
		Payload map[string]string `json:"payload"`
	}{event, payload})
	if err != nil {
		return fmt.Errorf("hook %s: encode payload: %w", hookID, err)
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = environment(event, payload)
	cmd.Stdin = bytes.NewReader(body)
	cmd.WaitDelay = time.Second

	start := time.Now()
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		if text != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, text)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	m.logger.Debug().
		Str("event", string(event)).
		Str("hook_id", hookID).
		Dur("duration", time.Since(start)).
		Str("output", text).
		Msg("Hook executed")
	return nil
}

func environment(event Event, payload map[string]string) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, envPrefix+"EVENT="+string(event))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, envPrefix+envKey(k)+"="+payload[k])
	}
	return env
}

func envKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			return r
		}
		return '_'
	}, key)
}
