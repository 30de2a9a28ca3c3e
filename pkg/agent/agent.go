package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/harun/shellagent/internal/observability"
	"github.com/harun/shellagent/internal/tracing"
	"github.com/harun/shellagent/pkg/backend"
	"github.com/harun/shellagent/pkg/conversation"
	"github.com/harun/shellagent/pkg/extract"
	"github.com/harun/shellagent/pkg/hooks"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const persistTimeout = 5 * time.Second

// Config holds the loop's collaborators and tuning. Backend and Executor are
// required; every other collaborator may be nil.
type Config struct {
	Backend    backend.Backend
	Executor   CommandRunner
	Directives DirectiveResolver
	Store      ConversationStore
	Notes      NoteSink
	Hooks      HookTrigger
	Display    Display
	Extractor  *extract.Extractor
	Logger     zerolog.Logger

	// HistoryWindow is the number of non-system entries sent per request.
	HistoryWindow int
	// TokenBudget further trims the window. Zero disables it.
	TokenBudget int
	Counter     conversation.TokenCounter
	// MaxEmptyReplies is the number of consecutive replies without a command
	// before the corrective instruction is sent.
	MaxEmptyReplies int
	// MaxTurns bounds executed commands per run. Zero means unlimited.
	MaxTurns         int
	MaxTokens        int
	Temperature      float64
	CompletionPhrase string
	FailurePatterns  []string
}

// Agent runs tasks one at a time.
type Agent struct {
	cfg Config

	mu    sync.RWMutex
	state State
}

// New creates an agent
func New(cfg Config) (*Agent, error) {
	observability.EnsureRegistered()

	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxEmptyReplies <= 0 {
		cfg.MaxEmptyReplies = DefaultMaxEmptyReplies
	}
	if cfg.MaxTurns < 0 {
		cfg.MaxTurns = 0
	}
	if strings.TrimSpace(cfg.CompletionPhrase) == "" {
		cfg.CompletionPhrase = DefaultCompletionPhrase
	}
	if cfg.FailurePatterns == nil {
		cfg.FailurePatterns = DefaultFailurePatterns
	}
	if cfg.Counter == nil {
		cfg.Counter = conversation.Estimator{}
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(conversation.DefaultNotePrefix, cfg.CompletionPhrase)
	}
	if cfg.Display == nil {
		cfg.Display = nopDisplay{}
	}

	return &Agent{cfg: cfg, state: StateAwaitCommand}, nil
}

// State returns the current loop state.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) setState(logger zerolog.Logger, s State) {
	a.mu.Lock()
	prev := a.state
	a.state = s
	a.mu.Unlock()

	observability.RecordTransition(string(s))
	logger.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("State transition")
}

// Run drives task to a terminal state, appending every exchange to conv.
//
// It returns nil once the model reports completion, ErrInterrupted when ctx
// is cancelled, ErrTurnLimit when MaxTurns is reached and an error wrapping
// backend.ErrBackendsExhausted when no backend can answer. The Result is
// non-nil in every case except argument errors.
func (a *Agent) Run(ctx context.Context, conv *conversation.Conversation, task string) (result *Result, err error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is required")
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("task is required")
	}

	ctx = tracing.NewRunContext(ctx)
	runID := tracing.GetRunID(ctx)
	ctx, span := tracing.StartSpan(ctx, "agent.run", attribute.String("agent.run_id", runID))
	defer func() { tracing.EndSpan(span, err) }()

	r := &run{
		Agent:       a,
		conv:        conv,
		logger:      tracing.LoggerFromContext(ctx, a.cfg.Logger),
		result:      &Result{RunID: runID},
		contextText: task,
		started:     time.Now(),
	}

	r.logger.Info().Str("task", task).Msg("Run started")
	r.trigger(ctx, hooks.TaskStart, map[string]string{"task": task})
	a.setState(r.logger, StateAwaitCommand)

	for {
		if ctx.Err() != nil {
			return r.interrupt(ctx)
		}

		var stepErr error
		switch a.State() {
		case StateAwaitCommand:
			stepErr = r.awaitCommand(ctx)
		case StateExecuting:
			stepErr = r.execute(ctx)
		case StateAwaitFollowup:
			stepErr = r.awaitFollowup(ctx)
		case StateDone:
			return r.complete(ctx), nil
		default:
			return r.finish(), fmt.Errorf("unexpected state %s", a.State())
		}

		if stepErr != nil {
			if ctx.Err() != nil {
				return r.interrupt(ctx)
			}
			return r.abort(ctx, stepErr)
		}
	}
}

// run carries the per-task loop variables.
type run struct {
	*Agent
	conv   *conversation.Conversation
	logger zerolog.Logger
	result *Result

	contextText string
	pending     string
	hasPending  bool
	command     string
	output      string
	empty       int
	started     time.Time
}

func (r *run) awaitCommand(ctx context.Context) error {
	reply := r.pending
	if r.hasPending {
		r.pending, r.hasPending = "", false
	} else {
		var err error
		prompt := nextCommandPrompt
		if r.contextText != "" {
			prompt = r.contextText + "\n" + nextCommandPrompt
		}
		reply, err = r.exchange(ctx, prompt)
		if err != nil {
			return err
		}
	}
	r.captureNotes(reply)

	if r.cfg.Directives != nil {
		if d, ok := r.cfg.Directives.Match(reply); ok {
			r.cfg.Display.Event(EventDirective, fmt.Sprintf("%s %s", d.Kind, d.Argument))
			r.contextText = r.cfg.Directives.Resolve(ctx, d)
			r.logger.Info().Str("kind", string(d.Kind)).Str("argument", d.Argument).Msg("Directive resolved")
			return nil
		}
	}

	command := r.cfg.Extractor.Extract(reply)
	if command == "" {
		r.empty++
		r.logger.Debug().Int("empty_replies", r.empty).Msg("Reply carried no command")
		if r.empty >= r.cfg.MaxEmptyReplies {
			r.logger.Warn().Int("empty_replies", r.empty).Msg("Sending corrective instruction")
			r.cfg.Display.Event(EventWarning, correctiveMessage)
			r.contextText = correctiveMessage
			r.empty = 0
		}
		return nil
	}

	r.empty = 0
	r.command = command
	r.setState(r.logger, StateExecuting)
	return nil
}

func (r *run) execute(ctx context.Context) error {
	if r.cfg.MaxTurns > 0 && r.result.Turns >= r.cfg.MaxTurns {
		return ErrTurnLimit
	}
	r.result.Turns++
	r.result.LastCommand = r.command
	r.cfg.Display.Event(EventCommand, r.command)

	res, err := r.cfg.Executor.Run(ctx, r.command)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		r.logger.Warn().Err(err).Str("command", r.command).Msg("Command could not run")
		r.output = fmt.Sprintf("Execution error: %v", err)
	} else {
		r.output = res.Text()
	}

	payload := map[string]string{
		"command": r.command,
		"turn":    strconv.Itoa(r.result.Turns),
	}
	if res != nil {
		payload["exit_code"] = strconv.Itoa(res.ExitCode)
		payload["timed_out"] = strconv.FormatBool(res.TimedOut)
	}
	r.trigger(ctx, hooks.CommandExecuted, payload)

	r.setState(r.logger, StateAwaitFollowup)
	return nil
}

func (r *run) awaitFollowup(ctx context.Context) error {
	if pattern, ok := r.failed(r.output); ok {
		r.logger.Info().Str("command", r.command).Str("pattern", pattern).Msg("Command failed, asking for an alternative")
		r.cfg.Display.Event(EventWarning, "command failed, asking for an alternative")
		r.contextText = fmt.Sprintf(warningTemplate, r.output)
		r.setState(r.logger, StateAwaitCommand)
		return nil
	}

	transcript := fmt.Sprintf("Command: %s\nOutput:\n%s", r.command, r.output)
	reply, err := r.exchange(ctx, transcript+"\n"+followupPrompt)
	if err != nil {
		return err
	}

	if r.completed(reply) {
		r.captureNotes(reply)
		r.setState(r.logger, StateDone)
		return nil
	}

	// The transcript is already in the conversation; re-asking only needs
	// the request.
	r.pending, r.hasPending = reply, true
	r.contextText = ""
	r.setState(r.logger, StateAwaitCommand)
	return nil
}

// exchange appends prompt, sends the bounded view and records the reply.
func (r *run) exchange(ctx context.Context, prompt string) (string, error) {
	r.conv.AppendUser(prompt)
	view := conversation.FitBudget(r.conv.Windowed(r.cfg.HistoryWindow), r.cfg.TokenBudget, r.cfg.Counter)

	resp, err := r.cfg.Backend.Call(ctx, backend.Request{
		Messages:    view,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	r.conv.AppendAssistant(resp.Content)
	r.result.Backend = r.cfg.Backend.Name()
	r.persist(ctx)
	r.cfg.Display.Event(EventReply, resp.Content)
	return resp.Content, nil
}

func (r *run) persist(ctx context.Context) {
	if r.cfg.Store == nil {
		return
	}
	if err := r.cfg.Store.Save(ctx, r.conv); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist conversation")
	}
}

func (r *run) captureNotes(reply string) {
	if r.cfg.Notes == nil {
		return
	}
	n, err := r.cfg.Notes.Capture(reply)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record notes")
		return
	}
	if n > 0 {
		r.logger.Info().Int("notes", n).Msg("Notes recorded")
	}
}

func (r *run) trigger(ctx context.Context, event hooks.Event, payload map[string]string) {
	if r.cfg.Hooks == nil {
		return
	}
	payload["run_id"] = r.result.RunID
	if err := r.cfg.Hooks.Trigger(ctx, event, payload); err != nil {
		r.logger.Warn().Err(err).Str("event", string(event)).Msg("Hook failed")
	}
}

func (r *run) completed(reply string) bool {
	return strings.Contains(strings.ToLower(reply), strings.ToLower(r.cfg.CompletionPhrase))
}

func (r *run) failed(output string) (string, bool) {
	lower := strings.ToLower(output)
	for _, p := range r.cfg.FailurePatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

func (r *run) complete(ctx context.Context) *Result {
	r.logger.Info().Int("turns", r.result.Turns).Msg("Task complete")
	r.cfg.Display.Event(EventComplete, r.cfg.CompletionPhrase)
	r.trigger(ctx, hooks.TaskComplete, map[string]string{"turns": strconv.Itoa(r.result.Turns)})
	return r.finish()
}

func (r *run) abort(ctx context.Context, cause error) (*Result, error) {
	if !errors.Is(cause, ErrTurnLimit) && !errors.Is(cause, backend.ErrBackendsExhausted) {
		cause = fmt.Errorf("%w: %w", backend.ErrBackendsExhausted, cause)
	}
	r.logger.Error().Err(cause).Int("turns", r.result.Turns).Msg("Run aborted")
	r.setState(r.logger, StateAborted)
	r.cfg.Display.Event(EventAborted, cause.Error())
	r.trigger(ctx, hooks.TaskAborted, map[string]string{"reason": cause.Error()})
	return r.finish(), cause
}

// interrupt persists with a context that outlives the cancelled run.
func (r *run) interrupt(ctx context.Context) (*Result, error) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	r.persist(saveCtx)
	r.logger.Warn().Int("turns", r.result.Turns).Msg("Run interrupted")
	r.setState(r.logger, StateInterrupted)
	r.trigger(saveCtx, hooks.TaskInterrupted, map[string]string{"turns": strconv.Itoa(r.result.Turns)})
	return r.finish(), ErrInterrupted
}

func (r *run) finish() *Result {
	r.result.State = r.State()
	observability.RecordRun(strings.ToLower(string(r.result.State)), time.Since(r.started), r.result.Turns)
	return r.result
}

type nopDisplay struct{}

func (nopDisplay) Event(EventKind, string) {}
