package agent

import (
	"context"
	"errors"

	"github.com/harun/shellagent/pkg/conversation"
	"github.com/harun/shellagent/pkg/directive"
	"github.com/harun/shellagent/pkg/executor"
	"github.com/harun/shellagent/pkg/hooks"
)

// State is a position in the turn state machine.
type State string

const (
	StateAwaitCommand  State = "AWAIT_COMMAND"
	StateExecuting     State = "EXECUTING"
	StateAwaitFollowup State = "AWAIT_FOLLOWUP"
	StateDone          State = "DONE"
	StateAborted       State = "ABORTED"
	StateInterrupted   State = "INTERRUPTED"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateInterrupted
}

var (
	ErrInterrupted = errors.New("interrupted")
	ErrTurnLimit   = errors.New("turn limit reached")
)

const DefaultSystemPrompt = "You are a terminal assistant running inside a secure sandbox environment. " +
	"You have full sudo privileges and are allowed to install packages. " +
	"Maintain memory up to recent messages. ALWAYS THINK step-by-step and output a bash command in a code block with sudo as needed. " +
	"After executing, review output and propose next command. Stop when you state 'TASK COMPLETE'."

const (
	DefaultHistoryWindow    = 10
	DefaultMaxEmptyReplies  = 3
	DefaultCompletionPhrase = "TASK COMPLETE"
)

// DefaultFailurePatterns mark a transcript as a failed command.
var DefaultFailurePatterns = []string{"command not found", "not found"}

const (
	nextCommandPrompt = "Provide the next bash command in a code block."
	followupPrompt    = "Provide next bash command or 'TASK COMPLETE'."
	correctiveMessage = "ERROR: You must output exactly one bash command inside a 'bash' code block with no placeholders."
	warningTemplate   = "WARNING: The last command failed with error:\n%s\nPropose an alternative valid command without placeholders in a bash code block."
)

// EventKind classifies what the loop reports to its Display.
type EventKind string

const (
	EventReply     EventKind = "reply"
	EventCommand   EventKind = "command"
	EventDirective EventKind = "directive"
	EventWarning   EventKind = "warning"
	EventComplete  EventKind = "complete"
	EventAborted   EventKind = "aborted"
)

// Display renders loop progress for the operator. Command output is streamed
// by the executor itself.
type Display interface {
	Event(kind EventKind, text string)
}

// CommandRunner runs one shell command to completion.
type CommandRunner interface {
	Run(ctx context.Context, command string) (*executor.Result, error)
}

// DirectiveResolver recognises lookup requests in replies and resolves them
// into context text.
type DirectiveResolver interface {
	Match(text string) (directive.Directive, bool)
	Resolve(ctx context.Context, d directive.Directive) string
}

type ConversationStore interface {
	Save(ctx context.Context, conv *conversation.Conversation) error
}

type NoteSink interface {
	Capture(text string) (int, error)
}

type HookTrigger interface {
	Trigger(ctx context.Context, event hooks.Event, payload map[string]string) error
}

// Result summarises a finished run.
type Result struct {
	RunID       string
	State       State
	Turns       int
	LastCommand string
	Backend     string
}
