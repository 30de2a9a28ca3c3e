package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/harun/shellagent/pkg/agent"
)

// Console renders loop events for the operator.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	title   lipgloss.Style
	reply   lipgloss.Style
	command lipgloss.Style
	note    lipgloss.Style
	warning lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

// NewConsole writes to out. Colors are dropped when out is not a terminal.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:     out,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		reply:   r.NewStyle().Foreground(lipgloss.Color("7")),
		command: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		note:    r.NewStyle().Foreground(lipgloss.Color("5")),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		success: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// Event implements agent.Display.
func (c *Console) Event(kind agent.EventKind, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case agent.EventReply:
		fmt.Fprintln(c.out, c.reply.Render(strings.TrimSpace(text)))
	case agent.EventCommand:
		fmt.Fprintln(c.out, c.command.Render("$ "+text))
	case agent.EventDirective:
		fmt.Fprintln(c.out, c.note.Render("lookup: "+text))
	case agent.EventWarning:
		fmt.Fprintln(c.out, c.warning.Render("! "+text))
	case agent.EventComplete:
		fmt.Fprintln(c.out, c.success.Render(text))
	case agent.EventAborted:
		fmt.Fprintln(c.out, c.failure.Render(text))
	default:
		fmt.Fprintln(c.out, text)
	}
}

// Banner announces a task.
func (c *Console) Banner(task, backends string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.title.Render("Task: "+task))
	fmt.Fprintln(c.out, c.note.Render("Backends: "+backends))
}

// Summary reports how a run ended.
func (c *Console) Summary(res *agent.Result) {
	if res == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	style := c.failure
	if res.State == agent.StateDone {
		style = c.success
	}
	line := fmt.Sprintf("%s after %d command(s)", res.State, res.Turns)
	if res.Backend != "" {
		line += " via " + res.Backend
	}
	fmt.Fprintln(c.out, style.Render(line))
	if res.LastCommand != "" {
		fmt.Fprintln(c.out, c.note.Render("Last command: "+res.LastCommand))
	}
	fmt.Fprintln(c.out, c.note.Render("Run: "+res.RunID))
}
