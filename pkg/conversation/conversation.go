// Package conversation holds the linear log exchanged with model backends:
// entries, windowing, token budget eviction and JSONL persistence.
package conversation

import (
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is a single conversation turn.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered list of entries whose first entry is always the
// system entry.
type Conversation struct {
	entries []Entry
}

// New returns a conversation holding only the system entry.
func New(systemPrompt string) *Conversation {
	return &Conversation{entries: []Entry{{Role: RoleSystem, Content: systemPrompt}}}
}

// FromEntries builds a conversation from loaded entries, inserting the system
// entry at position 0 when the first entry is not a system entry.
func FromEntries(systemPrompt string, entries []Entry) *Conversation {
	if len(entries) == 0 {
		return New(systemPrompt)
	}
	out := make([]Entry, 0, len(entries)+1)
	if entries[0].Role != RoleSystem {
		out = append(out, Entry{Role: RoleSystem, Content: systemPrompt})
	}
	out = append(out, entries...)
	return &Conversation{entries: out}
}

// Append adds an entry to the end of the conversation.
func (c *Conversation) Append(e Entry) {
	c.entries = append(c.entries, e)
}

func (c *Conversation) AppendUser(content string) {
	c.Append(Entry{Role: RoleUser, Content: content})
}

func (c *Conversation) AppendAssistant(content string) {
	c.Append(Entry{Role: RoleAssistant, Content: content})
}

// Entries returns a copy of all entries.
func (c *Conversation) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Conversation) Len() int {
	return len(c.entries)
}

// System returns the system entry.
func (c *Conversation) System() Entry {
	return c.entries[0]
}

// Windowed returns the system entry followed by the most recent limit
// non-system entries. A negative limit is treated as zero.
func (c *Conversation) Windowed(limit int) []Entry {
	if limit < 0 {
		limit = 0
	}
	rest := c.entries[1:]
	if len(rest) > limit {
		rest = rest[len(rest)-limit:]
	}
	out := make([]Entry, 0, len(rest)+1)
	out = append(out, c.entries[0])
	return append(out, rest...)
}

// Render formats entries as "role: content" lines, used by backends that
// take a single prompt string.
func Render(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(e.Role)
		b.WriteString(": ")
		b.WriteString(e.Content)
	}
	return b.String()
}
