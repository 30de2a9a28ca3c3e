package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultNotePrefix marks reply lines that are copied to the notes log.
const DefaultNotePrefix = "NOTE:"

// NotesLog is an append-only file of annotation lines found in replies.
type NotesLog struct {
	path   string
	prefix string
	mu     sync.Mutex
}

func NewNotesLog(path, prefix string) *NotesLog {
	if prefix == "" {
		prefix = DefaultNotePrefix
	}
	return &NotesLog{path: path, prefix: prefix}
}

// IsNote reports whether line starts with prefix, ignoring case and leading
// whitespace.
func IsNote(line, prefix string) bool {
	line = strings.TrimSpace(line)
	return len(line) >= len(prefix) && strings.EqualFold(line[:len(prefix)], prefix)
}

// Notes returns the annotation lines of text, verbatim.
func (n *NotesLog) Notes(text string) []string {
	var notes []string
	for _, line := range strings.Split(text, "\n") {
		if IsNote(line, n.prefix) {
			notes = append(notes, strings.TrimRight(line, "\r"))
		}
	}
	return notes
}

// Capture appends every annotation line of text to the notes file and
// returns how many were written.
func (n *NotesLog) Capture(text string) (int, error) {
	notes := n.Notes(text)
	if len(notes) == 0 || n.path == "" {
		return len(notes), nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.path), 0700); err != nil {
		return 0, fmt.Errorf("failed to create notes directory: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open notes file: %w", err)
	}
	defer f.Close()

	for _, note := range notes {
		if _, err := f.WriteString(note + "\n"); err != nil {
			return 0, fmt.Errorf("failed to write note: %w", err)
		}
	}
	return len(notes), nil
}
