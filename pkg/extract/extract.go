// Package extract turns a model reply into a single executable command line.
package extract

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?is)```[ \t]*(?:bash|sh|shell|zsh|console)[ \t]*\\r?\\n(.*?)```")

// gluedPrompt matches a "$" prompt written against a lowercase command name,
// as in "$ls -la". Variables in upper case, "${", "$(" and "$name/path" stay.
var gluedPrompt = regexp.MustCompile(`^\$[a-z][a-z0-9_.-]*(\s|$)`)

// Extractor pulls the command out of a reply.
type Extractor struct {
	// NotePrefix lines are annotations and are never executed.
	NotePrefix string
	// DropPhrases are whole lines that are discarded, compared without case.
	DropPhrases []string
}

func New(notePrefix string, dropPhrases ...string) *Extractor {
	return &Extractor{NotePrefix: notePrefix, DropPhrases: dropPhrases}
}

// Extract returns the command carried by reply, or "" when there is none.
// The first fenced shell block wins; without one the whole reply is scanned.
// Surviving lines are joined with " && ".
func (e *Extractor) Extract(reply string) string {
	body := reply
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		body = m[1]
	}

	var parts []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = stripPrompt(line)
		if e.skip(line) {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " && ")
}

func stripPrompt(line string) string {
	if strings.HasPrefix(line, "$ ") || line == "$" || gluedPrompt.MatchString(line) {
		return strings.TrimSpace(line[1:])
	}
	return line
}

func (e *Extractor) skip(line string) bool {
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
		return true
	}
	if e.NotePrefix != "" && len(line) >= len(e.NotePrefix) &&
		strings.EqualFold(line[:len(e.NotePrefix)], e.NotePrefix) {
		return true
	}
	for _, phrase := range e.DropPhrases {
		if strings.EqualFold(strings.Trim(line, " .!'\"`*"), phrase) {
			return true
		}
	}
	return false
}
