// Package directive recognizes in-band requests for extra context in model
// replies and resolves them to a context string.
package directive

import (
	"regexp"
	"strings"
)

// Kind is the type of a directive.
type Kind string

const (
	KindDocs   Kind = "docs"
	KindSearch Kind = "search"
)

// Directive is a recognized request found in a reply.
type Directive struct {
	Kind     Kind
	Argument string
}

var patterns = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{KindDocs, regexp.MustCompile(`(?im)^[\s>*\-]*(?:FETCH_DOCS|DOCS):\s*(.+?)\s*$`)},
	{KindSearch, regexp.MustCompile(`(?im)^[\s>*\-]*(?:WEB_SEARCH|SEARCH):\s*(.+?)\s*$`)},
}

// Match returns the earliest directive in text.
func Match(text string) (Directive, bool) {
	best := -1
	var found Directive
	for _, p := range patterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			found = Directive{Kind: p.kind, Argument: cleanArgument(text[loc[2]:loc[3]])}
		}
	}
	if best == -1 || found.Argument == "" {
		return Directive{}, false
	}
	return found, true
}

func cleanArgument(arg string) string {
	return strings.Trim(strings.TrimSpace(arg), "`\"'<>")
}
