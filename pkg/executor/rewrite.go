package executor

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
)

// DefaultPingCount bounds ping invocations that would otherwise run forever.
const DefaultPingCount = 4

var pingWord = regexp.MustCompile(`(^|[\s;&|(])((?:\S*/)?ping6?)(\s|$)`)

// segment is a piece of a command list together with the operator that
// follows it ("&&", "||", ";" or "" for the last one).
type segment struct {
	text string
	sep  string
}

// splitList splits a command line on unquoted "&&", "||" and ";".
func splitList(command string) []segment {
	var (
		segs   []segment
		start  int
		single bool
		double bool
	)
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case c == '\\' && !single:
			i++
		case c == '\'' && !double:
			single = !single
		case c == '"' && !single:
			double = !double
		case single || double:
		case c == ';':
			segs = append(segs, segment{text: command[start:i], sep: ";"})
			start = i + 1
		case (c == '&' || c == '|') && i+1 < len(command) && command[i+1] == c:
			segs = append(segs, segment{text: command[start:i], sep: string([]byte{c, c})})
			start = i + 2
			i++
		}
	}
	return append(segs, segment{text: command[start:]})
}

func joinList(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.text)
		b.WriteString(s.sep)
	}
	return b.String()
}

// BoundPings adds a count flag ("-c count", "-n count" on Windows) to every
// ping in the command list that does not already stop on its own. Segments
// that cannot be parsed are left untouched.
func BoundPings(command string, count int) string {
	if count <= 0 {
		count = DefaultPingCount
	}
	if !strings.Contains(command, "ping") {
		return command
	}

	segs := splitList(command)
	changed := false
	for i, s := range segs {
		if rewritten, ok := boundSegment(s.text, count); ok {
			segs[i].text = rewritten
			changed = true
		}
	}
	if !changed {
		return command
	}
	return joinList(segs)
}

func boundSegment(text string, count int) (string, bool) {
	words, err := shellwords.Parse(text)
	if err != nil || len(words) == 0 {
		return text, false
	}

	idx := 0
	for idx < len(words) && isWrapper(words[idx]) {
		idx++
	}
	if idx >= len(words) {
		return text, false
	}
	base := filepath.Base(words[idx])
	if base != "ping" && base != "ping6" {
		return text, false
	}
	if pingBounded(words[idx+1:]) {
		return text, false
	}

	loc := pingWord.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, false
	}
	insertAt := loc[5]
	return text[:insertAt] + " " + pingCountFlag + " " + strconv.Itoa(count) + text[insertAt:], true
}

func isWrapper(word string) bool {
	switch word {
	case "sudo", "time", "nohup", "exec":
		return true
	}
	return strings.Contains(word, "=") && !strings.HasPrefix(word, "-")
}
