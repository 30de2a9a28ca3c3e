package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// rule replaces matches of re with repl, which may reference groups to keep
// the key of a key/value pair visible.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor masks credentials in log lines. Commands and their output are
// logged verbatim, so anything the model or a command prints passes through
// here.
type Redactor struct {
	rules []rule
}

// NewRedactor creates a redactor for provider keys, bearer tokens and
// password-like key/value pairs.
func NewRedactor() *Redactor {
	whole := func(expr string) rule {
		return rule{re: regexp.MustCompile(expr), repl: redacted}
	}
	keyed := func(expr string) rule {
		return rule{re: regexp.MustCompile(expr), repl: "${1}${2}" + redacted}
	}

	return &Redactor{
		rules: []rule{
			// Anthropic and OpenRouter before the generic OpenAI form.
			whole(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			whole(`sk-or-[a-zA-Z0-9_-]{20,}`),
			whole(`sk-[a-zA-Z0-9_-]{20,}`),
			whole(`AIza[0-9A-Za-z_-]{35}`),
			whole(`AKIA[0-9A-Z]{16}`),
			whole(`Bearer\s+[a-zA-Z0-9._-]+`),

			keyed(`(?i)\b(x-api-key|x-goog-api-key)(:\s*)\S+`),
			keyed(`(?i)(password|passwd|secret)(["'\s]*[:=]["'\s]*)[^\s"']+`),
			keyed(`(?i)\b(token|api[_-]?key)(["'\s]*[:=]["'\s]*)[a-zA-Z0-9._-]{16,}`),
		},
	}
}

// AddPattern masks every match of pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re, repl: redacted})
	return nil
}

func (r *Redactor) Redact(s string) string {
	for _, rl := range r.rules {
		s = rl.re.ReplaceAllString(s, rl.repl)
	}
	return s
}

// Wrap returns a writer that redacts before writing to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success, since redaction changes the length.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.writer, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
