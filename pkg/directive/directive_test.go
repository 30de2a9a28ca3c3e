package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	d, ok := Match("I need more info.\nDOCS: nmap\n")
	assert.True(t, ok)
	assert.Equal(t, Directive{Kind: KindDocs, Argument: "nmap"}, d)

	d, ok = Match("search: how to list open ports on linux")
	assert.True(t, ok)
	assert.Equal(t, KindSearch, d.Kind)
	assert.Equal(t, "how to list open ports on linux", d.Argument)

	d, ok = Match("FETCH_DOCS: `masscan`")
	assert.True(t, ok)
	assert.Equal(t, "masscan", d.Argument)
}

func TestMatchEarliestWins(t *testing.T) {
	d, ok := Match("WEB_SEARCH: nmap flags\nDOCS: nmap")
	assert.True(t, ok)
	assert.Equal(t, KindSearch, d.Kind)
}

func TestMatchIgnoresCommandsAndInline(t *testing.T) {
	for _, text := range []string{
		"```bash\nls -la\n```",
		"echo DOCS: nmap",
		"DOCS:   ",
		"",
	} {
		_, ok := Match(text)
		assert.False(t, ok, text)
	}
}
