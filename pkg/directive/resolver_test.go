package directive

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeDocs struct {
	calls int
	page  *Page
	err   error
}

func (f *fakeDocs) Fetch(_ context.Context, _ string) (*Page, error) {
	f.calls++
	return f.page, f.err
}

type fakeSearch struct {
	results []SearchResult
	err     error
	count   int
}

func (f *fakeSearch) Search(_ context.Context, _ string, count int) ([]SearchResult, error) {
	f.count = count
	return f.results, f.err
}

func TestResolveDocsIsCached(t *testing.T) {
	docs := &fakeDocs{page: &Page{Title: "nmap", Text: "Network exploration tool."}}
	r := NewResolver(Config{Docs: docs, Logger: zerolog.Nop()})

	d := Directive{Kind: KindDocs, Argument: "nmap"}
	out := r.Resolve(context.Background(), d)
	assert.Equal(t, "Documentation for nmap: nmap\nNetwork exploration tool.", out)

	assert.Equal(t, out, r.Resolve(context.Background(), d))
	assert.Equal(t, 1, docs.calls)
}

func TestResolveDocsFailure(t *testing.T) {
	docs := &fakeDocs{err: errors.New("status 404")}
	r := NewResolver(Config{Docs: docs, Logger: zerolog.Nop()})

	out := r.Resolve(context.Background(), Directive{Kind: KindDocs, Argument: "nosuchtool"})
	assert.Equal(t, "No documentation found for nosuchtool.", out)

	r.Resolve(context.Background(), Directive{Kind: KindDocs, Argument: "nosuchtool"})
	assert.Equal(t, 2, docs.calls)
}

func TestResolveSearch(t *testing.T) {
	search := &fakeSearch{results: []SearchResult{
		{Title: "Nmap Reference", URL: "https://nmap.org/book/man.html", Snippet: "Options summary"},
		{Title: "Other", URL: "https://example.com"},
	}}
	r := NewResolver(Config{Search: search, MaxResults: 3, Logger: zerolog.Nop()})

	out := r.Resolve(context.Background(), Directive{Kind: KindSearch, Argument: "nmap options"})
	assert.Equal(t, 3, search.count)
	assert.Equal(t, "Search results for \"nmap options\":\n"+
		"1. Nmap Reference - https://nmap.org/book/man.html\n   Options summary\n"+
		"2. Other - https://example.com", out)
}

func TestResolveDisabledLookups(t *testing.T) {
	r := NewResolver(Config{Logger: zerolog.Nop()})
	assert.Contains(t, r.Resolve(context.Background(), Directive{Kind: KindSearch, Argument: "x"}), "no results")
	assert.Contains(t, r.Resolve(context.Background(), Directive{Kind: KindDocs, Argument: "x"}), "No documentation")
}

func TestResolveTruncates(t *testing.T) {
	docs := &fakeDocs{page: &Page{Title: "t", Text: strings.Repeat("a", 5000)}}
	r := NewResolver(Config{Docs: docs, MaxChars: 100, Logger: zerolog.Nop()})

	out := r.Resolve(context.Background(), Directive{Kind: KindDocs, Argument: "big"})
	assert.Len(t, out, 103)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestResolveRateLimitHonoursContext(t *testing.T) {
	docs := &fakeDocs{page: &Page{Title: "t", Text: "x"}}
	r := NewResolver(Config{Docs: docs, RatePerMinute: 1, Logger: zerolog.Nop()})

	r.Resolve(context.Background(), Directive{Kind: KindDocs, Argument: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Resolve(ctx, Directive{Kind: KindDocs, Argument: "second"})
	assert.Equal(t, "No documentation found for second.", out)
	assert.Equal(t, 1, docs.calls)
}
