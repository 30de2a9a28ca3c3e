package directive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tldrPage = `# tar

> Archiving utility.
> More information: <https://www.gnu.org/software/tar>.

- Create an archive:

` + "`tar cf {{target.tar}} {{file1}}`" + `
`

func TestHTTPDocFetcherMarkdown(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(tldrPage))
	}))
	defer srv.Close()

	f := NewHTTPDocFetcher(srv.URL+"/pages/%s.md", time.Second)
	page, err := f.Fetch(context.Background(), "TAR extra words")
	require.NoError(t, err)

	assert.Equal(t, "/pages/tar.md", gotPath)
	assert.Equal(t, "tar", page.Title)
	assert.Contains(t, page.Text, "Archiving utility.")
	assert.Contains(t, page.Text, "Create an archive:")
	assert.NotContains(t, page.Text, "\n\n\n")
}

func TestHTTPDocFetcherHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>curl(1) manual</title><script>var x=1;</script></head>
<body><nav>menu</nav><h1>NAME</h1><p>curl - transfer a URL</p></body></html>`))
	}))
	defer srv.Close()

	page, err := NewHTTPDocFetcher(srv.URL+"/%s", time.Second).Fetch(context.Background(), "curl")
	require.NoError(t, err)
	assert.Equal(t, "curl(1) manual", page.Title)
	assert.Contains(t, page.Text, "curl - transfer a URL")
	assert.NotContains(t, page.Text, "var x")
	assert.NotContains(t, page.Text, "menu")
}

func TestHTTPDocFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewHTTPDocFetcher(srv.URL+"/%s", time.Second).Fetch(context.Background(), "nope")
	assert.Error(t, err)
}

const ddgPage = `<div class="result">
<a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fnmap.org%2Fbook%2Fman.html&amp;rut=abc">Nmap <b>Reference</b> Guide</a>
<a class="result__snippet" href="x">Nmap is a <b>free</b> &amp; open source scanner.</a>
</div>
<div class="result">
<a rel="nofollow" class="result__a" href="https://example.com/ports">Open ports</a>
<a class="result__snippet" href="y">List listening ports.</a>
</div>`

func TestDuckDuckGoSearcher(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	s := NewDuckDuckGoSearcher(srv.URL+"/html/", time.Second)
	results, err := s.Search(context.Background(), "nmap options", 5)
	require.NoError(t, err)

	assert.Equal(t, "nmap options", gotQuery)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{
		Title:   "Nmap Reference Guide",
		URL:     "https://nmap.org/book/man.html",
		Snippet: "Nmap is a free & open source scanner.",
	}, results[0])
	assert.Equal(t, "https://example.com/ports", results[1].URL)

	one, err := s.Search(context.Background(), "nmap options", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
