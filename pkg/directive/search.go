package directive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultSearchURL is DuckDuckGo's HTML endpoint.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// SearchResult is one ranked web result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// DuckDuckGoSearcher scrapes the DuckDuckGo HTML results page.
type DuckDuckGoSearcher struct {
	Endpoint  string
	Client    *http.Client
	UserAgent string
}

func NewDuckDuckGoSearcher(endpoint string, timeout time.Duration) *DuckDuckGoSearcher {
	if endpoint == "" {
		endpoint = DefaultSearchURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGoSearcher{
		Endpoint:  endpoint,
		Client:    &http.Client{Timeout: timeout},
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) shellagent/1.0",
	}
}

func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	searchURL := s.Endpoint + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return extractDDGResults(string(body), count), nil
}

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a[^>]*class="result__snippet[^"]*"[^>]*>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func extractDDGResults(page string, count int) []SearchResult {
	links := ddgLinkRe.FindAllStringSubmatch(page, count+5)
	snippets := ddgSnippetRe.FindAllStringSubmatch(page, count+5)

	var results []SearchResult
	for i := 0; i < len(links) && len(results) < count; i++ {
		result := SearchResult{
			Title: cleanHTML(links[i][2]),
			URL:   unwrapRedirect(links[i][1]),
		}
		if i < len(snippets) {
			result.Snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, result)
	}
	return results
}

// unwrapRedirect extracts the target of a DuckDuckGo "uddg=" redirect link.
func unwrapRedirect(raw string) string {
	raw = strings.ReplaceAll(raw, "&amp;", "&")
	if !strings.Contains(raw, "uddg=") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func cleanHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#x27;", "'", "&#39;", "'").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
