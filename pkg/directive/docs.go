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

	"golang.org/x/net/html"
)

// DefaultDocsURL points at the tldr-pages command summaries.
const DefaultDocsURL = "https://raw.githubusercontent.com/tldr-pages/tldr/main/pages/common/%s.md"

const maxDocBytes = 1 << 20

var (
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
)

// HTTPDocFetcher fetches a documentation page for a tool name. URLTemplate
// holds a single %s that receives the escaped tool name.
type HTTPDocFetcher struct {
	URLTemplate string
	Client      *http.Client
	UserAgent   string
}

func NewHTTPDocFetcher(urlTemplate string, timeout time.Duration) *HTTPDocFetcher {
	if urlTemplate == "" {
		urlTemplate = DefaultDocsURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPDocFetcher{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: timeout},
		UserAgent:   "shellagent/1.0",
	}
}

// Page is fetched documentation reduced to plain text.
type Page struct {
	Title string
	Text  string
}

func (f *HTTPDocFetcher) Fetch(ctx context.Context, tool string) (*Page, error) {
	fields := strings.Fields(tool)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty tool name")
	}
	name := strings.ToLower(fields[0])
	pageURL := fmt.Sprintf(f.URLTemplate, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docs for %s: status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return htmlPage(string(body), name)
	}
	return markdownPage(string(body), name), nil
}

func markdownPage(body, fallbackTitle string) *Page {
	title := fallbackTitle
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") && title == fallbackTitle {
			title = strings.TrimSpace(trimmed[2:])
			continue
		}
		lines = append(lines, strings.TrimPrefix(trimmed, "> "))
	}
	return &Page{Title: title, Text: tidy(strings.Join(lines, "\n"))}
}

func htmlPage(body, fallbackTitle string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &Page{Title: fallbackTitle}
	var sb strings.Builder
	extractText(doc, &sb, page, 0)
	page.Text = tidy(sb.String())
	return page, nil
}

func extractText(n *html.Node, sb *strings.Builder, page *Page, depth int) {
	if depth > 64 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header":
			return
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				if t := strings.TrimSpace(n.FirstChild.Data); t != "" {
					page.Title = t
				}
			}
			return
		case "p", "div", "pre", "li", "h1", "h2", "h3", "h4", "tr":
			sb.WriteString("\n")
		case "br":
			sb.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, page, depth+1)
	}
}

func tidy(s string) string {
	s = multiSpaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
