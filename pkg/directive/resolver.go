package directive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harun/shellagent/internal/observability"
	"github.com/harun/shellagent/internal/tracing"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// DocFetcher fetches documentation for a tool.
type DocFetcher interface {
	Fetch(ctx context.Context, tool string) (*Page, error)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// Config configures a Resolver.
type Config struct {
	Docs     DocFetcher
	Search   Searcher
	MaxChars int
	// MaxResults bounds the number of search results returned.
	MaxResults int
	CacheSize  int
	CacheTTL   time.Duration
	// RatePerMinute limits network lookups. Zero disables the limit.
	RatePerMinute int
	Logger        zerolog.Logger
}

// Resolver turns directives into context strings. Lookup failures produce a
// short explanatory string, never an error.
type Resolver struct {
	cfg     Config
	cache   *expirable.LRU[string, string]
	limiter *rate.Limiter
}

func NewResolver(cfg Config) *Resolver {
	observability.EnsureRegistered()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 2000
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	r := &Resolver{
		cfg:   cfg,
		cache: expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
	}
	if cfg.RatePerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return r
}

// Match returns the earliest directive in text.
func (r *Resolver) Match(text string) (Directive, bool) {
	return Match(text)
}

// Resolve returns the context string for d.
func (r *Resolver) Resolve(ctx context.Context, d Directive) string {
	key := string(d.Kind) + "\x00" + strings.ToLower(d.Argument)
	if cached, ok := r.cache.Get(key); ok {
		observability.RecordDirective(string(d.Kind), "cache")
		return cached
	}

	ctx, span := tracing.StartSpan(ctx, "directive.resolve",
		attribute.String("kind", string(d.Kind)),
		attribute.String("argument", d.Argument),
	)
	logger := tracing.LoggerFromContext(ctx, r.cfg.Logger)

	out, err := r.lookup(ctx, d)
	tracing.EndSpan(span, err)
	if err != nil {
		observability.RecordDirective(string(d.Kind), "error")
		logger.Warn().Err(err).Str("kind", string(d.Kind)).Str("argument", d.Argument).Msg("Directive lookup failed")
		return failureContext(d)
	}

	observability.RecordDirective(string(d.Kind), "fetch")
	r.cache.Add(key, out)
	return out
}

func (r *Resolver) lookup(ctx context.Context, d Directive) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	switch d.Kind {
	case KindDocs:
		if r.cfg.Docs == nil {
			return "", fmt.Errorf("documentation lookup disabled")
		}
		page, err := r.cfg.Docs.Fetch(ctx, d.Argument)
		if err != nil {
			return "", err
		}
		return truncate(fmt.Sprintf("Documentation for %s: %s\n%s", d.Argument, page.Title, page.Text), r.cfg.MaxChars), nil
	case KindSearch:
		if r.cfg.Search == nil {
			return "", fmt.Errorf("web search disabled")
		}
		results, err := r.cfg.Search.Search(ctx, d.Argument, r.cfg.MaxResults)
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			return fmt.Sprintf("Search results for %q: no results found.", d.Argument), nil
		}
		return truncate(formatResults(d.Argument, results), r.cfg.MaxChars), nil
	default:
		return "", fmt.Errorf("unknown directive kind: %s", d.Kind)
	}
}

func formatResults(query string, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:", query)
	for i, res := range results {
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, res.Title, res.URL)
		if res.Snippet != "" {
			fmt.Fprintf(&b, "\n   %s", res.Snippet)
		}
	}
	return b.String()
}

func failureContext(d Directive) string {
	if d.Kind == KindDocs {
		return fmt.Sprintf("No documentation found for %s.", d.Argument)
	}
	return fmt.Sprintf("Search results for %q: no results found.", d.Argument)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}
