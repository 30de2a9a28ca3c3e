package executor

import (
	"context"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var hostPattern = regexp.MustCompile(`\b([A-Za-z0-9._-]+\.[A-Za-z]{2,})\b`)

// HostResolver looks up the addresses of a host name.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// HostRewriter replaces host names in a command with their numeric address.
type HostRewriter struct {
	resolver HostResolver
	timeout  time.Duration
	cache    *expirable.LRU[string, string]
}

func NewHostRewriter(resolver HostResolver, cacheSize int, ttl time.Duration) *HostRewriter {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HostRewriter{
		resolver: resolver,
		timeout:  3 * time.Second,
		cache:    expirable.NewLRU[string, string](cacheSize, nil, ttl),
	}
}

// Rewrite substitutes every resolvable host name token with its address.
// Tokens inside URLs and tokens naming an existing local path are skipped.
// Lookup failures leave the text unchanged.
func (h *HostRewriter) Rewrite(ctx context.Context, command string) string {
	matches := hostPattern.FindAllStringSubmatchIndex(command, -1)
	if len(matches) == 0 {
		return command
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2], m[3]
		host := command[start:end]
		if skipHost(command, start, end, host) {
			continue
		}
		addr := h.lookup(ctx, host)
		if addr == "" {
			continue
		}
		b.WriteString(command[last:start])
		b.WriteString(addr)
		last = end
	}
	if last == 0 {
		return command
	}
	b.WriteString(command[last:])
	return b.String()
}

func (h *HostRewriter) lookup(ctx context.Context, host string) string {
	key := strings.ToLower(host)
	if addr, ok := h.cache.Get(key); ok {
		return addr
	}

	lookupCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	addrs, err := h.resolver.LookupIPAddr(lookupCtx, host)
	addr := ""
	if err == nil {
		addr = pickAddress(addrs)
	}
	if ctx.Err() == nil {
		h.cache.Add(key, addr)
	}
	return addr
}

func pickAddress(addrs []net.IPAddr) string {
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP.String()
	}
	return ""
}

func skipHost(command string, start, end int, host string) bool {
	tokStart := strings.LastIndexAny(command[:start], " \t\"'=") + 1
	tokEnd := strings.IndexAny(command[end:], " \t\"'")
	if tokEnd < 0 {
		tokEnd = len(command)
	} else {
		tokEnd += end
	}
	token := command[tokStart:tokEnd]
	if strings.Contains(token, "://") {
		return true
	}
	if start > 0 && command[start-1] == '/' {
		return true
	}
	if end < len(command) && command[end] == '/' {
		return true
	}
	if _, err := os.Stat(host); err == nil {
		return true
	}
	return false
}
