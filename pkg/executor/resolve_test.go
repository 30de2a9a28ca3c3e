package executor

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	mu    sync.Mutex
	hosts map[string][]net.IPAddr
	calls map[string]int
}

func newFakeResolver(hosts map[string]string) *fakeResolver {
	r := &fakeResolver{hosts: map[string][]net.IPAddr{}, calls: map[string]int{}}
	for name, ip := range hosts {
		r.hosts[name] = []net.IPAddr{{IP: net.ParseIP(ip)}}
	}
	return r
}

func (r *fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[host]++
	if addrs, ok := r.hosts[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

func TestHostRewriteReplacesAllOccurrences(t *testing.T) {
	res := newFakeResolver(map[string]string{"example.com": "93.184.216.34"})
	h := NewHostRewriter(res, 16, time.Minute)

	out := h.Rewrite(context.Background(), "ping -c 4 example.com && nmap example.com")
	assert.Equal(t, "ping -c 4 93.184.216.34 && nmap 93.184.216.34", out)
	assert.Equal(t, 1, res.calls["example.com"])
}

func TestHostRewriteLeavesUnresolvable(t *testing.T) {
	res := newFakeResolver(map[string]string{"good.org": "10.1.2.3"})
	h := NewHostRewriter(res, 16, time.Minute)

	out := h.Rewrite(context.Background(), "dig nowhere.invalid && ping good.org")
	assert.Equal(t, "dig nowhere.invalid && ping 10.1.2.3", out)

	assert.Equal(t, "ls -la", h.Rewrite(context.Background(), "ls -la"))
}

func TestHostRewriteSkipsURLsAndFiles(t *testing.T) {
	res := newFakeResolver(map[string]string{"example.com": "1.2.3.4", "notes.txt": "5.6.7.8"})
	h := NewHostRewriter(res, 16, time.Minute)

	dir := t.TempDir()
	wd, err := os.Getwd()
	assert.NoError(t, err)
	assert.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))

	cmd := "curl https://example.com/index.html && cat notes.txt"
	assert.Equal(t, cmd, h.Rewrite(context.Background(), cmd))
}

func TestHostRewritePrefersIPv4(t *testing.T) {
	res := &fakeResolver{
		hosts: map[string][]net.IPAddr{
			"dual.net": {{IP: net.ParseIP("2001:db8::1")}, {IP: net.ParseIP("192.0.2.7")}},
			"six.net":  {{IP: net.ParseIP("2001:db8::2")}},
		},
		calls: map[string]int{},
	}
	h := NewHostRewriter(res, 16, time.Minute)

	assert.Equal(t, "ping 192.0.2.7", h.Rewrite(context.Background(), "ping dual.net"))
	assert.Equal(t, "ping6 2001:db8::2", h.Rewrite(context.Background(), "ping6 six.net"))
}
