// Package robots gates crawl targets on their site's robots.txt.
package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"docmirror/internal/config"
)

// Agent answers allow/deny questions for crawl targets. Parsed rules are
// cached per host for the configured TTL so a crawl of n pages fetches
// robots.txt once, not n times.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool

	mu    sync.RWMutex
	cache map[string]record
}

type record struct {
	rules   *robotstxt.RobotsData
	expires time.Time
}

// NewAgent constructs a robots agent from configuration.
func NewAgent(cfg config.RobotsConfig, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Agent{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		respect:   cfg.Respect,
		cache:     make(map[string]record),
	}
}

// Allowed reports whether the target URL may be fetched. Errors obtaining or
// parsing robots.txt fail open.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	if !a.respect {
		return true
	}

	rules := a.rulesFor(ctx, target)
	if rules == nil {
		return true
	}

	group := rules.FindGroup(a.userAgent)
	if group == nil {
		if group = rules.FindGroup("*"); group == nil {
			return true
		}
	}
	return group.Test(target.Path)
}

// rulesFor returns the cached rules for the target's host, fetching them when
// absent or expired. A nil return means no usable rules exist.
func (a *Agent) rulesFor(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, cached := a.cache[host]
	a.mu.RUnlock()
	if cached && time.Now().Before(entry.expires) {
		return entry.rules
	}

	rules, err := a.fetch(ctx, target.Scheme, target.Host)
	if err != nil {
		return nil
	}

	a.mu.Lock()
	a.cache[host] = record{rules: rules, expires: time.Now().Add(a.ttl)}
	a.mu.Unlock()
	return rules
}

func (a *Agent) fetch(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	robotsURL := scheme + "://" + host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("robots returned status %d", resp.StatusCode)
	}
	return robotstxt.FromResponse(resp)
}
