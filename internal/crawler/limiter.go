package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterSettings configures token-bucket style rate limiting per host.
type RateLimiterSettings struct {
	Requests int
	Window   time.Duration
}

// hostState tracks politeness bookkeeping for a single host.
type hostState struct {
	lastRequest time.Time
	bucket      *rate.Limiter
}

// HostLimiter spaces requests per host: a fixed minimum delay between
// consecutive requests, plus an optional token bucket. Hosts are independent;
// a stall on one never delays another.
type HostLimiter struct {
	delay    time.Duration
	settings RateLimiterSettings

	mu    sync.Mutex
	hosts map[string]*hostState
}

// NewHostLimiter creates a limiter with a per-host delay and optional rate limit.
func NewHostLimiter(delay time.Duration, settings RateLimiterSettings) *HostLimiter {
	if settings.Requests <= 0 || settings.Window <= 0 {
		settings = RateLimiterSettings{}
	}
	return &HostLimiter{
		delay:    delay,
		settings: settings,
		hosts:    make(map[string]*hostState),
	}
}

// Wait blocks until the host's politeness constraints are satisfied, or the
// context is cancelled. A nil limiter waits for nothing.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	if l.delay <= 0 && l.settings.Requests == 0 {
		return nil
	}
	host = strings.ToLower(host)

	state, pause := l.reserve(host)

	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if state.bucket != nil {
		if err := state.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	l.mu.Lock()
	state.lastRequest = time.Now()
	l.mu.Unlock()
	return nil
}

// reserve looks up (or creates) the host's state and computes how long the
// caller must pause to honour the fixed delay.
func (l *HostLimiter) reserve(host string) (*hostState, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.hosts[host]
	if !ok {
		state = &hostState{}
		if l.settings.Requests > 0 {
			interval := l.settings.Window / time.Duration(l.settings.Requests)
			if interval <= 0 {
				interval = time.Millisecond
			}
			state.bucket = rate.NewLimiter(rate.Every(interval), l.settings.Requests)
		}
		l.hosts[host] = state
	}

	var pause time.Duration
	if l.delay > 0 && !state.lastRequest.IsZero() {
		if rest := time.Until(state.lastRequest.Add(l.delay)); rest > 0 {
			pause = rest
		}
	}
	return state, pause
}
