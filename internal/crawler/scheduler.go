// Package crawler drives the fetcher over a frontier of URLs under a bounded
// worker pool, tolerating partial failure.
package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"docmirror/internal/discover"
	"docmirror/internal/fetcher"
	"docmirror/internal/robots"
	"docmirror/pkg/types"
)

// Options configures a scheduler run.
type Options struct {
	MaxConcurrent int
	PageTimeout   time.Duration
	Robots        *robots.Agent
	Limiter       *HostLimiter
	Logger        *slog.Logger
}

// Scheduler fans a URL set out to workers and collects one PageResult per
// URL. Page failures are recorded, never escalated; there is no ordering
// guarantee across pages.
type Scheduler struct {
	fetcher fetcher.Fetcher
	opts    Options
}

// New builds a scheduler around a fetcher.
func New(f fetcher.Fetcher, opts Options) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{fetcher: f, opts: opts}
}

// Run crawls every URL and returns exactly one result per URL, successful or
// not. At most MaxConcurrent fetches are in flight at any moment.
func (s *Scheduler) Run(ctx context.Context, urls []string) []types.PageResult {
	jobs := make(chan string)
	out := make(chan types.PageResult, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < s.opts.MaxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case pageURL, ok := <-jobs:
					if !ok {
						return
					}
					out <- s.crawlOne(ctx, pageURL)
				}
			}
		}()
	}

	submitted := 0
feed:
	for _, pageURL := range urls {
		select {
		case jobs <- pageURL:
			submitted++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]types.PageResult, 0, submitted)
	for r := range out {
		results = append(results, r)
	}
	return results
}

// crawlOne fetches a single page, retrying once on transient network failure.
func (s *Scheduler) crawlOne(ctx context.Context, pageURL string) types.PageResult {
	result := types.PageResult{
		URL:      pageURL,
		FilePath: discover.FilePath(pageURL),
		Status:   types.FetchError,
	}
	if key, err := discover.Normalize(pageURL); err == nil {
		result.Key = key
	}

	target, err := url.Parse(pageURL)
	if err != nil {
		result.Reason = "invalid url: " + err.Error()
		return result
	}

	if s.opts.Robots != nil && !s.opts.Robots.Allowed(ctx, target) {
		result.Reason = "disallowed by robots.txt"
		return result
	}

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx, target.Hostname()); err != nil {
			result.Reason = "interrupted: " + err.Error()
			return result
		}
	}

	page, err := s.fetchWithTimeout(ctx, pageURL)
	if err != nil && fetcher.Transient(err) && ctx.Err() == nil {
		s.opts.Logger.Debug("retrying transient fetch failure", "url", pageURL, "error", err)
		page, err = s.fetchWithTimeout(ctx, pageURL)
	}
	if err != nil {
		s.opts.Logger.Warn("fetch failed", "url", pageURL, "error", err)
		result.Reason = err.Error()
		return result
	}

	result.Status = types.FetchOK
	result.Page = page
	return result
}

func (s *Scheduler) fetchWithTimeout(ctx context.Context, pageURL string) (*types.Page, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.PageTimeout)
	defer cancel()
	return s.fetcher.Fetch(fetchCtx, pageURL)
}
