// Package discover expands a seed set into the bounded set of in-scope URLs
// for a documentation source.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"docmirror/internal/config"
	"docmirror/internal/fetcher"
)

// Result is the outcome of a discovery pass. Errors records seed or expansion
// fetches that failed; those URLs simply yielded no children.
type Result struct {
	URLs   []string
	Errors map[string]string
}

// Discoverer expands seeds under the source's scope and pattern rules.
type Discoverer struct {
	src     *config.Source
	fetcher fetcher.Fetcher
	logger  *slog.Logger

	origin  *url.URL
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// New builds a discoverer. Malformed patterns are fatal here, before any
// fetch happens.
func New(src *config.Source, f fetcher.Fetcher, logger *slog.Logger) (*Discoverer, error) {
	origin, err := src.Origin()
	if err != nil {
		return nil, fmt.Errorf("discovery: parse base url: %w", err)
	}
	include, err := compilePatterns(src.IncludePatterns)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid include pattern: %w", err)
	}
	exclude, err := compilePatterns(src.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid exclude pattern: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		src:     src,
		fetcher: f,
		logger:  logger,
		origin:  origin,
		include: include,
		exclude: exclude,
	}, nil
}

// Run performs discovery for the source's scope and returns the sorted set
// of in-scope URLs. Seeds are always retained regardless of patterns.
func (d *Discoverer) Run(ctx context.Context) (*Result, error) {
	frontier := NewFrontier()
	result := &Result{Errors: make(map[string]string)}

	seeds := make([]string, 0, len(d.src.SeedURLs))
	for _, raw := range d.src.Seeds() {
		key, added := frontier.Add(raw)
		if key == "" {
			return nil, fmt.Errorf("discovery: invalid seed url %q", raw)
		}
		// Normalization-equivalent seeds collapse to one fetch.
		if added {
			seeds = append(seeds, key)
		}
	}

	switch d.src.Scope {
	case config.ScopeSingle:
		// Seed set verbatim, no fetching.
	case config.ScopeSection:
		if err := d.expandSection(ctx, frontier, seeds, result); err != nil {
			return nil, err
		}
	case config.ScopeFull:
		if err := d.expandFull(ctx, frontier, seeds, result); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("discovery: unsupported scope %q", d.src.Scope)
	}

	result.URLs = frontier.URLs()
	sort.Strings(result.URLs)
	return result, nil
}

// expandSection fetches each seed once and admits links that are direct
// children of that seed's path and match an include pattern.
func (d *Discoverer) expandSection(ctx context.Context, frontier *Frontier, seeds []string, result *Result) error {
	pages := d.fetchWave(ctx, seeds, result)
	if len(pages) == 0 {
		return fmt.Errorf("discovery: all %d seeds unreachable", len(seeds))
	}
	for seedURL, links := range pages {
		seedPath := urlPath(seedURL)
		for _, link := range links {
			if !d.admit(link) {
				continue
			}
			if !isDirectChild(seedPath, urlPath(link)) {
				continue
			}
			frontier.Add(link)
		}
	}
	return nil
}

// expandFull grows the frontier wave by wave until no wave discovers a new
// matching URL. Every URL is fetched for expansion at most once; the frontier
// membership check makes link cycles harmless.
func (d *Discoverer) expandFull(ctx context.Context, frontier *Frontier, seeds []string, result *Result) error {
	wave := seeds
	firstWave := true
	for len(wave) > 0 {
		pages := d.fetchWave(ctx, wave, result)
		if firstWave {
			if len(pages) == 0 {
				return fmt.Errorf("discovery: all %d seeds unreachable", len(wave))
			}
			firstWave = false
		}

		var next []string
		for _, links := range pages {
			for _, link := range links {
				if !d.admit(link) {
					continue
				}
				if key, added := frontier.Add(link); added {
					next = append(next, key)
				}
			}
		}
		sort.Strings(next)
		wave = next
	}
	return nil
}

// fetchWave fetches a batch of URLs under the source's concurrency cap and
// returns the links found on each page that answered. Failures are recorded
// and yield no children without aborting the wave.
func (d *Discoverer) fetchWave(ctx context.Context, urls []string, result *Result) map[string][]string {
	var (
		mu    sync.Mutex
		pages = make(map[string][]string, len(urls))
		wg    sync.WaitGroup
		sem   = make(chan struct{}, d.src.Crawler.MaxConcurrent)
	)

	for _, pageURL := range urls {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			fetchCtx, cancel := context.WithTimeout(ctx, d.src.Crawler.PageTimeout.Duration)
			defer cancel()

			page, err := d.fetcher.Fetch(fetchCtx, pageURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.Warn("discovery fetch failed", "url", pageURL, "error", err)
				result.Errors[pageURL] = err.Error()
				return
			}
			pages[pageURL] = page.Links
		}(pageURL)
	}
	wg.Wait()
	return pages
}

// admit applies the origin and pattern rules to a discovered link.
func (d *Discoverer) admit(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Hostname(), d.origin.Hostname()) {
		return false
	}
	if len(d.include) > 0 {
		matched := false
		for _, pat := range d.include {
			if pat.MatchString(link) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pat := range d.exclude {
		if pat.MatchString(link) {
			return false
		}
	}
	return true
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := u.EscapedPath()
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// isDirectChild reports whether child is exactly one path segment below parent.
func isDirectChild(parent, child string) bool {
	if parent == "/" {
		parent = ""
	}
	if !strings.HasPrefix(child, parent+"/") {
		return false
	}
	rest := strings.TrimPrefix(child, parent+"/")
	return rest != "" && !strings.Contains(rest, "/")
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		pat, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, pat)
	}
	return compiled, nil
}
