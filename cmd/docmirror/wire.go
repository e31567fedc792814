package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"docmirror/internal/cleaner"
	"docmirror/internal/config"
	"docmirror/internal/crawler"
	"docmirror/internal/discover"
	"docmirror/internal/fetcher"
	"docmirror/internal/generate"
	"docmirror/internal/robots"
	"docmirror/internal/state"
)

// cliEnv carries the persistent flag values commands resolve at run time.
type cliEnv struct {
	sourcesDir *string
	logLevel   *string
	logJSON    *bool
}

// app is the fully wired pipeline for one source.
type app struct {
	name        string
	src         *config.Source
	logger      *slog.Logger
	statePath   string
	outputDir   string
	state       *state.CrawlState
	httpFetcher *fetcher.HTTPFetcher
	scheduler   *crawler.Scheduler
	discoverer  *discover.Discoverer
	transformer cleaner.Transformer
	titleSuffix *regexp.Regexp
}

// open loads a source's configuration and state and wires the crawl pipeline.
// A corrupt state file is warned about and replaced by an empty one in memory;
// the file on disk stays untouched until the next successful save.
func (e *cliEnv) open(name string, maxConcurrent int) (*app, error) {
	logger, err := config.BuildLogger(config.LoggingConfig{
		Level:      *e.logLevel,
		Structured: *e.logJSON,
	}, os.Stderr)
	if err != nil {
		return nil, err
	}

	src, err := config.LoadSource(*e.sourcesDir, name)
	if err != nil {
		return nil, err
	}
	if maxConcurrent > 0 {
		src.Crawler.MaxConcurrent = maxConcurrent
	}

	sourceDir := filepath.Join(*e.sourcesDir, name)
	statePath := filepath.Join(sourceDir, state.FileName)
	st, err := state.Load(statePath)
	if err != nil {
		if !errors.Is(err, state.ErrCorrupt) {
			return nil, err
		}
		logger.Warn("crawl state unreadable, starting from empty", "source", name, "error", err)
	}
	if st.Source == "" {
		st.Source = name
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    src.Crawler.UserAgent,
		Headers:      src.Crawler.Headers,
		Timeout:      src.Crawler.PageTimeout.Duration,
		MaxBodyBytes: src.Crawler.MaxBodyBytes,
		ProxyURL:     src.Crawler.ProxyURL,
		ExcludedTags: src.Crawler.ExcludedTags,
	})
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}

	var pageFetcher fetcher.Fetcher = httpFetcher
	if src.Rendering.Enabled {
		renderer := fetcher.NewChromedpRenderer(fetcher.RenderOptions{
			Timeout:            src.Rendering.Timeout.Duration,
			WaitForSelector:    src.Rendering.WaitForSelector,
			UserAgent:          src.Crawler.UserAgent,
			DisableHeadless:    src.Rendering.DisableHeadless,
			ConcurrentSessions: src.Rendering.ConcurrentSessions,
			ExcludedTags:       src.Crawler.ExcludedTags,
		})
		pageFetcher = fetcher.NewComposite(httpFetcher, renderer)
	}

	var robotsAgent *robots.Agent
	if src.Robots.Respect {
		robotsAgent = robots.NewAgent(src.Robots, httpFetcher.Client())
	}

	limiter := crawler.NewHostLimiter(src.Crawler.PerHostDelay.Duration, crawler.RateLimiterSettings{
		Requests: src.Crawler.RateLimit.Requests,
		Window:   src.Crawler.RateLimit.Window.Duration,
	})

	sched := crawler.New(pageFetcher, crawler.Options{
		MaxConcurrent: src.Crawler.MaxConcurrent,
		PageTimeout:   src.Crawler.PageTimeout.Duration,
		Robots:        robotsAgent,
		Limiter:       limiter,
		Logger:        logger,
	})

	disc, err := discover.New(src, pageFetcher, logger)
	if err != nil {
		return nil, err
	}

	var titleSuffix *regexp.Regexp
	if src.Output.TitleSuffixPattern != "" {
		titleSuffix, err = regexp.Compile(src.Output.TitleSuffixPattern)
		if err != nil {
			return nil, fmt.Errorf("source %q: invalid title_suffix_pattern: %w", name, err)
		}
	}

	return &app{
		name:        name,
		src:         src,
		logger:      logger,
		statePath:   statePath,
		outputDir:   filepath.Join(sourceDir, "output"),
		state:       st,
		httpFetcher: httpFetcher,
		scheduler:   sched,
		discoverer:  disc,
		transformer: cleaner.For(src.Cleaner.Module),
		titleSuffix: titleSuffix,
	}, nil
}

func (a *app) genOptions() generate.Options {
	return generate.Options{
		OutputDir:      a.outputDir,
		Frontmatter:    a.src.Output.Frontmatter,
		TransformLinks: a.src.Output.TransformLinks,
		Transformer:    a.transformer,
		TitleSuffix:    a.titleSuffix,
	}
}
