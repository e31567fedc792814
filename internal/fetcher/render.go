package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"docmirror/pkg/types"
)

// RenderOptions configures the JavaScript rendering pipeline.
type RenderOptions struct {
	Timeout            time.Duration
	WaitForSelector    string
	UserAgent          string
	DisableHeadless    bool
	ConcurrentSessions int
	ExcludedTags       []string
}

// ChromedpRenderer executes headless Chrome sessions using chromedp. Some
// documentation sites assemble their article body client-side; for those the
// plain HTTP path sees an empty shell.
type ChromedpRenderer struct {
	opts      RenderOptions
	semaphore chan struct{}
}

// NewChromedpRenderer constructs a renderer with bounded concurrency.
func NewChromedpRenderer(opts RenderOptions) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ConcurrentSessions <= 0 {
		opts.ConcurrentSessions = 1
	}
	return &ChromedpRenderer{
		opts:      opts,
		semaphore: make(chan struct{}, opts.ConcurrentSessions),
	}
}

// Render navigates to the target URL, waits for the DOM to settle, and
// extracts the page from the final outer HTML. Validator headers are not
// available through the browser path and are left empty.
func (r *ChromedpRenderer) Render(parentCtx context.Context, pageURL string) (*types.Page, error) {
	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-parentCtx.Done():
		return nil, parentCtx.Err()
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.opts.Timeout)
	defer cancel()

	headless := !r.opts.DisableHeadless
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
	}
	if sel := strings.TrimSpace(r.opts.WaitForSelector); sel != "" {
		actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	var outerHTML string
	var finalURL string
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	)

	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	if finalURL == "" {
		finalURL = pageURL
	}

	page, err := Extract(finalURL, []byte(outerHTML), r.opts.ExcludedTags)
	if err != nil {
		return nil, fmt.Errorf("extract rendered %s: %w", pageURL, err)
	}
	page.URL = pageURL
	page.FetchedAt = time.Now()
	return page, nil
}
