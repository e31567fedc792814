package discover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"docmirror/internal/config"
	"docmirror/pkg/types"
)

// fakeFetcher serves canned link lists keyed by normalized URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string][]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (*types.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageURL)
	links, ok := f.pages[pageURL]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("unreachable")
	}
	return &types.Page{URL: pageURL, Links: links}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testSource(scope config.Scope, seeds []string) *config.Source {
	src := config.Default()
	src.Name = "example"
	src.BaseURL = "https://example.com"
	src.SeedURLs = seeds
	src.Scope = scope
	src.Crawler.PageTimeout = config.DurationFrom(5 * time.Second)
	return &src
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runDiscovery(t *testing.T, src *config.Source, f *fakeFetcher) *Result {
	t.Helper()
	d, err := New(src, f, testLogger())
	if err != nil {
		t.Fatalf("new discoverer: %v", err)
	}
	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("discovery: %v", err)
	}
	return result
}

func TestSingleScopeReturnsSeedsWithoutFetching(t *testing.T) {
	src := testSource(config.ScopeSingle, []string{"/docs", "/docs/install"})
	f := &fakeFetcher{}

	result := runDiscovery(t, src, f)

	want := []string{"https://example.com/docs", "https://example.com/docs/install"}
	if !reflect.DeepEqual(result.URLs, want) {
		t.Fatalf("expected %v, got %v", want, result.URLs)
	}
	if f.callCount() != 0 {
		t.Fatalf("single scope must not fetch, made %d requests", f.callCount())
	}
}

func TestFullScopeExpandsToFixedPoint(t *testing.T) {
	src := testSource(config.ScopeFull, []string{"/docs"})
	src.IncludePatterns = []string{`^https://example\.com/docs/`}
	f := &fakeFetcher{pages: map[string][]string{
		"https://example.com/docs": {
			"https://example.com/docs/a",
			"https://example.com/docs/b",
			"https://other.com/docs/x",
			"https://example.com/blog/post",
		},
		"https://example.com/docs/a": {
			"https://example.com/docs/a/deep",
			"https://example.com/docs",
		},
		"https://example.com/docs/b":      nil,
		"https://example.com/docs/a/deep": {"https://example.com/docs/a"},
	}}

	result := runDiscovery(t, src, f)

	want := []string{
		"https://example.com/docs",
		"https://example.com/docs/a",
		"https://example.com/docs/a/deep",
		"https://example.com/docs/b",
	}
	if !reflect.DeepEqual(result.URLs, want) {
		t.Fatalf("expected %v, got %v", want, result.URLs)
	}
}

func TestFullScopeFetchesEachURLOnce(t *testing.T) {
	// /docs and /docs/a link to each other; the cycle must not refetch.
	src := testSource(config.ScopeFull, []string{"/docs"})
	f := &fakeFetcher{pages: map[string][]string{
		"https://example.com/docs":   {"https://example.com/docs/a"},
		"https://example.com/docs/a": {"https://example.com/docs"},
	}}

	runDiscovery(t, src, f)

	seen := make(map[string]int)
	for _, u := range f.calls {
		seen[u]++
	}
	for u, n := range seen {
		if n > 1 {
			t.Fatalf("%s fetched %d times", u, n)
		}
	}
}

func TestFrontierDedupesNormalizedVariants(t *testing.T) {
	src := testSource(config.ScopeFull, []string{"/docs"})
	f := &fakeFetcher{pages: map[string][]string{
		"https://example.com/docs": {
			"https://example.com/docs/a",
			"https://example.com/docs/a/",
			"https://example.com/docs/a#install",
			"https://example.com/docs/a?tab=linux",
			"HTTPS://EXAMPLE.COM/docs/a",
		},
		"https://example.com/docs/a": nil,
	}}

	result := runDiscovery(t, src, f)

	want := []string{
		"https://example.com/docs",
		"https://example.com/docs/a",
	}
	if !reflect.DeepEqual(result.URLs, want) {
		t.Fatalf("variants must collapse to one URL, got %v", result.URLs)
	}
}

func TestEquivalentSeedsFetchedOnce(t *testing.T) {
	// /docs and /docs/ normalize to the same page; the first wave must not
	// fetch it twice.
	src := testSource(config.ScopeFull, []string{"/docs", "/docs/"})
	f := &fakeFetcher{pages: map[string][]string{
		"https://example.com/docs": {"https://example.com/docs/a"},
		"https://example.com/docs/a": nil,
	}}

	result := runDiscovery(t, src, f)

	seen := make(map[string]int)
	for _, u := range f.calls {
		seen[u]++
	}
	if n := seen["https://example.com/docs"]; n != 1 {
		t.Fatalf("duplicate seed fetched %d times", n)
	}
	want := []string{
		"https://example.com/docs",
		"https://example.com/docs/a",
	}
	if !reflect.DeepEqual(result.URLs, want) {
		t.Fatalf("expected %v, got %v", want, result.URLs)
	}
}

func TestSectionScopeAdmitsDirectChildrenOnly(t *testing.T) {
	src := testSource(config.ScopeSection, []string{"/docs"})
	f := &fakeFetcher{pages: map[string][]string{
		"https://example.com/docs": {
			"https://example.com/docs/a",
			"https://example.com/docs/a/deep",
			"https://example.com/blog",
			"https://example.com/docs",
		},
	}}

	result := runDiscovery(t, src, f)

	want := []string{
		"https://example.com/docs",
		"https://example.com/docs/a",
	}
	if !reflect.DeepEqual(result.URLs, want) {
		t.Fatalf("expected direct children only, got %v", result.URLs)
	}
}

func TestExcludePatternsWin(t *testing.T) {
	src := testSource(config.ScopeFull, []string{"/docs"})
	src.IncludePatterns = []string{`^https://example\.com/docs/`}
	src.ExcludePatterns = []string{`/docs/internal`}
	f := &fakeFetcher{pages: map[string][]string{
		"https://example.com/docs": {
			"https://example.com/docs/a",
			"https://example.com/docs/internal/secret",
		},
		"https://example.com/docs/a": nil,
	}}

	result := runDiscovery(t, src, f)

	for _, u := range result.URLs {
		if u == "https://example.com/docs/internal/secret" {
			t.Fatal("excluded URL admitted into the frontier")
		}
	}
}

func TestFailedSeedTolerated(t *testing.T) {
	src := testSource(config.ScopeFull, []string{"/docs", "/guide"})
	f := &fakeFetcher{pages: map[string][]string{
		// /guide is absent and fails; /docs answers.
		"https://example.com/docs": {"https://example.com/docs/a"},
		"https://example.com/docs/a": nil,
	}}

	result := runDiscovery(t, src, f)

	if _, ok := result.Errors["https://example.com/guide"]; !ok {
		t.Fatal("failed seed not recorded in errors")
	}
	want := []string{
		"https://example.com/docs",
		"https://example.com/docs/a",
		"https://example.com/guide",
	}
	if !reflect.DeepEqual(result.URLs, want) {
		t.Fatalf("expected %v, got %v", want, result.URLs)
	}
}

func TestAllSeedsUnreachableFatal(t *testing.T) {
	src := testSource(config.ScopeFull, []string{"/docs", "/guide"})
	f := &fakeFetcher{}

	d, err := New(src, f, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error when every seed is unreachable")
	}
}

func TestInvalidPatternFatalBeforeAnyFetch(t *testing.T) {
	src := testSource(config.ScopeFull, []string{"/docs"})
	src.IncludePatterns = []string{"["}
	f := &fakeFetcher{}

	if _, err := New(src, f, testLogger()); err == nil {
		t.Fatal("expected constructor error for malformed pattern")
	}
	if f.callCount() != 0 {
		t.Fatal("pattern validation must happen before fetching")
	}
}
