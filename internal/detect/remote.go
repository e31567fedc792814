package detect

import (
	"context"
	"errors"
	"fmt"

	"docmirror/internal/discover"
	"docmirror/internal/state"
	"docmirror/pkg/types"
)

// RemoteOptions wires the collaborators a remote check needs. Discover and
// Crawl re-run the same pipeline a full crawl uses; Head, when set, enables
// the validator short-circuit for pages that recorded ETag/Last-Modified.
type RemoteOptions struct {
	Discover func(ctx context.Context) ([]string, error)
	Crawl    func(ctx context.Context, urls []string) []types.PageResult
	Head     func(ctx context.Context, pageURL string) (etag, lastModified string, err error)
	HashFor  func(r types.PageResult) string
	PathFor  func(pageURL string) string
}

// Remote re-discovers and re-crawls the source and classifies every page
// against the state snapshot. Pages whose recorded validator still matches
// are presumed unchanged without a content refetch; pages with no recorded
// validator are always hashed. The state is never mutated.
func Remote(ctx context.Context, st *state.CrawlState, opts RemoteOptions) (types.Diff, error) {
	if opts.Discover == nil || opts.Crawl == nil || opts.HashFor == nil {
		return nil, errors.New("remote check: discover, crawl, and hash functions are required")
	}
	pathFor := opts.PathFor
	if pathFor == nil {
		pathFor = discover.FilePath
	}

	urls, err := opts.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("remote check: %w", err)
	}

	diff := make(types.Diff, len(urls))
	fresh := make(map[string]struct{}, len(urls))
	var toCrawl []string

	for _, pageURL := range urls {
		filePath := pathFor(pageURL)
		if filePath == "" {
			continue
		}

		rec, known := st.Page(filePath)
		if known && opts.Head != nil && rec.HasValidators() {
			if kind, reason, ok := headMatch(ctx, opts, pageURL, rec); ok {
				diff[filePath] = types.Change{FilePath: filePath, URL: pageURL, Kind: kind, Reason: reason}
				fresh[filePath] = struct{}{}
				continue
			}
		}
		toCrawl = append(toCrawl, pageURL)
	}

	for _, r := range opts.Crawl(ctx, toCrawl) {
		if !r.OK() {
			// A page that did not answer is absent from the fresh set; if it
			// was known it will classify as removed below.
			continue
		}
		filePath := r.FilePath
		if filePath == "" {
			filePath = pathFor(r.URL)
		}
		if filePath == "" {
			continue
		}
		fresh[filePath] = struct{}{}

		change := types.Change{FilePath: filePath, URL: r.URL, Reason: "content_hash"}
		rec, known := st.Page(filePath)
		switch {
		case !known:
			change.Kind = types.ChangeNew
			change.Reason = "new_page"
		case opts.HashFor(r) == rec.ContentHash:
			change.Kind = types.ChangeUnchanged
		default:
			change.Kind = types.ChangeChanged
		}
		diff[filePath] = change
	}

	for filePath, rec := range st.Pages {
		if _, ok := fresh[filePath]; !ok {
			diff[filePath] = types.Change{
				FilePath: filePath,
				URL:      rec.URL,
				Kind:     types.ChangeRemoved,
				Reason:   "not_found",
			}
		}
	}
	return diff, nil
}

// headMatch reports whether a conditional HEAD proves the page unchanged.
// Any HEAD failure or validator mismatch falls back to a full fetch+hash.
func headMatch(ctx context.Context, opts RemoteOptions, pageURL string, rec state.PageRecord) (types.ChangeKind, string, bool) {
	etag, lastModified, err := opts.Head(ctx, pageURL)
	if err != nil {
		return "", "", false
	}
	if rec.ETag != "" && etag != "" && etag == rec.ETag {
		return types.ChangeUnchanged, "etag", true
	}
	if rec.LastModified != "" && lastModified != "" && lastModified == rec.LastModified {
		return types.ChangeUnchanged, "last_modified", true
	}
	return "", "", false
}
