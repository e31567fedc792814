package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmirror/internal/fingerprint"
	"docmirror/internal/state"
	"docmirror/pkg/types"
)

// remoteSite is a canned upstream: URLs it serves and their current content.
type remoteSite struct {
	pages      map[string]string // URL -> content
	etags      map[string]string // URL -> ETag
	headCalls  []string
	crawlCalls [][]string
}

func (s *remoteSite) options() RemoteOptions {
	return RemoteOptions{
		Discover: func(context.Context) ([]string, error) {
			urls := make([]string, 0, len(s.pages))
			for u := range s.pages {
				urls = append(urls, u)
			}
			return urls, nil
		},
		Crawl: func(_ context.Context, urls []string) []types.PageResult {
			s.crawlCalls = append(s.crawlCalls, urls)
			results := make([]types.PageResult, 0, len(urls))
			for _, u := range urls {
				content, ok := s.pages[u]
				r := types.PageResult{URL: u, FilePath: pathOf(u), Status: types.FetchError}
				if ok {
					r.Status = types.FetchOK
					r.Page = &types.Page{URL: u, Title: titleOf(u), Content: content}
				} else {
					r.Reason = "unreachable"
				}
				results = append(results, r)
			}
			return results
		},
		Head: func(_ context.Context, pageURL string) (string, string, error) {
			s.headCalls = append(s.headCalls, pageURL)
			etag, ok := s.etags[pageURL]
			if !ok {
				return "", "", errors.New("head not supported")
			}
			return etag, "", nil
		},
		HashFor: func(r types.PageResult) string {
			return fingerprint.Document(r.Page.Title, r.Page.Content)
		},
	}
}

func pathOf(pageURL string) string {
	return strings.TrimPrefix(pageURL, "https://example.com/")
}

func titleOf(pageURL string) string {
	parts := strings.Split(pathOf(pageURL), "/")
	return parts[len(parts)-1]
}

func storedRecord(pageURL, content string) state.PageRecord {
	return state.PageRecord{
		URL:         pageURL,
		Title:       titleOf(pageURL),
		ContentHash: fingerprint.Document(titleOf(pageURL), content),
	}
}

func TestRemoteUnchangedAndNew(t *testing.T) {
	// p1 is stored and identical upstream; p2 appeared since the last crawl.
	site := &remoteSite{pages: map[string]string{
		"https://example.com/docs/p1": "stable content",
		"https://example.com/docs/p2": "brand new page",
	}}
	st := state.Empty("docs")
	st.SetPage("docs/p1", storedRecord("https://example.com/docs/p1", "stable content"))

	diff, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	assert.Equal(t, types.ChangeUnchanged, diff["docs/p1"].Kind)
	assert.Equal(t, types.ChangeNew, diff["docs/p2"].Kind)
	assert.Equal(t, "new_page", diff["docs/p2"].Reason)
	assert.Len(t, diff, 2)
}

func TestRemoteContentChanged(t *testing.T) {
	site := &remoteSite{pages: map[string]string{
		"https://example.com/docs/p1": "revised content",
	}}
	st := state.Empty("docs")
	st.SetPage("docs/p1", storedRecord("https://example.com/docs/p1", "original content"))

	diff, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	c := diff["docs/p1"]
	assert.Equal(t, types.ChangeChanged, c.Kind)
	assert.Equal(t, "content_hash", c.Reason)
}

func TestRemotePageRemoved(t *testing.T) {
	site := &remoteSite{pages: map[string]string{
		"https://example.com/docs/p1": "still here",
	}}
	st := state.Empty("docs")
	st.SetPage("docs/p1", storedRecord("https://example.com/docs/p1", "still here"))
	st.SetPage("docs/old", storedRecord("https://example.com/docs/old", "deleted upstream"))

	diff, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	c := diff["docs/old"]
	assert.Equal(t, types.ChangeRemoved, c.Kind)
	assert.Equal(t, "not_found", c.Reason)
	assert.Equal(t, "https://example.com/docs/old", c.URL)
}

func TestRemoteErroredFetchClassifiesAsRemoved(t *testing.T) {
	site := &remoteSite{pages: map[string]string{
		"https://example.com/docs/p1": "fine",
	}}
	opts := site.options()
	// Discovery still lists p2, but every fetch of it fails.
	opts.Discover = func(context.Context) ([]string, error) {
		return []string{"https://example.com/docs/p1", "https://example.com/docs/p2"}, nil
	}
	st := state.Empty("docs")
	st.SetPage("docs/p1", storedRecord("https://example.com/docs/p1", "fine"))
	st.SetPage("docs/p2", storedRecord("https://example.com/docs/p2", "was fine"))

	diff, err := Remote(context.Background(), st, opts)
	require.NoError(t, err)

	assert.Equal(t, types.ChangeUnchanged, diff["docs/p1"].Kind)
	assert.Equal(t, types.ChangeRemoved, diff["docs/p2"].Kind)
}

func TestRemoteValidatorShortCircuit(t *testing.T) {
	site := &remoteSite{
		pages: map[string]string{
			"https://example.com/docs/p1": "whatever is served now",
		},
		etags: map[string]string{
			"https://example.com/docs/p1": `"v7"`,
		},
	}
	st := state.Empty("docs")
	rec := storedRecord("https://example.com/docs/p1", "cached content")
	rec.ETag = `"v7"`
	st.SetPage("docs/p1", rec)

	diff, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	c := diff["docs/p1"]
	assert.Equal(t, types.ChangeUnchanged, c.Kind)
	assert.Equal(t, "etag", c.Reason)
	for _, batch := range site.crawlCalls {
		assert.NotContains(t, batch, "https://example.com/docs/p1",
			"matching validator must skip the full fetch")
	}
}

func TestRemoteValidatorMismatchFallsBackToHash(t *testing.T) {
	site := &remoteSite{
		pages: map[string]string{
			"https://example.com/docs/p1": "new content",
		},
		etags: map[string]string{
			"https://example.com/docs/p1": `"v8"`,
		},
	}
	st := state.Empty("docs")
	rec := storedRecord("https://example.com/docs/p1", "old content")
	rec.ETag = `"v7"`
	st.SetPage("docs/p1", rec)

	diff, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	assert.Equal(t, types.ChangeChanged, diff["docs/p1"].Kind)
	assert.NotEmpty(t, site.headCalls)
}

func TestRemoteNoValidatorsAlwaysHashes(t *testing.T) {
	site := &remoteSite{
		pages: map[string]string{
			"https://example.com/docs/p1": "content",
		},
		etags: map[string]string{
			"https://example.com/docs/p1": `"v1"`,
		},
	}
	st := state.Empty("docs")
	st.SetPage("docs/p1", storedRecord("https://example.com/docs/p1", "content"))

	diff, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	assert.Equal(t, types.ChangeUnchanged, diff["docs/p1"].Kind)
	assert.Empty(t, site.headCalls, "record without validators must not be HEAD-checked")
}

func TestRemoteIdempotent(t *testing.T) {
	site := &remoteSite{pages: map[string]string{
		"https://example.com/docs/p1": "changed upstream",
		"https://example.com/docs/p2": "new page",
	}}
	st := state.Empty("docs")
	st.SetPage("docs/p1", storedRecord("https://example.com/docs/p1", "original"))
	st.SetPage("docs/old", storedRecord("https://example.com/docs/old", "gone"))

	first, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)
	second, err := Remote(context.Background(), st, site.options())
	require.NoError(t, err)

	assert.Equal(t, first, second, "back-to-back checks must agree when nothing moved")
	assert.Equal(t, 2, st.Len(), "remote check must not mutate the state")
}

func TestRemoteDiscoveryFailureFatal(t *testing.T) {
	opts := (&remoteSite{}).options()
	opts.Discover = func(context.Context) ([]string, error) {
		return nil, errors.New("all seeds unreachable")
	}

	_, err := Remote(context.Background(), state.Empty("docs"), opts)
	require.Error(t, err)
}

func TestRemoteRequiresCollaborators(t *testing.T) {
	_, err := Remote(context.Background(), state.Empty("docs"), RemoteOptions{})
	require.Error(t, err)
}
