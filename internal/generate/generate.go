// Package generate writes the mirrored markdown tree from crawl results and
// records each written page in the crawl state.
package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docmirror/internal/cleaner"
	"docmirror/internal/discover"
	"docmirror/internal/fingerprint"
	"docmirror/internal/state"
	"docmirror/pkg/types"
)

// Options controls markdown generation for one source.
type Options struct {
	OutputDir      string
	Frontmatter    bool
	TransformLinks bool
	Transformer    cleaner.Transformer
	TitleSuffix    *regexp.Regexp
}

// Entry is one index line: a written page grouped under a category.
type Entry struct {
	Title string
	Path  string
	URL   string
}

type frontmatter struct {
	Title       string `yaml:"title"`
	URL         string `yaml:"url"`
	CrawledAt   string `yaml:"crawled_at"`
	ContentHash string `yaml:"content_hash"`
}

// Files writes one markdown file per successful crawl result, updates the
// state record for each, and returns the written count plus index entries
// grouped by category. Errored results are skipped; their prior state
// records survive untouched.
func Files(results []types.PageResult, st *state.CrawlState, o Options) (int, map[string][]Entry, error) {
	transformer := o.Transformer
	if transformer == nil {
		transformer = cleaner.Base{}
	}

	// Links can only be rewritten to pages that are part of this mirror.
	crawled := make(map[string]string, len(results))
	for _, r := range results {
		if r.OK() && r.FilePath != "" {
			crawled[r.Key] = r.FilePath
		}
	}

	written := 0
	entries := make(map[string][]Entry)

	for _, r := range results {
		if !r.OK() || r.FilePath == "" {
			continue
		}

		title, content := renderDocument(r, o, transformer, crawled)
		hash := fingerprint.Document(title, content)
		body := "# " + title + "\n\n" + content + "\n"
		if o.Frontmatter {
			fm, err := yaml.Marshal(frontmatter{
				Title:       title,
				URL:         r.URL,
				CrawledAt:   time.Now().UTC().Format(time.RFC3339),
				ContentHash: hash,
			})
			if err != nil {
				return written, entries, fmt.Errorf("encode frontmatter for %s: %w", r.FilePath, err)
			}
			body = "---\n" + string(fm) + "---\n\n" + body
		}

		outPath := filepath.Join(o.OutputDir, filepath.FromSlash(r.FilePath)+".md")
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return written, entries, fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(outPath, []byte(body), 0o644); err != nil {
			return written, entries, fmt.Errorf("write %s: %w", outPath, err)
		}
		written++

		crawledAt := r.Page.FetchedAt
		if crawledAt.IsZero() {
			crawledAt = time.Now().UTC()
		}
		st.SetPage(r.FilePath, state.PageRecord{
			URL:          r.URL,
			Title:        title,
			ContentHash:  hash,
			ETag:         r.Page.ETag,
			LastModified: r.Page.LastModified,
			CrawledAt:    crawledAt,
		})

		category := categoryOf(r.FilePath)
		entries[category] = append(entries[category], Entry{
			Title: title,
			Path:  r.FilePath + ".md",
			URL:   r.URL,
		})
	}
	return written, entries, nil
}

// DocumentHash computes the digest a crawl result would be stored under,
// applying the same title cleanup, transformer, and link rewriting the
// generator applies. crawled maps normalized page URLs to artifact paths;
// remote checks build it with CrawledPaths so fresh fetches hash exactly
// like written files.
func DocumentHash(r types.PageResult, o Options, crawled map[string]string) string {
	if !r.OK() {
		return ""
	}
	transformer := o.Transformer
	if transformer == nil {
		transformer = cleaner.Base{}
	}
	title, content := renderDocument(r, o, transformer, crawled)
	return fingerprint.Document(title, content)
}

// CrawledPaths maps a discovered URL set to artifact paths, keyed the way
// link targets normalize.
func CrawledPaths(urls []string) map[string]string {
	crawled := make(map[string]string, len(urls))
	for _, raw := range urls {
		key, err := discover.Normalize(raw)
		if err != nil {
			continue
		}
		if p := discover.FilePath(key); p != "" {
			crawled[key] = p
		}
	}
	return crawled
}

// renderDocument resolves the final title and content for one crawl result.
// Files and DocumentHash both go through here; the stored hash and the
// remote-check hash must cover identical bytes.
func renderDocument(r types.PageResult, o Options, transformer cleaner.Transformer, crawled map[string]string) (string, string) {
	title := strings.TrimSpace(r.Page.Title)
	if title == "" {
		title = lastSegment(r.FilePath)
	}
	if o.TitleSuffix != nil {
		title = strings.TrimSpace(o.TitleSuffix.ReplaceAllString(title, ""))
	}

	content := transformer.Clean(r.Page.Content, title)
	if o.TransformLinks {
		content = TransformLinks(content, r.FilePath, crawled)
	}
	return title, content
}

func lastSegment(filePath string) string {
	if i := strings.LastIndex(filePath, "/"); i >= 0 {
		return filePath[i+1:]
	}
	return filePath
}

func categoryOf(filePath string) string {
	if i := strings.Index(filePath, "/"); i > 0 {
		return filePath[:i]
	}
	return "main"
}
