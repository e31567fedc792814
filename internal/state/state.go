// Package state persists the crawl baseline: the last known fingerprint and
// metadata for every mirrored page. The state is loaded once per run as a
// read-only snapshot and replaced wholesale by an atomic save at run end.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the state document stored alongside a source's output.
const FileName = ".crawl-state.json"

// Version is the current state-format version.
const Version = 1

// ErrCorrupt marks a state file that could not be parsed. Callers receive an
// empty state alongside it and should warn loudly but proceed.
var ErrCorrupt = errors.New("crawl state corrupt")

// PageRecord holds the last known metadata for one mirrored page.
type PageRecord struct {
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	ContentHash  string    `json:"content_hash"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	CrawledAt    time.Time `json:"crawled_at"`
}

// HasValidators reports whether HTTP cache validators were recorded for the
// page. Without them a remote check must always recompute the content hash.
func (r PageRecord) HasValidators() bool {
	return r.ETag != "" || r.LastModified != ""
}

// CrawlState is the persisted record of what the last crawl knew.
type CrawlState struct {
	Version int                   `json:"version"`
	Source  string                `json:"source"`
	LastRun time.Time             `json:"last_run"`
	Pages   map[string]PageRecord `json:"pages"`
}

// Empty returns a fresh state for the named source.
func Empty(source string) *CrawlState {
	return &CrawlState{
		Version: Version,
		Source:  source,
		Pages:   make(map[string]PageRecord),
	}
}

// SetPage records or overwrites the state for a page keyed by file path.
func (s *CrawlState) SetPage(filePath string, rec PageRecord) {
	if s.Pages == nil {
		s.Pages = make(map[string]PageRecord)
	}
	s.Pages[filePath] = rec
}

// Page returns the record for a file path, if present.
func (s *CrawlState) Page(filePath string) (PageRecord, bool) {
	rec, ok := s.Pages[filePath]
	return rec, ok
}

// Len returns the number of known pages.
func (s *CrawlState) Len() int {
	return len(s.Pages)
}

// Load reads the state file at path. A missing file yields an empty state and
// a nil error: a first-ever crawl must be able to proceed. An unreadable or
// invalid file yields an empty state and an error wrapping ErrCorrupt.
func Load(path string) (*CrawlState, error) {
	source := filepath.Base(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(source), nil
		}
		return Empty(source), fmt.Errorf("%w: read %s: %v", ErrCorrupt, path, err)
	}

	var st CrawlState
	if err := json.Unmarshal(data, &st); err != nil {
		return Empty(source), fmt.Errorf("%w: parse %s: %v", ErrCorrupt, path, err)
	}
	if st.Version == 0 || st.Pages == nil {
		return Empty(source), fmt.Errorf("%w: %s missing version or pages", ErrCorrupt, path)
	}
	return &st, nil
}

// Save atomically writes the state to path: the document is written to a
// temporary file in the same directory and renamed over the target, so no
// reader ever observes a partial state. On failure the prior file is left
// untouched.
func (s *CrawlState) Save(path string) error {
	s.Version = Version
	s.LastRun = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
