// Package detect implements the two-sided staleness check: local artifacts
// against the crawl state, and the upstream site against the crawl state.
// Both checks treat the loaded state as a frozen snapshot and never mutate it.
package detect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docmirror/internal/fingerprint"
	"docmirror/internal/state"
	"docmirror/pkg/types"
)

// IndexFile is the generated table of contents at the output root, exempt
// from local checks.
const IndexFile = "index.md"

// Local compares the on-disk artifact tree against the state snapshot. Every
// state key classifies as unchanged, modified, or missing; markdown files on
// disk with no state entry classify as new_local_file and are report-only.
func Local(st *state.CrawlState, outputDir string) (types.Diff, error) {
	diff := make(types.Diff, st.Len())

	for filePath, rec := range st.Pages {
		change := types.Change{FilePath: filePath, URL: rec.URL}

		data, err := os.ReadFile(filepath.Join(outputDir, filePath+".md"))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				change.Kind = types.ChangeMissing
				change.Reason = "missing_file"
			} else {
				change.Kind = types.ChangeMissing
				change.Reason = "read_error: " + err.Error()
			}
			diff[filePath] = change
			continue
		}

		body := StripFrontmatter(string(data))
		if fingerprint.Content(body) == rec.ContentHash {
			change.Kind = types.ChangeUnchanged
			change.Reason = "content_hash"
		} else {
			change.Kind = types.ChangeModified
			change.Reason = "local_modified"
		}
		diff[filePath] = change
	}

	if err := addNewLocalFiles(diff, st, outputDir); err != nil {
		return nil, err
	}
	return diff, nil
}

func addNewLocalFiles(diff types.Diff, st *state.CrawlState, outputDir string) error {
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		// The generated index lives only at the output root; a nested
		// index.md is an ordinary artifact.
		if filepath.ToSlash(rel) == IndexFile {
			return nil
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".md")
		if _, known := st.Page(key); !known {
			diff[key] = types.Change{
				FilePath: key,
				Kind:     types.ChangeNewLocalFile,
				Reason:   "not_in_state",
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("scan output dir: %w", err)
	}
	return nil
}

// StripFrontmatter returns the markdown body with a leading YAML frontmatter
// block removed, so hashing sees only the content the generator hashed.
func StripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return strings.TrimSpace(content)
	}
	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return strings.TrimSpace(content)
	}
	body := rest[end+len("\n---"):]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	}
	return strings.TrimSpace(body)
}
