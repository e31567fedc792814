package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexOptions controls table-of-contents generation.
type IndexOptions struct {
	Title       string
	Description string
}

type indexFrontmatter struct {
	Title       string `yaml:"title"`
	GeneratedAt string `yaml:"generated_at"`
}

// Index writes index.md linking every generated page, grouped by category
// in sorted order so repeated runs produce identical output.
func Index(outputDir string, entries map[string][]Entry, o IndexOptions) error {
	title := o.Title
	if title == "" {
		title = "Documentation Index"
	}

	fm, err := yaml.Marshal(indexFrontmatter{
		Title:       title,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode index frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fm)
	sb.WriteString("---\n\n# " + title + "\n\n")
	if o.Description != "" {
		sb.WriteString(o.Description + "\n\n")
	}
	sb.WriteString("## Table of Contents\n\n")

	categories := make([]string, 0, len(entries))
	for category := range entries {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		sb.WriteString("### " + displayTitle(category) + "\n\n")

		pages := append([]Entry(nil), entries[category]...)
		sort.Slice(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
		for _, page := range pages {
			sb.WriteString("- [" + page.Title + "](" + page.Path + ")\n")
		}
		sb.WriteString("\n")
	}

	path := filepath.Join(outputDir, "index.md")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func displayTitle(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
