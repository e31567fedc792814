// Package cleaner defines the content-transformer capability sources plug
// into. The crawl core never depends on a specific transformer; the
// generation layer applies whichever one the source configuration names.
package cleaner

import (
	"regexp"
	"strings"
)

// Transformer rewrites extracted markdown before it is hashed and written.
// Implementations must be deterministic: the same input always produces the
// same output, or change detection breaks.
type Transformer interface {
	Clean(content, title string) string
}

// Base applies the source-independent cleanup every transformer starts from:
// heading anchor links become plain headings and blank runs collapse.
type Base struct{}

var (
	headingAnchor = regexp.MustCompile(`^(#{1,6})\s+\[([^\]]+)\]\([^)]+\)\s*$`)
	excessBlank   = regexp.MustCompile(`\n{3,}`)
)

// Clean applies the base cleaning operations.
func (Base) Clean(content, _ string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if m := headingAnchor.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + " " + m[2]
		}
	}
	content = strings.Join(lines, "\n")
	return strings.TrimSpace(excessBlank.ReplaceAllString(content, "\n\n"))
}

// RemoveSection deletes a section starting at the given heading, up to the
// next heading of the same level or the end of the document.
func RemoveSection(content, heading string, level int) string {
	if level < 1 || level > 6 {
		return content
	}
	marker := strings.Repeat("#", level)
	pattern := regexp.MustCompile(`(?ms)^` + marker + `\s+` + regexp.QuoteMeta(heading) + `.*?(?:^` + marker + `\s|\z)`)
	return pattern.ReplaceAllStringFunc(content, func(m string) string {
		if strings.HasSuffix(m, marker+" ") {
			return marker + " "
		}
		return ""
	})
}

// RemoveFirstH1 drops the first level-one heading, which usually duplicates
// the frontmatter title.
func RemoveFirstH1(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "# ") {
			return strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		}
	}
	return content
}

// RemoveLinesContaining drops every line containing the given text.
func RemoveLinesContaining(content, text string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.Contains(line, text) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
