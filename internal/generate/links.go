package generate

import (
	"regexp"
	"strings"

	"docmirror/internal/discover"
)

var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// TransformLinks rewrites markdown links that point at pages in this mirror
// into relative .md paths, preserving fragments. Links to anything outside
// the crawled set, and external links, pass through untouched.
func TransformLinks(content, currentPath string, crawled map[string]string) string {
	return markdownLink.ReplaceAllStringFunc(content, func(match string) string {
		groups := markdownLink.FindStringSubmatch(match)
		text, target := groups[1], groups[2]

		fragment := ""
		if i := strings.Index(target, "#"); i >= 0 {
			target, fragment = target[:i], target[i:]
		}
		if target == "" {
			// Fragment-only link within the same page.
			return match
		}

		key, err := discover.Normalize(target)
		if err != nil {
			return match
		}
		targetPath, ok := crawled[key]
		if !ok {
			return match
		}
		return "[" + text + "](" + RelativePath(currentPath, targetPath) + fragment + ")"
	})
}

// RelativePath computes the relative markdown path from one artifact to
// another, both given without their .md extension.
func RelativePath(from, to string) string {
	fromParts := strings.Split(from, "/")
	toParts := strings.Split(to, "/")

	common := 0
	for i := 0; i < len(fromParts)-1 && i < len(toParts)-1; i++ {
		if fromParts[i] != toParts[i] {
			break
		}
		common = i + 1
	}

	ups := len(fromParts) - 1 - common
	remaining := toParts[common:]

	if ups == 0 && len(remaining) == 1 {
		return remaining[0] + ".md"
	}

	parts := make([]string, 0, ups+len(remaining))
	for i := 0; i < ups; i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, remaining...)
	return strings.Join(parts, "/") + ".md"
}
