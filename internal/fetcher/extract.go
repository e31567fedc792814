package fetcher

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"docmirror/pkg/types"
)

var alwaysDropped = []string{"script", "style", "noscript", "iframe", "svg"}

// Extract parses an HTML document and derives the page title, a markdown
// rendition of its main content, and the set of same-origin links. Tags in
// excludedTags are removed before content extraction but links inside them
// still count for discovery.
func Extract(baseURL string, body []byte, excludedTags []string) (*types.Page, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &types.Page{
		URL:   baseURL,
		Title: extractTitle(doc),
		Links: extractLinks(doc, base),
	}

	doc.Find(strings.Join(alwaysDropped, ",")).Remove()
	for _, tag := range excludedTags {
		doc.Find(tag).Remove()
	}

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("[role=main]").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var md strings.Builder
	for _, node := range root.Nodes {
		renderMarkdown(&md, node, base)
	}
	page.Content = tidyMarkdown(md.String())
	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = strings.TrimSpace(og); og != "" {
			return og
		}
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		u, err := base.Parse(href)
		if err != nil {
			return
		}
		// Fragment-only links resolve to their base page.
		u.Fragment = ""
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		if !strings.EqualFold(u.Hostname(), base.Hostname()) {
			return
		}
		key := u.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		links = append(links, key)
	})
	return links
}

var headingTags = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

func renderMarkdown(md *strings.Builder, n *html.Node, base *url.URL) {
	if n.Type == html.TextNode {
		return
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}

	switch {
	case headingTags[n.Data] > 0:
		md.WriteString("\n\n" + strings.Repeat("#", headingTags[n.Data]) + " " + inlineText(n, base))
		return
	case n.Data == "p" || n.Data == "dt" || n.Data == "dd" || n.Data == "figcaption" ||
		n.Data == "blockquote" || n.Data == "td" || n.Data == "th":
		if text := inlineText(n, base); text != "" {
			md.WriteString("\n\n" + text)
		}
		return
	case n.Data == "pre":
		if code := rawText(n); strings.TrimSpace(code) != "" {
			md.WriteString("\n\n```\n" + strings.Trim(code, "\n") + "\n```")
		}
		return
	case n.Data == "li":
		if text := inlineText(n, base); text != "" {
			md.WriteString("\n- " + text)
		}
		// Nested lists still need a walk.
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				renderMarkdown(md, c, base)
			}
		}
		return
	case n.Data == "ul" || n.Data == "ol":
		md.WriteString("\n")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderMarkdown(md, c, base)
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdown(md, c, base)
	}
}

// inlineText flattens a node's inline content, keeping links, code spans,
// and emphasis in markdown form. Block children are skipped: the tree walk
// renders them separately.
func inlineText(n *html.Node, base *url.URL) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "ul", "ol", "table", "pre", "figure":
				return
			case "a":
				text := strings.TrimSpace(rawText(n))
				href := attr(n, "href")
				if text != "" && href != "" && !strings.HasPrefix(href, "javascript:") {
					if resolved, err := base.Parse(href); err == nil {
						sb.WriteString("[" + text + "](" + resolved.String() + ")")
						return
					}
				}
			case "code":
				if text := rawText(n); text != "" {
					sb.WriteString("`" + text + "`")
				}
				return
			case "strong", "b":
				if text := strings.TrimSpace(rawText(n)); text != "" {
					sb.WriteString("**" + text + "**")
				}
				return
			case "em", "i":
				if text := strings.TrimSpace(rawText(n)); text != "" {
					sb.WriteString("*" + text + "*")
				}
				return
			case "br":
				sb.WriteString(" ")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return strings.TrimSpace(collapseSpaces(sb.String()))
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

var (
	spaceRun = regexp.MustCompile(`[ \t]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

func collapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(strings.ReplaceAll(s, "\n", " "), " ")
}

func tidyMarkdown(s string) string {
	return strings.TrimSpace(blankRun.ReplaceAllString(s, "\n\n"))
}
