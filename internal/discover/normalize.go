package discover

import (
	"net/url"
	"strings"
)

// Normalize reduces a URL to its canonical frontier key: lowercase scheme and
// host, query and fragment stripped, trailing slash trimmed. Two URLs that
// normalize identically are the same page to the crawler.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return NormalizeURL(u), nil
}

// NormalizeURL is Normalize for an already-parsed URL.
func NormalizeURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	path := u.EscapedPath()
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// FilePath maps a page URL to its logical artifact path: the URL path with
// surrounding slashes trimmed, keeping inner slashes for hierarchy. Empty for
// the site root, which has no artifact of its own.
func FilePath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}
