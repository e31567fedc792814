package types

import "time"

// FetchStatus records the outcome of a single page fetch.
type FetchStatus string

const (
	FetchOK    FetchStatus = "ok"
	FetchError FetchStatus = "error"
)

// Page is the content snapshot returned by a fetcher for one URL. Title,
// content, links, and validator headers are captured from the same response.
type Page struct {
	URL          string
	Title        string
	Content      string
	Links        []string
	ETag         string
	LastModified string
	FetchedAt    time.Time
}

// PageResult is one fetch outcome produced by the scheduler. Key is the
// normalized URL and FilePath the logical artifact path (without extension)
// the page maps to. Page is nil when Status is FetchError.
type PageResult struct {
	URL      string
	Key      string
	FilePath string
	Status   FetchStatus
	Reason   string
	Page     *Page
}

// OK reports whether the fetch succeeded.
func (r PageResult) OK() bool {
	return r.Status == FetchOK && r.Page != nil
}
