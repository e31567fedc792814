package discover

import "sync"

// Frontier is the set of URLs known to discovery, keyed by normalized URL.
// Insert-if-absent is atomic so concurrent expansion preserves the
// at-most-once-visit invariant.
type Frontier struct {
	mu   sync.Mutex
	seen map[string]struct{}
	urls []string
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Add normalizes raw and inserts it if absent. It returns the normalized URL
// and whether it was newly added. Unparseable URLs are rejected.
func (f *Frontier) Add(raw string) (string, bool) {
	key, err := Normalize(raw)
	if err != nil {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[key]; ok {
		return key, false
	}
	f.seen[key] = struct{}{}
	f.urls = append(f.urls, key)
	return key, true
}

// Has reports whether the normalized form of raw is already in the frontier.
func (f *Frontier) Has(raw string) bool {
	key, err := Normalize(raw)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[key]
	return ok
}

// URLs returns the members in insertion order.
func (f *Frontier) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.urls))
	copy(out, f.urls)
	return out
}

// Len returns the number of members.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
