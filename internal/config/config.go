package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scope bounds URL discovery for a source.
type Scope string

const (
	// ScopeSingle crawls the seed set only, without expansion.
	ScopeSingle Scope = "single"
	// ScopeSection expands seeds one level: direct children of a seed's path.
	ScopeSection Scope = "section"
	// ScopeFull expands transitively until no new matching URL appears.
	ScopeFull Scope = "full"
)

// Source captures the full per-source configuration for one documentation site.
type Source struct {
	Name            string          `yaml:"name"`
	BaseURL         string          `yaml:"base_url"`
	SeedURLs        []string        `yaml:"seed_urls"`
	IncludePatterns []string        `yaml:"include_patterns"`
	ExcludePatterns []string        `yaml:"exclude_patterns"`
	Scope           Scope           `yaml:"scope"`
	Crawler         CrawlerConfig   `yaml:"crawler"`
	Rendering       RenderingConfig `yaml:"rendering"`
	Robots          RobotsConfig    `yaml:"robots"`
	Cleaner         CleanerConfig   `yaml:"cleaner"`
	Output          OutputConfig    `yaml:"output"`
}

// CrawlerConfig controls fetch concurrency, timeouts, and politeness.
type CrawlerConfig struct {
	MaxConcurrent int               `yaml:"max_concurrent"`
	PageTimeout   Duration          `yaml:"page_timeout"`
	UserAgent     string            `yaml:"user_agent"`
	Headers       map[string]string `yaml:"headers"`
	ProxyURL      string            `yaml:"proxy_url"`
	MaxBodyBytes  int64             `yaml:"max_body_bytes"`
	ExcludedTags  []string          `yaml:"excluded_tags"`
	PerHostDelay  Duration          `yaml:"per_host_delay"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// RenderingConfig controls optional JavaScript rendering of fetched pages.
type RenderingConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Timeout            Duration `yaml:"timeout"`
	WaitForSelector    string   `yaml:"wait_for_selector"`
	ConcurrentSessions int      `yaml:"concurrent_sessions"`
	DisableHeadless    bool     `yaml:"disable_headless"`
}

// RobotsConfig configures robots.txt handling.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// CleanerConfig selects a registered content transformer for the source.
type CleanerConfig struct {
	Module string `yaml:"module"`
}

// OutputConfig tunes markdown generation for the source.
type OutputConfig struct {
	Frontmatter        bool   `yaml:"frontmatter"`
	TransformLinks     bool   `yaml:"transform_links"`
	TitleSuffixPattern string `yaml:"title_suffix_pattern"`
	IndexTitle         string `yaml:"index_title"`
	IndexDescription   string `yaml:"index_description"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Source populated with sensible defaults.
func Default() Source {
	return Source{
		Scope: ScopeFull,
		Crawler: CrawlerConfig{
			MaxConcurrent: 5,
			PageTimeout:   DurationFrom(30 * time.Second),
			UserAgent:     "docmirror-bot/1.0",
			Headers:       map[string]string{},
			MaxBodyBytes:  6 * 1024 * 1024,
			ExcludedTags:  []string{"aside", "footer", "header", "nav"},
			PerHostDelay:  DurationFrom(100 * time.Millisecond),
		},
		Rendering: RenderingConfig{
			Enabled:            false,
			Timeout:            DurationFrom(15 * time.Second),
			ConcurrentSessions: 2,
		},
		Robots: RobotsConfig{
			Respect:   true,
			UserAgent: "docmirror-bot/1.0",
			CacheTTL:  DurationFrom(6 * time.Hour),
		},
		Output: OutputConfig{
			Frontmatter:    true,
			TransformLinks: true,
		},
	}
}

// SourceInfo is a listing entry for a configured source.
type SourceInfo struct {
	Name    string
	Title   string
	BaseURL string
}

// ConfigFileName is the per-source configuration file under the sources dir.
const ConfigFileName = "config.yaml"

// LoadSource reads, merges, and validates a source configuration from
// <sourcesDir>/<name>/config.yaml.
func LoadSource(sourcesDir, name string) (*Source, error) {
	path := filepath.Join(sourcesDir, name, ConfigFileName)
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source %q not found: %w", name, err)
	}
	defer fh.Close()

	src, err := LoadSourceFromReader(fh)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", name, err)
	}
	if src.Name == "" {
		src.Name = name
	}
	return src, nil
}

// LoadSourceFromReader decodes and validates a source spec from a reader.
func LoadSourceFromReader(r io.Reader) (*Source, error) {
	src := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&src); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	src.normalise()
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return &src, nil
}

// ListSources enumerates source directories containing a valid config file.
func ListSources(sourcesDir string) ([]SourceInfo, error) {
	entries, err := os.ReadDir(sourcesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sources dir: %w", err)
	}

	infos := make([]SourceInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		src, err := LoadSource(sourcesDir, entry.Name())
		if err != nil {
			continue
		}
		infos = append(infos, SourceInfo{
			Name:    entry.Name(),
			Title:   src.Name,
			BaseURL: src.BaseURL,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Validate enforces required invariants for a source configuration.
func (s Source) Validate() error {
	if s.BaseURL == "" {
		return errors.New("base_url must be set")
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", s.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return fmt.Errorf("base_url %q must use http or https", s.BaseURL)
	}
	if base.Host == "" {
		return fmt.Errorf("base_url %q missing host", s.BaseURL)
	}
	if len(s.SeedURLs) == 0 {
		return errors.New("at least one seed url must be configured")
	}
	for i, seed := range s.SeedURLs {
		if seed == "" {
			return fmt.Errorf("seed %d is empty", i)
		}
	}
	switch s.Scope {
	case ScopeSingle, ScopeSection, ScopeFull:
	default:
		return fmt.Errorf("unsupported scope %q", s.Scope)
	}
	for _, pat := range s.IncludePatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", pat, err)
		}
	}
	for _, pat := range s.ExcludePatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pat, err)
		}
	}
	if s.Output.TitleSuffixPattern != "" {
		if _, err := regexp.Compile(s.Output.TitleSuffixPattern); err != nil {
			return fmt.Errorf("invalid title_suffix_pattern: %w", err)
		}
	}
	if s.Crawler.MaxConcurrent <= 0 {
		return fmt.Errorf("crawler.max_concurrent must be > 0 (got %d)", s.Crawler.MaxConcurrent)
	}
	if s.Crawler.PageTimeout.Duration <= 0 {
		return errors.New("crawler.page_timeout must be > 0")
	}
	if s.Crawler.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawler.max_body_bytes must be > 0 (got %d)", s.Crawler.MaxBodyBytes)
	}
	if strings.TrimSpace(s.Crawler.UserAgent) == "" {
		return errors.New("crawler.user_agent must be set")
	}
	if s.Robots.Respect && strings.TrimSpace(s.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set")
	}
	if rl := s.Crawler.RateLimit; rl.Requests < 0 {
		return fmt.Errorf("crawler.rate_limit.requests must be >= 0 (got %d)", rl.Requests)
	}
	return nil
}

func (s *Source) normalise() {
	s.Name = strings.TrimSpace(s.Name)
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	for i := range s.SeedURLs {
		s.SeedURLs[i] = strings.TrimSpace(s.SeedURLs[i])
	}
	s.Crawler.UserAgent = strings.TrimSpace(s.Crawler.UserAgent)
	s.Robots.UserAgent = strings.TrimSpace(s.Robots.UserAgent)
	s.Cleaner.Module = strings.TrimSpace(s.Cleaner.Module)
	if len(s.Crawler.ExcludedTags) > 0 {
		s.Crawler.ExcludedTags = dedupeLower(s.Crawler.ExcludedTags)
	}
}

// Origin returns the parsed base URL of the source.
func (s Source) Origin() (*url.URL, error) {
	return url.Parse(s.BaseURL)
}

// Seeds resolves the configured seed paths against the base URL.
func (s Source) Seeds() []string {
	seeds := make([]string, 0, len(s.SeedURLs))
	for _, seed := range s.SeedURLs {
		if strings.HasPrefix(seed, "http://") || strings.HasPrefix(seed, "https://") {
			seeds = append(seeds, seed)
			continue
		}
		if !strings.HasPrefix(seed, "/") {
			seed = "/" + seed
		}
		seeds = append(seeds, s.BaseURL+seed)
	}
	return seeds
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}
