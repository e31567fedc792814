package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"docmirror/internal/config"
)

const sampleRobots = `User-agent: *
Disallow: /private/

User-agent: docmirror-bot
Disallow: /internal/
`

func serveRobots(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestAgentAppliesGroupRules(t *testing.T) {
	srv := serveRobots(t, sampleRobots, nil)
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "docmirror-bot"}, srv.Client())
	ctx := context.Background()

	if agent.Allowed(ctx, mustURL(t, srv.URL+"/internal/secret")) {
		t.Fatal("agent-specific disallow ignored")
	}
	if !agent.Allowed(ctx, mustURL(t, srv.URL+"/docs/page")) {
		t.Fatal("allowed path denied")
	}
}

func TestAgentCachesPerHost(t *testing.T) {
	var hits atomic.Int32
	srv := serveRobots(t, sampleRobots, &hits)
	agent := NewAgent(config.RobotsConfig{
		Respect:  true,
		CacheTTL: config.DurationFrom(time.Hour),
	}, srv.Client())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		agent.Allowed(ctx, mustURL(t, srv.URL+"/docs/page"))
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("robots.txt fetched %d times, expected 1", got)
	}
}

func TestAgentFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	agent := NewAgent(config.RobotsConfig{Respect: true}, srv.Client())
	if !agent.Allowed(context.Background(), mustURL(t, srv.URL+"/docs/page")) {
		t.Fatal("robots failure must not block the crawl")
	}
}

func TestAgentRespectDisabled(t *testing.T) {
	agent := NewAgent(config.RobotsConfig{Respect: false}, nil)
	if !agent.Allowed(context.Background(), mustURL(t, "https://example.com/private/x")) {
		t.Fatal("disabled agent must allow everything")
	}
}
