package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jstevewhite/rsrch/internal/cache"
	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/fetch"
)

func TestScraper_PrimaryTierSucceeds(t *testing.T) {
	body := "<html><head><title>Hi</title></head><body><main><p>" +
		"this page has more than two hundred characters of text so that the primary tier is accepted and not treated as too short to use, padding padding padding padding padding padding" +
		"</p></main></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	s := &Scraper{
		Primary: &fetch.Client{UserAgent: "test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		Now:     func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
	sc, err := s.ScrapeURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if sc.ExtractorTier != domain.TierPrimary {
		t.Fatalf("expected primary tier, got %s", sc.ExtractorTier)
	}
	if sc.Title != "Hi" {
		t.Fatalf("expected title Hi, got %q", sc.Title)
	}
}

type fakeExternal struct {
	body string
	err  error
}

func (f *fakeExternal) Fetch(_ context.Context, _ string) (string, string, error) {
	return f.body, "Fallback Title", f.err
}

func TestScraper_FallsBackWhenPrimaryTooShort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>short</body></html>"))
	}))
	defer srv.Close()

	longBody := ""
	for i := 0; i < 50; i++ {
		longBody += "fallback markdown body content "
	}
	s := &Scraper{
		Primary:   &fetch.Client{UserAgent: "test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		Fallback1: &fakeExternal{body: longBody},
	}
	sc, err := s.ScrapeURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if sc.ExtractorTier != domain.TierFallback1 {
		t.Fatalf("expected fallback1 tier, got %s", sc.ExtractorTier)
	}
}

func TestScraper_AllTiersFailReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := &Scraper{
		Primary:   &fetch.Client{UserAgent: "test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		Fallback1: &fakeExternal{err: fmt.Errorf("boom")},
		Fallback2: &fakeExternal{body: "too short"},
	}
	_, err := s.ScrapeURL(context.Background(), srv.URL)
	if err == nil {
		t.Fatalf("expected error when all tiers fail")
	}
}

func TestScraper_TableConversion(t *testing.T) {
	html := `<html><head><title>T</title></head><body><main>
<p>intro text that is long enough to pass the minimum body size threshold for the primary tier to be accepted outright, padding padding padding</p>
<table>
<tr><th>Name</th><th>Count</th></tr>
<tr><td>a</td><td>1</td></tr>
<tr><td><a href="https://x.com">b</a></td><td>2</td></tr>
</table>
</main></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	defer srv.Close()

	s := &Scraper{
		Primary:        &fetch.Client{UserAgent: "test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		PreserveTables: true,
	}
	sc, err := s.ScrapeURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if sc.TablesFound != 1 {
		t.Fatalf("expected 1 table found, got %d", sc.TablesFound)
	}
	if !containsLink(sc.MarkdownBody) {
		t.Fatalf("expected inline link preserved in table markdown, got: %s", sc.MarkdownBody)
	}
}

func containsLink(s string) bool {
	return contains(s, "[b](https://x.com)")
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestScraper_WithoutCacheRefetchesEveryCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		longText := ""
		for i := 0; i < 50; i++ {
			longText += "word "
		}
		_, _ = w.Write([]byte("<html><body><main><p>" + longText + "</p></main></body></html>"))
	}))
	defer srv.Close()

	s := &Scraper{
		Primary: &fetch.Client{UserAgent: "test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
	}
	_, err1 := s.ScrapeURL(context.Background(), srv.URL)
	_, err2 := s.ScrapeURL(context.Background(), srv.URL)
	if err1 != nil || err2 != nil {
		t.Fatalf("scrape errors: %v %v", err1, err2)
	}
	if hits != 2 {
		t.Fatalf("expected 2 real hits without a cache attached, got %d", hits)
	}
}

func TestScraper_WithCacheDedupesRepeatCalls(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		longText := ""
		for i := 0; i < 50; i++ {
			longText += "word "
		}
		_, _ = w.Write([]byte("<html><body><main><p>" + longText + "</p></main></body></html>"))
	}))
	defer srv.Close()

	s := &Scraper{
		Primary: &fetch.Client{UserAgent: "test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		Cache:   cache.NewScrapeCache(),
	}
	_, err1 := s.ScrapeURL(context.Background(), srv.URL)
	_, err2 := s.ScrapeURL(context.Background(), srv.URL)
	if err1 != nil || err2 != nil {
		t.Fatalf("scrape errors: %v %v", err1, err2)
	}
	if hits != 1 {
		t.Fatalf("expected exactly 1 real hit via the shared cache, got %d", hits)
	}
}
