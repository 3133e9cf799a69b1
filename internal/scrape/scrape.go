// Package scrape is the Scraper component (spec §4.5): a 3-tier fallback
// cascade from a local HTML fetch down to external scrape services, with
// deterministic table-aware Markdown conversion and a shared single-flight
// cache so concurrent callers for one URL only ever hit the network once.
package scrape

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jstevewhite/rsrch/internal/cache"
	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/extract"
	"github.com/jstevewhite/rsrch/internal/fetch"
)

// minBodyBytes is the body-size floor below which a tier is considered to
// have failed and the next tier is tried (spec §4.5 tier-transition rule).
const minBodyBytes = 200

// ExternalFetcher is the seam for the two external fallback tiers (a
// JS-capable markdown-extractor service and a third-party scrape API).
// Implementations return Markdown body text, or an error/short body to
// trigger the next tier.
type ExternalFetcher interface {
	Fetch(ctx context.Context, url string) (body string, title string, err error)
}

// Scraper implements the 3-tier cascade described in spec §4.5.
type Scraper struct {
	Primary     *fetch.Client
	Fallback1   ExternalFetcher
	Fallback2   ExternalFetcher
	Cache       *cache.ScrapeCache
	Metrics     *TierMetrics
	Timeout     time.Duration
	PreserveTables bool

	// Now is overridable for deterministic tests.
	Now func() time.Time
}

func (s *Scraper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// ScrapeURL fetches and converts a single URL, trying each tier in order
// until one yields a body of at least minBodyBytes. It is safe to call
// concurrently for the same URL: the scrape cache deduplicates via
// single-flight.
func (s *Scraper) ScrapeURL(ctx context.Context, url string) (domain.ScrapedContent, error) {
	if s.Cache == nil {
		return s.fetchAllTiers(ctx, url)
	}
	return s.Cache.GetOrFetch(url, func() (domain.ScrapedContent, error) {
		return s.fetchAllTiers(ctx, url)
	})
}

// ScrapeMany fetches urls with bounded concurrency (parallel param), each
// going through ScrapeURL (and therefore the shared cache).
func (s *Scraper) ScrapeMany(ctx context.Context, urls []string, parallel int) map[string]domain.ScrapedContent {
	if parallel <= 0 {
		parallel = 1
	}
	out := make(map[string]domain.ScrapedContent, len(urls))
	var mu sync.Mutex
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for _, u := range urls {
		u := u
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			sc, err := s.ScrapeURL(ctx, u)
			if err != nil {
				return
			}
			mu.Lock()
			out[u] = sc
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func (s *Scraper) fetchAllTiers(ctx context.Context, url string) (domain.ScrapedContent, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if body, title, ok := s.tryPrimary(ctx, url, timeout); ok {
		sc := s.toScrapedContent(url, title, body, domain.TierPrimary)
		s.record(domain.TierPrimary)
		return sc, nil
	}
	if s.Fallback1 != nil {
		if body, title, ok := s.tryExternal(ctx, s.Fallback1, url, timeout); ok {
			sc := s.toScrapedContent(url, title, body, domain.TierFallback1)
			s.record(domain.TierFallback1)
			return sc, nil
		}
	}
	if s.Fallback2 != nil {
		if body, title, ok := s.tryExternal(ctx, s.Fallback2, url, timeout); ok {
			sc := s.toScrapedContent(url, title, body, domain.TierFallback2)
			s.record(domain.TierFallback2)
			return sc, nil
		}
	}
	return domain.ScrapedContent{}, fmt.Errorf("scrape: all tiers exhausted for %s: %w", url, ErrAllTiersFailed)
}

func (s *Scraper) tryPrimary(ctx context.Context, url string, timeout time.Duration) (string, string, bool) {
	if s.Primary == nil {
		return "", "", false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	raw, _, err := s.Primary.Get(ctx, url)
	if err != nil || len(raw) < minBodyBytes {
		return "", "", false
	}
	doc := extract.FromHTML(raw)
	body := doc.Text
	if s.PreserveTables {
		body = ConvertTables(raw, body)
	}
	if len(strings.TrimSpace(body)) < minBodyBytes {
		return "", "", false
	}
	return body, doc.Title, true
}

func (s *Scraper) tryExternal(ctx context.Context, f ExternalFetcher, url string, timeout time.Duration) (string, string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	body, title, err := f.Fetch(ctx, url)
	if err != nil || len(strings.TrimSpace(body)) < minBodyBytes {
		return "", "", false
	}
	return body, title, true
}

func (s *Scraper) toScrapedContent(url, title, body string, tier domain.ExtractorTier) domain.ScrapedContent {
	found, converted := countTables(body)
	return domain.ScrapedContent{
		URL:             url,
		Title:           title,
		MarkdownBody:    body,
		RetrievedAt:     s.now(),
		ExtractorTier:   tier,
		TablesFound:     found,
		TablesConverted: converted,
	}
}

func (s *Scraper) record(tier domain.ExtractorTier) {
	if s.Metrics != nil {
		s.Metrics.Observe(tier)
	}
}
