package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// ScrapeCache is the run-scoped, content-addressed single-flight cache
// shared by the Scraper and the Verifier (spec §4.5, §4.9 GLOSSARY, §5).
// Concurrent requests for the same canonical URL join one in-flight fetch;
// once a result lands it is retained for the rest of the run, including
// for the verifier, which never re-scrapes (spec §4.14).
type ScrapeCache struct {
	group singleflight.Group
	mu    sync.RWMutex
	store map[string]domain.ScrapedContent
}

// NewScrapeCache returns an empty run-scoped cache.
func NewScrapeCache() *ScrapeCache {
	return &ScrapeCache{store: make(map[string]domain.ScrapedContent)}
}

// Get returns the cached content for url, if any.
func (c *ScrapeCache) Get(url string) (domain.ScrapedContent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.store[url]
	return sc, ok
}

// GetOrFetch returns the cached content for url if present; otherwise it
// calls fetch exactly once even under concurrent callers for the same url
// (singleflight.Group.Do), caches the result, and returns it.
func (c *ScrapeCache) GetOrFetch(url string, fetch func() (domain.ScrapedContent, error)) (domain.ScrapedContent, error) {
	if sc, ok := c.Get(url); ok {
		return sc, nil
	}
	v, err, _ := c.group.Do(url, func() (any, error) {
		if sc, ok := c.Get(url); ok {
			return sc, nil
		}
		sc, err := fetch()
		if err != nil {
			return domain.ScrapedContent{}, err
		}
		c.mu.Lock()
		c.store[url] = sc
		c.mu.Unlock()
		return sc, nil
	})
	if err != nil {
		return domain.ScrapedContent{}, err
	}
	return v.(domain.ScrapedContent), nil
}

// Len reports how many URLs are currently cached, for tests and metrics.
func (c *ScrapeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
