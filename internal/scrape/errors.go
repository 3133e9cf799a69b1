package scrape

import "errors"

// ErrAllTiersFailed is returned by ScrapeURL when the primary fetch and
// every configured fallback tier fail or return a too-short body.
var ErrAllTiersFailed = errors.New("scrape: all fallback tiers failed")
