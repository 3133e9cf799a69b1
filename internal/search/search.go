// Package search is the Search Providers component (spec §4.4): a uniform
// capability across vendors, with domain exclusion and canonicalization
// shared by every concrete provider.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// Provider is the uniform search capability. Concrete providers return an
// error for a failed query; the orchestrator logs it as a warning and
// continues with the other queries' results.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, kind domain.SearchKind, n int) ([]domain.SearchResult, error)
}

// KindFor implements the kind-selection rule of spec §4.4: news intent maps
// to the news endpoint, research maps to scholar, everything else is web.
func KindFor(intent domain.IntentKind) domain.SearchKind {
	switch intent {
	case domain.IntentNews:
		return domain.SearchNews
	case domain.IntentResearch:
		return domain.SearchScholar
	default:
		return domain.SearchWeb
	}
}

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid",
}

// CanonicalizeURL lowercases the scheme and host, trims a trailing slash,
// drops the fragment, and strips common tracking query parameters, per the
// SearchResult invariant in spec §3.
func CanonicalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// DedupeByCanonicalURL merges result groups (e.g. one per SearchQuery, or
// across research iterations) keeping the first-seen rank for each
// canonical URL, per spec §4.13's cross-iteration dedup rule.
func DedupeByCanonicalURL(groups ...[]domain.SearchResult) []domain.SearchResult {
	seen := make(map[string]struct{})
	out := make([]domain.SearchResult, 0, 64)
	for _, g := range groups {
		for _, r := range g {
			key := CanonicalizeURL(r.URL)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			r.URL = key
			out = append(out, r)
		}
	}
	return out
}

// isDomainExcluded reports whether host(url) matches (or is a subdomain of)
// any entry in exclude, doing a belt-and-braces post-filter on top of
// whatever vendor-native exclusion hint a provider already sent.
func isDomainExcluded(rawURL string, exclude []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range exclude {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FilterAndRank applies the exclude-list post-filter and assigns
// contiguous 1-based ranks to the surviving results, preserving order.
func FilterAndRank(results []domain.SearchResult, exclude []string, providerTag string) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(results))
	rank := 1
	for _, r := range results {
		if isDomainExcluded(r.URL, exclude) {
			continue
		}
		r.URL = CanonicalizeURL(r.URL)
		r.ProviderTag = providerTag
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out
}

// siteExclusionHint renders the `-site:<domain>` vendor-native exclusion
// hint appended to the query text, e.g. for "example.com, foo.org" it
// produces " -site:example.com -site:foo.org".
func siteExclusionHint(exclude []string) string {
	var sb strings.Builder
	for _, d := range exclude {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		fmt.Fprintf(&sb, " -site:%s", d)
	}
	return sb.String()
}
