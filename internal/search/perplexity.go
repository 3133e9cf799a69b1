package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// PerplexityProvider queries Perplexity's search API.
type PerplexityProvider struct {
	BaseURL        string
	APIKey         string
	ExcludeDomains []string
	HTTPClient     *http.Client
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

func (p *PerplexityProvider) Search(ctx context.Context, query string, kind domain.SearchKind, n int) ([]domain.SearchResult, error) {
	if n <= 0 {
		n = 10
	}
	base := p.BaseURL
	if base == "" {
		base = "https://api.perplexity.ai/search"
	}
	reqBody := struct {
		Query          string   `json:"query"`
		MaxResults     int      `json:"max_results"`
		ExcludeDomains []string `json:"exclude_domains,omitempty"`
		SearchDomain   string   `json:"search_domain_filter,omitempty"`
	}{
		Query:          query + siteExclusionHint(p.ExcludeDomains),
		MaxResults:     n,
		ExcludeDomains: p.ExcludeDomains,
	}
	if kind == domain.SearchScholar {
		reqBody.SearchDomain = "academic"
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	hc := p.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("perplexity: status %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		out = append(out, domain.SearchResult{
			URL:     strings.TrimSpace(r.URL),
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(r.Snippet),
		})
		if len(out) >= n {
			break
		}
	}
	return FilterAndRank(out, p.ExcludeDomains, p.Name()), nil
}
