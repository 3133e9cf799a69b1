package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// SerpProvider queries a SerpAPI-compatible /search endpoint.
type SerpProvider struct {
	BaseURL       string
	APIKey        string
	ExcludeDomains []string
	HTTPClient    *http.Client
}

func (s *SerpProvider) Name() string { return "serp" }

func (s *SerpProvider) Search(ctx context.Context, query string, kind domain.SearchKind, n int) ([]domain.SearchResult, error) {
	if n <= 0 {
		n = 10
	}
	base := s.BaseURL
	if base == "" {
		base = "https://serpapi.com/search"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}
	q := u.Query()
	q.Set("q", query+siteExclusionHint(s.ExcludeDomains))
	q.Set("api_key", s.APIKey)
	q.Set("num", fmt.Sprintf("%d", n))
	switch kind {
	case domain.SearchNews:
		q.Set("tbm", "nws")
	case domain.SearchScholar:
		q.Set("engine", "google_scholar")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("serp: status %d", resp.StatusCode)
	}

	var body struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(body.OrganicResults))
	for _, r := range body.OrganicResults {
		if r.Link == "" || r.Title == "" {
			continue
		}
		out = append(out, domain.SearchResult{
			URL:     strings.TrimSpace(r.Link),
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(r.Snippet),
		})
		if len(out) >= n {
			break
		}
	}
	return FilterAndRank(out, s.ExcludeDomains, s.Name()), nil
}
