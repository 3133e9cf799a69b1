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

// TavilyProvider queries the Tavily search API (POST, JSON body).
type TavilyProvider struct {
	BaseURL        string
	APIKey         string
	ExcludeDomains []string
	HTTPClient     *http.Client
}

func (t *TavilyProvider) Name() string { return "tavily" }

func (t *TavilyProvider) Search(ctx context.Context, query string, kind domain.SearchKind, n int) ([]domain.SearchResult, error) {
	if n <= 0 {
		n = 10
	}
	base := t.BaseURL
	if base == "" {
		base = "https://api.tavily.com/search"
	}
	topic := "general"
	if kind == domain.SearchNews {
		topic = "news"
	}
	reqBody := struct {
		APIKey         string   `json:"api_key"`
		Query          string   `json:"query"`
		Topic          string   `json:"topic"`
		MaxResults     int      `json:"max_results"`
		ExcludeDomains []string `json:"exclude_domains,omitempty"`
	}{
		APIKey:         t.APIKey,
		Query:          query,
		Topic:          topic,
		MaxResults:     n,
		ExcludeDomains: t.ExcludeDomains,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := t.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("tavily: status %d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(body.Results))
	for _, r := range body.Results {
		if r.URL == "" || r.Title == "" {
			continue
		}
		out = append(out, domain.SearchResult{
			URL:     strings.TrimSpace(r.URL),
			Title:   strings.TrimSpace(r.Title),
			Snippet: strings.TrimSpace(r.Content),
		})
		if len(out) >= n {
			break
		}
	}
	return FilterAndRank(out, t.ExcludeDomains, t.Name()), nil
}
