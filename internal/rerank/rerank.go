// Package rerank implements the optional Reranker (spec §4.7): an
// LLM-scored re-ordering step used both for URL_RERANK (spec §5) and for
// the Context Assembler's top-k selection (spec §4.9). When disabled or
// unavailable it degrades to an identity truncation and never panics on
// empty input.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jstevewhite/rsrch/internal/llm"
)

const defaultConcurrency = 4

// Item is anything the reranker can score: a URL+snippet pair for
// URL_RERANK, or a Summary's text for the Context Assembler.
type Item struct {
	ID   string
	Text string
}

// Scored pairs an Item with its relevance score in [0,1].
type Scored struct {
	Item  Item
	Score float64
}

// Reranker is the uniform capability; NoOpReranker and LLMReranker both
// satisfy it.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []Item, topK int) ([]Scored, error)
}

// NoOpReranker returns items in their original order, truncated to topK,
// each carrying a zero score. Used when reranking is disabled or the
// gateway is unavailable (spec §4.7: "acts as identity truncated to
// top_k").
type NoOpReranker struct{}

func (NoOpReranker) Rerank(_ context.Context, _ string, items []Item, topK int) ([]Scored, error) {
	return truncate(items, topK), nil
}

func truncate(items []Item, topK int) []Scored {
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}
	out := make([]Scored, 0, topK)
	for _, it := range items[:topK] {
		out = append(out, Scored{Item: it})
	}
	return out
}

// LLMReranker scores each item against the query concurrently (bounded by
// Concurrency, default 4), then sorts by score descending and truncates to
// topK. A per-item scoring failure retains that item with score 0 rather
// than dropping it, so a handful of bad LLM calls degrades gracefully
// instead of losing candidates outright.
type LLMReranker struct {
	Gateway     *llm.Gateway
	Model       string
	Concurrency int
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, items []Item, topK int) ([]Scored, error) {
	if len(items) == 0 {
		return nil, nil
	}
	conc := r.Concurrency
	if conc <= 0 {
		conc = defaultConcurrency
	}

	sem := make(chan struct{}, conc)
	var wg sync.WaitGroup
	scored := make([]Scored, len(items))
	for i, it := range items {
		i, it := i, it
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			score := r.scoreItem(ctx, query, it)
			scored[i] = Scored{Item: it, Score: score}
		}()
	}
	wg.Wait()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK <= 0 || topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (r *LLMReranker) scoreItem(ctx context.Context, query string, it Item) float64 {
	prompt := fmt.Sprintf(
		"Rate the relevance of the following text to the query on a scale of 0.0 to 1.0.\n"+
			"Query: %s\nText: %s\n"+
			`Respond with only a JSON object: {"score": <float>}`,
		query, it.Text,
	)
	resp, err := r.Gateway.CompleteText(ctx, prompt, r.Model, 0, 64)
	if err != nil {
		return 0
	}
	score, ok := parseScore(resp)
	if !ok {
		return 0
	}
	return score
}

func parseScore(resp string) (float64, bool) {
	s := strings.TrimSpace(resp)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return 0, false
	}
	var obj struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, false
	}
	if obj.Score < 0 {
		obj.Score = 0
	}
	if obj.Score > 1 {
		obj.Score = 1
	}
	return obj.Score, true
}
