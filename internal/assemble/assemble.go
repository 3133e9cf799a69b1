// Package assemble implements the Context Assembler (spec §4.9): it embeds
// the query and every new summary, upserts them into the Vector Store,
// requests a cosine top-k, and optionally re-orders that top-k through the
// external Reranker before returning a ContextPackage.
package assemble

import (
	"context"
	"fmt"
	"math"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/embedder"
	"github.com/jstevewhite/rsrch/internal/rerank"
	"github.com/jstevewhite/rsrch/internal/vectorstore"
)

// Assembler holds the collaborators the spec requires ASSEMBLE to own: the
// single Vector Store writer (spec §5: "the ASSEMBLE stage is strictly
// single-threaded"), the Embedder, and an optional Reranker.
type Assembler struct {
	Embedder *embedder.Embedder
	Store    *vectorstore.Store
	Reranker rerank.Reranker // may be nil; falls back to cosine order
	TopKSum  float64         // ratio in (0,1], default 0.5 per spec §6
}

// Assemble implements spec §4.9's five steps for one ASSEMBLE call over the
// full accumulated summary set. It is not safe to call concurrently with
// itself or with another Store writer (spec §5).
func (a *Assembler) Assemble(ctx context.Context, query domain.Query, summaries []domain.Summary) (domain.ContextPackage, error) {
	if len(summaries) == 0 {
		return domain.ContextPackage{}, nil
	}

	queryVecs, err := a.Embedder.Embed(ctx, []string{query.Text})
	if err != nil {
		return domain.ContextPackage{}, fmt.Errorf("assemble: embed query: %w", err)
	}
	queryEmbedding := queryVecs[0]

	texts := make([]string, len(summaries))
	for i, s := range summaries {
		texts[i] = s.Text
	}
	vecs, err := a.Embedder.Embed(ctx, texts)
	if err != nil {
		return domain.ContextPackage{}, fmt.Errorf("assemble: embed summaries: %w", err)
	}

	bySourceURL := make(map[string]domain.Summary, len(summaries))
	chunks := make([]domain.Chunk, len(summaries))
	for i, s := range summaries {
		bySourceURL[s.SourceURL] = s
		chunks[i] = domain.Chunk{
			ID:        s.SourceURL,
			SourceURL: s.SourceURL,
			Position:  0,
			Text:      s.Text,
			Embedding: vecs[i],
		}
	}
	if err := a.Store.Upsert(ctx, chunks); err != nil {
		return domain.ContextPackage{}, fmt.Errorf("assemble: upsert: %w", err)
	}

	ratio := a.TopKSum
	if ratio <= 0 {
		ratio = 0.5
	}
	k := int(math.Ceil(ratio * float64(len(summaries))))
	if k < 1 {
		k = 1
	}
	if k > len(summaries) {
		k = len(summaries)
	}

	scored, err := a.Store.TopK(ctx, queryEmbedding, k)
	if err != nil {
		return domain.ContextPackage{}, fmt.Errorf("assemble: top-k: %w", err)
	}

	scores := make(map[string]float64, len(scored))
	selected := make([]domain.Summary, 0, len(scored))
	for _, sc := range scored {
		s, ok := bySourceURL[sc.Chunk.SourceURL]
		if !ok {
			continue
		}
		selected = append(selected, s)
		scores[s.SourceURL] = mapCosineToUnit(sc.Score)
	}

	if a.Reranker != nil {
		selected, scores = a.rerankSelected(ctx, query.Text, selected, scores)
	}

	return domain.ContextPackage{
		SelectedSummaries: selected,
		Scores:            scores,
		ExcludedCount:     len(summaries) - len(selected),
	}, nil
}

func (a *Assembler) rerankSelected(ctx context.Context, query string, selected []domain.Summary, scores map[string]float64) ([]domain.Summary, map[string]float64) {
	items := make([]rerank.Item, len(selected))
	for i, s := range selected {
		items[i] = rerank.Item{ID: s.SourceURL, Text: s.Text}
	}
	ranked, err := a.Reranker.Rerank(ctx, query, items, len(items))
	if err != nil || len(ranked) == 0 {
		return selected, scores
	}
	bySourceURL := make(map[string]domain.Summary, len(selected))
	for _, s := range selected {
		bySourceURL[s.SourceURL] = s
	}
	out := make([]domain.Summary, 0, len(ranked))
	newScores := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		s, ok := bySourceURL[r.Item.ID]
		if !ok {
			continue
		}
		out = append(out, s)
		newScores[s.SourceURL] = clamp01(r.Score)
	}
	return out, newScores
}

// mapCosineToUnit maps a cosine similarity in [-1,1] to [0,1] per spec
// §4.9 step 5, treating any negative similarity as zero relevance.
func mapCosineToUnit(cosine float64) float64 {
	if cosine < 0 {
		return 0
	}
	if cosine > 1 {
		return 1
	}
	return cosine
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
