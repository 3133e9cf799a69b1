package assemble

import (
	"context"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/embedder"
	"github.com/jstevewhite/rsrch/internal/rerank"
	"github.com/jstevewhite/rsrch/internal/vectorstore"
)

// fakeEmbedClient returns a fixed vector per input text via vecFor, so
// tests can control cosine similarity deterministically.
type fakeEmbedClient struct {
	vecFor func(text string) []float32
}

func (f *fakeEmbedClient) CreateEmbeddings(_ context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	inputs := req.(openai.EmbeddingRequest).Input
	data := make([]openai.Embedding, len(inputs))
	for i, in := range inputs {
		data[i] = openai.Embedding{Index: i, Embedding: f.vecFor(in)}
	}
	return openai.EmbeddingResponse{Data: data}, nil
}

func newTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.Open(filepath.Join(dir, "vectors.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAssemble_EmptyInputReturnsEmptyPackage(t *testing.T) {
	a := &Assembler{
		Embedder: embedder.New(&fakeEmbedClient{vecFor: func(string) []float32 { return []float32{1, 0} }}, "m"),
		Store:    newTestStore(t),
		TopKSum:  0.5,
	}
	out, err := a.Assemble(context.Background(), domain.Query{Text: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.SelectedSummaries) != 0 {
		t.Fatalf("expected no selected summaries for empty input")
	}
}

func TestAssemble_SelectsTopKByRatio(t *testing.T) {
	vec := func(text string) []float32 {
		switch text {
		case "q":
			return []float32{1, 0}
		case "on topic":
			return []float32{1, 0}
		case "off topic":
			return []float32{0, 1}
		case "somewhat on topic":
			return []float32{0.8, 0.2}
		default:
			return []float32{0, 0}
		}
	}
	a := &Assembler{
		Embedder: embedder.New(&fakeEmbedClient{vecFor: vec}, "m"),
		Store:    newTestStore(t),
		TopKSum:  0.5,
	}
	summaries := []domain.Summary{
		{SourceURL: "https://a.com", Text: "on topic"},
		{SourceURL: "https://b.com", Text: "off topic"},
		{SourceURL: "https://c.com", Text: "somewhat on topic"},
		{SourceURL: "https://d.com", Text: "off topic"},
	}
	out, err := a.Assemble(context.Background(), domain.Query{Text: "q"}, summaries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.SelectedSummaries) != 2 {
		t.Fatalf("expected ceil(0.5*4)=2 selected summaries, got %d", len(out.SelectedSummaries))
	}
	if out.SelectedSummaries[0].SourceURL != "https://a.com" {
		t.Fatalf("expected https://a.com to rank first, got %s", out.SelectedSummaries[0].SourceURL)
	}
	if out.ExcludedCount != 2 {
		t.Fatalf("expected 2 excluded, got %d", out.ExcludedCount)
	}
	for _, s := range out.SelectedSummaries {
		if score := out.Scores[s.SourceURL]; score < 0 || score > 1 {
			t.Fatalf("score %v for %s outside [0,1]", score, s.SourceURL)
		}
	}
}

type fakeReranker struct {
	order []string // SourceURLs in desired output order
	err   error
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, items []rerank.Item, _ int) ([]rerank.Scored, error) {
	if f.err != nil {
		return nil, f.err
	}
	byID := make(map[string]rerank.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]rerank.Scored, 0, len(f.order))
	for i, id := range f.order {
		it, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, rerank.Scored{Item: it, Score: 1.0 - float64(i)*0.1})
	}
	return out, nil
}

func TestAssemble_RerankerReordersSelection(t *testing.T) {
	vec := func(text string) []float32 {
		switch text {
		case "q":
			return []float32{1, 0}
		case "first":
			return []float32{1, 0}
		case "second":
			return []float32{0.9, 0.1}
		default:
			return []float32{0, 0}
		}
	}
	a := &Assembler{
		Embedder: embedder.New(&fakeEmbedClient{vecFor: vec}, "m"),
		Store:    newTestStore(t),
		Reranker: &fakeReranker{order: []string{"https://b.com", "https://a.com"}},
		TopKSum:  1.0,
	}
	summaries := []domain.Summary{
		{SourceURL: "https://a.com", Text: "first"},
		{SourceURL: "https://b.com", Text: "second"},
	}
	out, err := a.Assemble(context.Background(), domain.Query{Text: "q"}, summaries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.SelectedSummaries) != 2 {
		t.Fatalf("expected both summaries selected, got %d", len(out.SelectedSummaries))
	}
	if out.SelectedSummaries[0].SourceURL != "https://b.com" {
		t.Fatalf("expected reranker to promote b.com to first, got %s", out.SelectedSummaries[0].SourceURL)
	}
}

func TestAssemble_RerankerErrorFallsBackToCosineOrder(t *testing.T) {
	vec := func(text string) []float32 {
		switch text {
		case "q", "first":
			return []float32{1, 0}
		case "second":
			return []float32{0.9, 0.1}
		default:
			return []float32{0, 0}
		}
	}
	a := &Assembler{
		Embedder: embedder.New(&fakeEmbedClient{vecFor: vec}, "m"),
		Store:    newTestStore(t),
		Reranker: &fakeReranker{err: context.DeadlineExceeded},
		TopKSum:  1.0,
	}
	summaries := []domain.Summary{
		{SourceURL: "https://a.com", Text: "first"},
		{SourceURL: "https://b.com", Text: "second"},
	}
	out, err := a.Assemble(context.Background(), domain.Query{Text: "q"}, summaries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SelectedSummaries[0].SourceURL != "https://a.com" {
		t.Fatalf("expected graceful fallback to cosine order on reranker error, got %s", out.SelectedSummaries[0].SourceURL)
	}
}

func TestMapCosineToUnit_NegativeMapsToZero(t *testing.T) {
	if got := mapCosineToUnit(-0.5); got != 0 {
		t.Fatalf("expected negative cosine to map to 0, got %v", got)
	}
	if got := mapCosineToUnit(0.8); got != 0.8 {
		t.Fatalf("expected positive cosine to pass through, got %v", got)
	}
}
