package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jstevewhite/rsrch/internal/domain"
)

func TestStore_UpsertThenTopK(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "vectors.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	chunks := []domain.Chunk{
		{ID: "1", SourceURL: "https://a.com", Text: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "2", SourceURL: "https://b.com", Text: "beta", Embedding: []float32{0, 1, 0}},
		{ID: "3", SourceURL: "https://c.com", Text: "gamma", Embedding: []float32{0.9, 0.1, 0}},
	}
	if err := s.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := s.TopK(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("top_k: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "1" {
		t.Fatalf("expected chunk 1 to rank first, got %s", results[0].Chunk.ID)
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("expected descending score order, got %+v", results)
	}
}

func TestStore_TopKLimitedByAvailableEmbeddings(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "vectors.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	chunks := []domain.Chunk{
		{ID: "1", SourceURL: "https://a.com", Text: "alpha", Embedding: []float32{1, 0}},
	}
	if err := s.Upsert(context.Background(), chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	results, err := s.TopK(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("top_k: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected min(k, available)=1, got %d", len(results))
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1.0},
		{[]float32{1, 0}, []float32{0, 1}, 0.0},
		{[]float32{1, 0}, []float32{-1, 0}, -1.0},
	}
	for _, tc := range cases {
		got := cosineSimilarity(tc.a, tc.b)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("cosineSimilarity(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEncodeDecodeVectorRoundTrip(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.125}
	blob := encodeVector(v)
	if len(blob) != len(v)*4 {
		t.Fatalf("expected %d bytes, got %d", len(v)*4, len(blob))
	}
	got := decodeVector(blob, len(v))
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], v[i])
		}
	}
}
