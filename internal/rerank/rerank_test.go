package rerank

import (
	"context"
	"testing"
)

func TestNoOpReranker_EmptyInputDoesNotPanic(t *testing.T) {
	r := NoOpReranker{}
	out, err := r.Rerank(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}

func TestNoOpReranker_TruncatesToTopK(t *testing.T) {
	r := NoOpReranker{}
	items := []Item{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	out, err := r.Rerank(context.Background(), "q", items, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].Item.ID != "1" || out[1].Item.ID != "2" {
		t.Fatalf("expected original order preserved, got %+v", out)
	}
}

func TestNoOpReranker_TopKZeroReturnsAll(t *testing.T) {
	r := NoOpReranker{}
	items := []Item{{ID: "1"}, {ID: "2"}}
	out, _ := r.Rerank(context.Background(), "q", items, 0)
	if len(out) != 2 {
		t.Fatalf("expected all items when topK=0, got %d", len(out))
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		in       string
		wantOK   bool
		wantVal  float64
	}{
		{`{"score": 0.8}`, true, 0.8},
		{"```json\n{\"score\": 0.5}\n```", true, 0.5},
		{"not json at all", false, 0},
		{`{"score": 1.5}`, true, 1.0},
		{`{"score": -0.2}`, true, 0.0},
	}
	for _, tc := range cases {
		got, ok := parseScore(tc.in)
		if ok != tc.wantOK {
			t.Fatalf("parseScore(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
		}
		if ok && got != tc.wantVal {
			t.Fatalf("parseScore(%q) = %v, want %v", tc.in, got, tc.wantVal)
		}
	}
}

func TestLLMReranker_EmptyInputDoesNotPanic(t *testing.T) {
	r := &LLMReranker{}
	out, err := r.Rerank(context.Background(), "q", nil, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil result for empty input, got %+v", out)
	}
}
