package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jstevewhite/rsrch/internal/assemble"
	"github.com/jstevewhite/rsrch/internal/claims"
	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/embedder"
	"github.com/jstevewhite/rsrch/internal/llm"
	"github.com/jstevewhite/rsrch/internal/pipelineerr"
	"github.com/jstevewhite/rsrch/internal/plan"
	"github.com/jstevewhite/rsrch/internal/reflect"
	"github.com/jstevewhite/rsrch/internal/report"
	"github.com/jstevewhite/rsrch/internal/scrape"
	"github.com/jstevewhite/rsrch/internal/search"
	"github.com/jstevewhite/rsrch/internal/summarize"
	"github.com/jstevewhite/rsrch/internal/vectorstore"
)

// staticClient is a llm.Client whose reply depends only on which stage
// constructed its Gateway, so each stage gets its own instance.
type staticClient struct {
	reply string
}

func (c *staticClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: c.reply}}},
	}, nil
}

type fakeSearchProvider struct{}

func (fakeSearchProvider) Name() string { return "fake" }

func (fakeSearchProvider) Search(_ context.Context, query string, _ domain.SearchKind, _ int) ([]domain.SearchResult, error) {
	return []domain.SearchResult{
		{URL: "https://a.example/" + query, Title: "A", Snippet: "about " + query, Rank: 1},
	}, nil
}

type emptySearchProvider struct{}

func (emptySearchProvider) Name() string { return "empty" }

func (emptySearchProvider) Search(_ context.Context, _ string, _ domain.SearchKind, _ int) ([]domain.SearchResult, error) {
	return nil, nil
}

type fakeFetcher struct{ body string }

func (f fakeFetcher) Fetch(_ context.Context, _ string) (string, string, error) {
	return f.body, "Fetched Title", nil
}

type fakeEmbedClient struct{}

func (fakeEmbedClient) CreateEmbeddings(_ context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	inputs := req.(openai.EmbeddingRequest).Input
	data := make([]openai.Embedding, len(inputs))
	for i := range inputs {
		data[i] = openai.Embedding{Index: i, Embedding: []float32{1, 0, 0}}
	}
	return openai.EmbeddingResponse{Data: data}, nil
}

func newVectorStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.Open(filepath.Join(dir, "vectors.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newHappyPathOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	classifyReply := `{"intent": "general"}`
	planReply := `{"sections": ["Overview"], "search_queries": [{"text": "widgets", "purpose": "p", "priority": 1}], "rationale": "r"}`
	reflectReply := `{"complete": true}`
	composeReply := `{"sections": [{"title": "Overview", "body": "Widgets are useful [Source 1]."}]}`

	scraper := &scrape.Scraper{Fallback1: fakeFetcher{body: "widgets are a useful tool for many purposes and come in many shapes and sizes"}}

	return &Orchestrator{
		Classifier: &plan.IntentClassifier{Gateway: llm.New(&staticClient{reply: classifyReply}, llm.Options{}), Model: "m"},
		Planner:    &plan.Planner{Gateway: llm.New(&staticClient{reply: planReply}, llm.Options{}), Model: "m"},
		Search:     fakeSearchProvider{},
		Scraper:    scraper,
		Summarizer: &summarize.Summarizer{
			Gateway: llm.New(&staticClient{reply: "widgets are a great source of utility"}, llm.Options{}),
			Router:  summarize.ModelRouter{Default: "m"},
		},
		Reflector:  &reflect.Reflector{Gateway: llm.New(&staticClient{reply: reflectReply}, llm.Options{}), Model: "m"},
		Assembler: &assemble.Assembler{
			Embedder: embedder.New(fakeEmbedClient{}, "embed-model"),
			Store:    newVectorStore(t),
			TopKSum:  1.0,
		},
		Composer:              &report.Composer{Gateway: llm.New(&staticClient{reply: composeReply}, llm.Options{}), Model: "m"},
		SearchResultsPerQuery: 10,
		MaxIterations:         2,
		TopKURL:               1.0,
	}
}

func TestOrchestrator_HappyPathProducesReportWithValidCitations(t *testing.T) {
	o := newHappyPathOrchestrator(t)
	result, err := o.Run(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Report.Sections) != 1 {
		t.Fatalf("expected one composed section, got %+v", result.Report.Sections)
	}
	if len(result.Report.Sources) == 0 {
		t.Fatalf("expected at least one source")
	}
	rendered := report.Render(result.Report, result.Gaps, result.Verification)
	if invalid := report.ValidateCitations(rendered, result.Report.Sources); len(invalid) != 0 {
		t.Fatalf("expected all citations valid, got invalid=%v", invalid)
	}
}

func TestOrchestrator_ZeroResultsAndNoSummariesFailsWithNoResults(t *testing.T) {
	o := newHappyPathOrchestrator(t)
	o.Search = emptySearchProvider{}

	_, err := o.Run(context.Background(), "widgets")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got := pipelineerr.ExitCode(err); got != 3 {
		t.Fatalf("expected ErrNoResults to map to exit code 3, got %d", got)
	}
}

func TestOrchestrator_VerificationRunsWhenEnabled(t *testing.T) {
	o := newHappyPathOrchestrator(t)
	o.VerifyClaims = true
	o.Extractor = &claims.Extractor{
		Gateway: llm.New(&staticClient{reply: `{"claims": [{"claim_text": "Widgets are useful", "source_number": 1, "claim_type": "factual", "context": ""}]}`}, llm.Options{}),
		Model:   "m",
	}
	o.Verifier = &claims.Verifier{
		Gateway: llm.New(&staticClient{reply: `{"verdicts": [{"claim_text": "Widgets are useful", "verdict": "supported", "confidence": 0.9, "evidence": "e", "reasoning": "r"}]}`}, llm.Options{}),
		Model:   "m",
		Scraper: o.Scraper,
	}

	result, err := o.Run(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verification == nil || result.Verification.Total != 1 {
		t.Fatalf("expected one verified claim, got %+v", result.Verification)
	}
}
