package reflect

import (
	"context"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
)

type fakeClient struct {
	reply func(string) string
	err   error
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	prompt := req.Messages[len(req.Messages)-1].Content
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply(prompt)}}},
	}, nil
}

func TestReflect_CompleteTrueStopsLoop(t *testing.T) {
	r := &Reflector{Gateway: llm.New(&fakeClient{reply: func(string) string { return `{"complete": true}` }}, llm.Options{}), Model: "m"}
	out := r.Reflect(context.Background(), domain.Query{Text: "q"}, []string{"A"}, nil)
	if !out.Complete {
		t.Fatalf("expected complete=true to pass through")
	}
}

func TestReflect_IncompleteWithQueriesContinues(t *testing.T) {
	reply := `{"complete": false, "gaps": ["missing B"], "additional_queries": [{"text": "more on B", "purpose": "p", "priority": 1}]}`
	r := &Reflector{Gateway: llm.New(&fakeClient{reply: func(string) string { return reply }}, llm.Options{}), Model: "m"}
	out := r.Reflect(context.Background(), domain.Query{Text: "q"}, []string{"A", "B"}, nil)
	if out.Complete {
		t.Fatalf("expected complete=false to propagate")
	}
	if len(out.AdditionalQueries) != 1 || out.AdditionalQueries[0].Text != "more on B" {
		t.Fatalf("expected one additional query, got %+v", out.AdditionalQueries)
	}
}

func TestReflect_IncompleteWithNoQueriesTreatedAsComplete(t *testing.T) {
	reply := `{"complete": false, "gaps": ["missing B"], "additional_queries": []}`
	r := &Reflector{Gateway: llm.New(&fakeClient{reply: func(string) string { return reply }}, llm.Options{}), Model: "m"}
	out := r.Reflect(context.Background(), domain.Query{Text: "q"}, []string{"A"}, nil)
	if !out.Complete {
		t.Fatalf("expected empty additional_queries + complete=false to be treated as complete")
	}
}

func TestReflect_GatewayFailureTreatedAsComplete(t *testing.T) {
	r := &Reflector{Gateway: llm.New(&fakeClient{err: fmt.Errorf("boom")}, llm.Options{MaxRetries: 1}), Model: "m"}
	out := r.Reflect(context.Background(), domain.Query{Text: "q"}, []string{"A"}, nil)
	if !out.Complete {
		t.Fatalf("expected gateway failure to default to complete")
	}
}

func TestReflect_TruncatesToFiveAdditionalQueries(t *testing.T) {
	reply := `{"complete": false, "additional_queries": [
		{"text":"1"},{"text":"2"},{"text":"3"},{"text":"4"},{"text":"5"},{"text":"6"},{"text":"7"}
	]}`
	r := &Reflector{Gateway: llm.New(&fakeClient{reply: func(string) string { return reply }}, llm.Options{}), Model: "m"}
	out := r.Reflect(context.Background(), domain.Query{Text: "q"}, nil, nil)
	if len(out.AdditionalQueries) != 5 {
		t.Fatalf("expected at most 5 additional queries, got %d", len(out.AdditionalQueries))
	}
}
