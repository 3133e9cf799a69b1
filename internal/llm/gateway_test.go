package llm

import (
	"context"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// fakeClient returns a queued sequence of responses/errors, one per call,
// mirroring the narrow Client seam instead of a mocking framework.
type fakeClient struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	content := ""
	if i < len(f.responses) {
		content = f.responses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}, nil
}

func noSleep(time.Duration) {}

func TestGateway_CompleteText_SucceedsFirstTry(t *testing.T) {
	fc := &fakeClient{responses: []string{"hello world"}}
	gw := New(fc, Options{MaxRetries: 3, Sleep: noSleep})
	out, err := gw.CompleteText(context.Background(), "say hi", "gpt-test", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("got %q", out)
	}
	if fc.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fc.calls)
	}
}

func TestGateway_RetriesOnRefusalThenSucceeds(t *testing.T) {
	fc := &fakeClient{responses: []string{"I cannot help with that.", "here is the answer"}}
	gw := New(fc, Options{MaxRetries: 3, Sleep: noSleep})
	out, err := gw.CompleteText(context.Background(), "q", "gpt-test", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "here is the answer" {
		t.Fatalf("got %q", out)
	}
	if fc.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", fc.calls)
	}
}

func TestGateway_ExhaustsRetriesAndFails(t *testing.T) {
	fc := &fakeClient{responses: []string{"", "", ""}}
	gw := New(fc, Options{MaxRetries: 3, Sleep: noSleep})
	_, err := gw.CompleteText(context.Background(), "q", "gpt-test", 0, 0)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if fc.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fc.calls)
	}
}

func TestGateway_MaxRetriesOne_SingleAttempt(t *testing.T) {
	fc := &fakeClient{responses: []string{""}}
	gw := New(fc, Options{MaxRetries: 1, Sleep: noSleep})
	_, err := gw.CompleteText(context.Background(), "q", "gpt-test", 0, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if fc.calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", fc.calls)
	}
}

func TestGateway_CompleteJSON_SalvagesFencedBlock(t *testing.T) {
	fc := &fakeClient{responses: []string{"```json\n{\"a\": 1}\n```"}}
	gw := New(fc, Options{MaxRetries: 3, Sleep: noSleep})
	var out struct {
		A int `json:"a"`
	}
	if err := gw.CompleteJSON(context.Background(), "q", "gpt-test", 0, 0, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.A != 1 {
		t.Fatalf("got %+v", out)
	}
}

func TestGateway_CompleteJSON_SalvagesBalancedBraceSubstring(t *testing.T) {
	fc := &fakeClient{responses: []string{"Sure, here you go: {\"a\": 2} -- hope that helps!"}}
	gw := New(fc, Options{MaxRetries: 3, Sleep: noSleep})
	var out struct {
		A int `json:"a"`
	}
	if err := gw.CompleteJSON(context.Background(), "q", "gpt-test", 0, 0, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.A != 2 {
		t.Fatalf("got %+v", out)
	}
}

func TestSalvageJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"raw object", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"balanced substring", `noise {"a":1} noise`, `{"a":1}`, true},
		{"array", `[1,2,3]`, `[1,2,3]`, true},
		{"unsalvageable", "no json here at all", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := salvageJSON(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
