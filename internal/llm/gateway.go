package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jstevewhite/rsrch/internal/pipelineerr"
)

// Options configures a Gateway. It is an immutable record threaded through
// the constructor, never a process-wide variable (spec §9 design note).
type Options struct {
	MaxRetries          int
	PromptPolicyInclude bool
	Sleep               func(d time.Duration) // overridable for tests; defaults to time.Sleep
}

// policyPreamble instructs the model to answer from the provided sources,
// not refuse on the grounds of a training cutoff, and return raw JSON when
// asked for JSON.
const policyPreamble = "You are answering using the sources provided in this prompt, which may postdate your training data. Treat them as authoritative for current facts. Do not refuse or hedge because of a training cutoff. When asked for JSON, return raw JSON only, with no prose and no code fence."

var refusalPhrases = []string{
	"i cannot", "i can't", "i'm unable to", "i am unable to",
	"as an ai", "as a language model", "i do not have access",
	"i don't have access", "i'm not able to", "i am not able to",
}

// Gateway is the LLM Gateway of spec §4.1.
type Gateway struct {
	client Client
	opts   Options
}

// New constructs a Gateway over client with the given options, filling in
// defaults for zero-valued fields.
func New(client Client, opts Options) *Gateway {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Gateway{client: client, opts: opts}
}

// CompleteText issues a single chat completion and returns the raw text.
func (g *Gateway) CompleteText(ctx context.Context, prompt, model string, temperature float32, maxTokens int) (string, error) {
	return g.complete(ctx, prompt, model, temperature, maxTokens, false)
}

// CompleteJSON issues a chat completion expecting a JSON object/array body
// and unmarshals it into out, applying the salvage cascade on malformed
// output. A body that cannot be salvaged or decoded is retried like any
// other failed attempt.
func (g *Gateway) CompleteJSON(ctx context.Context, prompt, model string, temperature float32, maxTokens int, out any) error {
	_, err := g.complete(ctx, prompt, model, temperature, maxTokens, out)
	return err
}

func (g *Gateway) complete(ctx context.Context, prompt, model string, temperature float32, maxTokens int, out any) (string, error) {
	content := prompt
	if g.opts.PromptPolicyInclude {
		content = policyPreamble + "\n\n" + prompt
	}

	var lastRaw string
	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxRetries; attempt++ {
		req := openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: content},
			},
			Temperature: temperature,
		}
		if maxTokens > 0 {
			req.MaxTokens = maxTokens
		}
		if jsonMode {
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		}

		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			if isAuthError(err) {
				return "", fmt.Errorf("%w: %v", pipelineerr.ErrLLMUnavailable, err)
			}
			lastErr = err
			g.backoff(ctx, attempt)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty choices")
			g.backoff(ctx, attempt)
			continue
		}
		raw := strings.TrimSpace(resp.Choices[0].Message.Content)
		lastRaw = raw
		if raw == "" {
			lastErr = fmt.Errorf("empty body")
			g.backoff(ctx, attempt)
			continue
		}
		if looksLikeRefusal(raw) {
			lastErr = fmt.Errorf("refusal detected")
			g.backoff(ctx, attempt)
			continue
		}
		return raw, nil
	}
	return "", fmt.Errorf("%w: after %d attempts, last error %v, last response %q", pipelineerr.ErrLLMUnavailable, g.opts.MaxRetries, lastErr, truncate(lastRaw, 500))
}

// backoff sleeps 2^(attempt-1) seconds via opts.Sleep, which tests override
// to a no-op or a fake clock; it returns early on context cancellation.
func (g *Gateway) backoff(ctx context.Context, attempt int) {
	if attempt >= g.opts.MaxRetries {
		return
	}
	if ctx.Err() != nil {
		return
	}
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	g.opts.Sleep(d)
}

func looksLikeRefusal(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range refusalPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isAuthError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
