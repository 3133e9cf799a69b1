// Package embedder is the Embedding Client (spec §4.2): batched embedding
// generation that preserves input order and never substitutes zero
// vectors on failure.
package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jstevewhite/rsrch/internal/pipelineerr"
)

// maxBatch is the provider's native batch ceiling; texts beyond this are
// split into multiple calls, each itself order-preserving.
const maxBatch = 2048

// Client is the narrow seam over the embeddings endpoint.
type Client interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Embedder wraps Client with the model name to use for every call.
type Embedder struct {
	client Client
	model  openai.EmbeddingModel
}

// New constructs an Embedder for the given model name.
func New(client Client, model string) *Embedder {
	return &Embedder{client: client, model: openai.EmbeddingModel(model)}
}

// Embed issues one native batch call per maxBatch texts and returns vectors
// in the same order as texts. Any failure fails the whole call; callers
// must not substitute zero vectors for partial results.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		req := openai.EmbeddingRequest{
			Input: batch,
			Model: e.model,
		}
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pipelineerr.ErrEmbeddingUnavailable, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: provider returned %d embeddings for %d inputs", pipelineerr.ErrEmbeddingUnavailable, len(resp.Data), len(batch))
		}
		// The provider response is already index-aligned with the request
		// order; sort defensively by Index to guarantee it regardless.
		vectors := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vectors) {
				return nil, fmt.Errorf("%w: embedding index %d out of range", pipelineerr.ErrEmbeddingUnavailable, d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// Dimension returns the dimension of a nonempty embedding, or 0 if empty.
// D is the run-scoped constant set by the first successful call (spec §3).
func Dimension(vectors [][]float32) int {
	for _, v := range vectors {
		if len(v) > 0 {
			return len(v)
		}
	}
	return 0
}
