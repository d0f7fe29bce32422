// Package embedding generates embeddings through OpenAI's
// text-embedding-3-small model, batching requests and backing off on
// rate limit errors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector size produced by Model. It must match the
	// dimension indexes are provisioned with.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute against
	// tokens-per-minute rate limits.
	DefaultBatchSize = 500
)

// Embedder generates embeddings for text, satisfying the ingest and
// retrieval packages' embedding collaborator contract.
type Embedder struct {
	client    openai.Client
	batchSize int
}

// NewEmbedder creates an embedder. An empty apiKey is rejected so a
// misconfigured server fails at startup rather than on first ingestion.
func NewEmbedder(apiKey string, batchSize int) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: API key is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		batchSize: batchSize,
	}, nil
}

// EmbedTexts generates embeddings for the given texts, preserving order.
// Requests are batched; rate limit errors retry with exponential backoff,
// other errors fail immediately.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}

// Dimension returns the vector size this embedder produces.
func (e *Embedder) Dimension() int {
	return Dimension
}

// EmbedQuery generates a single embedding for a query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks for HTTP 429.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
