// Package retrieval answers queries against an index: similarity search
// over stored chunks, with optional answer synthesis grounded on the
// retrieved context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calder-ai/ragserver/internal/storage"
)

// DefaultTopK is the number of chunks retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 5

// VectorSearcher is the slice of the storage layer retrieval needs.
type VectorSearcher interface {
	Query(ctx context.Context, name string, vector []float32, topK int) ([]storage.ScoredRecord, error)
}

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Search modes. Hybrid is accepted for compatibility but resolves to
// semantic search: the vector store exposes no sparse/dense fusion, so
// dense cosine similarity is the one real path.
const (
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

// Hit is one retrieved chunk with its provenance.
type Hit struct {
	ID       string         `json:"node_id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Engine runs similarity search.
type Engine struct {
	store    VectorSearcher
	embedder QueryEmbedder
	log      *slog.Logger
}

// NewEngine creates a search engine.
func NewEngine(store VectorSearcher, embedder QueryEmbedder, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, log: log}
}

// Search embeds the query and returns the closest chunks. Querying an
// index that does not exist yields no hits rather than an error, so an
// empty knowledge base reads as "nothing found". An unknown mode is
// rejected; ModeHybrid runs the semantic path.
func (e *Engine) Search(ctx context.Context, indexName, query string, topK int, mode string) ([]Hit, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	switch mode {
	case "", ModeSemantic:
	case ModeHybrid:
		e.log.Debug("hybrid search requested, running semantic search", "index", indexName)
	default:
		return nil, fmt.Errorf("unsupported search mode %q", mode)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	records, err := e.store.Query(ctx, indexName, vector, topK)
	if err != nil {
		if errors.Is(err, storage.ErrIndexNotFound) {
			e.log.Warn("search against missing index", "index", indexName)
			return []Hit{}, nil
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, len(records))
	for i, rec := range records {
		hits[i] = Hit{
			ID:       rec.ID,
			Content:  rec.Content,
			Score:    rec.Score,
			Source:   sourceName(rec.Metadata),
			Metadata: rec.Metadata,
		}
	}
	return hits, nil
}

// sourceName picks a human readable origin for a chunk.
func sourceName(metadata map[string]any) string {
	for _, key := range []string{"file_name", "original_url", "title"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return "Unknown"
}
