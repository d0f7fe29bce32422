// Package storage wraps the Qdrant client behind the vector index
// operations the rest of the server needs: idempotent index provisioning,
// batched upserts, similarity queries, and statistics.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/calder-ai/ragserver/internal/metrics"
)

// upsertBatchSize bounds the number of points per upsert request.
const upsertBatchSize = 100

// Store wraps the Qdrant client with connection management and health checks.
// Each logical index maps to one Qdrant collection with an unnamed vector
// of the index's dimension and cosine distance.
type Store struct {
	client *qdrant.Client
	host   string
	port   int
}

// New creates a Qdrant-backed store and validates connectivity.
// It performs a health check with retry on startup and fails fast if the
// server is unreachable.
func New(host string, port int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, host: host, port: port}

	if err := s.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return s, nil
}

// healthCheckWithRetry performs a health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check. Nil means the store is reachable.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// IndexExists reports whether an index with the given name exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// EnsureIndex provisions an index with the given dimension and cosine
// distance. If the index already exists it succeeds without modification.
// A non-positive dimension falls back to DefaultDimension.
func (s *Store) EnsureIndex(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}

// DeleteIndex removes an index. Returns ErrIndexNotFound if it does not exist.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrIndexNotFound
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete index %s: %w", name, err)
	}
	return nil
}

// ListIndexes returns the names of all indexes.
func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// UpsertRecords writes records to the named index in batches. A failed
// batch aborts the remainder, but batches already written stay visible
// (at-least-once, no rollback).
func (s *Store) UpsertRecords(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for i := 0; i < len(records); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(records))
		batch := records[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, rec := range batch {
			payload := toPayload(rec)
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(rec.ID),
				Vectors: qdrant.NewVectors(rec.Vector...),
				Payload: qdrant.NewValueMap(payload),
			}
		}

		if err := s.upsertWithRetry(ctx, name, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
		metrics.VectorsUpserted.WithLabelValues(name).Add(float64(len(batch)))
	}
	return nil
}

// upsertWithRetry performs an upsert with exponential backoff.
func (s *Store) upsertWithRetry(ctx context.Context, name string, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Query performs a similarity search on the named index and returns the
// topK nearest records with scores, best first. A missing index yields
// ErrIndexNotFound so callers can treat absence as an expected condition.
func (s *Store) Query(ctx context.Context, name string, vector []float32, topK int) ([]ScoredRecord, error) {
	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrIndexNotFound
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index %s: %w", name, err)
	}

	records := make([]ScoredRecord, 0, len(results))
	for _, hit := range results {
		md := fromPayload(hit.Payload)
		content, _ := md[contentKey].(string)
		delete(md, contentKey)
		records = append(records, ScoredRecord{
			ID:       hit.Id.GetUuid(),
			Score:    float64(hit.Score),
			Content:  content,
			Metadata: md,
		})
	}
	return records, nil
}

// Stats returns index statistics with every field defaulted, so callers
// never see a partially shaped response. Missing indexes yield
// ErrIndexNotFound.
func (s *Store) Stats(ctx context.Context, name string) (IndexStats, error) {
	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return IndexStats{}, err
	}
	if !exists {
		return IndexStats{}, ErrIndexNotFound
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return IndexStats{}, fmt.Errorf("failed to get stats for %s: %w", name, err)
	}

	stats := IndexStats{
		Dimension: DefaultDimension,
		Metric:    "cosine",
	}
	stats.TotalVectorCount = info.GetPointsCount()
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		if params.GetSize() > 0 {
			stats.Dimension = params.GetSize()
		}
		stats.Metric = distanceName(params.GetDistance())
	}
	return stats, nil
}

// Close closes the underlying client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// toPayload flattens a record into the Qdrant payload map. Metadata values
// are already sanitized; string slices still need widening for the value
// map constructor.
func toPayload(rec Record) map[string]any {
	payload := make(map[string]any, len(rec.Metadata)+1)
	for k, v := range rec.Metadata {
		if list, ok := v.([]string); ok {
			widened := make([]any, len(list))
			for i, item := range list {
				widened[i] = item
			}
			payload[k] = widened
			continue
		}
		payload[k] = v
	}
	payload[contentKey] = rec.Content
	return payload
}

// fromPayload converts a Qdrant payload back into plain Go values.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	md := make(map[string]any, len(payload))
	for k, v := range payload {
		md[k] = valueToAny(v)
	}
	return md
}

func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, valueToAny(item))
		}
		return out
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for key, val := range fields {
			out[key] = valueToAny(val)
		}
		return out
	default:
		return nil
	}
}

func distanceName(d qdrant.Distance) string {
	switch d {
	case qdrant.Distance_Cosine:
		return "cosine"
	case qdrant.Distance_Euclid:
		return "euclid"
	case qdrant.Distance_Dot:
		return "dot"
	case qdrant.Distance_Manhattan:
		return "manhattan"
	default:
		return "cosine"
	}
}
