package storage

// Record is a vector point ready for upsert: an embedded chunk keyed by
// chunk id with its sanitized metadata attached.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// ScoredRecord is a query hit with its similarity score.
type ScoredRecord struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}

// IndexStats is the explicit, defaulted view of an index's statistics.
// It is built once at the store boundary so internal code never branches
// on the shape of an SDK response.
type IndexStats struct {
	TotalVectorCount uint64  `json:"total_vector_count"`
	Dimension        uint64  `json:"dimension"`
	IndexFullness    float64 `json:"index_fullness"`
	Metric           string  `json:"metric"`
}

// DefaultDimension matches the text-embedding-3-small embedding size.
const DefaultDimension = 1536

// contentKey is the payload field holding the chunk text.
const contentKey = "content"
