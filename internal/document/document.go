// Package document defines the normalized document model shared by the
// ingestion pipeline, the chunker, and the vector store boundary.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata is a flat key/value map attached to documents and chunks.
// Values must be sanitized before crossing the vector store boundary.
type Metadata = map[string]any

// RawItem is the output of a parser or scraper before normalization.
type RawItem struct {
	Content  string
	Title    string
	FilePath string
	FileName string
	FileSize int64
	FileType string
	MimeType string
	Extra    Metadata
}

// Document is a normalized unit of content ready for chunking.
// It is immutable once constructed.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Sanitize coerces metadata values into the types the vector store accepts:
// string, number, boolean, or list of strings. Nil becomes the empty string,
// everything else is converted to its string form.
func Sanitize(md Metadata) Metadata {
	out := make(Metadata, len(md))
	for key, value := range md {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[key] = v
		case []string:
			out[key] = v
		case []any:
			strs := make([]string, len(v))
			for i, item := range v {
				if s, ok := item.(string); ok {
					strs[i] = s
				} else {
					strs[i] = fmt.Sprintf("%v", item)
				}
			}
			out[key] = strs
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// Normalize converts raw parsed items into documents with sanitized metadata.
// It is a pure transform: malformed values are coerced, never rejected.
// Callers are expected to pre-filter items with empty content.
func Normalize(items []RawItem) []Document {
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		id := uuid.New().String()
		md := Metadata{
			"title":               item.Title,
			"file_path":           item.FilePath,
			"file_name":           item.FileName,
			"file_size":           item.FileSize,
			"file_type":           item.FileType,
			"mime_type":           item.MimeType,
			"ingestion_timestamp": time.Now().UTC().Format(time.RFC3339),
			"document_id":         id,
		}
		for k, v := range item.Extra {
			md[k] = v
		}
		docs = append(docs, Document{
			ID:       id,
			Content:  strings.TrimSpace(item.Content),
			Metadata: Sanitize(md),
		})
	}
	return docs
}
