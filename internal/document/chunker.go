package document

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Chunk is a bounded span of a document's text, overlapping its neighbors.
// Chunks are the unit of embedding and retrieval.
type Chunk struct {
	ID          string
	Text        string
	Index       int
	TotalChunks int
	ParentDocID string
	Metadata    Metadata
}

// SplitterConfig controls chunking behavior. Sizes are in characters.
type SplitterConfig struct {
	ChunkSize    int // Soft upper bound for a chunk.
	ChunkOverlap int // Trailing text carried into the next chunk.
}

// DefaultSplitterConfig returns the standard chunking parameters.
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1024,
		ChunkOverlap: 100,
	}
}

// Splitter divides document content into sentence-boundary-aware chunks.
type Splitter struct {
	cfg SplitterConfig
}

// NewSplitter creates a splitter, falling back to defaults for
// non-positive configuration values.
func NewSplitter(cfg SplitterConfig) *Splitter {
	def := DefaultSplitterConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap <= 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = def.ChunkOverlap
		if cfg.ChunkOverlap >= cfg.ChunkSize {
			cfg.ChunkOverlap = cfg.ChunkSize / 10
		}
	}
	return &Splitter{cfg: cfg}
}

// Split chunks a document's content. Each chunk gets a fresh id, its
// position, the total count, a back-reference to the parent document,
// and the parent's metadata merged with chunk fields and re-sanitized.
// An empty result means the document had no splittable content; callers
// treat that as an ingestion failure, not this function.
func (s *Splitter) Split(doc Document) []Chunk {
	parts := s.splitText(doc.Content)
	if len(parts) == 0 {
		return nil
	}

	chunks := make([]Chunk, len(parts))
	for i, text := range parts {
		md := make(Metadata, len(doc.Metadata)+4)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		id := uuid.New().String()
		md["chunk_id"] = id
		md["chunk_index"] = i
		md["total_chunks"] = len(parts)
		md["parent_doc_id"] = doc.ID
		chunks[i] = Chunk{
			ID:          id,
			Text:        text,
			Index:       i,
			TotalChunks: len(parts),
			ParentDocID: doc.ID,
			Metadata:    Sanitize(md),
		}
	}
	return chunks
}

// splitText accumulates paragraphs up to the target size, falling back to
// sentence splits for oversized paragraphs. Consecutive chunks share
// ChunkOverlap characters of trailing text.
func (s *Splitter) splitText(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var result []string
	var current strings.Builder

	flush := func() string {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			result = append(result, chunk)
		}
		current.Reset()
		return chunk
	}

	for _, para := range paragraphs {
		if len(para) > s.cfg.ChunkSize {
			flush()
			result = append(result, s.splitSentenceRuns(para)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > s.cfg.ChunkSize {
			prev := flush()
			if overlap := tailOverlap(prev, s.cfg.ChunkOverlap); overlap != "" {
				current.WriteString(overlap)
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return result
}

// splitSentenceRuns breaks an oversized paragraph into chunks at sentence
// boundaries, again carrying overlap between them.
func (s *Splitter) splitSentenceRuns(para string) []string {
	sentences := SplitSentences(para)

	var result []string
	var current strings.Builder

	for _, sent := range sentences {
		if current.Len() > 0 && current.Len()+len(sent)+1 > s.cfg.ChunkSize {
			prev := strings.TrimSpace(current.String())
			result = append(result, prev)
			current.Reset()
			if overlap := tailOverlap(prev, s.cfg.ChunkOverlap); overlap != "" {
				current.WriteString(overlap)
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		result = append(result, trimmed)
	}
	return result
}

// splitParagraphs splits on blank lines and drops empty parts.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// SplitSentences performs basic sentence splitting on terminal punctuation
// followed by whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if isSentenceEnd(r) && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '。', '？', '！':
		return true
	}
	return false
}

// tailOverlap returns up to n trailing bytes of text, snapped forward to a
// rune boundary and then to the next word boundary so overlaps never begin
// mid-rune or mid-word.
func tailOverlap(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return ""
	}
	start := len(text) - n
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
