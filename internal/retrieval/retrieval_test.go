package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-ai/ragserver/internal/generation"
	"github.com/calder-ai/ragserver/internal/storage"
)

type fakeSearcher struct {
	records []storage.ScoredRecord
	err     error
	gotTopK int
}

func (f *fakeSearcher) Query(ctx context.Context, name string, vector []float32, topK int) ([]storage.ScoredRecord, error) {
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakeQueryEmbedder struct{ err error }

func (f *fakeQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeGenerator struct {
	called    bool
	answer    string
	err       error
	streamErr error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.called = true
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, prompt string) <-chan generation.Fragment {
	f.called = true
	words := strings.Fields(f.answer)
	out := make(chan generation.Fragment, len(words)+1)
	for _, word := range words {
		out <- generation.Fragment{Content: word}
	}
	out <- generation.Fragment{Err: f.streamErr, Done: true}
	close(out)
	return out
}

func record(content, fileName string, score float64) storage.ScoredRecord {
	return storage.ScoredRecord{
		ID:       "id-" + fileName,
		Score:    score,
		Content:  content,
		Metadata: map[string]any{"file_name": fileName},
	}
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{records: []storage.ScoredRecord{
		record("chunk one", "a.md", 0.91),
		record("chunk two", "b.md", 0.72),
	}}
	engine := NewEngine(searcher, &fakeQueryEmbedder{}, nil)

	hits, err := engine.Search(context.Background(), "docs", "what is this", 2, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a.md", hits[0].Source)
	assert.Equal(t, 0.91, hits[0].Score)
	assert.Equal(t, "chunk one", hits[0].Content)
	assert.Equal(t, 2, searcher.gotTopK)
}

func TestSearchDefaults(t *testing.T) {
	searcher := &fakeSearcher{}
	engine := NewEngine(searcher, &fakeQueryEmbedder{}, nil)

	_, err := engine.Search(context.Background(), "docs", "q", 0, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, searcher.gotTopK)

	_, err = engine.Search(context.Background(), "docs", "", 5, "")
	assert.Error(t, err)
}

func TestSearchModes(t *testing.T) {
	searcher := &fakeSearcher{records: []storage.ScoredRecord{record("c", "a.md", 0.5)}}
	engine := NewEngine(searcher, &fakeQueryEmbedder{}, nil)

	hits, err := engine.Search(context.Background(), "docs", "q", 1, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "id-a.md", hits[0].ID)

	_, err = engine.Search(context.Background(), "docs", "q", 1, "keyword")
	assert.ErrorContains(t, err, "unsupported search mode")
}

func TestSearchMissingIndex(t *testing.T) {
	searcher := &fakeSearcher{err: storage.ErrIndexNotFound}
	engine := NewEngine(searcher, &fakeQueryEmbedder{}, nil)

	hits, err := engine.Search(context.Background(), "ghost", "q", 3, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchStoreError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection reset")}
	engine := NewEngine(searcher, &fakeQueryEmbedder{}, nil)

	_, err := engine.Search(context.Background(), "docs", "q", 3, "")
	assert.ErrorContains(t, err, "vector search")
}

func TestSearchUnknownSource(t *testing.T) {
	searcher := &fakeSearcher{records: []storage.ScoredRecord{
		{ID: "x", Content: "orphan chunk", Metadata: map[string]any{}},
	}}
	engine := NewEngine(searcher, &fakeQueryEmbedder{}, nil)

	hits, err := engine.Search(context.Background(), "docs", "q", 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Unknown", hits[0].Source)
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestAnswer(t *testing.T) {
	searcher := &fakeSearcher{records: []storage.ScoredRecord{
		record("Go is a statically typed language.", "go.md", 0.88),
	}}
	gen := &fakeGenerator{answer: "Go is statically typed."}
	syn := NewSynthesizer(NewEngine(searcher, &fakeQueryEmbedder{}, nil), gen, "")

	ans, err := syn.Answer(context.Background(), "docs", "Is Go typed?", 5)
	require.NoError(t, err)
	assert.True(t, gen.called)
	assert.Equal(t, "Go is statically typed.", ans.Text)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "go.md", ans.Sources[0].Name)
	assert.Equal(t, 0.88, ans.Sources[0].Score)
	assert.Equal(t, map[string]any{"file_name": "go.md"}, ans.Sources[0].Metadata)
}

func TestAnswerNoContext(t *testing.T) {
	gen := &fakeGenerator{answer: "should not run"}
	syn := NewSynthesizer(NewEngine(&fakeSearcher{}, &fakeQueryEmbedder{}, nil), gen, "")

	ans, err := syn.Answer(context.Background(), "docs", "anything", 5)
	require.NoError(t, err)
	assert.False(t, gen.called)
	assert.Equal(t, NoContextAnswer, ans.Text)
	assert.Empty(t, ans.Sources)
}

func TestAnswerSourcePreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", sourcePreviewLen+200)
	searcher := &fakeSearcher{records: []storage.ScoredRecord{record(long, "big.md", 0.5)}}
	gen := &fakeGenerator{answer: "ok"}
	syn := NewSynthesizer(NewEngine(searcher, &fakeQueryEmbedder{}, nil), gen, "")

	ans, err := syn.Answer(context.Background(), "docs", "q", 1)
	require.NoError(t, err)
	require.Len(t, ans.Sources, 1)
	assert.Len(t, ans.Sources[0].Preview, sourcePreviewLen)
}

func TestAnswerStream(t *testing.T) {
	searcher := &fakeSearcher{records: []storage.ScoredRecord{
		record("relevant chunk", "a.md", 0.9),
	}}
	gen := &fakeGenerator{answer: "streamed answer here"}
	syn := NewSynthesizer(NewEngine(searcher, &fakeQueryEmbedder{}, nil), gen, "")

	stream, sources, err := syn.AnswerStream(context.Background(), "docs", "q", 5)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	var parts []string
	sawDone := false
	for frag := range stream {
		if frag.Done {
			sawDone = true
			require.NoError(t, frag.Err)
			continue
		}
		parts = append(parts, frag.Content)
	}
	assert.True(t, sawDone)
	assert.Equal(t, "streamed answer here", strings.Join(parts, " "))
}

// A generation failure part way through the stream must reach the consumer
// as an error on the terminal fragment, after the content already streamed.
func TestAnswerStream_MidStreamFailure(t *testing.T) {
	searcher := &fakeSearcher{records: []storage.ScoredRecord{
		record("relevant chunk", "a.md", 0.9),
	}}
	gen := &fakeGenerator{answer: "partial answer", streamErr: errors.New("upstream cut out")}
	syn := NewSynthesizer(NewEngine(searcher, &fakeQueryEmbedder{}, nil), gen, "")

	stream, _, err := syn.AnswerStream(context.Background(), "docs", "q", 5)
	require.NoError(t, err)

	var frags []generation.Fragment
	for frag := range stream {
		frags = append(frags, frag)
	}
	require.Len(t, frags, 3)
	assert.Equal(t, "partial", frags[0].Content)

	last := frags[len(frags)-1]
	assert.True(t, last.Done)
	assert.ErrorContains(t, last.Err, "upstream cut out")
}

func TestAnswerStreamNoContext(t *testing.T) {
	gen := &fakeGenerator{answer: "should not run"}
	syn := NewSynthesizer(NewEngine(&fakeSearcher{}, &fakeQueryEmbedder{}, nil), gen, "")

	stream, sources, err := syn.AnswerStream(context.Background(), "docs", "q", 5)
	require.NoError(t, err)
	assert.False(t, gen.called)
	assert.Empty(t, sources)

	var text string
	sawDone := false
	for frag := range stream {
		if frag.Done {
			sawDone = true
			continue
		}
		text += frag.Content
	}
	assert.True(t, sawDone)
	assert.Equal(t, NoContextAnswer, text)
}

func TestBuildPromptStructure(t *testing.T) {
	syn := NewSynthesizer(nil, nil, "Custom instructions.")
	prompt := syn.buildPrompt("why?", []Hit{{Source: "a.md", Content: "because"}})

	assert.True(t, strings.HasPrefix(prompt, "Custom instructions."))
	assert.Contains(t, prompt, "Source: a.md\nContent: because")
	assert.True(t, strings.HasSuffix(prompt, "Question: why?"))
}
