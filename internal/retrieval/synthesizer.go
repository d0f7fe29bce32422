package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/calder-ai/ragserver/internal/generation"
)

// NoContextAnswer is returned when retrieval finds nothing to ground an
// answer on. The generator is not invoked in that case.
const NoContextAnswer = "No relevant information found in the knowledge base."

// defaultSystemPrompt instructs the model to stay within the retrieved
// context.
const defaultSystemPrompt = "You are a helpful assistant. Answer the question based on the provided context. " +
	"If the context does not contain enough information to answer the question, say so clearly. " +
	"Do not make up information that is not in the context."

// sourcePreviewLen caps how much chunk text a cited source carries.
const sourcePreviewLen = 500

// TextGenerator is the generative model contract the synthesizer uses.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) <-chan generation.Fragment
}

// Source cites one chunk that grounded an answer, keeping the chunk's
// metadata so clients retain full provenance.
type Source struct {
	Name     string         `json:"name"`
	Score    float64        `json:"score"`
	Preview  string         `json:"preview"`
	Metadata map[string]any `json:"metadata"`
}

// Answer is a synthesized response with its citations.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Synthesizer produces grounded answers from search hits.
type Synthesizer struct {
	engine       *Engine
	generator    TextGenerator
	systemPrompt string
}

// NewSynthesizer creates a synthesizer. An empty systemPrompt uses the
// built-in one.
func NewSynthesizer(engine *Engine, generator TextGenerator, systemPrompt string) *Synthesizer {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Synthesizer{
		engine:       engine,
		generator:    generator,
		systemPrompt: systemPrompt,
	}
}

// Answer retrieves context for the question and generates a grounded
// answer, blocking until it is complete.
func (s *Synthesizer) Answer(ctx context.Context, indexName, question string, topK int) (*Answer, error) {
	hits, err := s.engine.Search(ctx, indexName, question, topK, ModeSemantic)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &Answer{Text: NoContextAnswer, Sources: []Source{}}, nil
	}

	text, err := s.generator.Generate(ctx, s.buildPrompt(question, hits))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{Text: text, Sources: sources(hits)}, nil
}

// AnswerStream is the streaming variant. The fragment channel always ends
// with a Done fragment. A question with no retrievable context streams the
// fallback answer instead of invoking the generator.
func (s *Synthesizer) AnswerStream(ctx context.Context, indexName, question string, topK int) (<-chan generation.Fragment, []Source, error) {
	hits, err := s.engine.Search(ctx, indexName, question, topK, ModeSemantic)
	if err != nil {
		return nil, nil, err
	}
	if len(hits) == 0 {
		out := make(chan generation.Fragment, 2)
		out <- generation.Fragment{Content: NoContextAnswer}
		out <- generation.Fragment{Done: true}
		close(out)
		return out, []Source{}, nil
	}

	return s.generator.GenerateStream(ctx, s.buildPrompt(question, hits)), sources(hits), nil
}

// buildPrompt assembles the grounded prompt from the system instructions,
// the retrieved context blocks, and the question.
func (s *Synthesizer) buildPrompt(question string, hits []Hit) string {
	var sb strings.Builder
	sb.WriteString(s.systemPrompt)
	sb.WriteString("\n\nContext:\n")
	for _, hit := range hits {
		fmt.Fprintf(&sb, "Source: %s\nContent: %s\n\n", hit.Source, hit.Content)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

func sources(hits []Hit) []Source {
	out := make([]Source, len(hits))
	for i, hit := range hits {
		preview := hit.Content
		if len(preview) > sourcePreviewLen {
			preview = preview[:sourcePreviewLen]
		}
		out[i] = Source{Name: hit.Source, Score: hit.Score, Preview: preview, Metadata: hit.Metadata}
	}
	return out
}
