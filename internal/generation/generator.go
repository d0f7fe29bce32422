// Package generation wraps OpenAI chat completions behind the generative
// model contract the answer synthesizer consumes: a blocking call and an
// incrementally streamed one.
package generation

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is the chat model used for answer generation.
const DefaultModel = openai.ChatModelGPT4oMini

// Fragment is one unit of a streamed generation. A fragment with Done set
// is always the last one delivered; if Err is non-nil the stream failed
// mid-way but fragments already delivered remain valid.
type Fragment struct {
	Content string
	Err     error
	Done    bool
}

// Generator produces text from prompts.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a generator. Model falls back to DefaultModel.
// Extra options are passed through to the OpenAI client, e.g. to point it
// at a compatible gateway with option.WithBaseURL.
func NewGenerator(apiKey, model string, opts ...option.RequestOption) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generation: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Generator{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

// Generate submits the prompt and blocks for the full response text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream submits the prompt and returns a channel of fragments in
// emission order. The channel always ends with a Done fragment and is then
// closed, so consumers never block indefinitely; a mid-stream failure is
// carried on that final fragment.
func (g *Generator) GenerateStream(ctx context.Context, prompt string) <-chan Fragment {
	out := make(chan Fragment)

	go func() {
		defer close(out)

		stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: g.model,
		})
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- Fragment{Content: delta}:
				case <-ctx.Done():
					// Consumer is gone; don't block on a final send.
					select {
					case out <- Fragment{Err: ctx.Err(), Done: true}:
					default:
					}
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- Fragment{Err: fmt.Errorf("streaming completion failed: %w", err), Done: true}
			return
		}
		out <- Fragment{Done: true}
	}()

	return out
}
