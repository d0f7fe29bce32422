// Package mcp exposes the knowledge base to model context protocol
// clients: semantic search, grounded question answering, and index
// discovery.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/calder-ai/ragserver/internal/generation"
	"github.com/calder-ai/ragserver/internal/retrieval"
)

// Searcher runs similarity search for the search_knowledge tool.
type Searcher interface {
	Search(ctx context.Context, indexName, query string, topK int, mode string) ([]retrieval.Hit, error)
}

// Answerer produces grounded answers for the ask_knowledge tool.
type Answerer interface {
	Answer(ctx context.Context, indexName, question string, topK int) (*retrieval.Answer, error)
	AnswerStream(ctx context.Context, indexName, question string, topK int) (<-chan generation.Fragment, []retrieval.Source, error)
}

// IndexLister enumerates indexes for the list_indexes tool.
type IndexLister interface {
	ListIndexes(ctx context.Context) ([]string, error)
}

// Config holds the tool dependencies.
type Config struct {
	Searcher     Searcher
	Answerer     Answerer
	Indexes      IndexLister
	DefaultIndex string
}

// Server wraps the MCP server with tools registered.
type Server struct {
	server *mcp.Server
	cfg    Config
}

// NewServer creates an MCP server exposing the knowledge base tools.
func NewServer(cfg Config) *Server {
	if cfg.DefaultIndex == "" {
		cfg.DefaultIndex = "default"
	}

	impl := &mcp.Implementation{
		Name:    "ragserver",
		Version: "v1.0.0",
	}
	server := mcp.NewServer(impl, nil)
	s := &Server{server: server, cfg: cfg}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Search the knowledge base semantically. Returns the most similar stored chunks with scores and source names.",
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_knowledge",
		Description: "Ask a question against the knowledge base. Returns an answer grounded on retrieved context, with cited sources.",
	}, s.handleAsk)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_indexes",
		Description: "List the vector indexes available for search.",
	}, s.handleListIndexes)

	return s
}

// Run serves over stdio, blocking until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns a streamable HTTP transport for the server, suitable
// for mounting under a path such as /mcp.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

func (s *Server) indexOr(name string) string {
	if name == "" {
		return s.cfg.DefaultIndex
	}
	return name
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}

	hits, err := s.cfg.Searcher.Search(ctx, s.indexOr(input.IndexName), input.Query, input.TopK, retrieval.ModeSemantic)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, SearchOutput{
			Results: []retrieval.Hit{},
			Message: "No matching content found. Try broader search terms or ingest documents first.",
		}, nil
	}
	return nil, SearchOutput{Results: hits, Count: len(hits)}, nil
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if input.Question == "" {
		return nil, AskOutput{}, fmt.Errorf("question is required")
	}

	answer, err := s.cfg.Answerer.Answer(ctx, s.indexOr(input.IndexName), input.Question, input.TopK)
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("answer failed: %w", err)
	}
	sources := answer.Sources
	if sources == nil {
		sources = []retrieval.Source{}
	}
	return nil, AskOutput{Answer: answer.Text, Sources: sources}, nil
}

func (s *Server) handleListIndexes(ctx context.Context, req *mcp.CallToolRequest, input ListIndexesInput) (*mcp.CallToolResult, ListIndexesOutput, error) {
	names, err := s.cfg.Indexes.ListIndexes(ctx)
	if err != nil {
		return nil, ListIndexesOutput{}, fmt.Errorf("list indexes failed: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return nil, ListIndexesOutput{Indexes: names, Count: len(names)}, nil
}
