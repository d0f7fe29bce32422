package mcp

import "github.com/calder-ai/ragserver/internal/retrieval"

// SearchInput is the input schema for the search_knowledge tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"the search query text"`
	IndexName string `json:"index_name,omitempty" jsonschema:"index to search, defaults to the server default"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of chunks to return, defaults to 5"`
}

// SearchOutput is the output schema for the search_knowledge tool.
type SearchOutput struct {
	Results []retrieval.Hit `json:"results"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
}

// AskInput is the input schema for the ask_knowledge tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the knowledge base"`
	IndexName string `json:"index_name,omitempty" jsonschema:"index to answer from, defaults to the server default"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of chunks to ground the answer on"`
}

// AskOutput is the output schema for the ask_knowledge tool.
type AskOutput struct {
	Answer  string             `json:"answer"`
	Sources []retrieval.Source `json:"sources"`
}

// ListIndexesInput is the (empty) input schema for list_indexes.
type ListIndexesInput struct{}

// ListIndexesOutput is the output schema for list_indexes.
type ListIndexesOutput struct {
	Indexes []string `json:"indexes"`
	Count   int      `json:"count"`
}
