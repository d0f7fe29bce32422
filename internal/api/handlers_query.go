package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/calder-ai/ragserver/internal/retrieval"
)

type searchRequest struct {
	Query      string `json:"query"`
	IndexName  string `json:"index_name"`
	TopK       int    `json:"top_k"`
	SearchType string `json:"search_type"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.SearchType != "" && req.SearchType != retrieval.ModeSemantic && req.SearchType != retrieval.ModeHybrid {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported search type %q", req.SearchType))
		return
	}

	hits, err := s.searcher.Search(r.Context(), s.indexOr(req.IndexName), req.Query, s.topKOr(req.TopK), req.SearchType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
		"count":   len(hits),
	})
}

type chatRequest struct {
	Question  string `json:"question"`
	IndexName string `json:"index_name"`
	TopK      int    `json:"top_k"`
	Stream    bool   `json:"stream"`
}

// chatEvent is one server-sent event unit of a streamed chat response.
type chatEvent struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done"`
}

// handleChat answers a question grounded on retrieved context. With
// stream set the response is sent as server-sent events; otherwise the
// full answer is returned in one JSON body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	indexName := s.indexOr(req.IndexName)
	topK := s.topKOr(req.TopK)

	if !req.Stream {
		answer, err := s.answerer.Answer(r.Context(), indexName, req.Question, topK)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, answer)
		return
	}

	fragments, sources, err := s.answerer.AnswerStream(r.Context(), indexName, req.Question, topK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Sources go first so clients can render citations while the answer
	// streams in.
	writeSSE(w, map[string]any{"sources": sources})
	flusher.Flush()

	for frag := range fragments {
		event := chatEvent{Content: frag.Content, Done: frag.Done}
		if frag.Err != nil {
			event.Error = frag.Err.Error()
		}
		writeSSE(w, event)
		flusher.Flush()
		if frag.Done {
			return
		}
	}
	// The channel closed without a Done fragment; emit one so clients
	// always see a terminal event.
	writeSSE(w, chatEvent{Done: true})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
