package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/calder-ai/ragserver/internal/storage"
)

// indexNamePattern keeps index names safe to use as collection names.
var indexNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,62}$`)

func (s *Server) handleIndexList(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListIndexes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexes": names})
}

type indexCreateRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

func (s *Server) handleIndexCreate(w http.ResponseWriter, r *http.Request) {
	var req indexCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if !indexNamePattern.MatchString(req.Name) {
		writeError(w, http.StatusBadRequest, "index name must be alphanumeric with dashes or underscores")
		return
	}

	if err := s.store.EnsureIndex(r.Context(), req.Name, req.Dimension); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleIndexDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.store.DeleteIndex(r.Context(), name); err != nil {
		if errors.Is(err, storage.ErrIndexNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("index %s not found", name))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	stats, err := s.store.Stats(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrIndexNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("index %s not found", name))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
