// Package api exposes the HTTP surface: ingestion endpoints that spawn
// background jobs, query endpoints including a streamed chat, and index
// administration.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calder-ai/ragserver/internal/generation"
	"github.com/calder-ai/ragserver/internal/ingest"
	"github.com/calder-ai/ragserver/internal/jobs"
	"github.com/calder-ai/ragserver/internal/retrieval"
	"github.com/calder-ai/ragserver/internal/storage"
)

// Ingestor is the pipeline surface the ingestion handlers drive.
type Ingestor interface {
	IngestFiles(ctx context.Context, paths []string, indexName string, cleanup bool, progress jobs.Reporter) ingestResult
	IngestURL(ctx context.Context, url, indexName string, progress jobs.Reporter) ingestResult
	IngestURLs(ctx context.Context, urls []string, indexName string, progress jobs.Reporter) ingestResult
	IngestWebsite(ctx context.Context, url string, maxPages int, indexName string, progress jobs.Reporter) ingestResult
	IngestRepository(ctx context.Context, owner, repo, dir, indexName string, progress jobs.Reporter) ingestResult
}

// Searcher runs similarity search for the query endpoints.
type Searcher interface {
	Search(ctx context.Context, indexName, query string, topK int, mode string) ([]retrieval.Hit, error)
}

// Answerer synthesizes grounded answers.
type Answerer interface {
	Answer(ctx context.Context, indexName, question string, topK int) (*retrieval.Answer, error)
	AnswerStream(ctx context.Context, indexName, question string, topK int) (<-chan generation.Fragment, []retrieval.Source, error)
}

// IndexAdmin is the storage surface behind the index endpoints.
type IndexAdmin interface {
	EnsureIndex(ctx context.Context, name string, dimension int) error
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, name string) (storage.IndexStats, error)
	Health(ctx context.Context) error
}

// Options carries the tunables the handlers need.
type Options struct {
	UploadDir     string
	DefaultTopK   int
	CrawlMaxPages int
	DefaultIndex  string
}

// Server owns the router and the handler dependencies.
type Server struct {
	jobs     *jobs.Manager
	ingestor Ingestor
	searcher Searcher
	answerer Answerer
	store    IndexAdmin
	opts     Options
	log      *slog.Logger
	router   chi.Router
}

// NewServer wires handlers onto a chi router.
func NewServer(manager *jobs.Manager, ingestor Ingestor, searcher Searcher, answerer Answerer, store IndexAdmin, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = retrieval.DefaultTopK
	}
	if opts.DefaultIndex == "" {
		opts.DefaultIndex = "default"
	}

	s := &Server{
		jobs:     manager,
		ingestor: ingestor,
		searcher: searcher,
		answerer: answerer,
		store:    store,
		opts:     opts,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recordMetrics)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/ingest", func(r chi.Router) {
		r.Post("/files", s.handleIngestFiles)
		r.Post("/url", s.handleIngestURL)
		r.Post("/website", s.handleIngestWebsite)
		r.Post("/repo", s.handleIngestRepo)
		r.Get("/status/{jobID}", s.handleJobStatus)
		r.Get("/jobs", s.handleJobList)
	})

	r.Route("/query", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/chat", s.handleChat)
	})

	r.Route("/indexes", func(r chi.Router) {
		r.Get("/", s.handleIndexList)
		r.Post("/", s.handleIndexCreate)
		r.Delete("/{name}", s.handleIndexDelete)
		r.Get("/{name}/stats", s.handleIndexStats)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Mount attaches an extra handler subtree, such as the MCP endpoint.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  fmt.Sprintf("vector store unreachable: %v", err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// indexOr falls back to the configured default index name.
func (s *Server) indexOr(name string) string {
	if name == "" {
		return s.opts.DefaultIndex
	}
	return name
}

// topKOr falls back to the configured default result count.
func (s *Server) topKOr(k int) int {
	if k <= 0 {
		return s.opts.DefaultTopK
	}
	return k
}

// runJob starts background work bound to a new job and returns its id.
// The job outlives the request, so it runs on a fresh context.
func (s *Server) runJob(typ jobs.Type, work jobs.Work) string {
	id := s.jobs.Create(typ)
	go s.jobs.Run(context.Background(), id, work)
	return id
}

// ingestResult aliases the pipeline result so the Ingestor contract reads
// in this package's terms.
type ingestResult = ingest.Result
