package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/calder-ai/ragserver/internal/github"
	"github.com/calder-ai/ragserver/internal/jobs"
	"github.com/calder-ai/ragserver/internal/parser"
	"github.com/calder-ai/ragserver/internal/scraper"
)

const maxUploadBytes = 100 << 20

// jobAccepted is the payload every ingestion endpoint returns.
type jobAccepted struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) accept(w http.ResponseWriter, jobID, message string) {
	writeJSON(w, http.StatusAccepted, jobAccepted{
		JobID:   jobID,
		Status:  string(jobs.StatusPending),
		Message: message,
	})
}

// handleIngestFiles accepts a multipart upload, stages files to disk, and
// kicks off a file ingestion job. Unsupported file types fail the request
// up front; the failure is also committed to a job record so clients
// polling by job id see it.
func (s *Server) handleIngestFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	for _, fh := range files {
		if !parser.IsSupported(fh.Filename) {
			id := s.jobs.Create(jobs.TypeFileIngestion)
			msg := fmt.Sprintf("unsupported file type: %s", filepath.Ext(fh.Filename))
			s.jobs.Fail(id, msg)
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	indexName := s.indexOr(r.FormValue("index_name"))

	paths, err := s.stageUploads(files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("staging uploads: %v", err))
		return
	}

	id := s.runJob(jobs.TypeFileIngestion, func(ctx context.Context, rep jobs.Reporter) jobs.Result {
		return s.ingestor.IngestFiles(ctx, paths, indexName, true, rep).JobResult()
	})
	s.accept(w, id, fmt.Sprintf("Ingestion of %d file(s) started", len(paths)))
}

// stageUploads copies multipart parts into the upload directory, keeping
// the original extension so the parser can dispatch on it.
func (s *Server) stageUploads(files []*multipart.FileHeader) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return nil, err
		}

		dst, err := os.CreateTemp(s.opts.UploadDir, "upload-*"+filepath.Ext(fh.Filename))
		if err != nil {
			src.Close()
			return nil, err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			os.Remove(dst.Name())
			return nil, err
		}
		paths = append(paths, dst.Name())
	}
	return paths, nil
}

type ingestURLRequest struct {
	URL       string   `json:"url"`
	URLs      []string `json:"urls"`
	IndexName string   `json:"index_name"`
}

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	urls := req.URLs
	if req.URL != "" {
		urls = append([]string{req.URL}, urls...)
	}
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "url or urls is required")
		return
	}
	for _, u := range urls {
		if _, err := scraper.ValidateURL(u); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	indexName := s.indexOr(req.IndexName)
	if len(urls) == 1 {
		target := urls[0]
		id := s.runJob(jobs.TypeURLScraping, func(ctx context.Context, rep jobs.Reporter) jobs.Result {
			return s.ingestor.IngestURL(ctx, target, indexName, rep).JobResult()
		})
		s.accept(w, id, "URL scraping started")
		return
	}
	id := s.runJob(jobs.TypeURLScraping, func(ctx context.Context, rep jobs.Reporter) jobs.Result {
		return s.ingestor.IngestURLs(ctx, urls, indexName, rep).JobResult()
	})
	s.accept(w, id, fmt.Sprintf("URL scraping started for %d pages", len(urls)))
}

type ingestWebsiteRequest struct {
	URL       string `json:"url"`
	IndexName string `json:"index_name"`
	MaxPages  int    `json:"max_pages"`
}

func (s *Server) handleIngestWebsite(w http.ResponseWriter, r *http.Request) {
	var req ingestWebsiteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if _, err := scraper.ValidateURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	maxPages := req.MaxPages
	if maxPages <= 0 || maxPages > s.opts.CrawlMaxPages {
		maxPages = s.opts.CrawlMaxPages
	}

	indexName := s.indexOr(req.IndexName)
	id := s.runJob(jobs.TypeWebsiteCrawling, func(ctx context.Context, rep jobs.Reporter) jobs.Result {
		return s.ingestor.IngestWebsite(ctx, req.URL, maxPages, indexName, rep).JobResult()
	})
	s.accept(w, id, "Website crawling started")
}

type ingestRepoRequest struct {
	Repository string `json:"repository"`
	Directory  string `json:"directory"`
	IndexName  string `json:"index_name"`
}

func (s *Server) handleIngestRepo(w http.ResponseWriter, r *http.Request) {
	var req ingestRepoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	owner, repo, err := github.ParseRepoRef(req.Repository)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	indexName := s.indexOr(req.IndexName)
	id := s.runJob(jobs.TypeRepoIngestion, func(ctx context.Context, rep jobs.Reporter) jobs.Result {
		return s.ingestor.IngestRepository(ctx, owner, repo, req.Directory, indexName, rep).JobResult()
	})
	s.accept(w, id, fmt.Sprintf("Ingestion of %s/%s started", owner, repo))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	snap, ok := s.jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.jobs.List(limit)})
}
