// Package ingest orchestrates the document pipeline: raw items are
// normalized, chunked, embedded, and upserted into a vector index. Each
// entry point maps onto a background job and reports staged progress.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/calder-ai/ragserver/internal/document"
	"github.com/calder-ai/ragserver/internal/github"
	"github.com/calder-ai/ragserver/internal/jobs"
	"github.com/calder-ai/ragserver/internal/parser"
	"github.com/calder-ai/ragserver/internal/scraper"
	"github.com/calder-ai/ragserver/internal/storage"
)

// VectorStore is the slice of the storage layer the pipeline needs.
type VectorStore interface {
	EnsureIndex(ctx context.Context, name string, dimension int) error
	UpsertRecords(ctx context.Context, name string, records []storage.Record) error
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Result summarizes one pipeline run for the job record.
type Result struct {
	Success            bool
	DocumentsProcessed int
	ChunksCreated      int
	IndexName          string
	Error              string
}

// JobResult converts a pipeline result into the shape stored on the job.
func (r Result) JobResult() jobs.Result {
	return jobs.Result{
		Success: r.Success,
		Error:   r.Error,
		Data: map[string]any{
			"documents_processed": r.DocumentsProcessed,
			"chunks_created":      r.ChunksCreated,
			"index_name":          r.IndexName,
		},
	}
}

func failure(index, msg string) Result {
	return Result{IndexName: index, Error: msg}
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	store    VectorStore
	embedder Embedder
	splitter *document.Splitter
	parser   *parser.Parser
	scraper  *scraper.Scraper
	fetcher  *github.Fetcher
	log      *slog.Logger
}

// New creates a pipeline. The scraper and fetcher may be nil when the
// corresponding entry points are not used, as in tests.
func New(store VectorStore, embedder Embedder, splitter *document.Splitter, p *parser.Parser, s *scraper.Scraper, f *github.Fetcher, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if splitter == nil {
		splitter = document.NewSplitter(document.SplitterConfig{})
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		parser:   p,
		scraper:  s,
		fetcher:  f,
		log:      log,
	}
}

// IngestFiles parses uploaded files and indexes their content. Temp files
// are removed when cleanup is set.
func (p *Pipeline) IngestFiles(ctx context.Context, paths []string, indexName string, cleanup bool, progress jobs.Reporter) Result {
	if progress == nil {
		progress = jobs.Discard
	}
	if cleanup {
		defer func() {
			for _, path := range paths {
				os.Remove(path)
			}
		}()
	}

	progress.Report("Parsing files", 0.1)
	items := p.parser.ParseFiles(paths)
	if len(items) == 0 {
		return failure(indexName, "No valid files to process")
	}

	return p.index(ctx, items, indexName, progress, marks{0.3, 0.5, 0.8})
}

// IngestContent indexes raw items produced upstream, such as scraped
// pages.
func (p *Pipeline) IngestContent(ctx context.Context, items []document.RawItem, indexName string, progress jobs.Reporter) Result {
	if progress == nil {
		progress = jobs.Discard
	}
	if len(items) == 0 {
		return failure(indexName, "No valid files to process")
	}
	return p.index(ctx, items, indexName, progress, marks{0.2, 0.5, 0.8})
}

// IngestURL scrapes one page and indexes it.
func (p *Pipeline) IngestURL(ctx context.Context, url, indexName string, progress jobs.Reporter) Result {
	if progress == nil {
		progress = jobs.Discard
	}
	progress.Report("Scraping page", 0.1)
	item, err := p.scraper.ScrapeURL(ctx, url)
	if err != nil {
		return failure(indexName, err.Error())
	}
	return p.index(ctx, []document.RawItem{*item}, indexName, progress, marks{0.3, 0.5, 0.8})
}

// IngestURLs scrapes a batch of pages and indexes whatever could be
// fetched. Pages that fail to scrape are skipped; the run fails only when
// nothing at all could be scraped.
func (p *Pipeline) IngestURLs(ctx context.Context, urls []string, indexName string, progress jobs.Reporter) Result {
	if progress == nil {
		progress = jobs.Discard
	}
	items := p.scraper.BatchScrape(ctx, urls, jobs.Stage(progress, 0, 0.5))
	if len(items) == 0 {
		return failure(indexName, "No pages could be scraped")
	}
	return p.index(ctx, items, indexName, progress, marks{0.5, 0.65, 0.85})
}

// IngestWebsite crawls a site and indexes every page found.
func (p *Pipeline) IngestWebsite(ctx context.Context, url string, maxPages int, indexName string, progress jobs.Reporter) Result {
	if progress == nil {
		progress = jobs.Discard
	}
	items, err := p.scraper.CrawlWebsite(ctx, url, maxPages, jobs.Stage(progress, 0, 0.5))
	if err != nil {
		return failure(indexName, err.Error())
	}
	return p.index(ctx, items, indexName, progress, marks{0.5, 0.65, 0.85})
}

// IngestRepository fetches documentation from a GitHub repository and
// indexes it.
func (p *Pipeline) IngestRepository(ctx context.Context, owner, repo, dir, indexName string, progress jobs.Reporter) Result {
	if progress == nil {
		progress = jobs.Discard
	}
	items, err := p.fetcher.FetchRepository(ctx, owner, repo, dir, jobs.Stage(progress, 0, 0.5))
	if err != nil {
		return failure(indexName, err.Error())
	}
	return p.index(ctx, items, indexName, progress, marks{0.5, 0.65, 0.85})
}

// marks are the absolute progress fractions reported at the chunk, embed
// and store stages of the shared indexing tail. Completion is always 1.0.
type marks struct {
	chunk float64
	embed float64
	store float64
}

// index is the shared tail of every entry point: normalize, chunk, embed,
// upsert.
func (p *Pipeline) index(ctx context.Context, items []document.RawItem, indexName string, progress jobs.Reporter, at marks) Result {
	docs := document.Normalize(items)

	progress.Report("Creating chunks", at.chunk)
	var chunks []document.Chunk
	for _, doc := range docs {
		chunks = append(chunks, p.splitter.Split(doc)...)
	}
	if len(chunks) == 0 {
		return failure(indexName, "Failed to create chunks")
	}

	progress.Report(fmt.Sprintf("Embedding %d chunks", len(chunks)), at.embed)
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return failure(indexName, fmt.Sprintf("embedding failed: %v", err))
	}
	if len(vectors) != len(chunks) {
		return failure(indexName, fmt.Sprintf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	progress.Report("Storing vectors", at.store)
	if err := p.store.EnsureIndex(ctx, indexName, p.embedder.Dimension()); err != nil {
		return failure(indexName, fmt.Sprintf("ensure index failed: %v", err))
	}

	records := make([]storage.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = storage.Record{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Content:  chunk.Text,
			Metadata: chunk.Metadata,
		}
	}
	if err := p.store.UpsertRecords(ctx, indexName, records); err != nil {
		return failure(indexName, fmt.Sprintf("vector upsert failed: %v", err))
	}

	progress.Report("Ingestion complete", 1.0)
	p.log.Info("ingestion complete",
		"index", indexName,
		"documents", len(docs),
		"chunks", len(chunks),
	)
	return Result{
		Success:            true,
		DocumentsProcessed: len(docs),
		ChunksCreated:      len(chunks),
		IndexName:          indexName,
	}
}
