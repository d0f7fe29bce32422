// Package main is the ragserver entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/calder-ai/ragserver/internal/api"
	"github.com/calder-ai/ragserver/internal/config"
	"github.com/calder-ai/ragserver/internal/document"
	"github.com/calder-ai/ragserver/internal/embedding"
	"github.com/calder-ai/ragserver/internal/generation"
	"github.com/calder-ai/ragserver/internal/github"
	"github.com/calder-ai/ragserver/internal/ingest"
	"github.com/calder-ai/ragserver/internal/jobs"
	mcpserver "github.com/calder-ai/ragserver/internal/mcp"
	"github.com/calder-ai/ragserver/internal/parser"
	"github.com/calder-ai/ragserver/internal/retrieval"
	"github.com/calder-ai/ragserver/internal/scraper"
	"github.com/calder-ai/ragserver/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "ragserver",
	Short: "Retrieval-augmented generation backend",
	Long:  "HTTP server for document ingestion, vector search and grounded question answering",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the API server with ingestion, query, index administration and
MCP endpoints.

Environment variables:
  PORT            HTTP listen port (default: 8080)
  QDRANT_HOST     Qdrant hostname (default: localhost)
  QDRANT_PORT     Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY  OpenAI API key (required)
  GITHUB_TOKEN    GitHub token for repository ingestion (optional)`,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	// .env is for local development; in production everything comes from
	// the real environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps is everything both commands need wired up.
type deps struct {
	cfg         config.Config
	log         *slog.Logger
	store       *storage.Store
	manager     *jobs.Manager
	pipeline    *ingest.Pipeline
	engine      *retrieval.Engine
	synthesizer *retrieval.Synthesizer
}

func build(ctx context.Context) (*deps, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	store, err := storage.New(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	embedder, err := embedding.NewEmbedder(cfg.OpenAIAPIKey, cfg.EmbedBatch)
	if err != nil {
		return nil, err
	}
	generator, err := generation.NewGenerator(cfg.OpenAIAPIKey, cfg.ChatModel)
	if err != nil {
		return nil, err
	}
	fetcher, err := github.NewFetcher(log)
	if err != nil {
		return nil, err
	}

	splitter := document.NewSplitter(document.SplitterConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})

	pipeline := ingest.New(store, embedder, splitter,
		parser.New(log), scraper.New(log), fetcher, log)

	engine := retrieval.NewEngine(store, embedder, log)
	synthesizer := retrieval.NewSynthesizer(engine, generator, cfg.SystemPrompt)

	manager := jobs.NewManager(log)
	manager.StartCleanup(ctx, cfg.JobCleanupInterval, cfg.JobTTL)

	return &deps{
		cfg:         cfg,
		log:         log,
		store:       store,
		manager:     manager,
		pipeline:    pipeline,
		engine:      engine,
		synthesizer: synthesizer,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	d, err := build(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	server := api.NewServer(d.manager, d.pipeline, d.engine, d.synthesizer, d.store,
		api.Options{
			UploadDir:     d.cfg.UploadDir,
			DefaultTopK:   d.cfg.TopK,
			CrawlMaxPages: d.cfg.CrawlMaxPages,
		}, d.log)

	mcps := mcpserver.NewServer(mcpserver.Config{
		Searcher: d.engine,
		Answerer: d.synthesizer,
		Indexes:  d.store,
	})
	server.Mount("/mcp", mcps.HTTPHandler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", d.cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("server listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		d.log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	d, err := build(ctx)
	if err != nil {
		return err
	}
	defer d.store.Close()

	mcps := mcpserver.NewServer(mcpserver.Config{
		Searcher: d.engine,
		Answerer: d.synthesizer,
		Indexes:  d.store,
	})
	d.log.Info("mcp server running on stdio")
	return mcps.Run(ctx)
}
