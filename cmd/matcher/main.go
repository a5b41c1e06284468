// Package main wires together the startup-matcher service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/api"
	"github.com/lareunion-tech/startup-matcher/internal/cache"
	"github.com/lareunion-tech/startup-matcher/internal/config"
	"github.com/lareunion-tech/startup-matcher/internal/crawl"
	"github.com/lareunion-tech/startup-matcher/internal/curated"
	"github.com/lareunion-tech/startup-matcher/internal/extractor"
	"github.com/lareunion-tech/startup-matcher/internal/fetcher"
	"github.com/lareunion-tech/startup-matcher/internal/logging"
	"github.com/lareunion-tech/startup-matcher/internal/matcher"
	"github.com/lareunion-tech/startup-matcher/internal/metrics"
	"github.com/lareunion-tech/startup-matcher/internal/rag"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pageFetcher := fetcher.New(fetcher.Config{
		UserAgent:  cfg.Crawler.UserAgent,
		Timeout:    cfg.FetchTimeout(),
		MaxRetries: cfg.Crawler.MaxRetries,
		DelayMin:   time.Duration(cfg.Crawler.DelayMinMs) * time.Millisecond,
		DelayMax:   time.Duration(cfg.Crawler.DelayMaxMs) * time.Millisecond,
	}, logger.Named("fetcher"))

	extract := extractor.New(extractor.Config{
		FallbackLocation: cfg.Crawler.FallbackLocation,
		FallbackDomain:   cfg.Crawler.FallbackDomain,
	})

	orchestrator := crawl.New(crawl.Config{
		BaseURL:         cfg.Crawler.BaseURL,
		MaxPages:        cfg.Crawler.MaxPages,
		DetailLinkLimit: cfg.Crawler.DetailLinkLimit,
	}, pageFetcher, extract, logger.Named("crawl"))

	var curatedStore curated.Provider
	if cfg.DB.DSN != "" {
		store, err := curated.NewPostgres(ctx, cfg.DB.DSN, logger.Named("curated"))
		if err != nil {
			logger.Warn("curated store unavailable, continuing without it", zap.Error(err))
		} else {
			curatedStore = store
		}
	}

	cacheStore := cache.NewStore(cfg.Cache.Dir, logger.Named("cache"))
	cacheSvc := cache.NewService(cacheStore, orchestrator, curatedStore, cfg.MemoryTTL(), logger.Named("cache"))
	cacheSvc.Init(ctx)

	var (
		chunker *rag.Chunker
		index   *rag.Index
	)
	if cfg.RAG.Enabled {
		embedder, err := newEmbedder(cfg.RAG)
		if err != nil {
			logger.Warn("embedder init failed, semantic search disabled", zap.Error(err))
		} else {
			chunker = rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
			index = rag.NewIndex(embedder, cfg.RAG.BatchSize, logger.Named("rag"))
		}
	}

	needMatcher := matcher.New(matcher.Weights{
		Name:        cfg.Matcher.NameWeight,
		Description: cfg.Matcher.DescriptionWeight,
		Tags:        cfg.Matcher.TagWeight,
		Domain:      cfg.Matcher.DomainWeight,
		Location:    cfg.Matcher.LocationWeight,
	}, cfg.Matcher.RandomFallback, index, logger.Named("matcher"))

	apiServer := api.NewServer(cacheSvc, needMatcher, chunker, index, logger.Named("api"))

	if cfg.Scheduler.Enabled {
		var sched cache.Scheduler
		if cfg.Scheduler.UseCron {
			sched = cache.NewCronScheduler(cfg.Scheduler.DailyAt)
		} else {
			sched = cache.NewIntervalScheduler(24 * time.Hour)
		}
		if err := cacheSvc.StartBackground(sched); err != nil {
			logger.Warn("background refresh not scheduled", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	cacheSvc.Shutdown()
	logger.Info("shutdown complete")
}

// newEmbedder builds the embedding client against an OpenAI-compatible API.
func newEmbedder(cfg config.RAGConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	return embedder, nil
}
