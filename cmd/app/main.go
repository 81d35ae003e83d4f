// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"startup-analysis-pipeline/internal/config"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/domain/ports/repository"
	aiAdapters "startup-analysis-pipeline/internal/infra/adapters/ai"
	"startup-analysis-pipeline/internal/infra/adapters/embedding"
	"startup-analysis-pipeline/internal/infra/adapters/notify"
	"startup-analysis-pipeline/internal/infra/api"
	"startup-analysis-pipeline/internal/infra/broadcast"
	pg "startup-analysis-pipeline/internal/infra/db/postgres"
	"startup-analysis-pipeline/internal/infra/logging"
	"startup-analysis-pipeline/internal/infra/memstore"
	"startup-analysis-pipeline/internal/infra/metrics"
	red "startup-analysis-pipeline/internal/infra/redis"
	"startup-analysis-pipeline/internal/infra/worker"
	"startup-analysis-pipeline/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI, relaxed auth checks)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Storage (Postgres, or in-memory when no URL is set) ----
	var (
		tm        repository.TransactionManager
		jobRepo   repository.AnalysisJobRepository
		chunkRepo repository.ContextChunkRepository
		resRepo   repository.ResultRepository
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		pgTM := pg.NewTxManager(pool)
		tm = pgTM
		jobRepo = pg.NewJobRepo(pool, pgTM)
		chunkRepo = pg.NewChunkRepo(pool)
		resRepo = pg.NewResultRepo(pool)
		logger.Info().Msg("storage: postgres")
	} else {
		tm = memstore.NewTxManager()
		jobRepo = memstore.NewJobRepo()
		chunkRepo = memstore.NewChunkRepo()
		resRepo = memstore.NewResultRepo()
		logger.Warn().Msg("storage: in-memory (database.url not set; state is lost on restart)")
	}

	// ---- Broadcast transport (Redis pub/sub, or in-process hub) ----
	var (
		bus    adapter.ProgressBroadcaster
		locker red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		bus = red.NewBroadcaster(redisClient, logger)
		locker = red.NewLocker(redisClient)
		logger.Info().Msg("broadcast: redis pub/sub")
	} else {
		bus = broadcast.NewHub()
		logger.Info().Msg("broadcast: in-process hub")
	}

	// ---- Embeddings (remote provider with local fallback) ----
	local := embedding.NewLocalEmbedder(cfg.AI.EmbedDimension)
	var remote adapter.EmbeddingProvider
	switch cfg.AI.EmbedProvider {
	case "openai":
		if cfg.AI.OpenAIKey == "" {
			log.Fatalf("embeddings: ai.embed_provider=openai requires ai.openai_key")
		}
		remote, err = embedding.NewOpenAIEmbedder(cfg.AI.OpenAIKey, cfg.AI.EmbedModel, cfg.AI.EmbedDimension)
		if err != nil {
			log.Fatalf("openai embedder: %v", err)
		}
	case "gemini":
		if cfg.AI.GeminiKey == "" {
			log.Fatalf("embeddings: ai.embed_provider=gemini requires ai.gemini_key")
		}
		remote, err = embedding.NewGeminiEmbedder(ctx, cfg.AI.GeminiKey, cfg.AI.EmbedModel, cfg.AI.EmbedDimension)
		if err != nil {
			log.Fatalf("gemini embedder: %v", err)
		}
	case "local", "":
		// hashed bag-of-tokens only
	default:
		log.Fatalf("embeddings: unknown ai.embed_provider %q", cfg.AI.EmbedProvider)
	}
	embedder := embedding.NewFallbackEmbedder(remote, local, cfg.AI.EmbedProvider, cfg.AI.ConcurrentLimit, logger)
	logger.Info().Str("provider", cfg.AI.EmbedProvider).Int("dim", cfg.AI.EmbedDimension).Msg("embeddings ready")

	// ---- AI adapter ----
	var ai adapter.AIServiceAdapter
	if cfg.AI.OpenAIKey != "" {
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	} else if cfg.Runtime.Dev {
		ai = aiAdapters.NewNoopAI()
		logger.Warn().Msg("AI adapter: noop (dev mode, no ai.openai_key)")
	} else {
		log.Fatalf("no AI provider configured: set ai.openai_key in %s or run with -dev", *cfgPath)
	}

	// ---- Ops notifications ----
	var notifier adapter.OpsNotifier
	if cfg.Notify.TelegramToken != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.ChatID, logger)
		if err != nil {
			log.Fatalf("telegram notifier: %v", err)
		}
	} else {
		notifier = notify.NewNoopNotifier()
	}

	// ---- Use cases ----
	store := usecase.NewContextStore(chunkRepo, embedder,
		cfg.Retrieval.MaxChars, cfg.Retrieval.Overlap, cfg.Retrieval.MaxChunksPerSession, logger)
	catalog := usecase.Catalog{All: cfg.Analysis.Dimensions, Critical: cfg.Analysis.Critical}
	submitUC := usecase.NewSubmitUseCase(jobRepo, tm, store, catalog, logger)
	statusUC := usecase.NewStatusUseCase(jobRepo, resRepo, logger)

	// ---- Job queue ----
	analyzer := worker.NewAnalyzer(ai, store, resRepo, catalog, cfg.AI.DefaultModel,
		cfg.Retrieval.TopK, cfg.Retrieval.PromptTokenBudget, logger)
	processor := worker.NewProcessor(jobRepo, analyzer, bus, notifier, locker, worker.Options{
		PollInterval: cfg.Queue.PollInterval,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		BackoffBase:  cfg.Queue.BackoffBase,
		BackoffMax:   cfg.Queue.BackoffMax,
		LockTTL:      cfg.Queue.LockTTL,
	}, logger)
	pool := worker.NewPool(cfg.Queue.Workers, logger)
	pool.Start(ctx)
	go processor.Start(ctx, pool)

	// ---- HTTP API ----
	auth := api.NewAuthManager(cfg.Admin.APIKey, cfg.Admin.JWTSecret, cfg.Admin.SessionTTL)
	srv := api.NewServer(submitUC, statusUC, store, bus, auth, cfg.Stream, cfg.Retrieval.TopK, logger)
	router := chi.NewRouter()
	srv.Register(router)
	// No global timeout middleware: the events route holds connections open.
	handler := api.Chain(router,
		api.Recover(logger),
		api.TraceID(logger),
		api.RequestLog(logger),
	)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.HTTP.Port), Handler: handler}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	pool.Stop()
}
