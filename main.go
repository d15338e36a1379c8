package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"qms-rag/internal/chat"
	"qms-rag/internal/chunking"
	"qms-rag/internal/config"
	"qms-rag/internal/embeddings"
	"qms-rag/internal/events"
	"qms-rag/internal/indexing"
	"qms-rag/internal/llm"
	"qms-rag/internal/logging"
	"qms-rag/internal/qmsapi"
	"qms-rag/internal/retrieval"
	"qms-rag/internal/server"
	"qms-rag/internal/store"
	"qms-rag/internal/vectorstore"
)

const templateCacheSize = 32

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.BadgerPath), 0o755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}
	meta, err := store.NewBadgerStore(cfg.BadgerPath)
	if err != nil {
		logger.Fatal("failed to open metadata store", zap.Error(err))
	}
	defer func() { _ = meta.Close() }()

	vectors := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err := vectors.Health(ctx); err != nil {
		logger.Warn("qdrant unreachable at startup",
			zap.String("url", cfg.QdrantURL), zap.Error(err))
	}

	embedder := embeddings.NewFromConfig(ctx, cfg.Embedding, logger)
	logger.Info("embedding provider selected",
		zap.String("provider", embedder.Info().Name),
		zap.String("model", embedder.Info().Model),
		zap.Int("dimensions", embedder.Info().Dimensions))

	registry := llm.NewRegistry(logger, buildProviders(ctx, cfg, logger)...)

	qms := qmsapi.NewClient(cfg.QMSAPIURL, cfg.QMSAPIKey)
	var permissions indexing.PermissionService
	if cfg.QMSAPIURL != "" {
		permissions = qms
	}

	templates, err := chat.NewCachedTemplates(qms, templateCacheSize)
	if err != nil {
		logger.Fatal("failed to build template cache", zap.Error(err))
	}

	bus := events.NewBus()
	engine := chunking.NewEngine(cfg.RAG, logger)
	indexer := indexing.NewService(qms, templates, engine, embedder, vectors, meta, bus, cfg.CollectionName, logger)
	retriever := retrieval.NewService(embedder, vectors, meta, cfg.CollectionName, logger)
	sessions := chat.NewSessions(meta, meta)
	expander := chat.NewExpander(registry, llm.ModelGPT4oMini)
	orchestrator := chat.NewOrchestrator(sessions, meta, retriever, registry, templates, qms, expander, bus, cfg.RAG, logger)

	srv := server.New(cfg, indexer, orchestrator, sessions, retriever, registry, embedder, vectors, meta, permissions, logger)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// buildProviders assembles the chat-completion providers from the configured
// API keys. Missing keys just narrow the model list.
func buildProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) []llm.Provider {
	var providers []llm.Provider

	if key := cfg.Embedding.OpenAIKey(); key != "" {
		provider, err := llm.NewOpenAIProvider(key)
		if err != nil {
			logger.Warn("openai provider unavailable", zap.Error(err))
		} else {
			providers = append(providers, provider)
		}
	}

	if key := cfg.Embedding.GoogleAPIKey; key != "" {
		provider, err := llm.NewGoogleProvider(ctx, key)
		if err != nil {
			logger.Warn("google provider unavailable", zap.Error(err))
		} else {
			providers = append(providers, provider)
		}
	}

	if len(providers) == 0 {
		logger.Warn("no LLM provider configured, chat will be unavailable")
	}
	return providers
}
