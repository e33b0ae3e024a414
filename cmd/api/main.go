package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jobmate/backend/internal/config"
	"github.com/jobmate/backend/internal/handler"
	"github.com/jobmate/backend/internal/logging"
	"github.com/jobmate/backend/internal/observability"
	"github.com/jobmate/backend/internal/service/chat"
	"github.com/jobmate/backend/internal/service/completion"
	"github.com/jobmate/backend/internal/service/cv"
	"github.com/jobmate/backend/internal/service/retrieval"
	"github.com/jobmate/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Logger = logger
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	metrics := observability.NewMetrics("jobmate")

	store, err := storage.Open(ctx, storage.Config{
		DatabaseURL: cfg.Store.DatabaseURL,
		SQLitePath:  cfg.Store.SQLitePath,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open chat store")
	}
	defer store.Close()

	feedStore, err := storage.NewFeedStore(ctx, cfg.Store.FeedsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open feed catalog")
	}
	defer feedStore.Close()

	if !cfg.AI.Enabled() {
		logger.Fatal().Msg("Ark 凭证未配置，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat model")
	}

	completer, err := completion.NewClient(chatModel, completion.Options{
		Timeout: cfg.AI.Timeout,
		Logger:  logging.Component(logger, "completion"),
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize completion client")
	}

	chatSvc, err := chat.NewService(chat.Options{
		Completer: completer,
		Retriever: buildRetriever(cfg.Retrieval, cfg.Chat.RetrievalLimit, feedStore, metrics, logger),
		Recorder:  store,
		Config: chat.Config{
			HistoryLimit:      cfg.Chat.HistoryLimit,
			Temperature:       &cfg.Chat.Temperature,
			MaxTokens:         cfg.Chat.MaxTokens,
			SummaryMaxTokens:  cfg.Chat.SummaryMaxTokens,
			CompletionTimeout: cfg.Chat.CompletionTimeout,
			SummaryTimeout:    cfg.Chat.SummaryTimeout,
			RetrievalTimeout:  cfg.Chat.RetrievalTimeout,
			PersistTimeout:    cfg.Chat.PersistTimeout,
			RetrievalLimit:    cfg.Chat.RetrievalLimit,
		},
		Logger:  logging.Component(logger, "chat"),
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat service")
	}

	evaluator, err := cv.NewEvaluator(completer, cv.Options{
		Logger:  logging.Component(logger, "cv"),
		Metrics: metrics,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize cv evaluator")
	}

	router := handler.NewRouter(handler.Dependencies{
		Chat:           chatSvc,
		Store:          store,
		Evaluator:      evaluator,
		Catalog:        feedStore,
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	startServer(ctx, logger, cfg.Server, router)
}

// buildRetriever 组合向量检索与本地目录检索，任一来源失败只记录并跳过
func buildRetriever(cfg config.RetrievalConfig, limit int, catalog retrieval.PassageSearcher, metrics *observability.Metrics, logger zerolog.Logger) retrieval.Retriever {
	logger = logging.Component(logger, "retrieval")
	var sources []retrieval.Named

	if cfg.VectorEnabled() {
		sources = append(sources, retrieval.Named{
			Name: "qdrant",
			Retriever: retrieval.Eino{
				R: &retrieval.QdrantIndex{
					BaseURL:    cfg.QdrantURL,
					Collection: cfg.Collection,
					TopK:       cfg.TopK,
					Embedder: &retrieval.HTTPEmbedder{
						URL:    cfg.EmbeddingURL,
						Model:  cfg.EmbeddingModel,
						APIKey: cfg.EmbeddingAPIKey,
					},
				},
				Log: logger,
			},
		})
		logger.Info().Str("collection", cfg.Collection).Msg("vector retrieval enabled")
	}
	if cfg.CatalogEnabled {
		sources = append(sources, retrieval.Named{
			Name:      "catalog",
			Retriever: &retrieval.CatalogRetriever{Searcher: catalog, Limit: limit},
		})
	}
	if len(sources) == 0 {
		logger.Info().Msg("retrieval disabled")
		return retrieval.Empty{}
	}

	return retrieval.Chain{
		Retrievers: sources,
		OnError: func(name string, err error) {
			metrics.ObserveRetrievalFailure(name)
			logger.Warn().Err(err).Str("retriever", name).Msg("retriever failed, skipping")
		},
	}
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("jobmate backend listening")
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
