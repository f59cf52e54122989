package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/config"
	dbRedis "github.com/relevo-cloud/relevo/internal/db/redis"
	logpkg "github.com/relevo-cloud/relevo/internal/logger"
	"github.com/relevo-cloud/relevo/internal/metrics"
	catalogrepo "github.com/relevo-cloud/relevo/internal/repository/catalog"
	"github.com/relevo-cloud/relevo/internal/repository/querycache"
	chiTransport "github.com/relevo-cloud/relevo/internal/transport/chi"
	openaiT "github.com/relevo-cloud/relevo/internal/transport/openai"
	"github.com/relevo-cloud/relevo/internal/usecase/health"
	"github.com/relevo-cloud/relevo/internal/usecase/rank"
	"github.com/relevo-cloud/relevo/internal/usecase/recommend"
	"github.com/relevo-cloud/relevo/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting relevo API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("ranking_driver", cfg.Ranking.Driver),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	prov := cfg.Provider

	embedder := openaiT.NewEmbedder(&openaiT.Config{
		APIKey:        prov.APIKey,
		BaseURL:       prov.BaseURL,
		Model:         prov.EmbeddingModel,
		Dimensions:    prov.EmbeddingDimensions,
		MaxInputChars: prov.MaxInputChars,
		Provider:      prov.Name,
		RetryAttempts: prov.RetryAttempts,
		RetryBackoff:  time.Duration(prov.RetryBackoffMs) * time.Millisecond,
		Timeout:       time.Duration(prov.TimeoutSec) * time.Second,
		Logger:        logger,
	})

	// Query text is ephemeral: cache its vectors in process memory. Item
	// vectors are persisted on the items themselves, so they go straight
	// to the provider.
	queryEmbedder := querycache.New(embedder, cfg.Cache.QueryCapacity, metrics.QueryCacheTotal, logger)

	completer := openaiT.NewChatCompleter(&openaiT.ChatConfig{
		APIKey:        prov.APIKey,
		BaseURL:       prov.BaseURL,
		Model:         prov.ChatModel,
		Provider:      prov.Name,
		RetryAttempts: prov.RetryAttempts,
		RetryBackoff:  time.Duration(prov.RetryBackoffMs) * time.Millisecond,
		Timeout:       time.Duration(prov.TimeoutSec) * time.Second,
		Logger:        logger,
	})

	logger.Info("Providers created",
		zap.String("provider", prov.Name),
		zap.String("embedding_model", prov.EmbeddingModel),
		zap.String("chat_model", prov.ChatModel),
		zap.Int("dimensions", prov.EmbeddingDimensions),
	)

	catalogRepo := catalogrepo.New(store, cfg.Catalog.KeyPrefix)

	var ranker recommend.Ranker
	switch cfg.Ranking.Driver {
	case "store":
		if err := catalogrepo.EnsureIndex(
			ctx, store, cfg.Catalog.KeyPrefix, cfg.Catalog.IndexName, prov.EmbeddingDimensions,
		); err != nil {
			logger.Fatal("Failed to ensure catalog index", zap.Error(err))
		}
		ranker = rank.NewStore(store, cfg.Catalog.IndexName, catalogrepo.ItemKeyPrefix(cfg.Catalog.KeyPrefix))
	default:
		ranker = rank.Process{}
	}

	recommendSvc := recommend.New(catalogRepo, queryEmbedder, embedder, ranker, completer, logger).
		WithLimits(cfg.Ranking.DefaultTopK, cfg.Ranking.BackfillConcurrency, prov.MaxInputChars)

	healthSvc := health.New(store, embedder)

	server := chiTransport.NewServer(recommendSvc, catalogRepo, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
