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

	"github.com/precis-labs/precis/internal/config"
	"github.com/precis-labs/precis/internal/db"
	dbRedis "github.com/precis-labs/precis/internal/db/redis"
	"github.com/precis-labs/precis/internal/domain"
	"github.com/precis-labs/precis/internal/extract"
	"github.com/precis-labs/precis/internal/language"
	logpkg "github.com/precis-labs/precis/internal/logger"
	"github.com/precis-labs/precis/internal/metrics"
	"github.com/precis-labs/precis/internal/repository/embcache"
	indexrepo "github.com/precis-labs/precis/internal/repository/index"
	chiTransport "github.com/precis-labs/precis/internal/transport/chi"
	openaiProvider "github.com/precis-labs/precis/internal/transport/openai"
	"github.com/precis-labs/precis/internal/transport/web"
	healthuc "github.com/precis-labs/precis/internal/usecase/health"
	indexuc "github.com/precis-labs/precis/internal/usecase/index"
	pipelineuc "github.com/precis-labs/precis/internal/usecase/pipeline"
	retrieveuc "github.com/precis-labs/precis/internal/usecase/retrieve"
	summarizeuc "github.com/precis-labs/precis/internal/usecase/summarize"
	"github.com/precis-labs/precis/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting precis API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	metrics.RegisterProviderMetrics()

	// The index backend is optional: without it the pipeline skips
	// indexing and retrieval and works over local chunks.
	var store db.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
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
	} else {
		logger.Info("No database configured, index disabled")
	}

	embedder := openaiProvider.NewEmbedder(&openaiProvider.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	completer := openaiProvider.NewCompleter(&openaiProvider.CompleterConfig{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
		Timeout: time.Duration(cfg.Completion.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	fetcher := web.NewFetcher(web.Config{
		Timeout:  time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
		MaxBytes: cfg.Fetch.MaxBytes,
		Logger:   logger,
	})

	detector := language.NewDetector(cfg.Summary.FallbackLanguage)

	summarizer := summarizeuc.New(
		completer, completer,
		cfg.Summary.DirectInputLimit, cfg.Summary.MapChunkSize,
		logger,
	)

	// Indexing and retrieval only exist when a store is available. The
	// query embedder gets a cache decorator so the fixed retrieval
	// query costs one provider call per model.
	var indexer pipelineuc.Indexer
	var retriever pipelineuc.Retriever
	if store != nil {
		repo := indexrepo.NewRepo(store, cfg.Storage.KeyPrefix)
		indexer = indexuc.New(repo, embedder, embedder.Model(), cfg.Embedding.BatchSize, logger)

		var queryEmbedder domain.Embedder = embcache.New(
			embedder, store,
			cfg.Storage.KeyPrefix, embedder.Model(),
			metrics.EmbeddingCacheTotal, logger,
		)
		retriever = retrieveuc.New(queryEmbedder, cfg.Summary.TopK, logger)
	}

	pipeline := pipelineuc.New(
		fetcher, mainTextExtractor{}, indexer, retriever, summarizer, detector,
		pipelineuc.Config{
			Query:              cfg.Summary.Query,
			RetrievalChunkSize: cfg.Summary.RetrievalChunkSize,
			MaxExcerpts:        cfg.Summary.MaxExcerpts,
		},
		logger,
	)

	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, embedder)

	server := chiTransport.NewServer(pipeline, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		// No WriteTimeout: SSE streams stay open for the whole run.
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

// mainTextExtractor adapts the extract package to the pipeline contract.
type mainTextExtractor struct{}

func (mainTextExtractor) MainText(contentType domain.ContentType, raw []byte) domain.Extraction {
	return extract.MainText(contentType, raw)
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

			// Set X-Request-ID in response header
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
