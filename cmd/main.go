package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-chat-service/internal/ai"
	"pdf-chat-service/internal/config"
	"pdf-chat-service/internal/logger"
	"pdf-chat-service/internal/queue"
	"pdf-chat-service/internal/telemetry"
	"pdf-chat-service/internal/vectorstore"
	"pdf-chat-service/routes"
	"pdf-chat-service/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	if err := logger.InitLogger(cfg); err != nil {
		zap.NewExample().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	log := logger.Logger

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	if cfg.OTelEnabled {
		shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
			ServiceName: cfg.ServiceName,
			Endpoint:    cfg.OTLPEndpoint,
			SampleRatio: cfg.TraceSampleRatio,
			Environment: cfg.GinMode,
		}, log)
		if err != nil {
			log.Warn("Tracing disabled", zap.Error(err))
		} else {
			defer shutdown(context.Background())
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	store, err := vectorstore.NewFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open vector store", zap.String("provider", cfg.VectorStoreProvider), zap.Error(err))
	}
	defer store.Close(context.Background())
	store = vectorstore.WithMetrics(store, cfg.VectorStoreProvider, metrics)

	embedder, closeEmbedder, err := ai.NewEmbedderFromConfig(ctx, cfg, log, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embeddings", zap.Error(err))
	}
	defer closeEmbedder()

	chatModel, closeChat, err := ai.NewChatModelFromConfig(ctx, cfg, log, metrics)
	if err != nil {
		log.Fatal("Failed to initialize chat model", zap.Error(err))
	}
	defer closeChat()

	pdfService := services.NewPDFService(services.PDFServiceConfigFrom(cfg), services.NewPDFExtractor(), embedder, store, log, metrics)
	chatService := services.NewChatService(embedder, store, chatModel, cfg.RetrievalTopK, log, metrics)

	opts := routes.RouterOptions{
		Logger:          log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		Tracing:         cfg.OTelEnabled,
		CORSOrigins:     cfg.CORSOrigins,
		MaxFileSize:     cfg.MaxFileSize,
		RateLimitReqs:   cfg.RateLimitReqs,
		RateLimitWindow: cfg.RateLimitWindow,
		PDF:             pdfService,
		Chat:            chatService,
	}

	// Redis backs rate limiting and background ingestion; both are optional
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			log.Warn("Redis unavailable, rate limiting and async uploads disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			opts.Redis = rdb

			connOpt, err := queue.RedisConnOpt(cfg)
			if err != nil {
				log.Fatal("Invalid Redis configuration", zap.Error(err))
			}
			queueClient := queue.NewClient(connOpt)
			defer queueClient.Close()
			opts.Enqueuer = queueClient
		}
	}

	router := routes.NewRouter(opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("vector_store", cfg.VectorStoreProvider),
			zap.String("embeddings", cfg.EmbeddingsProvider),
			zap.String("chat", cfg.ChatProvider),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
