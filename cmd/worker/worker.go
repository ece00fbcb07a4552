package main

import (
	"context"

	"pdf-chat-service/internal/ai"
	"pdf-chat-service/internal/config"
	"pdf-chat-service/internal/logger"
	"pdf-chat-service/internal/queue"
	"pdf-chat-service/internal/telemetry"
	"pdf-chat-service/internal/vectorstore"
	"pdf-chat-service/services"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const workerConcurrency = 4

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}
	if err := logger.InitLogger(cfg); err != nil {
		zap.NewExample().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()
	log := logger.Logger.With(zap.String("component", "worker"))

	if !cfg.RedisEnabled() {
		log.Fatal("REDIS_URL is required to run the worker")
	}

	ctx := context.Background()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	store, err := vectorstore.NewFromConfig(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open vector store", zap.Error(err))
	}
	defer store.Close(context.Background())
	store = vectorstore.WithMetrics(store, cfg.VectorStoreProvider, metrics)

	embedder, closeEmbedder, err := ai.NewEmbedderFromConfig(ctx, cfg, log, metrics)
	if err != nil {
		log.Fatal("Failed to initialize embeddings", zap.Error(err))
	}
	defer closeEmbedder()

	pdfService := services.NewPDFService(services.PDFServiceConfigFrom(cfg), services.NewPDFExtractor(), embedder, store, log, metrics)

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration", zap.Error(err))
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error("Task failed",
					zap.String("type", task.Type()),
					zap.Int("retried", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pdfService, log)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	log.Info("Starting Asynq worker",
		zap.Int("concurrency", workerConcurrency),
		zap.String("redis", redisOpt.Addr),
	)

	// Run blocks until SIGTERM or SIGINT
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker", zap.Error(err))
	}
}
