package routes

import (
	"pdf-chat-service/internal/queue"
	"pdf-chat-service/internal/telemetry"
	"pdf-chat-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RouterOptions collects everything the HTTP layer is built from. Redis,
// Enqueuer and Metrics are optional.
type RouterOptions struct {
	Logger      *zap.Logger
	Metrics     *telemetry.Metrics
	ServiceName string
	Tracing     bool
	CORSOrigins []string
	MaxFileSize int64

	Redis           redis.Cmdable
	RateLimitReqs   int
	RateLimitWindow int

	PDF      DocumentService
	Chat     ChatAnswerer
	Enqueuer queue.Enqueuer
}

// NewRouter builds the gin engine with the middleware chain and every route
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestIDMiddleware())
	if opts.Tracing {
		router.Use(middleware.TracingMiddleware(opts.ServiceName))
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.RequestLogger(logger))
	if opts.Metrics != nil {
		router.Use(middleware.MetricsMiddleware(opts.Metrics))
	}
	router.Use(middleware.CORSMiddleware(opts.CORSOrigins))
	if opts.Redis != nil {
		router.Use(middleware.RateLimitMiddleware(opts.Redis, opts.RateLimitReqs, opts.RateLimitWindow, logger))
	}

	SetupHealthRoutes(router)
	SetupPDFRoutes(router, opts.PDF, opts.Enqueuer, opts.MaxFileSize, logger)
	SetupChatRoutes(router, opts.Chat)

	return router
}
