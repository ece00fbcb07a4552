package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pdf-chat-service/internal/telemetry"
)

// ErrServiceUnavailable is returned while the breaker is open or half-open and saturated
var ErrServiceUnavailable = errors.New("AI provider temporarily unavailable")

// Guard protects one external AI provider with a circuit breaker and a
// request-rate limiter. There are no retries and no fallback answers.
type Guard struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGuard(name string, requestsPerMinute int, log *zap.Logger, metrics *telemetry.Metrics) *Guard {
	if log == nil {
		log = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		burst := requestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}

	return &Guard{name: name, breaker: breaker, limiter: limiter}
}

func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Guard) execute(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ctx, span := otel.Tracer("ai").Start(ctx, g.name+"."+op)
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("ai.rate_limited", true))
		return nil, fmt.Errorf("%s rate limiter: %w", g.name, err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("ai.circuit_breaker_open", true))
			return nil, fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, g.name, err)
		}
		return nil, err
	}
	return result, nil
}

// Embedder wraps next so every call passes through the guard
func (g *Guard) Embedder(next Embedder) Embedder {
	return &guardedEmbedder{next: next, guard: g}
}

// ChatModel wraps next so every call passes through the guard
func (g *Guard) ChatModel(next ChatModel) ChatModel {
	return &guardedChatModel{next: next, guard: g}
}

type guardedEmbedder struct {
	next  Embedder
	guard *Guard
}

func (e *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.guard.execute(ctx, "embed", func(ctx context.Context) (interface{}, error) {
		return e.next.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

type guardedChatModel struct {
	next  ChatModel
	guard *Guard
}

func (m *guardedChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	res, err := m.guard.execute(ctx, "complete", func(ctx context.Context) (interface{}, error) {
		return m.next.Complete(ctx, messages)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}
