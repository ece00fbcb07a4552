package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pdf-chat-service/internal/config"
	"pdf-chat-service/internal/telemetry"
)

// NewEmbedderFromConfig builds the configured embedding provider behind a Guard.
// The returned close function releases provider clients.
func NewEmbedderFromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger, metrics *telemetry.Metrics) (Embedder, func() error, error) {
	noop := func() error { return nil }

	var (
		embedder Embedder
		closer   = noop
	)
	switch cfg.EmbeddingsProvider {
	case config.ProviderHuggingFace:
		e, err := NewHuggingFaceEmbedder(cfg.EmbeddingsModel, cfg.HuggingFaceAPIKey)
		if err != nil {
			return nil, noop, err
		}
		embedder = e
	case config.ProviderOpenAI:
		e, err := NewOpenAIEmbedder(cfg.EmbeddingsBaseURL, cfg.EmbeddingsModel, cfg.OpenAIAPIKey)
		if err != nil {
			return nil, noop, err
		}
		embedder = e
	case config.ProviderGoogle:
		e, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel)
		if err != nil {
			return nil, noop, err
		}
		embedder, closer = e, e.Close
	default:
		return nil, noop, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}

	log.Info("Embedding provider ready",
		zap.String("provider", cfg.EmbeddingsProvider),
		zap.String("model", cfg.EmbeddingsModel),
	)

	guard := NewGuard("embeddings", cfg.AIRequestsPerMinute, log, metrics)
	return guard.Embedder(embedder), closer, nil
}

// NewChatModelFromConfig builds the configured chat provider behind a Guard
func NewChatModelFromConfig(ctx context.Context, cfg *config.Config, log *zap.Logger, metrics *telemetry.Metrics) (ChatModel, func() error, error) {
	noop := func() error { return nil }

	var (
		model  ChatModel
		closer = noop
	)
	switch cfg.ChatProvider {
	case config.ProviderDeepSeek, config.ProviderOpenAI:
		m, err := NewOpenAIChatModel(cfg.ChatBaseURL, cfg.ChatModel, cfg.ChatAPIKey(), cfg.ChatTemperature, cfg.ChatMaxTokens)
		if err != nil {
			return nil, noop, fmt.Errorf("creating chat client: %w", err)
		}
		model = m
	case config.ProviderGoogle:
		m, err := NewGeminiChatModel(ctx, cfg.GeminiAPIKey, cfg.ChatModel, cfg.ChatTemperature, cfg.ChatMaxTokens)
		if err != nil {
			return nil, noop, fmt.Errorf("creating chat client: %w", err)
		}
		model, closer = m, m.Close
	default:
		return nil, noop, fmt.Errorf("unknown chat provider: %s", cfg.ChatProvider)
	}

	log.Info("Chat provider ready",
		zap.String("provider", cfg.ChatProvider),
		zap.String("model", cfg.ChatModel),
	)

	guard := NewGuard("chat", cfg.AIRequestsPerMinute, log, metrics)
	return guard.ChatModel(model), closer, nil
}
