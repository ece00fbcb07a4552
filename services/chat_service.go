package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"pdf-chat-service/internal/ai"
	"pdf-chat-service/internal/logger"
	"pdf-chat-service/internal/telemetry"
	"pdf-chat-service/internal/vectorstore"
	"pdf-chat-service/models"
)

const DefaultTopK = 5

const systemPromptPrefix = "You are a helpful AI assistant that answers questions about PDF documents. " +
	"Use the following context from the document to answer the user's question. " +
	"If the answer cannot be found in the context, say so clearly.\n\nContext from document:\n"

// ChatService answers questions about one document using its most similar chunks
type ChatService struct {
	embedder ai.Embedder
	store    vectorstore.Store
	model    ai.ChatModel
	topK     int
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

func NewChatService(embedder ai.Embedder, store vectorstore.Store, model ai.ChatModel, topK int, logger *zap.Logger, metrics *telemetry.Metrics) *ChatService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		embedder: embedder,
		store:    store,
		model:    model,
		topK:     topK,
		logger:   logger,
		metrics:  metrics,
	}
}

// Chat embeds the question, retrieves the closest chunks of the document and
// asks the chat model. Sources are the retrieved chunk texts in rank order.
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("chat-service").Start(ctx, "chat.answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.document_id", req.DocumentID),
		attribute.Int("chat.history_turns", len(req.ConversationHistory)),
	)

	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.DocumentID) == "" {
		s.metrics.RecordChat("invalid")
		return nil, fmt.Errorf("%w: message and documentId are required", ErrInvalidInput)
	}

	resp, err := s.answer(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordChat("failed")
		logger.For(ctx, s.logger).Error("Chat generation failed", zap.String("document_id", req.DocumentID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrChatGeneration, err)
	}

	span.SetAttributes(attribute.Int("chat.sources", len(resp.Sources)))
	s.metrics.RecordChat("answered")
	return resp, nil
}

func (s *ChatService) answer(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	query, err := s.embedder.Embed(ctx, req.Message)
	s.metrics.RecordEmbedding("question", err == nil)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := s.store.SearchSimilar(ctx, query, req.DocumentID, s.topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	reply, err := s.model.Complete(ctx, buildMessages(matches, req.ConversationHistory, req.Message))
	if err != nil {
		return nil, fmt.Errorf("completing chat: %w", err)
	}

	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, m.Content)
	}

	s.logger.Debug("Chat answered",
		zap.String("document_id", req.DocumentID),
		zap.Int("matches", len(matches)),
	)
	return &models.ChatResponse{Response: reply, Sources: sources}, nil
}

// buildSystemPrompt renders the instruction with one block per retrieved chunk
func buildSystemPrompt(matches []models.Match) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("[Source %d]:\n%s", i+1, m.Content)
	}
	return systemPromptPrefix + strings.Join(blocks, "\n\n")
}

// buildMessages orders the prompt as system, prior turns, then the question.
// Any history role other than "user" is treated as the assistant.
func buildMessages(matches []models.Match, history []models.ConversationTurn, question string) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: buildSystemPrompt(matches)})
	for _, turn := range history {
		role := ai.RoleAssistant
		if turn.Role == models.RoleUser {
			role = ai.RoleUser
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Content})
	}
	return append(messages, ai.Message{Role: ai.RoleUser, Content: question})
}
