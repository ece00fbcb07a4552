package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one provider-neutral chat turn
type Message struct {
	Role    Role
	Content string
}

// ChatModel produces the assistant reply for an ordered list of messages.
// The last message is the question being answered.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

var (
	ErrEmptyCompletion = errors.New("chat provider returned an empty completion")
	ErrNoMessages      = errors.New("no messages to complete")
)

// OpenAIChatModel talks to any OpenAI-compatible chat endpoint (DeepSeek, OpenAI)
type OpenAIChatModel struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func NewOpenAIChatModel(baseURL, model, apiKey string, temperature float64, maxTokens int) (*OpenAIChatModel, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, err
	}
	return newOpenAIChatModel(llm, temperature, maxTokens), nil
}

func newOpenAIChatModel(llm llms.Model, temperature float64, maxTokens int) *OpenAIChatModel {
	return &OpenAIChatModel{llm: llm, temperature: temperature, maxTokens: maxTokens}
}

func (m *OpenAIChatModel) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	resp, err := m.llm.GenerateContent(ctx, toMessageContent(messages),
		llms.WithTemperature(m.temperature),
		llms.WithMaxTokens(m.maxTokens),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}

func toMessageContent(messages []Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		var t llms.ChatMessageType
		switch msg.Role {
		case RoleSystem:
			t = llms.ChatMessageTypeSystem
		case RoleUser:
			t = llms.ChatMessageTypeHuman
		default:
			t = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(t, msg.Content))
	}
	return content
}
