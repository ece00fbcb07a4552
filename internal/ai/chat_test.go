package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeLLM struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestToMessageContent(t *testing.T) {
	content := toMessageContent([]Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
	})

	require.Len(t, content, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[2].Role)
	assert.Equal(t, []llms.ContentPart{llms.TextContent{Text: "question"}}, content[1].Parts)
}

func TestOpenAIChatModel_Complete(t *testing.T) {
	llm := &fakeLLM{resp: textResponse("The answer is 42.")}
	model := newOpenAIChatModel(llm, 0.7, 2000)

	reply, err := model.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "ctx"},
		{Role: RoleUser, Content: "q"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", reply)
	assert.Len(t, llm.messages, 2)
	assert.InDelta(t, 0.7, llm.opts.Temperature, 1e-9)
	assert.Equal(t, 2000, llm.opts.MaxTokens)
}

func TestOpenAIChatModel_Errors(t *testing.T) {
	msgs := []Message{{Role: RoleUser, Content: "q"}}

	_, err := newOpenAIChatModel(&fakeLLM{resp: textResponse("  ")}, 0.7, 10).Complete(context.Background(), msgs)
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	_, err = newOpenAIChatModel(&fakeLLM{resp: &llms.ContentResponse{}}, 0.7, 10).Complete(context.Background(), msgs)
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	boom := errors.New("429 too many requests")
	_, err = newOpenAIChatModel(&fakeLLM{err: boom}, 0.7, 10).Complete(context.Background(), msgs)
	assert.ErrorIs(t, err, boom)

	_, err = newOpenAIChatModel(&fakeLLM{}, 0.7, 10).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestSplitGeminiMessages(t *testing.T) {
	system, history, question, err := splitGeminiMessages([]Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "what is in the pdf?"},
	})
	require.NoError(t, err)

	assert.Equal(t, "be helpful", system)
	assert.Equal(t, "what is in the pdf?", question)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
}

func TestSplitGeminiMessages_Invalid(t *testing.T) {
	_, _, _, err := splitGeminiMessages(nil)
	assert.ErrorIs(t, err, ErrNoMessages)

	_, _, _, err = splitGeminiMessages([]Message{{Role: RoleAssistant, Content: "dangling"}})
	assert.Error(t, err)
}
