package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	hfembeddings "github.com/tmc/langchaingo/embeddings/huggingface"
	"github.com/tmc/langchaingo/llms/huggingface"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder maps one text to one vector. Vectors from the same Embedder
// always share a dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var ErrEmptyEmbedding = errors.New("embedding provider returned an empty vector")

// LangChainEmbedder adapts a langchaingo embedder (Hugging Face inference,
// OpenAI or any OpenAI-compatible server such as TEI).
type LangChainEmbedder struct {
	embedder embeddings.Embedder
}

func NewHuggingFaceEmbedder(model, token string) (*LangChainEmbedder, error) {
	llm, err := huggingface.New(huggingface.WithToken(token), huggingface.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("creating Hugging Face client: %w", err)
	}

	embedder, err := hfembeddings.NewHuggingface(
		hfembeddings.WithClient(*llm),
		hfembeddings.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &LangChainEmbedder{embedder: embedder}, nil
}

func NewOpenAIEmbedder(baseURL, model, apiKey string) (*LangChainEmbedder, error) {
	if apiKey == "" {
		// langchaingo requires a token, local TEI servers ignore it
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithEmbeddingModel(model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &LangChainEmbedder{embedder: embedder}, nil
}

func (e *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vec, nil
}
