package services

import (
	"errors"
	"fmt"
)

// Stage errors. Every external failure is wrapped into exactly one of these so
// handlers can pick a generic message for the operation.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidChunkConfig = errors.New("chunk overlap must be non-negative and smaller than chunk size")
	ErrPDFParse           = errors.New("failed to parse PDF file")
	ErrEmbedding          = errors.New("embedding service error")
	ErrVectorStore        = errors.New("vector store error")
	ErrChatGeneration     = errors.New("failed to generate chat response")

	// ErrFileTooLarge is an ErrInvalidInput reported as 413
	ErrFileTooLarge = fmt.Errorf("%w: file exceeds maximum allowed size", ErrInvalidInput)
)
