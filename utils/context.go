package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for vector store reads and deletes
	DefaultTimeout = 10 * time.Second

	// ChatTimeout covers one embedding call, one search and one completion
	ChatTimeout = 90 * time.Second

	// IngestTimeout covers extraction plus one embedding call per chunk
	IngestTimeout = 10 * time.Minute
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithChatTimeout creates a context for answering one chat request
func WithChatTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ChatTimeout)
}

// WithIngestTimeout creates a context for ingesting one document
func WithIngestTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, IngestTimeout)
}
