package vectorstore

import (
	"context"

	"pdf-chat-service/internal/telemetry"
	"pdf-chat-service/models"
)

type instrumentedStore struct {
	next     Store
	provider string
	metrics  *telemetry.Metrics
}

// WithMetrics counts every store operation by outcome. A nil metrics
// returns next unchanged.
func WithMetrics(next Store, provider string, metrics *telemetry.Metrics) Store {
	if metrics == nil {
		return next
	}
	return &instrumentedStore{next: next, provider: provider, metrics: metrics}
}

func (s *instrumentedStore) StoreChunks(ctx context.Context, documentID, filename string, chunks []string, embeddings [][]float32) error {
	err := s.next.StoreChunks(ctx, documentID, filename, chunks, embeddings)
	s.metrics.RecordVectorStoreOperation("store", s.provider, err == nil)
	return err
}

func (s *instrumentedStore) SearchSimilar(ctx context.Context, query []float32, documentID string, limit int) ([]models.Match, error) {
	matches, err := s.next.SearchSimilar(ctx, query, documentID, limit)
	s.metrics.RecordVectorStoreOperation("search", s.provider, err == nil)
	return matches, err
}

func (s *instrumentedStore) DeleteDocument(ctx context.Context, documentID string) error {
	err := s.next.DeleteDocument(ctx, documentID)
	s.metrics.RecordVectorStoreOperation("delete", s.provider, err == nil)
	return err
}

func (s *instrumentedStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	docs, err := s.next.ListDocuments(ctx)
	s.metrics.RecordVectorStoreOperation("list", s.provider, err == nil)
	return docs, err
}

func (s *instrumentedStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
