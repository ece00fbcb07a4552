// Package vectorstore persists chunk embeddings and answers document-scoped
// similarity queries. Mongo Atlas, Qdrant and an embedded chromem-go
// database are supported behind the same Store interface.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"pdf-chat-service/models"
)

var tracer = otel.Tracer("vectorstore")

var (
	// ErrLengthMismatch is returned when chunks and embeddings are not paired one to one
	ErrLengthMismatch = errors.New("chunks and embeddings length mismatch")

	// ErrEmptyDocumentID is returned when an operation needs a document id
	ErrEmptyDocumentID = errors.New("document id is required")

	// ErrEmptyQuery is returned for a zero-length query vector
	ErrEmptyQuery = errors.New("query embedding is empty")
)

// Store is the persistence boundary for chunk records
type Store interface {
	// StoreChunks writes chunks[i] with embeddings[i]. Zero chunks writes nothing.
	StoreChunks(ctx context.Context, documentID, filename string, chunks []string, embeddings [][]float32) error

	// SearchSimilar returns at most limit chunks of documentID, most similar first
	SearchSimilar(ctx context.Context, query []float32, documentID string, limit int) ([]models.Match, error)

	// DeleteDocument removes every chunk of documentID. Unknown ids are not an error.
	DeleteDocument(ctx context.Context, documentID string) error

	// ListDocuments returns one entry per stored document, newest first
	ListDocuments(ctx context.Context) ([]models.Document, error)

	Close(ctx context.Context) error
}

// chunkRecordID is the stable id of chunk index of documentID. Rewriting an
// upload with the same id replaces records instead of adding new ones.
func chunkRecordID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// ChunkRecord is a chunk ready to be written
type ChunkRecord struct {
	Content   string
	Embedding []float32
	Metadata  models.ChunkMetadata
}

// BuildRecords pairs chunks with their embeddings and stamps shared metadata.
// All records of one upload carry the same created_at.
func BuildRecords(documentID, filename string, chunks []string, embeddings [][]float32, now time.Time) ([]ChunkRecord, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings", ErrLengthMismatch, len(chunks), len(embeddings))
	}

	records := make([]ChunkRecord, len(chunks))
	for i, content := range chunks {
		if len(embeddings[i]) == 0 {
			return nil, fmt.Errorf("empty embedding for chunk %d", i)
		}
		records[i] = ChunkRecord{
			Content:   content,
			Embedding: embeddings[i],
			Metadata: models.ChunkMetadata{
				DocumentID: documentID,
				Filename:   filename,
				ChunkIndex: i,
				ChunkCount: len(chunks),
				CreatedAt:  now.UTC(),
			},
		}
	}
	return records, nil
}

func validateSearch(query []float32, documentID string, limit int) error {
	if len(query) == 0 {
		return ErrEmptyQuery
	}
	if documentID == "" {
		return ErrEmptyDocumentID
	}
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	return nil
}

// uniqueDocuments keeps the newest entry per id and sorts newest first
func uniqueDocuments(docs []models.Document) []models.Document {
	byID := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		if cur, ok := byID[d.ID]; !ok || d.UploadedAt.After(cur.UploadedAt) {
			byID[d.ID] = d
		}
	}

	out := make([]models.Document, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}
