package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"pdf-chat-service/models"
)

const (
	chromemChunksCollection    = "pdf_chunks"
	chromemDocumentsCollection = "pdf_documents"
)

// catalogueEmbedding is the constant vector of catalogue records. The
// catalogue is only ever read back in full, never ranked.
var catalogueEmbedding = []float32{1}

var errNoEmbeddingFunc = errors.New("chromem store only accepts precomputed embeddings")

type ChromemConfig struct {
	// Path enables on-disk persistence; empty keeps everything in memory
	Path     string
	Compress bool
}

// ChromemStore is an embedded vector store for local development and tests.
// Chunks live in one collection; a second collection records one entry per
// upload so listing does not need to scan every chunk.
type ChromemStore struct {
	db        *chromem.DB
	chunks    *chromem.Collection
	documents *chromem.Collection
	logger    *zap.Logger
	now       func() time.Time
}

func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db := chromem.NewDB()
	if cfg.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem database at %s: %w", cfg.Path, err)
		}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	}

	chunks, err := db.GetOrCreateCollection(chromemChunksCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", chromemChunksCollection, err)
	}
	documents, err := db.GetOrCreateCollection(chromemDocumentsCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", chromemDocumentsCollection, err)
	}

	return &ChromemStore{
		db:        db,
		chunks:    chunks,
		documents: documents,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func chromemMetadata(m models.ChunkMetadata) map[string]string {
	return map[string]string{
		payloadDocumentID: m.DocumentID,
		payloadFilename:   m.Filename,
		payloadChunkIndex: strconv.Itoa(m.ChunkIndex),
		payloadChunkCount: strconv.Itoa(m.ChunkCount),
		payloadCreatedAt:  m.CreatedAt.Format(time.RFC3339Nano),
	}
}

func parseChromemMetadata(m map[string]string) models.ChunkMetadata {
	index, _ := strconv.Atoi(m[payloadChunkIndex])
	count, _ := strconv.Atoi(m[payloadChunkCount])
	createdAt, _ := time.Parse(time.RFC3339Nano, m[payloadCreatedAt])
	return models.ChunkMetadata{
		DocumentID: m[payloadDocumentID],
		Filename:   m[payloadFilename],
		ChunkIndex: index,
		ChunkCount: count,
		CreatedAt:  createdAt,
	}
}

func (s *ChromemStore) StoreChunks(ctx context.Context, documentID, filename string, chunks []string, embeddings [][]float32) error {
	ctx, span := tracer.Start(ctx, "ChromemStore.StoreChunks")
	defer span.End()

	records, err := BuildRecords(documentID, filename, chunks, embeddings, s.now())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        chunkRecordID(documentID, i),
			Content:   r.Content,
			Metadata:  chromemMetadata(r.Metadata),
			Embedding: r.Embedding,
		}
	}

	// concurrency of 1 since embeddings are precomputed
	if err := s.chunks.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding chunks: %w", err)
	}

	entry := chromem.Document{
		ID:        documentID,
		Content:   filename,
		Metadata:  chromemMetadata(records[0].Metadata),
		Embedding: catalogueEmbedding,
	}
	if err := s.documents.AddDocument(ctx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("recording document %s: %w", documentID, err)
	}

	span.SetAttributes(attribute.Int("chunks_added", len(docs)))
	return nil
}

func (s *ChromemStore) SearchSimilar(ctx context.Context, query []float32, documentID string, limit int) ([]models.Match, error) {
	ctx, span := tracer.Start(ctx, "ChromemStore.SearchSimilar")
	defer span.End()

	if err := validateSearch(query, documentID, limit); err != nil {
		return nil, err
	}

	// chromem requires nResults <= doc count
	count := s.chunks.Count()
	if count == 0 {
		return []models.Match{}, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.chunks.QueryEmbedding(ctx, query, limit, map[string]string{payloadDocumentID: documentID}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", chromemChunksCollection, err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, models.Match{
			Content:    r.Content,
			Similarity: float64(r.Similarity),
			Metadata:   parseChromemMetadata(r.Metadata),
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

func (s *ChromemStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "ChromemStore.DeleteDocument")
	defer span.End()

	if documentID == "" {
		return ErrEmptyDocumentID
	}

	where := map[string]string{payloadDocumentID: documentID}
	if err := s.chunks.Delete(ctx, where, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	if err := s.documents.Delete(ctx, where, nil); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	return nil
}

func (s *ChromemStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	_, span := tracer.Start(ctx, "ChromemStore.ListDocuments")
	defer span.End()

	count := s.documents.Count()
	if count == 0 {
		return []models.Document{}, nil
	}

	results, err := s.documents.QueryEmbedding(ctx, catalogueEmbedding, count, nil, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading document catalogue: %w", err)
	}

	docs := make([]models.Document, 0, len(results))
	for _, r := range results {
		meta := parseChromemMetadata(r.Metadata)
		docs = append(docs, models.Document{ID: r.ID, Filename: meta.Filename, UploadedAt: meta.CreatedAt})
	}
	return uniqueDocuments(docs), nil
}

func (s *ChromemStore) Close(ctx context.Context) error {
	return nil
}
