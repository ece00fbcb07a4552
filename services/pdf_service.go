package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pdf-chat-service/internal/ai"
	"pdf-chat-service/internal/config"
	"pdf-chat-service/internal/logger"
	"pdf-chat-service/internal/telemetry"
	"pdf-chat-service/internal/vectorstore"
	"pdf-chat-service/models"
)

// pdfMagicWindow is how far into the file the %PDF header may appear
const pdfMagicWindow = 1024

// PDFServiceConfig holds the ingestion knobs taken from configuration
type PDFServiceConfig struct {
	MaxFileSize          int64
	ChunkSize            int
	ChunkOverlap         int
	EmbeddingConcurrency int
}

func PDFServiceConfigFrom(cfg *config.Config) PDFServiceConfig {
	return PDFServiceConfig{
		MaxFileSize:          cfg.MaxFileSize,
		ChunkSize:            cfg.ChunkSize,
		ChunkOverlap:         cfg.ChunkOverlap,
		EmbeddingConcurrency: cfg.EmbeddingConcurrency,
	}
}

// PDFService turns uploaded PDFs into searchable chunk records and manages
// the stored documents.
type PDFService struct {
	cfg       PDFServiceConfig
	extractor TextExtractor
	embedder  ai.Embedder
	store     vectorstore.Store
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	newID     func() string
}

// NewPDFService creates a new PDF service instance
func NewPDFService(cfg PDFServiceConfig, extractor TextExtractor, embedder ai.Embedder, store vectorstore.Store, logger *zap.Logger, metrics *telemetry.Metrics) *PDFService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EmbeddingConcurrency <= 0 {
		cfg.EmbeddingConcurrency = 1
	}
	return &PDFService{
		cfg:       cfg,
		extractor: extractor,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		newID:     func() string { return uuid.New().String() },
	}
}

// NewDocumentID allocates a fresh document id
func (s *PDFService) NewDocumentID() string {
	return s.newID()
}

// Validate checks an upload before any work is done on it
func (s *PDFService) Validate(filename string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), s.cfg.MaxFileSize)
	}
	if err := validateFilename(filename); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	window := data
	if len(window) > pdfMagicWindow {
		window = window[:pdfMagicWindow]
	}
	if !bytes.Contains(window, []byte("%PDF")) {
		return fmt.Errorf("%w: only PDF files are allowed", ErrInvalidInput)
	}
	return nil
}

// validateFilename ensures filename is safe
func validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename is required")
	}

	if len(filename) > 255 {
		return fmt.Errorf("filename too long (max 255 characters)")
	}

	dangerous := []string{"../", "..\\", "<", ">", "\"", "|", "?", "*", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(filename, char) {
			return fmt.Errorf("filename contains invalid or dangerous characters")
		}
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("only PDF files (.pdf extension) are allowed")
	}

	return nil
}

// Upload ingests a PDF under a newly allocated document id
func (s *PDFService) Upload(ctx context.Context, filename string, data []byte) (*models.UploadResult, error) {
	return s.IngestDocument(ctx, s.newID(), filename, data)
}

// IngestDocument runs validate, extract, normalize, chunk, embed and store
// for a caller-chosen document id. Nothing is written unless every chunk
// was embedded.
func (s *PDFService) IngestDocument(ctx context.Context, documentID, filename string, data []byte) (*models.UploadResult, error) {
	ctx, span := otel.Tracer("pdf-service").Start(ctx, "pdf.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("pdf.document_id", documentID),
		attribute.Int("pdf.size_bytes", len(data)),
	)

	log := logger.For(ctx, s.logger)
	start := time.Now()
	result, err := s.ingest(ctx, documentID, filename, data)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordIngest(elapsed, 0, "failed")
		log.Error("PDF ingestion failed",
			zap.String("document_id", documentID),
			zap.String("filename", filename),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("pdf.chunks", result.ChunkCount))
	s.metrics.RecordIngest(elapsed, result.ChunkCount, "completed")
	log.Info("PDF ingested",
		zap.String("document_id", documentID),
		zap.String("filename", filename),
		zap.Int("chunks", result.ChunkCount),
		zap.Float64("duration_s", elapsed),
	)
	return result, nil
}

func (s *PDFService) ingest(ctx context.Context, documentID, filename string, data []byte) (*models.UploadResult, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if err := s.Validate(filename, data); err != nil {
		return nil, err
	}

	extracted, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		if errors.Is(err, ErrPDFParse) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPDFParse, err)
	}

	chunks, err := ChunkText(NormalizeText(extracted.Text), s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	texts := chunkTexts(chunks)
	if len(texts) == 0 {
		s.logger.Warn("PDF contains no extractable text",
			zap.String("document_id", documentID),
			zap.Int("pages", extracted.Pages),
		)
	}

	embeddings, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreChunks(ctx, documentID, filename, texts, embeddings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorStore, err)
	}

	return &models.UploadResult{
		DocumentID: documentID,
		Filename:   filename,
		ChunkCount: len(texts),
	}, nil
}

// embedAll embeds every chunk with a bounded number of calls in flight.
// Results are stored by position; the first failure cancels the rest.
func (s *PDFService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbeddingConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, text)
			s.metrics.RecordEmbedding("chunk", err == nil)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return out, nil
}

// ListDocuments returns every stored document, newest first
func (s *PDFService) ListDocuments(ctx context.Context) ([]models.Document, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		s.logger.Error("Failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrVectorStore, err)
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// DeleteDocument removes every chunk of a document. Unknown ids succeed.
func (s *PDFService) DeleteDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document id is required", ErrInvalidInput)
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		s.logger.Error("Failed to delete document", zap.String("document_id", documentID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrVectorStore, err)
	}
	s.logger.Info("Document deleted", zap.String("document_id", documentID))
	return nil
}
