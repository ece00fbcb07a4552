package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"pdf-chat-service/models"
)

// Payload keys stored on every Qdrant point
const (
	payloadContent    = "content"
	payloadDocumentID = "document_id"
	payloadFilename   = "filename"
	payloadChunkIndex = "chunk_index"
	payloadChunkCount = "chunk_count"
	payloadCreatedAt  = "created_at"
)

const scrollPageSize = 256

// pointNamespace seeds deterministic point ids so re-ingesting a document
// under the same id overwrites instead of duplicating.
var pointNamespace = uuid.MustParse("5b3c6f0e-8d1a-4c43-9a51-2f0d7c4e9b10")

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize int
}

// QdrantStore keeps chunks as points of a single Qdrant collection, filtered
// per document through a keyword payload index.
type QdrantStore struct {
	client *qdrant.Client
	cfg    QdrantConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.UseTLS {
		logger.Warn("Qdrant gRPC using plaintext (TLS disabled)", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg, logger: logger, now: time.Now}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.cfg.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.cfg.Collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      payloadDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("creating %s index: %w", payloadDocumentID, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", s.cfg.Collection),
		zap.Int("vector_size", s.cfg.VectorSize),
	)
	return nil
}

// pointID derives a stable UUIDv5 from the document id and chunk position
func pointID(documentID string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkRecordID(documentID, index))).String()
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

func intValue(v int) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
}

func recordPayload(r ChunkRecord) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		payloadContent:    stringValue(r.Content),
		payloadDocumentID: stringValue(r.Metadata.DocumentID),
		payloadFilename:   stringValue(r.Metadata.Filename),
		payloadChunkIndex: intValue(r.Metadata.ChunkIndex),
		payloadChunkCount: intValue(r.Metadata.ChunkCount),
		payloadCreatedAt:  stringValue(r.Metadata.CreatedAt.Format(time.RFC3339Nano)),
	}
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: payloadDocumentID,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: documentID},
					},
				},
			},
		}},
	}
}

func (s *QdrantStore) StoreChunks(ctx context.Context, documentID, filename string, chunks []string, embeddings [][]float32) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.StoreChunks")
	defer span.End()

	records, err := BuildRecords(documentID, filename, chunks, embeddings, s.now())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(documentID, i)),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: recordPayload(r),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", s.cfg.Collection, err)
	}

	span.SetAttributes(attribute.Int("points_added", len(points)))
	return nil
}

func (s *QdrantStore) SearchSimilar(ctx context.Context, query []float32, documentID string, limit int) ([]models.Match, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.SearchSimilar")
	defer span.End()

	if err := validateSearch(query, documentID, limit); err != nil {
		return nil, err
	}

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         documentFilter(documentID),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.cfg.Collection, err)
	}

	matches := make([]models.Match, 0, len(res))
	for _, p := range res {
		matches = append(matches, models.Match{
			Content:    payloadString(p.Payload, payloadContent),
			Similarity: float64(p.Score),
			Metadata:   payloadMetadata(p.Payload),
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteDocument")
	defer span.End()

	if documentID == "" {
		return ErrEmptyDocumentID
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: documentFilter(documentID),
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points of %s: %w", documentID, err)
	}
	return nil
}

// ListDocuments scrolls the first chunk of every document. Scroll offsets
// are inclusive, so each page after the first repeats the previous last point.
func (s *QdrantStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.ListDocuments")
	defer span.End()

	firstChunks := &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   payloadChunkIndex,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: 0}},
				},
			},
		}},
	}

	var (
		docs   []models.Document
		offset *qdrant.PointId
	)
	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Filter:         firstChunks,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize + 1)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scrolling collection %s: %w", s.cfg.Collection, err)
		}

		page := points
		if offset != nil && len(page) > 0 {
			page = page[1:]
		}
		for _, p := range page {
			meta := payloadMetadata(p.Payload)
			docs = append(docs, models.Document{ID: meta.DocumentID, Filename: meta.Filename, UploadedAt: meta.CreatedAt})
		}

		if len(points) < scrollPageSize+1 {
			break
		}
		offset = points[len(points)-1].Id
	}

	return uniqueDocuments(docs), nil
}

func (s *QdrantStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok && v != nil {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok && v != nil {
		return int(v.GetIntegerValue())
	}
	return 0
}

func payloadMetadata(payload map[string]*qdrant.Value) models.ChunkMetadata {
	createdAt, _ := time.Parse(time.RFC3339Nano, payloadString(payload, payloadCreatedAt))
	return models.ChunkMetadata{
		DocumentID: payloadString(payload, payloadDocumentID),
		Filename:   payloadString(payload, payloadFilename),
		ChunkIndex: payloadInt(payload, payloadChunkIndex),
		ChunkCount: payloadInt(payload, payloadChunkCount),
		CreatedAt:  createdAt,
	}
}
