package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"pdf-chat-service/models"
)

// chunkDocument is the stored shape of one chunk in the chunks collection
type chunkDocument struct {
	ID        string               `bson:"_id"`
	Content   string               `bson:"content"`
	Embedding []float32            `bson:"embedding"`
	Metadata  models.ChunkMetadata `bson:"metadata"`
}

// MongoConfig names the collection and Atlas vector index to use
type MongoConfig struct {
	Database      string
	Collection    string
	IndexName     string
	NumCandidates int
}

// MongoStore keeps chunks in a MongoDB collection and searches them with
// the Atlas $vectorSearch aggregation stage.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	cfg    MongoConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewMongoStore(client *mongo.Client, cfg MongoConfig, logger *zap.Logger) *MongoStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *MongoStore) StoreChunks(ctx context.Context, documentID, filename string, chunks []string, embeddings [][]float32) error {
	ctx, span := tracer.Start(ctx, "MongoStore.StoreChunks")
	defer span.End()

	records, err := BuildRecords(documentID, filename, chunks, embeddings, s.now())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	docs := chunkDocuments(records)

	// a retried upload hits duplicate ids for chunks already written
	_, err = s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !onlyDuplicateKeys(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("inserting chunks for %s: %w", documentID, err)
	}

	span.SetAttributes(attribute.Int("chunks_inserted", len(docs)))
	s.logger.Debug("stored chunks", zap.String("document_id", documentID), zap.Int("chunks", len(docs)))
	return nil
}

func chunkDocuments(records []ChunkRecord) []interface{} {
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = chunkDocument{
			ID:        chunkRecordID(r.Metadata.DocumentID, r.Metadata.ChunkIndex),
			Content:   r.Content,
			Embedding: r.Embedding,
			Metadata:  r.Metadata,
		}
	}
	return docs
}

// onlyDuplicateKeys reports whether every failed write in err was a
// duplicate _id, i.e. the chunk was already stored.
func onlyDuplicateKeys(err error) bool {
	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) {
		return false
	}
	if bulkErr.WriteConcernError != nil || len(bulkErr.WriteErrors) == 0 {
		return false
	}
	for _, we := range bulkErr.WriteErrors {
		if we.Code != 11000 {
			return false
		}
	}
	return true
}

// searchPipeline builds the $vectorSearch aggregation scoped to one document
func searchPipeline(indexName string, query []float32, documentID string, limit, numCandidates int) mongo.Pipeline {
	if numCandidates < limit {
		numCandidates = limit * 20
	}
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: indexName},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: query},
			{Key: "numCandidates", Value: numCandidates},
			{Key: "limit", Value: limit},
			{Key: "filter", Value: bson.D{{Key: "metadata.document_id", Value: documentID}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "content", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}

func (s *MongoStore) SearchSimilar(ctx context.Context, query []float32, documentID string, limit int) ([]models.Match, error) {
	ctx, span := tracer.Start(ctx, "MongoStore.SearchSimilar")
	defer span.End()

	if err := validateSearch(query, documentID, limit); err != nil {
		return nil, err
	}

	cursor, err := s.coll.Aggregate(ctx, searchPipeline(s.cfg.IndexName, query, documentID, limit, s.cfg.NumCandidates))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Content  string               `bson:"content"`
		Metadata models.ChunkMetadata `bson:"metadata"`
		Score    float64              `bson:"score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}

	matches := make([]models.Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, models.Match{Content: r.Content, Similarity: r.Score, Metadata: r.Metadata})
	}

	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "MongoStore.DeleteDocument")
	defer span.End()

	if documentID == "" {
		return ErrEmptyDocumentID
	}

	res, err := s.coll.DeleteMany(ctx, bson.M{"metadata.document_id": documentID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}

	s.logger.Debug("deleted chunks", zap.String("document_id", documentID), zap.Int64("deleted", res.DeletedCount))
	return nil
}

// listPipeline groups chunks by document and keeps the first filename and
// newest timestamp of each.
func listPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "metadata.created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$metadata.document_id"},
			{Key: "filename", Value: bson.D{{Key: "$first", Value: "$metadata.filename"}}},
			{Key: "created_at", Value: bson.D{{Key: "$first", Value: "$metadata.created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
	}
}

func (s *MongoStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	ctx, span := tracer.Start(ctx, "MongoStore.ListDocuments")
	defer span.End()

	cursor, err := s.coll.Aggregate(ctx, listPipeline())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID        string    `bson:"_id"`
		Filename  string    `bson:"filename"`
		CreatedAt time.Time `bson:"created_at"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding documents: %w", err)
	}

	docs := make([]models.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, models.Document{ID: r.ID, Filename: r.Filename, UploadedAt: r.CreatedAt})
	}
	return uniqueDocuments(docs), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
