package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := createIndexes(ctx, client, cfg); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, client *mongo.Client, cfg *Config) error {
	chunks := client.Database(cfg.DBName).Collection(cfg.ChunksCollection)
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "metadata.document_id", Value: 1}, {Key: "metadata.chunk_index", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.created_at", Value: -1}}},
	}
	if _, err := chunks.Indexes().CreateMany(ctx, chunkIndexes); err != nil {
		return err
	}

	if cfg.CreateVectorIndex {
		return createVectorIndex(ctx, chunks, cfg)
	}
	return nil
}

// VectorIndexDefinition is the Atlas Vector Search definition used for the
// chunks collection. The document_id filter field enables scoped search.
func VectorIndexDefinition(dimensions int) bson.D {
	return bson.D{{Key: "fields", Value: bson.A{
		bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: "embedding"},
			{Key: "numDimensions", Value: dimensions},
			{Key: "similarity", Value: "cosine"},
		},
		bson.D{
			{Key: "type", Value: "filter"},
			{Key: "path", Value: "metadata.document_id"},
		},
	}}}
}

// createVectorIndex only works against Atlas (or a local Atlas deployment).
// An existing index with the same name is not treated as an error.
func createVectorIndex(ctx context.Context, coll *mongo.Collection, cfg *Config) error {
	model := mongo.SearchIndexModel{
		Definition: VectorIndexDefinition(cfg.VectorDimensions),
		Options:    options.SearchIndexes().SetName(cfg.VectorIndexName).SetType("vectorSearch"),
	}
	if _, err := coll.SearchIndexes().CreateOne(ctx, model); err != nil {
		if mongo.IsDuplicateKeyError(err) || isIndexExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create vector index %s: %v", cfg.VectorIndexName, err)
	}
	return nil
}

func isIndexExists(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == 68 || cmdErr.Name == "IndexAlreadyExists"
	}
	return false
}
