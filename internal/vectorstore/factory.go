package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pdf-chat-service/internal/config"
)

// NewFromConfig opens the store selected by VECTOR_STORE_PROVIDER
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStoreProvider {
	case config.VectorStoreMongo:
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		return NewMongoStore(client, MongoConfig{
			Database:      cfg.DBName,
			Collection:    cfg.ChunksCollection,
			IndexName:     cfg.VectorIndexName,
			NumCandidates: cfg.VectorNumCandidates,
		}, logger), nil
	case config.VectorStoreQdrant:
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
			VectorSize: cfg.VectorDimensions,
		}, logger)
	case config.VectorStoreChromem:
		return NewChromemStore(ChromemConfig{Path: cfg.ChromemPath, Compress: cfg.ChromemCompress}, logger)
	default:
		return nil, fmt.Errorf("unknown vector store provider: %s", cfg.VectorStoreProvider)
	}
}
