package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Supported providers
const (
	VectorStoreMongo   = "mongo"
	VectorStoreQdrant  = "qdrant"
	VectorStoreChromem = "chromem"

	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderGoogle      = "google"
	ProviderDeepSeek    = "deepseek"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	// Chunking and retrieval
	ChunkSize            int
	ChunkOverlap         int
	RetrievalTopK        int
	EmbeddingConcurrency int

	// Vector store
	VectorStoreProvider string
	VectorDimensions    int
	MongoURI            string
	DBName              string
	ChunksCollection    string
	VectorIndexName     string
	CreateVectorIndex   bool
	VectorNumCandidates int
	QdrantHost          string
	QdrantPort          int
	QdrantAPIKey        string
	QdrantUseTLS        bool
	QdrantCollection    string
	ChromemPath         string
	ChromemCompress     bool

	// Embeddings configuration
	EmbeddingsProvider string // "huggingface" (default), "openai", "google"
	EmbeddingsModel    string
	EmbeddingsBaseURL  string
	HuggingFaceAPIKey  string
	OpenAIAPIKey       string
	GeminiAPIKey       string

	// Chat completion
	ChatProvider    string // "deepseek" (default), "openai", "google"
	ChatModel       string
	ChatBaseURL     string
	DeepSeekAPIKey  string
	ChatTemperature float64
	ChatMaxTokens   int

	// External AI call guard
	AIRequestsPerMinute int

	// Redis Configuration
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// OpenTelemetry
	OTelEnabled      bool
	OTLPEndpoint     string
	ServiceName      string
	TraceSampleRatio float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "3001"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 10485760), // 10MB

		ChunkSize:            getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:         getEnvInt("CHUNK_OVERLAP", 200),
		RetrievalTopK:        getEnvInt("RETRIEVAL_TOP_K", 5),
		EmbeddingConcurrency: getEnvInt("EMBEDDING_CONCURRENCY", 8),

		VectorStoreProvider: strings.ToLower(getEnv("VECTOR_STORE_PROVIDER", VectorStoreMongo)),
		VectorDimensions:    getEnvInt("VECTOR_DIM", 384),
		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017/pdf_chat"),
		DBName:              getEnv("DB_NAME", "pdf_chat"),
		ChunksCollection:    getEnv("MONGODB_CHUNKS_COLLECTION", "documents"),
		VectorIndexName:     getEnv("MONGODB_VECTOR_INDEX", "documents_vector"),
		CreateVectorIndex:   getEnvBool("MONGODB_CREATE_VECTOR_INDEX", false),
		VectorNumCandidates: getEnvInt("MONGODB_NUM_CANDIDATES", 100),
		QdrantHost:          getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:          getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:        getEnv("QDRANT_API_KEY", ""),
		QdrantUseTLS:        getEnvBool("QDRANT_USE_TLS", false),
		QdrantCollection:    getEnv("QDRANT_COLLECTION", "documents"),
		ChromemPath:         getEnv("CHROMEM_PATH", ""),
		ChromemCompress:     getEnvBool("CHROMEM_COMPRESS", false),

		EmbeddingsProvider: strings.ToLower(getEnv("EMBEDDINGS_PROVIDER", ProviderHuggingFace)),
		EmbeddingsModel:    getEnv("EMBEDDINGS_MODEL", ""),
		EmbeddingsBaseURL:  getEnv("EMBEDDINGS_BASE_URL", "https://api.openai.com/v1"),
		HuggingFaceAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),

		ChatProvider:    strings.ToLower(getEnv("CHAT_PROVIDER", ProviderDeepSeek)),
		ChatModel:       getEnv("CHAT_MODEL", ""),
		ChatBaseURL:     getEnv("CHAT_BASE_URL", getEnv("DEEPSEEK_API_BASE", "")),
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		ChatTemperature: getEnvFloat64("CHAT_TEMPERATURE", 0.7),
		ChatMaxTokens:   getEnvInt("CHAT_MAX_TOKENS", 2000),

		AIRequestsPerMinute: getEnvInt("AI_REQUESTS_PER_MINUTE", 600),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName:      getEnv("OTEL_SERVICE_NAME", "pdf-chat-service"),
		TraceSampleRatio: getEnvFloat64("OTEL_SAMPLE_RATIO", 0.1),
	}

	cfg.applyModelDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyModelDefaults fills model names that depend on the chosen provider
func (c *Config) applyModelDefaults() {
	if c.EmbeddingsModel == "" {
		switch c.EmbeddingsProvider {
		case ProviderGoogle:
			c.EmbeddingsModel = "text-embedding-004"
		case ProviderOpenAI:
			c.EmbeddingsModel = "text-embedding-3-small"
		default:
			c.EmbeddingsModel = "sentence-transformers/all-MiniLM-L6-v2"
		}
	}
	if c.ChatModel == "" {
		switch c.ChatProvider {
		case ProviderGoogle:
			c.ChatModel = "gemini-2.0-flash"
		case ProviderOpenAI:
			c.ChatModel = "gpt-4o-mini"
		default:
			c.ChatModel = "deepseek-chat"
		}
	}
	if c.ChatBaseURL == "" {
		if c.ChatProvider == ProviderOpenAI {
			c.ChatBaseURL = "https://api.openai.com/v1"
		} else {
			c.ChatBaseURL = "https://api.deepseek.com/v1"
		}
	}
}

// Validate checks invariants that would otherwise fail deep inside a request
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be >= 0 and smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.RetrievalTopK)
	}
	if c.EmbeddingConcurrency <= 0 {
		return fmt.Errorf("EMBEDDING_CONCURRENCY must be positive, got %d", c.EmbeddingConcurrency)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}

	switch c.VectorStoreProvider {
	case VectorStoreMongo, VectorStoreQdrant, VectorStoreChromem:
	default:
		return fmt.Errorf("unknown VECTOR_STORE_PROVIDER: %s", c.VectorStoreProvider)
	}
	if c.VectorStoreProvider != VectorStoreChromem && c.VectorDimensions <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDimensions)
	}

	switch c.EmbeddingsProvider {
	case ProviderHuggingFace:
		if c.HuggingFaceAPIKey == "" {
			return fmt.Errorf("HUGGINGFACE_API_KEY is required - set it in .env file")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required - set it in .env file")
		}
	case ProviderGoogle:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
		}
	default:
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER: %s", c.EmbeddingsProvider)
	}

	switch c.ChatProvider {
	case ProviderDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return fmt.Errorf("DEEPSEEK_API_KEY is required - set it in .env file")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required - set it in .env file")
		}
	case ProviderGoogle:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
		}
	default:
		return fmt.Errorf("unknown CHAT_PROVIDER: %s", c.ChatProvider)
	}

	return nil
}

// ChatAPIKey returns the credential for the configured chat provider
func (c *Config) ChatAPIKey() string {
	switch c.ChatProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGoogle:
		return c.GeminiAPIKey
	default:
		return c.DeepSeekAPIKey
	}
}

// RedisEnabled reports whether rate limiting and background ingestion can run
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
