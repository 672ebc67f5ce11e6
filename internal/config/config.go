package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64

	DocStoreBackend string // "mongo" or "memory"
	MongoURI        string
	DBName          string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiTier           string
	EmbeddingsProvider   string // "google" (default) or "local"
	GenerationTimeout    time.Duration

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Storage
	FileStorageDir  string
	IndexStorageDir string
	BlobBackend     string // "local" or "s3"
	AWSRegion       string
	AWSAccessKeyID  string
	AWSSecretKey    string
	S3Bucket        string

	// Jobs
	QueueBackend      string // "asynq" or "memory"
	WorkerConcurrency int
	JobRetention      time.Duration
	JobMaxRetry       int

	// Observability
	OTelEndpoint     string
	TraceSampleRatio float64

	ScrapeRenderJS bool
	ScrapeTimeout  time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		DocStoreBackend: getEnv("DOC_STORE_BACKEND", "mongo"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017/study_notes"),
		DBName:          getEnv("DB_NAME", "study_notes"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiTier:           getEnv("GEMINI_TIER", "free"),
		EmbeddingsProvider:   getEnv("EMBEDDINGS_PROVIDER", "google"),
		GenerationTimeout:    getEnvDuration("GENERATION_TIMEOUT", 90*time.Second),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),

		FileStorageDir:  getEnv("FILE_STORAGE_DIR", "./storage/uploads"),
		IndexStorageDir: getEnv("INDEX_STORAGE_DIR", "./storage/indexes"),
		BlobBackend:     getEnv("BLOB_BACKEND", "local"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:  getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),

		QueueBackend:      getEnv("QUEUE_BACKEND", "asynq"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		JobRetention:      getEnvDuration("JOB_RETENTION", 24*time.Hour),
		JobMaxRetry:       getEnvInt("JOB_MAX_RETRY", 2),

		OTelEndpoint:     getEnv("OTEL_ENDPOINT", ""),
		TraceSampleRatio: getEnvFloat64("TRACE_SAMPLE_RATIO", 0.1),

		ScrapeRenderJS: getEnvBool("SCRAPE_RENDER_JS", false),
		ScrapeTimeout:  getEnvDuration("SCRAPE_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations LoadConfig cannot default.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	switch c.BlobBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	switch c.DocStoreBackend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unknown DOC_STORE_BACKEND %q", c.DocStoreBackend)
	}
	switch c.QueueBackend {
	case "asynq", "memory":
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", c.QueueBackend)
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = 1
	}
	return nil
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
