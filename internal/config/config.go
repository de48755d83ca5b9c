package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port        string
	GinMode     string
	CORSOrigins []string

	// Document registry (MongoDB)
	MongoURI string
	DBName   string

	// Vector store
	VectorDBPath     string
	VectorCollection string
	VectorInMemory   bool
	VectorDimensions int

	// Gemini / embeddings
	GeminiAPIKey          string
	GeminiModel           string
	GeminiTier            string
	GoogleEmbeddingsModel string

	// Query pipeline tunables
	SearchResultLimit int
	ThemeSearchLimit  int
	ThemeSampleDocs   int
	ThemeSampleChunks int

	// Upload handling
	MaxFileSize         int64
	AllowedTypes        []string
	FileStorageDir      string
	SyncProcessingLimit int64

	// Redis (rate limiting + task queue)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// OCR Service (image ingestion)
	OCRServiceURL     string
	OCRServiceEnabled bool
	OCRTimeout        int

	// Re-index sweep
	ReindexSweepMinutes int

	// Tracing
	OTLPEndpoint   string
	TracingEnabled bool
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

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/document_query"),
		DBName:   getEnv("DB_NAME", "document_query"),

		VectorDBPath:     getEnv("VECTOR_DB_PATH", "./data/vectorstore"),
		VectorCollection: getEnv("VECTOR_COLLECTION", "documents"),
		VectorInMemory:   getEnvBool("VECTOR_IN_MEMORY", false),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		SearchResultLimit: getEnvInt("SEARCH_RESULT_LIMIT", 10),
		ThemeSearchLimit:  getEnvInt("THEME_SEARCH_LIMIT", 20),
		ThemeSampleDocs:   getEnvInt("THEME_SAMPLE_DOCS", 10),
		ThemeSampleChunks: getEnvInt("THEME_SAMPLE_CHUNKS", 2),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:        strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,image/png,image/jpeg,image/tiff"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB sync processing limit

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OCRServiceURL:     getEnv("OCR_SERVICE_URL", "http://localhost:8001"),
		OCRServiceEnabled: getEnvBool("OCR_SERVICE_ENABLED", true),
		OCRTimeout:        getEnvInt("OCR_TIMEOUT", 300), // 5 minutes

		ReindexSweepMinutes: getEnvInt("REINDEX_SWEEP_MINUTES", 15),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.SearchResultLimit <= 0 {
		return nil, fmt.Errorf("SEARCH_RESULT_LIMIT must be positive")
	}

	if cfg.ThemeSampleDocs <= 0 || cfg.ThemeSampleChunks <= 0 {
		return nil, fmt.Errorf("theme sampling limits must be positive")
	}

	return cfg, nil
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
