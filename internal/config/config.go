package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string

	// Encrypted vector index service
	VectorIndexURL    string
	VectorIndexAPIKey string
	VectorIndexName   string

	// Embedding service (OpenAI-compatible)
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string

	// Auth
	JWTSecret      string
	AccessTokenTTL time.Duration
	RedisAddr      string

	// CV ingestion
	MaxUploadBytes int64

	// Reconciliation sweep
	ReconcileInterval   time.Duration
	ReconcileStuckAfter time.Duration

	LogJSON bool
	Debug   bool
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getenv("PORT", "8080"),

		VectorIndexURL:    getenv("VECTOR_INDEX_URL", "http://localhost:8000"),
		VectorIndexAPIKey: os.Getenv("VECTOR_INDEX_API_KEY"),
		VectorIndexName:   getenv("VECTOR_INDEX_NAME", "securehr_cv_vecs"),

		EmbeddingURL:    getenv("EMBEDDING_URL", "https://api.openai.com"),
		EmbeddingAPIKey: os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:  getenv("EMBEDDING_MODEL", "text-embedding-3-small"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: getenvDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RedisAddr:      os.Getenv("REDIS_ADDR"),

		MaxUploadBytes: getenvInt64("MAX_UPLOAD_BYTES", 10<<20),

		ReconcileInterval:   getenvDuration("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcileStuckAfter: getenvDuration("RECONCILE_STUCK_AFTER", 30*time.Minute),

		LogJSON: getenvBool("LOG_JSON", false),
		Debug:   getenvBool("DEBUG", false),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default", key, v)
		return def
	}
	return b
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default", key, v)
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default", key, v)
		return def
	}
	return d
}
