package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults recognized across the engine. Handlers and services must read these
// through Config rather than inlining their own constants.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultEmbedBatchSize  = 10
	DefaultEmbedBatchDelay = 100 * time.Millisecond
	DefaultEmbedDimension  = 768

	DefaultSearchLimit         = 5
	DefaultSimilarityThreshold = 0.7
	DefaultSearchTimeout       = 10 * time.Second
	DefaultSearchConcurrency   = 4

	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 1000
	DefaultWebResults    = 3
	DefaultGoogleModel   = "gemini-1.5-flash"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultEmbeddingName = "text-embedding-004"
)

// Config holds all runtime configuration for the flowstack backend.
type Config struct {
	Providers ProviderConfig
	Retrieval RetrievalConfig
	Store     StoreConfig
	Server    ServerConfig
}

type ProviderConfig struct {
	// Kind selects the generation/embedding backend: "googleai" or "openai".
	Kind           string
	GoogleAPIKey   string
	OpenAIAPIKey   string
	SerpAPIKey     string
	DefaultModel   string
	EmbeddingModel string
}

type RetrievalConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	EmbedBatchSize      int
	EmbedBatchDelay     time.Duration
	EmbedDimension      int
	SearchLimit         int
	SimilarityThreshold float64
	SearchTimeout       time.Duration
	SearchConcurrency   int
}

type StoreConfig struct {
	// DatabaseURL enables the pgvector index when set; empty keeps the
	// in-memory index.
	DatabaseURL string
	// RedisAddr enables the redis chat store and embedding cache when set.
	RedisAddr string
}

type ServerConfig struct {
	Port            int
	UploadDir       string
	ShutdownTimeout time.Duration
	Debug           bool
}

// Load reads configuration from the environment, honoring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Providers: ProviderConfig{
			Kind:           getEnv("PROVIDER", "googleai"),
			GoogleAPIKey:   getEnv("GOOGLE_API_KEY", ""),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			SerpAPIKey:     getEnv("SERPAPI_KEY", ""),
			DefaultModel:   getEnv("DEFAULT_MODEL", DefaultGoogleModel),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", DefaultEmbeddingName),
		},
		Retrieval: RetrievalConfig{
			ChunkSize:           getEnvInt("CHUNK_SIZE", DefaultChunkSize),
			ChunkOverlap:        getEnvInt("CHUNK_OVERLAP", DefaultChunkOverlap),
			EmbedBatchSize:      getEnvInt("EMBED_BATCH_SIZE", DefaultEmbedBatchSize),
			EmbedBatchDelay:     getEnvDuration("EMBED_BATCH_DELAY", DefaultEmbedBatchDelay),
			EmbedDimension:      getEnvInt("EMBED_DIMENSION", DefaultEmbedDimension),
			SearchLimit:         getEnvInt("SEARCH_LIMIT", DefaultSearchLimit),
			SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
			SearchTimeout:       getEnvDuration("SEARCH_TIMEOUT", DefaultSearchTimeout),
			SearchConcurrency:   getEnvInt("SEARCH_CONCURRENCY", DefaultSearchConcurrency),
		},
		Store: StoreConfig{
			DatabaseURL: getEnv("DATABASE_URL", ""),
			RedisAddr:   getEnv("REDIS_ADDR", ""),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8080),
			UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			Debug:           getEnvBool("DEBUG", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency. Provider keys are checked lazily at
// provider construction so that offline commands keep working.
func (c *Config) Validate() error {
	r := c.Retrieval
	if r.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if r.EmbedDimension <= 0 {
		return fmt.Errorf("EMBED_DIMENSION must be positive")
	}
	if r.SearchConcurrency <= 0 {
		return fmt.Errorf("SEARCH_CONCURRENCY must be positive")
	}
	switch c.Providers.Kind {
	case "googleai", "openai":
	default:
		return fmt.Errorf("unknown PROVIDER %q", c.Providers.Kind)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
