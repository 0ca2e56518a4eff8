package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Embedding EmbeddingConfig
	Search    SearchConfig
	Backfill  BackfillConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	Environment    string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration. When CandidateSource is
// "typesense" lexical candidates are fetched from the product collection
// instead of an ILIKE scan.
type TypesenseConfig struct {
	URL             string
	APIKey          string
	Collection      string
	CandidateSource string
}

// EmbeddingConfig configures the external embedding model.
type EmbeddingConfig struct {
	Provider       string // "gemini" or "openai"
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	BatchSize      int
	BatchDelay     time.Duration
	RateLimitRPM   int
	QueryCacheSize int
	QueryCacheTTL  time.Duration
}

// SearchConfig holds ranking weights and analytics windows.
type SearchConfig struct {
	LexicalWeight          float64
	SemanticWeight         float64
	ExactBoost             float64
	PersonalizationHistory int
	SuggestionWindowDays   int
	ProfileCacheTTL        time.Duration
	// SuggestionWarmInterval of zero disables suggestion cache warming.
	SuggestionWarmInterval time.Duration
}

// BackfillConfig configures cmd/backfill.
type BackfillConfig struct {
	Workers  int
	Schedule string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	provider := strings.ToLower(getEnv("EMBEDDING_PROVIDER", "gemini"))
	defaultModel := "text-embedding-004"
	if provider == "openai" {
		defaultModel = "text-embedding-3-small"
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Environment:    getEnv("APP_ENV", "development"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "product_search"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:             getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:          getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection:      getEnv("TYPESENSE_COLLECTION", "products"),
			CandidateSource: strings.ToLower(getEnv("SEARCH_CANDIDATE_SOURCE", "postgres")),
		},
		Embedding: EmbeddingConfig{
			Provider:       provider,
			APIKey:         getEnv("EMBEDDING_API_KEY", ""),
			BaseURL:        getEnv("EMBEDDING_BASE_URL", ""),
			Model:          getEnv("EMBEDDING_MODEL", defaultModel),
			Timeout:        getEnvAsDuration("EMBEDDING_TIMEOUT", 5*time.Second),
			BatchSize:      getEnvAsInt("EMBEDDING_BATCH_SIZE", 5),
			BatchDelay:     getEnvAsDuration("EMBEDDING_BATCH_DELAY", time.Second),
			RateLimitRPM:   getEnvAsInt("EMBEDDING_RATE_LIMIT_RPM", 1500),
			QueryCacheSize: getEnvAsInt("EMBEDDING_QUERY_CACHE_SIZE", 1024),
			QueryCacheTTL:  getEnvAsDuration("EMBEDDING_QUERY_CACHE_TTL", 24*time.Hour),
		},
		Search: SearchConfig{
			LexicalWeight:          getEnvAsFloat("SEARCH_LEXICAL_WEIGHT", 0.6),
			SemanticWeight:         getEnvAsFloat("SEARCH_SEMANTIC_WEIGHT", 0.4),
			ExactBoost:             getEnvAsFloat("SEARCH_EXACT_BOOST", 1.5),
			PersonalizationHistory: getEnvAsInt("PERSONALIZATION_HISTORY", 50),
			SuggestionWindowDays:   getEnvAsInt("SUGGESTION_WINDOW_DAYS", 30),
			ProfileCacheTTL:        getEnvAsDuration("PROFILE_CACHE_TTL", 10*time.Minute),
			SuggestionWarmInterval: getEnvAsDuration("SUGGESTION_WARM_INTERVAL", 4*time.Minute),
		},
		Backfill: BackfillConfig{
			Workers:  getEnvAsInt("BACKFILL_WORKERS", 5),
			Schedule: getEnv("BACKFILL_SCHEDULE", ""),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "product-search"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q", c.Embedding.Provider)
	}
	switch c.Typesense.CandidateSource {
	case "postgres", "typesense":
	default:
		return fmt.Errorf("unsupported SEARCH_CANDIDATE_SOURCE %q", c.Typesense.CandidateSource)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Search.LexicalWeight < 0 || c.Search.SemanticWeight < 0 {
		return fmt.Errorf("search weights must not be negative")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
