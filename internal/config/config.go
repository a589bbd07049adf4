package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Matcher  MatcherConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	VectorSize uint64
	Timeout    time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// MatcherConfig is the engine tuning surface. Empty CategoryFilter means every
// resume is eligible; empty JobFilterTags means every job is eligible.
type MatcherConfig struct {
	CategoryFilter      []string
	JobFilterTags       []string
	MaxJobs             int
	TopK                int
	SimilarityThreshold float64
	ValidationThreshold int
	BatchSize           int
	MaxWorkers          int
	CacheTTL            time.Duration
	CheckpointInterval  int
	SkipProcessedJobs   bool
	ForceReprocess      bool
	RetryMaxAttempts    int
	RetryInitialDelay   time.Duration
	APICallMinDelay     time.Duration
	MemoryLimitBytes    uint64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "job_matcher"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "resume_embeddings"),
			VectorSize: uint64(getEnvAsInt("QDRANT_VECTOR_SIZE", 768)),
			Timeout:    getEnvAsDuration("QDRANT_TIMEOUT", "30s"),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", "60s"),
		},
		Matcher: MatcherConfig{
			CategoryFilter:      getEnvAsList("CATEGORY_FILTER"),
			JobFilterTags:       getEnvAsList("JOB_FILTER_TAGS"),
			MaxJobs:             getEnvAsInt("MAX_JOBS", 0),
			TopK:                getEnvAsInt("TOP_K", 5),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.30),
			ValidationThreshold: getEnvAsInt("VALIDATION_THRESHOLD", 70),
			BatchSize:           getEnvAsInt("BATCH_SIZE", 50),
			MaxWorkers:          getEnvAsInt("MAX_WORKERS", 3),
			CacheTTL:            getEnvAsDuration("CACHE_TTL", "15m"),
			CheckpointInterval:  getEnvAsInt("CHECKPOINT_INTERVAL", 10),
			SkipProcessedJobs:   getEnvAsBool("SKIP_PROCESSED_JOBS", true),
			ForceReprocess:      getEnvAsBool("FORCE_REPROCESS", false),
			RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			RetryInitialDelay:   getEnvAsDuration("RETRY_INITIAL_DELAY", "2s"),
			APICallMinDelay:     getEnvAsDuration("API_CALL_MIN_DELAY", "500ms"),
			MemoryLimitBytes:    uint64(getEnvAsInt64("MEMORY_LIMIT_BYTES", 1<<30)),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getEnvAsList parses a comma-separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
