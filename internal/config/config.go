package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"slidedeck-ai/internal/deck"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Vector store backends.
const (
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Config holds all configuration for the application.
type Config struct {
	LLMProvider      string
	LLMBaseURL       string
	LLMModelName     string
	LLMAPIKey        string
	LLMAutoloadModel bool
	GeminiAPIKey     string

	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingVectorSize int

	DBPath    string
	OutputDir string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	ChunkParams deck.ChunkParams

	SectionParallelism   int
	LLMMaxInFlight       int
	LLMRequestsPerSecond float64

	// PipelineConfig is the path of the YAML tuning file.
	PipelineConfig string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or up to five parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	defaults := deck.DefaultChunkParams()
	cfg := &Config{
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:             getEnv("DB_PATH", "./data/slidedeck-ai.db"),
		OutputDir:          getEnv("OUTPUT_DIR", "./output"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", BackendMemory)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		PipelineConfig:     getEnv("PIPELINE_CONFIG", "./pipeline.yaml"),
	}

	// Note: this must match the output size of the embeddings model. Changing
	// it invalidates stored indexes and, with qdrant, the collection.
	vectorSizeStr := getEnv("EMBEDDING_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be greater than 0")
	}
	cfg.EmbeddingVectorSize = vectorSize

	if cfg.LLMAutoloadModel, err = getEnvBool("LLM_AUTOLOAD_MODEL", false); err != nil {
		return nil, err
	}
	if cfg.ChunkParams.ChunkSize, err = getEnvInt("CHUNK_SIZE", defaults.ChunkSize); err != nil {
		return nil, err
	}
	if cfg.ChunkParams.Overlap, err = getEnvInt("CHUNK_OVERLAP", defaults.Overlap); err != nil {
		return nil, err
	}
	if cfg.ChunkParams.MaxChunks, err = getEnvInt("MAX_CHUNKS", defaults.MaxChunks); err != nil {
		return nil, err
	}
	if cfg.SectionParallelism, err = getEnvInt("SECTION_PARALLELISM", 4); err != nil {
		return nil, err
	}
	if cfg.LLMMaxInFlight, err = getEnvInt("LLM_MAX_IN_FLIGHT", 2); err != nil {
		return nil, err
	}
	if cfg.LLMRequestsPerSecond, err = getEnvFloat("LLM_REQUESTS_PER_SECOND", 0); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.LLMProvider)
	}

	switch c.VectorBackend {
	case BackendMemory, BackendQdrant:
	default:
		return fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendMemory, BackendQdrant, c.VectorBackend)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if err := c.ChunkParams.Validate(); err != nil {
		return err
	}
	if c.SectionParallelism <= 0 {
		return fmt.Errorf("SECTION_PARALLELISM must be greater than 0")
	}
	if c.LLMMaxInFlight < 1 || c.LLMMaxInFlight > 3 {
		return fmt.Errorf("LLM_MAX_IN_FLIGHT must be between 1 and 3, got %d", c.LLMMaxInFlight)
	}
	if c.LLMRequestsPerSecond < 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_SECOND must not be negative")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return v, nil
}
