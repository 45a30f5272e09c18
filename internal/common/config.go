package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	LLM        LLMConfig
	Vertex     VertexConfig
	Pipeline   PipelineConfig
	Classifier ClassifierConfig
	Retry      RetryConfig
}

// LLMConfig holds inference-backend configuration shared by all model clients.
type LLMConfig struct {
	Backend     string // "openai" or "vertex"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// VertexConfig holds Vertex AI specific configuration.
type VertexConfig struct {
	ProjectID string
	Region    string
	Model     string
}

// PipelineConfig holds run-level concurrency and timeout settings.
// ExtractUnscored sends pages with no text layer (scanned documents) to the
// model for type-agnostic extraction instead of skipping them.
type PipelineConfig struct {
	ExtractWorkers  int
	ClassifyWorkers int
	RunTimeout      time.Duration
	ExtractUnscored bool
}

// ClassifierConfig holds the page-classification scoring knobs.
type ClassifierConfig struct {
	Threshold     float64
	Epsilon       float64
	PhraseWeight  float64
	DensityWeight float64
}

// RetryConfig holds the extraction retry/backoff bounds.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Backend:     getEnv("LLM_BACKEND", "openai"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Vertex: VertexConfig{
			ProjectID: getEnv("VERTEX_PROJECT_ID", ""),
			Region:    getEnv("VERTEX_REGION", "us-central1"),
			Model:     getEnv("VERTEX_MODEL", "gemini-1.5-pro"),
		},
		Pipeline: PipelineConfig{
			ExtractWorkers:  getEnvAsInt("EXTRACT_WORKERS", 4),
			ClassifyWorkers: getEnvAsInt("CLASSIFY_WORKERS", 8),
			RunTimeout:      getEnvAsDuration("RUN_TIMEOUT", 10*time.Minute),
			ExtractUnscored: getEnvAsBool("EXTRACT_UNSCORED", true),
		},
		Classifier: ClassifierConfig{
			Threshold:     getEnvAsFloat("CLASSIFY_THRESHOLD", 0.35),
			Epsilon:       getEnvAsFloat("CLASSIFY_EPSILON", 0.05),
			PhraseWeight:  getEnvAsFloat("CLASSIFY_PHRASE_WEIGHT", 0.7),
			DensityWeight: getEnvAsFloat("CLASSIFY_DENSITY_WEIGHT", 0.3),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 4),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 1*time.Second),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", 30*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError(CodeConfigError, "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "vertex":
		if c.Vertex.ProjectID == "" {
			return NewAppError(CodeConfigError, "VERTEX_PROJECT_ID is required", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfigError, "LLM_BACKEND must be openai or vertex", ErrInvalidInput)
	}
	if c.Pipeline.ExtractWorkers <= 0 || c.Pipeline.ClassifyWorkers <= 0 {
		return NewAppError(CodeConfigError, "worker counts must be positive", ErrInvalidInput)
	}
	if c.Retry.MaxAttempts <= 0 {
		return NewAppError(CodeConfigError, "RETRY_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		return NewAppError(CodeConfigError, "CLASSIFY_THRESHOLD must be in [0,1]", ErrInvalidInput)
	}
	return nil
}
