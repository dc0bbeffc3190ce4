/**
 * Configuration for ReadingOrder Worker
 *
 * Loads configuration from environment variables matching .env.nexus
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration (optional: empty URL disables
	// the segment similarity index)
	QdrantURL        string
	QdrantCollection string

	// API keys (VoyageAPIKey optional: empty disables segment embeddings)
	VoyageAPIKey string

	// Service URLs (ReorderServiceURL optional: empty disables the LLM
	// reorder refinement pass)
	ReorderServiceURL string

	// Worker configuration
	WorkerConcurrency int
	PageConcurrency   int
	ProcessingTimeout int

	// Tesseract configuration
	TesseractPath string

	// Layout pipeline tuning
	MinConfidence        float64
	MergeLookahead       int
	ColumnAlignTolerance int
	VerticalGapTolerance int
	PageWidth            int
	PageHeight           int

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:             getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		DatabaseURL:          getEnvOrThrow("DATABASE_URL"),
		QdrantURL:            getEnvOrDefault("QDRANT_URL", ""),
		QdrantCollection:     getEnvOrDefault("QDRANT_COLLECTION", "readingorder_segments"),
		VoyageAPIKey:         getEnvOrDefault("VOYAGE_API_KEY", ""),
		ReorderServiceURL:    getEnvOrDefault("REORDER_SERVICE_URL", ""),
		WorkerConcurrency:    getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		PageConcurrency:      getEnvAsIntOrDefault("PAGE_CONCURRENCY", 4),
		ProcessingTimeout:    getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		TesseractPath:        getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		MinConfidence:        getEnvAsFloatOrDefault("MIN_CONFIDENCE", 0.3),
		MergeLookahead:       getEnvAsIntOrDefault("MERGE_LOOKAHEAD", 20),
		ColumnAlignTolerance: getEnvAsIntOrDefault("COLUMN_ALIGN_TOLERANCE", 3),
		VerticalGapTolerance: getEnvAsIntOrDefault("VERTICAL_GAP_TOLERANCE", 3),
		PageWidth:            getEnvAsIntOrDefault("PAGE_WIDTH", 2550),
		PageHeight:           getEnvAsIntOrDefault("PAGE_HEIGHT", 3300),
		NodeEnv:              getEnvOrDefault("NODE_ENV", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.PageConcurrency < 1 || c.PageConcurrency > 32 {
		return fmt.Errorf("PAGE_CONCURRENCY must be between 1 and 32, got %d", c.PageConcurrency)
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be between 0 and 1, got %v", c.MinConfidence)
	}

	if c.MergeLookahead < 1 || c.MergeLookahead > 1000 {
		return fmt.Errorf("MERGE_LOOKAHEAD must be between 1 and 1000, got %d", c.MergeLookahead)
	}

	if c.PageWidth < 1 || c.PageHeight < 1 {
		return fmt.Errorf("PAGE_WIDTH and PAGE_HEIGHT must be positive, got %dx%d", c.PageWidth, c.PageHeight)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
