package config

import (
	"os"
	"testing"
)

// clearWorkerEnv removes every variable LoadConfig reads so tests see a
// clean environment regardless of the host shell.
func clearWorkerEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"REDIS_URL", "DATABASE_URL", "QDRANT_URL", "QDRANT_COLLECTION",
		"VOYAGE_API_KEY", "REORDER_SERVICE_URL", "WORKER_CONCURRENCY",
		"PAGE_CONCURRENCY", "PROCESSING_TIMEOUT", "TESSERACT_PATH",
		"MIN_CONFIDENCE", "MERGE_LOOKAHEAD", "COLUMN_ALIGN_TOLERANCE",
		"VERTICAL_GAP_TOLERANCE", "PAGE_WIDTH", "PAGE_HEIGHT", "NODE_ENV",
	}
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			t.Setenv(k, v) // restore after test
			os.Unsetenv(k)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/nexus")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.RedisURL != "redis://nexus-redis:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.QdrantURL != "" {
		t.Errorf("QdrantURL should default to empty (index disabled), got %q", cfg.QdrantURL)
	}
	if cfg.QdrantCollection != "readingorder_segments" {
		t.Errorf("QdrantCollection = %q", cfg.QdrantCollection)
	}
	if cfg.WorkerConcurrency != 10 {
		t.Errorf("WorkerConcurrency = %d, want 10", cfg.WorkerConcurrency)
	}
	if cfg.PageConcurrency != 4 {
		t.Errorf("PageConcurrency = %d, want 4", cfg.PageConcurrency)
	}
	if cfg.ProcessingTimeout != 300000 {
		t.Errorf("ProcessingTimeout = %d, want 300000", cfg.ProcessingTimeout)
	}
	if cfg.MinConfidence != 0.3 {
		t.Errorf("MinConfidence = %v, want 0.3", cfg.MinConfidence)
	}
	if cfg.MergeLookahead != 20 {
		t.Errorf("MergeLookahead = %d, want 20", cfg.MergeLookahead)
	}
	if cfg.PageWidth != 2550 || cfg.PageHeight != 3300 {
		t.Errorf("page dimensions = %dx%d, want 2550x3300", cfg.PageWidth, cfg.PageHeight)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/nexus")
	t.Setenv("REDIS_URL", "redis://localhost:6380")
	t.Setenv("QDRANT_URL", "qdrant:6334")
	t.Setenv("WORKER_CONCURRENCY", "5")
	t.Setenv("PAGE_CONCURRENCY", "8")
	t.Setenv("MIN_CONFIDENCE", "0.5")
	t.Setenv("PAGE_WIDTH", "1700")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.RedisURL != "redis://localhost:6380" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.QdrantURL != "qdrant:6334" {
		t.Errorf("QdrantURL = %q", cfg.QdrantURL)
	}
	if cfg.WorkerConcurrency != 5 {
		t.Errorf("WorkerConcurrency = %d, want 5", cfg.WorkerConcurrency)
	}
	if cfg.PageConcurrency != 8 {
		t.Errorf("PageConcurrency = %d, want 8", cfg.PageConcurrency)
	}
	if cfg.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v, want 0.5", cfg.MinConfidence)
	}
	if cfg.PageWidth != 1700 {
		t.Errorf("PageWidth = %d, want 1700", cfg.PageWidth)
	}
}

func TestLoadConfigInvalidIntFallsBack(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/nexus")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.WorkerConcurrency != 10 {
		t.Errorf("WorkerConcurrency = %d, want default 10", cfg.WorkerConcurrency)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			RedisURL:          "redis://localhost:6379",
			DatabaseURL:       "postgres://localhost:5432/nexus",
			WorkerConcurrency: 10,
			PageConcurrency:   4,
			MinConfidence:     0.3,
			MergeLookahead:    20,
			PageWidth:         2550,
			PageHeight:        3300,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing redis", func(c *Config) { c.RedisURL = "" }},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }},
		{"zero worker concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"excessive worker concurrency", func(c *Config) { c.WorkerConcurrency = 101 }},
		{"zero page concurrency", func(c *Config) { c.PageConcurrency = 0 }},
		{"confidence above one", func(c *Config) { c.MinConfidence = 1.5 }},
		{"negative confidence", func(c *Config) { c.MinConfidence = -0.1 }},
		{"zero lookahead", func(c *Config) { c.MergeLookahead = 0 }},
		{"zero page width", func(c *Config) { c.PageWidth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
