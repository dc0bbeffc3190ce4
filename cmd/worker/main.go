/**
 * ReadingOrder Worker - Main Entry Point
 *
 * Go worker for OCR reading-order reconstruction.
 *
 * Architecture:
 * - Redis list consumer for the TypeScript-compatible job queue
 * - Per-page pipeline: tile OCR → fragment assembly → adaptive
 *   thresholds → line merge → block/segment grouping → column stacking
 * - Optional reorder-service refinement of the geometric order
 * - PostgreSQL persistence for page layouts and job tracking
 * - Optional Qdrant segment similarity index (VoyageAI embeddings)
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/readingorder-worker/internal/config"
	"github.com/adverant/nexus/readingorder-worker/internal/layout"
	"github.com/adverant/nexus/readingorder-worker/internal/processor"
	"github.com/adverant/nexus/readingorder-worker/internal/queue"
	"github.com/adverant/nexus/readingorder-worker/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.nexus"); err != nil {
		log.Printf("Warning: .env.nexus not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("ReadingOrder Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Workers=%d, PageConcurrency=%d",
		cfg.RedisURL, cfg.WorkerConcurrency, cfg.PageConcurrency)

	// Initialize unified storage manager (PostgreSQL + optional Qdrant)
	log.Printf("Connecting to storage...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	if storageManager.HasVectorIndex() {
		log.Printf("Storage manager initialized (PostgreSQL + Qdrant)")
	} else {
		log.Printf("Storage manager initialized (PostgreSQL only, segment index disabled)")
	}

	// Initialize page processor
	proc, err := processor.NewPageProcessor(&processor.ProcessorConfig{
		StorageManager:    storageManager,
		TesseractPath:     cfg.TesseractPath,
		VoyageAPIKey:      cfg.VoyageAPIKey,
		ReorderServiceURL: cfg.ReorderServiceURL,
		PageConcurrency:   cfg.PageConcurrency,
		Layout: layout.Config{
			MinConfidence:        cfg.MinConfidence,
			MergeLookahead:       cfg.MergeLookahead,
			ColumnAlignTolerance: cfg.ColumnAlignTolerance,
			VerticalGapTolerance: cfg.VerticalGapTolerance,
			PageWidth:            cfg.PageWidth,
			PageHeight:           cfg.PageHeight,
		},
	})
	if err != nil {
		log.Fatalf("Failed to initialize page processor: %v", err)
	}
	log.Printf("Page processor initialized")

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	queueConsumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         "readingorder:jobs",
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	// Start queue consumer
	if err := queueConsumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("ReadingOrder Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: readingorder:jobs")
	log.Printf("Workers: %d (pages per job: %d concurrent)", cfg.WorkerConcurrency, cfg.PageConcurrency)
	log.Printf("Reference page: %dx%d px", cfg.PageWidth, cfg.PageHeight)
	log.Printf("OCR confidence floor: %.2f", cfg.MinConfidence)
	log.Printf("Reorder refinement: %s", enabledLabel(cfg.ReorderServiceURL != ""))
	log.Printf("Segment index: %s", enabledLabel(storageManager.HasVectorIndex() && cfg.VoyageAPIKey != ""))
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	log.Printf("Stopping queue consumer...")
	if err := queueConsumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// Health check endpoint (optional - can be added via HTTP server)
func healthCheck(sm *storage.StorageManager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sm.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
