/**
 * Storage Manager for ReadingOrder Worker
 *
 * Coordinates storage across PostgreSQL (jobs + page layouts) and Qdrant
 * (optional segment similarity index). PostgreSQL is the source of truth;
 * the vector index is advisory and never fails a job.
 */

package storage

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"github.com/google/uuid"
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
}

// NewStorageManager creates a new storage manager. An empty qdrantAddress
// disables the segment similarity index.
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	var qdrantClient *QdrantClient
	if qdrantAddress != "" {
		qdrantClient, err = NewQdrantClient(qdrantAddress, qdrantCollection)
		if err != nil {
			postgres.Close() // Cleanup on failure
			return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
		}
	}

	return &StorageManager{
		postgres: postgres,
		qdrant:   qdrantClient,
	}, nil
}

// HasVectorIndex reports whether the segment similarity index is enabled.
func (sm *StorageManager) HasVectorIndex() bool {
	return sm.qdrant != nil
}

// StorePageLayout persists a reconstructed page in PostgreSQL and, when
// embeddings are supplied and the index is enabled, upserts one vector per
// segment. embeddings may be nil; when present it must be parallel to
// record.Segments. Vector index failures are logged, not propagated: the
// layout in PostgreSQL is the durable result.
func (sm *StorageManager) StorePageLayout(ctx context.Context, record *PageLayoutRecord, embeddings [][]float32) (string, error) {
	if record == nil {
		return "", fmt.Errorf("record is required")
	}

	layoutID, err := sm.postgres.StorePageLayout(ctx, record)
	if err != nil {
		return "", err
	}

	if sm.qdrant == nil || len(embeddings) == 0 {
		return layoutID, nil
	}

	if len(embeddings) != len(record.Segments) {
		log.Printf("[Storage] Skipping segment index for job %s page %d: %d embeddings for %d segments",
			record.JobID, record.PageNumber, len(embeddings), len(record.Segments))
		return layoutID, nil
	}

	points := make([]*VectorPoint, 0, len(record.Segments))
	for i, seg := range record.Segments {
		points = append(points, &VectorPoint{
			ID:     uuid.New().String(),
			Vector: embeddings[i],
			Metadata: map[string]interface{}{
				"job_id":      record.JobID,
				"layout_id":   layoutID,
				"page_number": record.PageNumber,
				"segment_id":  seg.SegmentID,
				"position":    seg.Position,
				"width_class": seg.WidthClass,
			},
		})
	}

	if err := sm.qdrant.UpsertVectors(ctx, points); err != nil {
		log.Printf("[Storage] Warning: failed to index segment vectors for job %s page %d: %v",
			record.JobID, record.PageNumber, err)
	}

	return layoutID, nil
}

// SearchSimilarSegments finds indexed segments with similar layout/content
// embeddings across processed pages.
func (sm *StorageManager) SearchSimilarSegments(ctx context.Context, queryVector []float32, limit int) ([]*VectorPoint, error) {
	if sm.qdrant == nil {
		return nil, fmt.Errorf("segment similarity index is disabled")
	}
	return sm.qdrant.SearchVectors(ctx, queryVector, limit)
}

// ClearJobIndex drops all indexed vectors for a job before reprocessing.
func (sm *StorageManager) ClearJobIndex(ctx context.Context, jobID string) error {
	if sm.qdrant == nil {
		return nil
	}
	return sm.qdrant.DeleteJobVectors(ctx, jobID)
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetPageLayout retrieves a stored page layout with segments.
func (sm *StorageManager) GetPageLayout(ctx context.Context, jobID string, pageNumber int) (*PageLayoutRecord, error) {
	return sm.postgres.GetPageLayout(ctx, jobID, pageNumber)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	stats := map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}

	if sm.qdrant != nil {
		qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
		}
		stats["qdrant"] = qdrantStats
	}

	return stats, nil
}

// Ping checks database connectivity.
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

// sanitizeJSONForPostgres removes Unicode escape sequences that PostgreSQL
// JSONB rejects: \u0000 is invalid outright, other control-character
// escapes are replaced with a space. OCR text is a reliable source of both.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	nullPattern := regexp.MustCompile(`\\u0000`)
	result := nullPattern.ReplaceAll(jsonBytes, []byte{})

	controlPattern := regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
	result = controlPattern.ReplaceAll(result, []byte(" "))

	return result
}
