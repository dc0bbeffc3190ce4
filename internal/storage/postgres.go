/**
 * PostgreSQL Client for ReadingOrder Worker
 *
 * Handles job tracking and page layout persistence. Jobs live in
 * readingorder.processing_jobs; reconstructed layouts in
 * readingorder.page_layouts with one row per segment in
 * readingorder.page_segments.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Confidence       float64
	ProcessingTimeMs int64
	PageCount        int
	SegmentCount     int
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// SegmentRecord is one reconstructed segment ready for persistence.
type SegmentRecord struct {
	SegmentID       int
	Text            string
	StartX          int
	EndX            int
	StartY          int
	EndY            int
	NormalizedEdges []int64 // left, right, top, bottom in percent
	Position        string
	WidthClass      string
	AvgConfidence   float64
	BlockDetail     map[string]interface{}
}

// PageLayoutRecord is the persisted result of one page reconstruction.
type PageLayoutRecord struct {
	JobID                 string
	PageNumber            int
	FragmentCount         int
	FragmentsFiltered     int
	LineCount             int
	UsedDefaultThresholds bool
	Thresholds            map[string]interface{}
	Segments              []SegmentRecord
}

// sanitizeConfidence rounds confidence to 4 decimal places to prevent PostgreSQL float precision errors
// PostgreSQL FLOAT type can represent values with excessive precision (e.g., 0.9632000000000001)
// which causes "invalid input syntax for type integer" errors when used in certain contexts.
// This function enforces bounded precision by rounding to 4 decimals and clamping to [0.0, 1.0].
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus updates job status in the database
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	// NUMERIC(5,4) plus sanitizing keeps confidence at bounded precision;
	// raw float64 representations like 0.9632000000000001 trip PostgreSQL
	// casts downstream.
	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// UPSERT so the worker can create the job record when the producer has
	// not written it yet.
	query := `
		INSERT INTO readingorder.processing_jobs (
			id, document_id, user_id,
			status, confidence, processing_time_ms,
			page_count, segment_count,
			error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($9, ''), 'unknown'), COALESCE(NULLIF($10, ''), 'anonymous'),
			$2, NULLIF($3::NUMERIC(5,4), 0), NULLIF($4, 0),
			NULLIF($5, 0), NULLIF($6, 0),
			NULLIF($7, ''), NULLIF($8, ''),
			COALESCE($11::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(NULLIF(EXCLUDED.confidence::NUMERIC(5,4), 0), readingorder.processing_jobs.confidence),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), readingorder.processing_jobs.processing_time_ms),
			page_count = COALESCE(NULLIF(EXCLUDED.page_count, 0), readingorder.processing_jobs.page_count),
			segment_count = COALESCE(NULLIF(EXCLUDED.segment_count, 0), readingorder.processing_jobs.segment_count),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, readingorder.processing_jobs.metadata),
			document_id = COALESCE(EXCLUDED.document_id, readingorder.processing_jobs.document_id),
			user_id = COALESCE(EXCLUDED.user_id, readingorder.processing_jobs.user_id),
			updated_at = NOW()
		RETURNING id
	`

	// Extract identity fields from metadata if present
	var documentID, userID string
	if update.Metadata != nil {
		if d, ok := update.Metadata["documentId"].(string); ok {
			documentID = d
		}
		if u, ok := update.Metadata["userId"].(string); ok {
			userID = u
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Status,           // $2
		sanitizedConfidence,     // $3
		update.ProcessingTimeMs, // $4
		update.PageCount,        // $5
		update.SegmentCount,     // $6
		update.ErrorCode,        // $7
		update.ErrorMessage,     // $8
		documentID,              // $9
		userID,                  // $10
		metadataJSON,            // $11
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s, confidence=%.4f): %w",
			update.JobID, update.Status, sanitizedConfidence, err)
	}

	return nil
}

// StorePageLayout persists a reconstructed page and its segments in one
// transaction. Re-processing a page replaces the previous layout.
func (p *PostgresClient) StorePageLayout(ctx context.Context, record *PageLayoutRecord) (string, error) {
	if record.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	thresholdsJSON, err := json.Marshal(record.Thresholds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal thresholds: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace any previous layout for this page
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM readingorder.page_layouts
		WHERE job_id = $1::uuid AND page_number = $2
	`, record.JobID, record.PageNumber); err != nil {
		return "", fmt.Errorf("failed to clear previous layout: %w", err)
	}

	layoutQuery := `
		INSERT INTO readingorder.page_layouts (
			job_id, page_number,
			fragment_count, fragments_filtered, line_count, segment_count,
			used_default_thresholds, thresholds,
			created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6, $7, $8::jsonb, NOW()
		)
		RETURNING id
	`

	var layoutID string
	if err := tx.QueryRowContext(
		ctx,
		layoutQuery,
		record.JobID,
		record.PageNumber,
		record.FragmentCount,
		record.FragmentsFiltered,
		record.LineCount,
		len(record.Segments),
		record.UsedDefaultThresholds,
		thresholdsJSON,
	).Scan(&layoutID); err != nil {
		return "", fmt.Errorf("failed to store page layout: %w", err)
	}

	segmentQuery := `
		INSERT INTO readingorder.page_segments (
			layout_id, segment_id, text,
			start_x, end_x, start_y, end_y,
			normalized_edges, position, width_class,
			avg_confidence, block_detail
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6, $7,
			$8, $9, $10,
			NULLIF($11::NUMERIC(5,4), 0), COALESCE($12::jsonb, '{}'::jsonb)
		)
	`

	for _, seg := range record.Segments {
		blockJSON, err := json.Marshal(seg.BlockDetail)
		if err != nil {
			return "", fmt.Errorf("failed to marshal block detail for segment %d: %w", seg.SegmentID, err)
		}
		blockJSON = sanitizeJSONForPostgres(blockJSON)

		if _, err := tx.ExecContext(
			ctx,
			segmentQuery,
			layoutID,
			seg.SegmentID,
			seg.Text,
			seg.StartX,
			seg.EndX,
			seg.StartY,
			seg.EndY,
			pq.Array(seg.NormalizedEdges),
			seg.Position,
			seg.WidthClass,
			sanitizeConfidence(seg.AvgConfidence),
			blockJSON,
		); err != nil {
			return "", fmt.Errorf("failed to store segment %d: %w", seg.SegmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit page layout: %w", err)
	}

	return layoutID, nil
}

// GetPageLayout retrieves a stored layout with its segments in reading order.
func (p *PostgresClient) GetPageLayout(ctx context.Context, jobID string, pageNumber int) (*PageLayoutRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	var (
		layoutID       string
		record         PageLayoutRecord
		thresholdsJSON []byte
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, fragment_count, fragments_filtered, line_count,
		       used_default_thresholds, thresholds
		FROM readingorder.page_layouts
		WHERE job_id = $1::uuid AND page_number = $2
	`, jobID, pageNumber).Scan(
		&layoutID,
		&record.FragmentCount,
		&record.FragmentsFiltered,
		&record.LineCount,
		&record.UsedDefaultThresholds,
		&thresholdsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page layout not found: job=%s page=%d", jobID, pageNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page layout: %w", err)
	}

	record.JobID = jobID
	record.PageNumber = pageNumber
	if len(thresholdsJSON) > 0 {
		if err := json.Unmarshal(thresholdsJSON, &record.Thresholds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal thresholds: %w", err)
		}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT segment_id, text, start_x, end_x, start_y, end_y,
		       normalized_edges, position, width_class,
		       COALESCE(avg_confidence, 0), block_detail
		FROM readingorder.page_segments
		WHERE layout_id = $1::uuid
		ORDER BY segment_id
	`, layoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to get page segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seg       SegmentRecord
			edges     pq.Int64Array
			blockJSON []byte
		)
		if err := rows.Scan(
			&seg.SegmentID, &seg.Text,
			&seg.StartX, &seg.EndX, &seg.StartY, &seg.EndY,
			&edges, &seg.Position, &seg.WidthClass,
			&seg.AvgConfidence, &blockJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan segment row: %w", err)
		}
		seg.NormalizedEdges = []int64(edges)
		if len(blockJSON) > 0 {
			if err := json.Unmarshal(blockJSON, &seg.BlockDetail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal block detail: %w", err)
			}
		}
		record.Segments = append(record.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read segment rows: %w", err)
	}

	return &record, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, document_id, user_id, status,
			confidence, processing_time_ms,
			page_count, segment_count,
			error_code, error_message, metadata,
			created_at, updated_at
		FROM readingorder.processing_jobs
		WHERE id = $1::uuid
	`

	var (
		id, documentID, userID  string
		status                  sql.NullString
		confidence              sql.NullFloat64
		processingTimeMs        sql.NullInt64
		pageCount, segmentCount sql.NullInt64
		errorCode, errorMessage sql.NullString
		metadataJSON            []byte
		createdAt, updatedAt    time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &documentID, &userID, &status,
		&confidence, &processingTimeMs,
		&pageCount, &segmentCount,
		&errorCode, &errorMessage, &metadataJSON,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":         id,
		"documentId": documentID,
		"userId":     userID,
		"status":     status.String,
		"createdAt":  createdAt,
		"updatedAt":  updatedAt,
		"metadata":   metadata,
	}

	if confidence.Valid {
		result["confidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if pageCount.Valid {
		result["pageCount"] = pageCount.Int64
	}
	if segmentCount.Valid {
		result["segmentCount"] = segmentCount.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
