/**
 * Page Processor for ReadingOrder Worker
 *
 * Orchestrates document reconstruction:
 * - Tile OCR (or pre-extracted words) per page quadrant
 * - Reading-order pipeline per page
 * - Optional refinement of the geometric order via the reorder service
 * - PostgreSQL persistence plus the optional segment embedding index
 *
 * Pages run through the pure pipeline in parallel under a bounded pool.
 * The finalize phase (refinement, persistence, cross-page continuation
 * context) runs sequentially in page order.
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adverant/nexus/readingorder-worker/internal/clients"
	"github.com/adverant/nexus/readingorder-worker/internal/errors"
	"github.com/adverant/nexus/readingorder-worker/internal/layout"
	"github.com/adverant/nexus/readingorder-worker/internal/logging"
	"github.com/adverant/nexus/readingorder-worker/internal/ocr"
	"github.com/adverant/nexus/readingorder-worker/internal/storage"
)

// PageProcessorInterface is what the queue consumers drive.
type PageProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, details map[string]interface{}) error
}

// WordInput is a pre-extracted OCR word in tile-local coordinates, for
// producers that run their own OCR upstream.
type WordInput struct {
	Text       string    `json:"text"`
	BBox       [4][2]int `json:"bbox"`
	Confidence float64   `json:"confidence"`
}

// TileInput is one page quadrant: a rendered image for local OCR, or
// pre-extracted words. Words win when both are present.
type TileInput struct {
	Quadrant string      `json:"quadrant"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Image    []byte      `json:"image,omitempty"`
	Words    []WordInput `json:"words,omitempty"`
}

// PageInput is one page of the document to reconstruct. Width and Height
// are original screenshot pixels, used for edge normalization.
type PageInput struct {
	PageNumber int         `json:"pageNumber"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Tiles      []TileInput `json:"tiles"`
}

// ProcessRequest represents a document reconstruction request
type ProcessRequest struct {
	JobID      string
	UserID     string
	DocumentID string
	Pages      []PageInput
	Metadata   map[string]interface{}
}

// PageSummary carries per-page diagnostics into the job result.
type PageSummary struct {
	PageNumber        int     `json:"pageNumber"`
	FragmentCount     int     `json:"fragmentCount"`
	FragmentsFiltered int     `json:"fragmentsFiltered"`
	LineCount         int     `json:"lineCount"`
	SegmentCount      int     `json:"segmentCount"`
	AvgConfidence     float64 `json:"avgConfidence"`
	UsedDefaults      bool    `json:"usedDefaultThresholds"`
	ReorderRefined    bool    `json:"reorderRefined"`
}

// ProcessResult represents the outcome of a document reconstruction
type ProcessResult struct {
	JobID             string        `json:"jobId"`
	PageCount         int           `json:"pageCount"`
	SegmentCount      int           `json:"segmentCount"`
	Confidence        float64       `json:"confidence"`
	EmbeddingsIndexed bool          `json:"embeddingsIndexed"`
	ProcessingTimeMs  int64         `json:"processingTimeMs"`
	Pages             []PageSummary `json:"pages"`
}

// ProcessorConfig holds processor dependencies and tuning.
type ProcessorConfig struct {
	StorageManager    *storage.StorageManager
	TesseractPath     string
	VoyageAPIKey      string // optional: enables the segment embedding index
	ReorderServiceURL string // optional: enables reorder refinement
	PageConcurrency   int
	Layout            layout.Config
}

// PageProcessor reconstructs reading order for queued documents.
type PageProcessor struct {
	storage         *storage.StorageManager
	tileOCR         *ocr.TileOCR
	embeddingClient *EmbeddingClient
	reorderClient   *clients.ReorderClient
	layoutCfg       layout.Config
	pageConcurrency int
	logger          *logging.Logger
}

// NewPageProcessor creates a page processor.
func NewPageProcessor(cfg *ProcessorConfig) (*PageProcessor, error) {
	if cfg == nil || cfg.StorageManager == nil {
		return nil, fmt.Errorf("storage manager is required")
	}

	tileOCR, err := ocr.NewTileOCR(&ocr.Config{TesseractPath: cfg.TesseractPath})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tile OCR: %w", err)
	}

	p := &PageProcessor{
		storage:         cfg.StorageManager,
		tileOCR:         tileOCR,
		layoutCfg:       cfg.Layout,
		pageConcurrency: cfg.PageConcurrency,
		logger:          logging.NewLogger("PageProcessor"),
	}
	if p.pageConcurrency <= 0 {
		p.pageConcurrency = 4
	}

	if cfg.VoyageAPIKey != "" {
		embeddingClient, err := NewEmbeddingClient(cfg.VoyageAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		p.embeddingClient = embeddingClient
	}

	if cfg.ReorderServiceURL != "" {
		p.reorderClient = clients.NewReorderClient(cfg.ReorderServiceURL)
	}

	return p, nil
}

// reconstructedPage pairs a page input with its pipeline output.
type reconstructedPage struct {
	input PageInput
	page  *layout.Page
}

// ProcessDocument reconstructs every page of the request and persists the
// results.
func (p *PageProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()

	if req == nil || req.JobID == "" {
		return nil, errors.NewInvalidPayloadError("", "missing job id")
	}
	if len(req.Pages) == 0 {
		return nil, errors.NewInvalidPayloadError(req.JobID, "no pages in request")
	}

	jobLog := p.logger.With(req.JobID)
	jobLog.Info("Reconstructing document",
		"pages", len(req.Pages), "concurrency", p.pageConcurrency)

	// Reprocessing a job replaces its index, not appends to it.
	if err := p.storage.ClearJobIndex(ctx, req.JobID); err != nil {
		jobLog.Warn("Failed to clear previous segment index", "error", err)
	}

	reconstructed, err := p.reconstructPages(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		JobID:     req.JobID,
		PageCount: len(req.Pages),
	}

	var (
		confidenceSum   float64
		confidencePages int
		prevChunk       *layout.Chunk
	)

	for i, rp := range reconstructed {
		summary, lastChunk, err := p.finalizePage(ctx, req, rp, prevChunk)
		if err != nil {
			return nil, err
		}
		prevChunk = lastChunk

		result.Pages = append(result.Pages, *summary)
		result.SegmentCount += summary.SegmentCount
		if summary.SegmentCount > 0 {
			confidenceSum += summary.AvgConfidence
			confidencePages++
		}

		progress := (i + 1) * 100 / len(reconstructed)
		if progress < 100 {
			if err := p.UpdateJobStatus(ctx, req.JobID, "processing", progress, nil); err != nil {
				jobLog.Warn("Failed to update progress", "error", err)
			}
		}
	}

	if confidencePages > 0 {
		result.Confidence = confidenceSum / float64(confidencePages)
	}
	result.EmbeddingsIndexed = p.embeddingClient != nil && p.storage.HasVectorIndex()
	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	jobLog.Info("Document reconstructed",
		"pages", result.PageCount,
		"segments", result.SegmentCount,
		"durationMs", result.ProcessingTimeMs)

	return result, nil
}

// reconstructPages runs OCR and the layout pipeline for every page under a
// bounded worker pool. Results come back in input order.
func (p *PageProcessor) reconstructPages(ctx context.Context, req *ProcessRequest) ([]reconstructedPage, error) {
	results := make([]reconstructedPage, len(req.Pages))
	errs := make([]error, len(req.Pages))

	sem := make(chan struct{}, p.pageConcurrency)
	var wg sync.WaitGroup

	for i, pageInput := range req.Pages {
		wg.Add(1)
		go func(idx int, in PageInput) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}

			tiles, err := p.collectTiles(ctx, req.JobID, in)
			if err != nil {
				errs[idx] = err
				return
			}

			cfg := p.layoutCfg
			if in.Width > 0 {
				cfg.PageWidth = in.Width
			}
			if in.Height > 0 {
				cfg.PageHeight = in.Height
			}

			results[idx] = reconstructedPage{
				input: in,
				page:  layout.ReconstructPage(tiles, cfg),
			}
		}(i, pageInput)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// collectTiles converts tile inputs to layout tiles, running OCR where a
// tile carries an image instead of pre-extracted words.
func (p *PageProcessor) collectTiles(ctx context.Context, jobID string, in PageInput) ([]layout.Tile, error) {
	tiles := make([]layout.Tile, 0, len(in.Tiles))

	for _, t := range in.Tiles {
		quadrant := layout.Quadrant(t.Quadrant)
		switch quadrant {
		case layout.QuadrantTopLeft, layout.QuadrantTopRight,
			layout.QuadrantBottomLeft, layout.QuadrantBottomRight:
		default:
			return nil, errors.NewInvalidPayloadError(jobID,
				fmt.Sprintf("page %d: unknown quadrant %q", in.PageNumber, t.Quadrant))
		}

		if len(t.Words) > 0 {
			tile := layout.Tile{Quadrant: quadrant, Width: t.Width, Height: t.Height}
			for _, w := range t.Words {
				tile.Words = append(tile.Words, layout.Word{
					Text:       w.Text,
					BBox:       w.BBox,
					Confidence: w.Confidence,
				})
			}
			tiles = append(tiles, tile)
			continue
		}

		if len(t.Image) == 0 {
			// Blank quadrant on a sparse page: contributes nothing.
			tiles = append(tiles, layout.Tile{Quadrant: quadrant, Width: t.Width, Height: t.Height})
			continue
		}

		recognized, err := p.tileOCR.RecognizeTile(ctx, ocr.TileImage{
			Quadrant: quadrant,
			Image:    t.Image,
			Width:    t.Width,
			Height:   t.Height,
		})
		if err != nil {
			return nil, errors.NewOCRFailedError(jobID, in.PageNumber, t.Quadrant, err)
		}
		tiles = append(tiles, recognized)
	}

	return tiles, nil
}

// finalizePage applies optional reorder refinement, persists the layout,
// and returns the page summary plus the final chunk for cross-page
// continuation.
func (p *PageProcessor) finalizePage(ctx context.Context, req *ProcessRequest, rp reconstructedPage, prevChunk *layout.Chunk) (*PageSummary, *layout.Chunk, error) {
	page := rp.page
	payload := layout.BuildPayload(page, rp.input.PageNumber, prevChunk)

	refined := false
	if p.reorderClient != nil && len(payload.Chunks) >= 2 {
		order, err := p.reorderClient.RefineOrder(ctx, payload)
		if err != nil {
			p.logger.Warn("Reorder refinement unavailable, keeping geometric order",
				"jobId", req.JobID, "page", rp.input.PageNumber, "error", err)
		} else if order != nil {
			applyRefinedOrder(page, order)
			payload = layout.BuildPayload(page, rp.input.PageNumber, prevChunk)
			refined = true
		}
	}

	record := p.buildLayoutRecord(req.JobID, rp.input.PageNumber, page, payload)
	embeddings := p.embedSegments(ctx, req.JobID, rp.input.PageNumber, payload)

	if _, err := p.storage.StorePageLayout(ctx, record, embeddings); err != nil {
		return nil, nil, errors.NewStorageFailedError(req.JobID, err)
	}

	avgConfidence := 0.0
	if len(payload.Chunks) > 0 {
		for _, c := range payload.Chunks {
			avgConfidence += c.AvgConfidence
		}
		avgConfidence /= float64(len(payload.Chunks))
	}

	summary := &PageSummary{
		PageNumber:        rp.input.PageNumber,
		FragmentCount:     page.FragmentsIn,
		FragmentsFiltered: page.FragmentsFiltered,
		LineCount:         page.LineCount,
		SegmentCount:      len(page.Segments),
		AvgConfidence:     avgConfidence,
		UsedDefaults:      page.Thresholds.UsedDefaults,
		ReorderRefined:    refined,
	}

	return summary, payload.LastChunk(), nil
}

// applyRefinedOrder rearranges page segments to the refined id sequence
// and renumbers ids to match the new order. A sequence that does not cover
// the page exactly leaves the geometric order untouched.
func applyRefinedOrder(page *layout.Page, order []int) {
	byID := make(map[int]*layout.Segment, len(page.Segments))
	for _, s := range page.Segments {
		byID[s.ID] = s
	}

	reordered := make([]*layout.Segment, 0, len(order))
	for _, id := range order {
		if s, ok := byID[id]; ok {
			reordered = append(reordered, s)
		}
	}
	if len(reordered) != len(page.Segments) {
		return
	}

	for i, s := range reordered {
		s.ID = i
	}
	page.Segments = reordered
}

// buildLayoutRecord flattens a reconstructed page into its storage form.
// payload.Chunks is parallel to page.Segments by construction.
func (p *PageProcessor) buildLayoutRecord(jobID string, pageNumber int, page *layout.Page, payload layout.PagePayload) *storage.PageLayoutRecord {
	record := &storage.PageLayoutRecord{
		JobID:                 jobID,
		PageNumber:            pageNumber,
		FragmentCount:         page.FragmentsIn,
		FragmentsFiltered:     page.FragmentsFiltered,
		LineCount:             page.LineCount,
		UsedDefaultThresholds: page.Thresholds.UsedDefaults,
		Thresholds: map[string]interface{}{
			"lineVerticalTolerance":    page.Thresholds.LineVerticalTolerance,
			"lineHorizontalGap":        page.Thresholds.LineHorizontalGap,
			"blockVerticalTolerance":   page.Thresholds.BlockVerticalTolerance,
			"blockHorizontalTolerance": page.Thresholds.BlockHorizontalTolerance,
			"medianHeight":             page.Thresholds.MedianHeight,
			"medianVerticalSpacing":    page.Thresholds.MedianVerticalSpacing,
			"medianCharWidth":          page.Thresholds.MedianCharWidth,
			"lineSpacingRatio":         page.Thresholds.LineSpacingRatio,
			"fragmentsAnalyzed":        page.Thresholds.FragmentsAnalyzed,
		},
	}

	for i, seg := range page.Segments {
		chunk := payload.Chunks[i]

		blocks := make([]map[string]interface{}, 0, len(seg.Blocks))
		for _, b := range seg.Blocks {
			lines := make([]string, 0, len(b.Lines))
			for _, l := range b.Lines {
				lines = append(lines, l.Text)
			}
			blocks = append(blocks, map[string]interface{}{
				"id":    b.ID,
				"bbox":  []int{b.StartX, b.StartY, b.EndX, b.EndY},
				"lines": lines,
			})
		}

		record.Segments = append(record.Segments, storage.SegmentRecord{
			SegmentID: seg.ID,
			Text:      strings.Join(chunk.Texts, "\n"),
			StartX:    seg.StartX,
			EndX:      seg.EndX,
			StartY:    seg.StartY,
			EndY:      seg.EndY,
			NormalizedEdges: []int64{
				int64(seg.NormLeft), int64(seg.NormRight),
				int64(seg.NormTop), int64(seg.NormBottom),
			},
			Position:      chunk.Position,
			WidthClass:    chunk.Width,
			AvgConfidence: chunk.AvgConfidence,
			BlockDetail:   map[string]interface{}{"blocks": blocks},
		})
	}

	return record
}

// embedSegments generates one embedding per segment for the similarity
// index. Returns nil (index skipped for the page) when embeddings are
// disabled, a segment has no text, or the API call fails; the index is
// advisory and never blocks persistence.
func (p *PageProcessor) embedSegments(ctx context.Context, jobID string, pageNumber int, payload layout.PagePayload) [][]float32 {
	if p.embeddingClient == nil || !p.storage.HasVectorIndex() || len(payload.Chunks) == 0 {
		return nil
	}

	texts := make([]string, 0, len(payload.Chunks))
	for _, c := range payload.Chunks {
		text := strings.TrimSpace(strings.Join(c.Texts, " "))
		if text == "" {
			p.logger.Debug("Skipping segment index: empty segment text",
				"jobId", jobID, "page", pageNumber, "segment", c.SegmentID)
			return nil
		}
		texts = append(texts, text)
	}

	embeddings, err := p.embeddingClient.GenerateEmbeddings(ctx, texts)
	if err != nil {
		p.logger.Warn("Segment embedding failed, skipping index",
			"jobId", jobID, "page", pageNumber, "error", err)
		return nil
	}
	return embeddings
}

// UpdateJobStatus writes job state to PostgreSQL. details carries the
// confidence, timing and counts the queue consumers extract from results
// and errors.
func (p *PageProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, details map[string]interface{}) error {
	update := &storage.JobUpdate{
		JobID:  jobID,
		Status: status,
	}

	if details != nil {
		if v, ok := details["confidence"].(float64); ok {
			update.Confidence = v
		}
		switch v := details["processingTime"].(type) {
		case int64:
			update.ProcessingTimeMs = v
		case float64:
			update.ProcessingTimeMs = int64(v)
		}
		if v, ok := details["pageCount"].(int); ok {
			update.PageCount = v
		}
		if v, ok := details["segmentCount"].(int); ok {
			update.SegmentCount = v
		}
		if v, ok := details["error_code"].(string); ok {
			update.ErrorCode = v
		}
		if v, ok := details["error"].(string); ok {
			update.ErrorMessage = v
		} else if v, ok := details["message"].(string); ok && update.ErrorCode != "" {
			update.ErrorMessage = v
		}
	}

	metadata := map[string]interface{}{"progress": progress}
	for k, v := range details {
		metadata[k] = v
	}
	update.Metadata = metadata

	return p.storage.UpdateJobStatus(ctx, update)
}
