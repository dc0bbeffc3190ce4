/**
 * Tesseract Tile OCR
 *
 * Word-level OCR over quadrant tiles using Tesseract. Each tile is the
 * 2x-upscaled render of one page quadrant; the recognizer emits words with
 * tile-local bounding boxes which the layout assembler stitches back into
 * page space.
 */

package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/readingorder-worker/internal/layout"
	"github.com/adverant/nexus/readingorder-worker/internal/logging"
	"github.com/otiai10/gosseract/v2"
)

// TileImage is one rendered quadrant awaiting OCR.
type TileImage struct {
	Quadrant layout.Quadrant
	Image    []byte
	Width    int
	Height   int
}

// Config holds Tesseract configuration
type Config struct {
	TesseractPath string
	Languages     []string
}

// TileOCR performs word-level recognition on quadrant tiles.
type TileOCR struct {
	tesseractPath string
	languages     []string
	logger        *logging.Logger
}

// NewTileOCR creates a new tile recognizer.
func NewTileOCR(cfg *Config) (*TileOCR, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "/usr/bin/tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}

	return &TileOCR{
		tesseractPath: cfg.TesseractPath,
		languages:     cfg.Languages,
		logger:        logging.NewLogger("TileOCR"),
	}, nil
}

// RecognizeTile runs word-level OCR on a single tile. Word confidences are
// normalized from Tesseract's 0-100 scale to 0-1. A tile with no detected
// words yields an empty word list, not an error.
func (t *TileOCR) RecognizeTile(ctx context.Context, tile TileImage) (layout.Tile, error) {
	out := layout.Tile{
		Quadrant: tile.Quadrant,
		Width:    tile.Width,
		Height:   tile.Height,
	}

	if len(tile.Image) == 0 {
		return out, fmt.Errorf("tile %s: empty image", tile.Quadrant)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return out, fmt.Errorf("tile %s: failed to set language: %w", tile.Quadrant, err)
	}

	if err := client.SetImageFromBytes(tile.Image); err != nil {
		return out, fmt.Errorf("tile %s: failed to set image: %w", tile.Quadrant, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return out, fmt.Errorf("tile %s: word recognition failed: %w", tile.Quadrant, err)
	}

	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		min, max := box.Box.Min, box.Box.Max
		out.Words = append(out.Words, layout.Word{
			Text: box.Word,
			BBox: [4][2]int{
				{min.X, min.Y},
				{max.X, min.Y},
				{max.X, max.Y},
				{min.X, max.Y},
			},
			Confidence: box.Confidence / 100,
		})
	}

	t.logger.Debug("Tile recognized",
		"quadrant", tile.Quadrant,
		"words", len(out.Words),
		"duration", time.Since(startTime))

	return out, nil
}

// RecognizePage runs OCR over all quadrant tiles of one page, sequentially.
// Tiles are independent, but a single Tesseract client is not reusable
// across goroutines; page-level parallelism lives in the processor.
func (t *TileOCR) RecognizePage(ctx context.Context, tiles []TileImage) ([]layout.Tile, error) {
	out := make([]layout.Tile, 0, len(tiles))
	for _, tile := range tiles {
		recognized, err := t.RecognizeTile(ctx, tile)
		if err != nil {
			return nil, err
		}
		out = append(out, recognized)
	}
	return out, nil
}
