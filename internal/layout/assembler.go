/**
 * Fragment Assembler
 *
 * Stitches the four tile-local OCR outputs into one page-space fragment
 * collection. Tiles are rendered at 2x upscale for OCR accuracy, so the
 * assembler shifts right/bottom tiles into a continuous coordinate space,
 * filters low-confidence detections, then halves every coordinate back to
 * the original screenshot space.
 */

package layout

import (
	"strings"
	"unicode/utf8"
)

// Word is a raw OCR detection in tile-local pixel coordinates of the
// 2x-upscaled render. BBox holds the four corners in any order.
type Word struct {
	Text       string
	BBox       [4][2]int
	Confidence float64
}

// Tile is one quadrant's OCR output plus the rendered (upscaled) tile
// dimensions used for coordinate stitching.
type Tile struct {
	Quadrant Quadrant
	Width    int
	Height   int
	Words    []Word
}

// AssembleResult carries the assembled fragments plus filter diagnostics.
type AssembleResult struct {
	Fragments []*Fragment
	Filtered  int
}

// fragmentFromWord converts a raw OCR word into a Fragment with an
// axis-aligned bounding box and derived metrics.
func fragmentFromWord(w Word, tile Quadrant) *Fragment {
	minX, minY := w.BBox[0][0], w.BBox[0][1]
	maxX, maxY := minX, minY
	for _, p := range w.BBox[1:] {
		minX = minInt(minX, p[0])
		maxX = maxInt(maxX, p[0])
		minY = minInt(minY, p[1])
		maxY = maxInt(maxY, p[1])
	}

	f := &Fragment{
		Text:       w.Text,
		StartX:     minX,
		EndX:       maxX,
		StartY:     minY,
		EndY:       maxY,
		Confidence: w.Confidence,
		CharCount:  utf8.RuneCountInString(w.Text),
		WordCount:  len(strings.Fields(w.Text)),
		SourceTile: tile,
	}
	f.refresh()
	return f
}

// Assemble merges the four quadrant tiles into a single sorted fragment
// collection in original-screenshot pixel space.
//
// Right-hand tiles have the left tile's width added to every x coordinate
// and bottom tiles the top tile's height added to every y coordinate, which
// produces one continuous page coordinate system in the upscaled space.
// Fragments below minConfidence are discarded (counted, not an error).
// A tile with zero words contributes nothing; zero surviving fragments
// yields an empty result.
func Assemble(tiles []Tile, minConfidence float64) AssembleResult {
	leftWidth, topHeight := tileOffsets(tiles)

	var frags []*Fragment
	filtered := 0

	for _, tile := range tiles {
		shiftX := 0
		shiftY := 0
		if tile.Quadrant == QuadrantTopRight || tile.Quadrant == QuadrantBottomRight {
			shiftX = leftWidth
		}
		if tile.Quadrant == QuadrantBottomLeft || tile.Quadrant == QuadrantBottomRight {
			shiftY = topHeight
		}

		for _, w := range tile.Words {
			if w.Confidence < minConfidence {
				filtered++
				continue
			}
			f := fragmentFromWord(w, tile.Quadrant)
			f.StartX += shiftX
			f.EndX += shiftX
			f.StartY += shiftY
			f.EndY += shiftY
			f.refresh()
			frags = append(frags, f)
		}
	}

	// Undo the 2x OCR upscale so output is in original screenshot space.
	for _, f := range frags {
		f.StartX = roundInt(float64(f.StartX) / 2)
		f.EndX = roundInt(float64(f.EndX) / 2)
		f.StartY = roundInt(float64(f.StartY) / 2)
		f.EndY = roundInt(float64(f.EndY) / 2)
		f.refresh()
	}

	sortByReadingKey(frags)
	computeAdjacency(frags)

	return AssembleResult{Fragments: frags, Filtered: filtered}
}

// tileOffsets returns the upscaled width of the left column and height of
// the top row, preferring the top-left tile as the reference.
func tileOffsets(tiles []Tile) (leftWidth, topHeight int) {
	for _, t := range tiles {
		switch t.Quadrant {
		case QuadrantTopLeft:
			leftWidth = t.Width
			topHeight = t.Height
		case QuadrantBottomLeft:
			if leftWidth == 0 {
				leftWidth = t.Width
			}
		case QuadrantTopRight:
			if topHeight == 0 {
				topHeight = t.Height
			}
		}
	}
	return leftWidth, topHeight
}
