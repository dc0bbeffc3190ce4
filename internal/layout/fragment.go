/**
 * Layout primitives for reading-order reconstruction.
 *
 * A Fragment is an atomic OCR text span with a page-space bounding box.
 * Fragments are merged into visual lines, lines are grouped into
 * column-aligned blocks, and blocks into reading segments.
 */

package layout

import (
	"math"
	"sort"
)

// Quadrant identifies which page tile a fragment was detected in.
type Quadrant string

const (
	QuadrantTopLeft     Quadrant = "top_left"
	QuadrantTopRight    Quadrant = "top_right"
	QuadrantBottomLeft  Quadrant = "bottom_left"
	QuadrantBottomRight Quadrant = "bottom_right"
)

// Fragment is an atomic OCR text span in page coordinates. After line
// merging a Fragment represents a full visual line; the shape is identical,
// only the granularity changes.
type Fragment struct {
	Text       string
	StartX     int
	EndX       int
	StartY     int
	EndY       int
	MidX       int
	MidY       int
	MidYX      float64 // composite reading key: mid_y + start_x/50
	Width      int
	Height     int
	Confidence float64
	CharCount  int
	WordCount  int
	// CharacterWidth is the average pixel width per character.
	// Zero means undefined (CharCount was zero).
	CharacterWidth int
	SourceTile     Quadrant

	// Relationship to the immediately preceding fragment in reading-key
	// order. Undefined (HasPrev=false) for the first element; recomputed
	// after every structural change.
	HasPrev           bool
	PrevMidYDiff      int
	PrevHorizontalGap int
	PrevVerticalGap   int
	PrevOverlapX      int
	PrevOverlapY      int
	PrevDistance      int
}

// roundInt rounds half away from zero, matching the coordinate rounding
// used everywhere in the pipeline.
func roundInt(v float64) int {
	return int(math.Round(v))
}

// readingKey computes the composite sort key mid_y + start_x/50. The /50
// scaling makes start_x a tiebreaker that tolerates small vertical jitter.
func readingKey(midY, startX int) float64 {
	return float64(midY) + float64(startX)/50.0
}

// refresh recomputes all derived geometry from the bounding box and counts.
func (f *Fragment) refresh() {
	f.Width = f.EndX - f.StartX
	f.Height = f.EndY - f.StartY
	f.MidX = roundInt(float64(f.StartX+f.EndX) / 2)
	f.MidY = roundInt(float64(f.StartY+f.EndY) / 2)
	f.MidYX = readingKey(f.MidY, f.StartX)
	if f.CharCount > 0 {
		f.CharacterWidth = roundInt(float64(f.Width) / float64(f.CharCount))
	} else {
		f.CharacterWidth = 0
	}
}

// sortByReadingKey stable-sorts fragments ascending by composite key.
// Stability keeps insertion order as the tie break, which downstream
// stages rely on for determinism.
func sortByReadingKey(frags []*Fragment) {
	sort.SliceStable(frags, func(i, j int) bool {
		return frags[i].MidYX < frags[j].MidYX
	})
}

// computeAdjacency fills the prev_* relationship fields by comparing each
// fragment with its predecessor in the current order. The first fragment
// has no relationships.
func computeAdjacency(frags []*Fragment) {
	for i, f := range frags {
		if i == 0 {
			f.HasPrev = false
			f.PrevMidYDiff = 0
			f.PrevHorizontalGap = 0
			f.PrevVerticalGap = 0
			f.PrevOverlapX = 0
			f.PrevOverlapY = 0
			f.PrevDistance = 0
			continue
		}
		prev := frags[i-1]
		f.HasPrev = true
		f.PrevMidYDiff = f.MidY - prev.MidY
		f.PrevHorizontalGap = f.StartX - prev.EndX
		f.PrevVerticalGap = f.StartY - prev.EndY
		f.PrevOverlapX = minInt(f.EndX, prev.EndX) - maxInt(f.StartX, prev.StartX)
		f.PrevOverlapY = minInt(f.EndY, prev.EndY) - maxInt(f.StartY, prev.StartY)
		dx := float64(f.MidX - prev.MidX)
		dy := float64(f.MidY - prev.MidY)
		f.PrevDistance = roundInt(math.Sqrt(dx*dx + dy*dy))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
