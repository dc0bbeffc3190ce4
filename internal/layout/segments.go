/**
 * Segment Builder
 *
 * Groups blocks into reading segments: the coarsest layout unit, one per
 * visual column run. The assignment rule mirrors the block builder one
 * level up, driven by per-block average line height and character width
 * instead of page-level thresholds.
 */

package layout

import "sort"

// Segment is a group of blocks read as one continuous unit. Geometry is
// the union of the member block boxes; Norm* edges are percentages of the
// page dimensions, filled by NormalizeSegments.
type Segment struct {
	ID     int
	Blocks []*Block
	StartX int
	EndX   int
	StartY int
	EndY   int
	MidX   int
	MidY   int
	Width  int
	Height int

	// MinMidYX is the smallest composite key across member lines, used to
	// rank segments in reading order.
	MinMidYX float64

	// Page-relative edges in percent (0-100), rounded.
	NormLeft   int
	NormRight  int
	NormTop    int
	NormBottom int
}

// Reference page dimensions when the caller supplies none: US Letter at
// 300 DPI.
const (
	ReferencePageWidth  = 2550
	ReferencePageHeight = 3300
)

func (s *Segment) lastBlock() *Block {
	return s.Blocks[len(s.Blocks)-1]
}

func (s *Segment) addBlock(b *Block) {
	s.Blocks = append(s.Blocks, b)
	s.StartX = minInt(s.StartX, b.StartX)
	s.EndX = maxInt(s.EndX, b.EndX)
	s.StartY = minInt(s.StartY, b.StartY)
	s.EndY = maxInt(s.EndY, b.EndY)
	if b.MinMidYX < s.MinMidYX {
		s.MinMidYX = b.MinMidYX
	}
}

func (s *Segment) finalize() {
	s.Width = s.EndX - s.StartX
	s.Height = s.EndY - s.StartY
	s.MidX = roundInt(float64(s.StartX+s.EndX) / 2)
	s.MidY = roundInt(float64(s.StartY+s.EndY) / 2)
}

func newSegment(b *Block) *Segment {
	return &Segment{
		Blocks:   []*Block{b},
		StartX:   b.StartX,
		EndX:     b.EndX,
		StartY:   b.StartY,
		EndY:     b.EndY,
		MinMidYX: b.MinMidYX,
	}
}

// blockFitsSegment reports whether block continues the segment anchored at
// last. The vertical gap between the boxes must stay under the average of
// the two blocks' line heights, and one of the three edge alignments must
// agree within the average character width. Unlike the block level, the
// left-edge test gets no extra slack here.
func blockFitsSegment(last, block *Block) bool {
	avgHeight := (last.AvgLineHeight + block.AvgLineHeight) / 2
	avgCharWidth := (last.AvgCharWidth + block.AvgCharWidth) / 2

	gap := float64(block.StartY - last.EndY)
	if gap >= avgHeight {
		return false
	}

	return float64(absInt(block.StartX-last.StartX)) < avgCharWidth ||
		float64(absInt(block.MidX-last.MidX)) < avgCharWidth ||
		float64(absInt(block.EndX-last.EndX)) < avgCharWidth
}

// BuildSegments groups blocks (ranked by reading order) into segments with
// first-fit assignment against each open segment's last block. Segments
// are returned ranked by smallest member composite key, ids 0..N-1.
func BuildSegments(blocks []*Block) []*Segment {
	var segments []*Segment

	for _, b := range blocks {
		placed := false
		for _, s := range segments {
			if blockFitsSegment(s.lastBlock(), b) {
				s.addBlock(b)
				placed = true
				break
			}
		}
		if !placed {
			segments = append(segments, newSegment(b))
		}
	}

	for _, s := range segments {
		s.finalize()
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].MinMidYX < segments[j].MinMidYX
	})
	for i, s := range segments {
		s.ID = i
	}
	return segments
}

// NormalizeSegments fills the percentage edges of every segment relative
// to the page dimensions. Non-positive dimensions fall back to the
// reference page size so degenerate metadata cannot divide by zero.
func NormalizeSegments(segments []*Segment, pageWidth, pageHeight int) {
	if pageWidth <= 0 {
		pageWidth = ReferencePageWidth
	}
	if pageHeight <= 0 {
		pageHeight = ReferencePageHeight
	}

	for _, s := range segments {
		s.NormLeft = roundInt(float64(s.StartX) / float64(pageWidth) * 100)
		s.NormRight = roundInt(float64(s.EndX) / float64(pageWidth) * 100)
		s.NormTop = roundInt(float64(s.StartY) / float64(pageHeight) * 100)
		s.NormBottom = roundInt(float64(s.EndY) / float64(pageHeight) * 100)
	}
}
