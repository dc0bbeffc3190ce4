/**
 * Block Builder
 *
 * Groups merged lines into visually contiguous blocks: runs of lines with
 * compatible vertical spacing and a shared left edge, center, or right
 * edge. Assignment is first-fit against each open block's most recent
 * line, in block creation order.
 */

package layout

import "sort"

// Block is a group of consecutive visual lines forming one paragraph-like
// unit. Geometry is the union of the member line boxes.
type Block struct {
	ID     int
	Lines  []*Fragment
	StartX int
	EndX   int
	StartY int
	EndY   int
	MidX   int
	MidY   int
	Width  int
	Height int

	// MinMidYX is the smallest member composite key, used to rank blocks
	// in reading order.
	MinMidYX float64

	// Per-block averages consumed by the segment builder. Fall back to
	// 50 / 20 when no member carries usable data.
	AvgLineHeight float64
	AvgCharWidth  float64
}

const (
	blockAvgHeightFallback    = 50
	blockAvgCharWidthFallback = 20
)

// lastLine returns the most recently added member, the anchor for
// first-fit comparison.
func (b *Block) lastLine() *Fragment {
	return b.Lines[len(b.Lines)-1]
}

// addLine appends a line and extends the block geometry.
func (b *Block) addLine(f *Fragment) {
	b.Lines = append(b.Lines, f)
	b.StartX = minInt(b.StartX, f.StartX)
	b.EndX = maxInt(b.EndX, f.EndX)
	b.StartY = minInt(b.StartY, f.StartY)
	b.EndY = maxInt(b.EndY, f.EndY)
	if f.MidYX < b.MinMidYX {
		b.MinMidYX = f.MidYX
	}
}

// finalize computes the derived geometry and member averages once all
// lines are assigned.
func (b *Block) finalize() {
	b.Width = b.EndX - b.StartX
	b.Height = b.EndY - b.StartY
	b.MidX = roundInt(float64(b.StartX+b.EndX) / 2)
	b.MidY = roundInt(float64(b.StartY+b.EndY) / 2)

	var heightSum, cwSum float64
	heightN, cwN := 0, 0
	for _, l := range b.Lines {
		if l.Height > 0 {
			heightSum += float64(l.Height)
			heightN++
		}
		if l.CharacterWidth > 0 {
			cwSum += float64(l.CharacterWidth)
			cwN++
		}
	}
	if heightN > 0 {
		b.AvgLineHeight = heightSum / float64(heightN)
	} else {
		b.AvgLineHeight = blockAvgHeightFallback
	}
	if cwN > 0 {
		b.AvgCharWidth = cwSum / float64(cwN)
	} else {
		b.AvgCharWidth = blockAvgCharWidthFallback
	}
}

func newBlock(f *Fragment) *Block {
	b := &Block{
		Lines:    []*Fragment{f},
		StartX:   f.StartX,
		EndX:     f.EndX,
		StartY:   f.StartY,
		EndY:     f.EndY,
		MinMidYX: f.MidYX,
	}
	return b
}

// lineFitsBlock reports whether line continues the block anchored at last.
// Vertical proximity is mandatory; horizontal alignment passes when any of
// left edges (2x tolerance, to absorb indents), centers, or right edges
// agree within tolerance.
func lineFitsBlock(last, line *Fragment, th *Thresholds) bool {
	verticalTolerance := float64(defaultBlockVerticalTolerance)
	horizontalTolerance := float64(defaultBlockHorizontalTolerance)
	if th != nil {
		verticalTolerance = th.BlockVerticalTolerance
		horizontalTolerance = th.BlockHorizontalTolerance
	}

	if float64(absInt(line.MidY-last.MidY)) >= verticalTolerance {
		return false
	}

	return float64(absInt(line.StartX-last.StartX)) < horizontalTolerance*2 ||
		float64(absInt(line.MidX-last.MidX)) < horizontalTolerance ||
		float64(absInt(line.EndX-last.EndX)) < horizontalTolerance
}

// BuildBlocks groups lines (sorted by composite key) into blocks.
// Each line is assigned to the first existing block, in creation order,
// whose last line it continues; otherwise it opens a new block. Blocks are
// returned ranked by their smallest member composite key, ids 0..N-1.
func BuildBlocks(lines []*Fragment, th *Thresholds) []*Block {
	var blocks []*Block

	for _, line := range lines {
		placed := false
		for _, b := range blocks {
			if lineFitsBlock(b.lastLine(), line, th) {
				b.addLine(line)
				placed = true
				break
			}
		}
		if !placed {
			blocks = append(blocks, newBlock(line))
		}
	}

	for _, b := range blocks {
		b.finalize()
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].MinMidYX < blocks[j].MinMidYX
	})
	for i, b := range blocks {
		b.ID = i
	}
	return blocks
}
