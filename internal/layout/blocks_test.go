/**
 * Block Builder Tests
 *
 * Validates first-fit grouping of lines into column blocks and the
 * reading-order ranking of the result.
 */

package layout

import "testing"

func TestBuildBlocksGroupsAlignedColumn(t *testing.T) {
	// Three left-aligned lines with 60px vertical mid spacing; one distant
	// line on the right half of the page.
	lines := prepareFragments([]*Fragment{
		buildFragment("line one", 100, 700, 0, 40, 0.9),
		buildFragment("line two", 100, 690, 60, 100, 0.9),
		buildFragment("line three", 100, 710, 120, 160, 0.9),
		buildFragment("sidebar", 1400, 1900, 0, 40, 0.9),
	})

	th := defaultThresholds(len(lines))
	blocks := BuildBlocks(lines, &th)

	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	left := blocks[0]
	if len(left.Lines) != 3 {
		t.Fatalf("left block has %d lines, want 3", len(left.Lines))
	}
	if left.StartX != 100 || left.EndX != 710 || left.StartY != 0 || left.EndY != 160 {
		t.Errorf("left block box = [%d,%d]x[%d,%d], want [100,710]x[0,160]",
			left.StartX, left.EndX, left.StartY, left.EndY)
	}
	if blocks[1].Lines[0].Text != "sidebar" {
		t.Errorf("second block = %q, want sidebar", blocks[1].Lines[0].Text)
	}
	for i, b := range blocks {
		if b.ID != i {
			t.Errorf("block %d has id %d", i, b.ID)
		}
	}
}

func TestBlockAssignmentComparesLastLineOnly(t *testing.T) {
	// The third line aligns with the block's first line but sits too far
	// below its last line, so it must open a new block: membership is
	// always tested against the most recent member.
	lines := prepareFragments([]*Fragment{
		buildFragment("a", 100, 300, 0, 40, 0.9),
		buildFragment("b", 100, 300, 60, 100, 0.9),
		buildFragment("c", 100, 300, 400, 440, 0.9),
	})

	th := defaultThresholds(len(lines))
	blocks := BuildBlocks(lines, &th)

	if len(blocks) != 2 {
		t.Fatalf("expected the distant line to start a new block, got %d blocks", len(blocks))
	}
	if len(blocks[0].Lines) != 2 || len(blocks[1].Lines) != 1 {
		t.Errorf("block sizes = %d/%d, want 2/1", len(blocks[0].Lines), len(blocks[1].Lines))
	}
}

func TestBlockAlignmentAlternatives(t *testing.T) {
	th := defaultThresholds(0) // blockVert 70, blockHoriz 50

	base := buildFragment("base", 100, 500, 0, 40, 0.9)
	testCases := []struct {
		name string
		line *Fragment
		fits bool
	}{
		{"left edges aligned", buildFragment("l", 110, 900, 60, 100, 0.9), true},
		{"centers aligned", buildFragment("c", 160, 450, 60, 100, 0.9), true},
		{"right edges aligned", buildFragment("r", 350, 510, 60, 100, 0.9), true},
		{"no edge aligned", buildFragment("n", 700, 1400, 60, 100, 0.9), false},
		{"aligned but too far down", buildFragment("v", 100, 500, 200, 240, 0.9), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := lineFitsBlock(base, tc.line, &th); got != tc.fits {
				t.Errorf("lineFitsBlock = %v, want %v", got, tc.fits)
			}
		})
	}
}

func TestBlockAveragesWithFallbacks(t *testing.T) {
	th := defaultThresholds(0)

	blocks := BuildBlocks(prepareFragments([]*Fragment{
		buildFragment("abcde", 100, 200, 0, 40, 0.9),
	}), &th)
	if b := blocks[0]; !almostEqual(b.AvgLineHeight, 40) || !almostEqual(b.AvgCharWidth, 20) {
		t.Errorf("averages = %v/%v, want 40/20", b.AvgLineHeight, b.AvgCharWidth)
	}

	// Zero-height, zero-char-count line: both averages fall back.
	degenerate := &Fragment{Text: "", StartX: 100, EndX: 100, StartY: 50, EndY: 50}
	degenerate.refresh()
	blocks = BuildBlocks([]*Fragment{degenerate}, &th)
	if b := blocks[0]; !almostEqual(b.AvgLineHeight, blockAvgHeightFallback) ||
		!almostEqual(b.AvgCharWidth, blockAvgCharWidthFallback) {
		t.Errorf("fallback averages = %v/%v, want %d/%d",
			b.AvgLineHeight, b.AvgCharWidth, blockAvgHeightFallback, blockAvgCharWidthFallback)
	}
}
