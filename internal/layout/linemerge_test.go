/**
 * Line Merger Tests
 *
 * Validates the merge predicate and the bounded-lookahead merge loop:
 * - Same-line fragments joined with a single space, left to right
 * - Large horizontal gaps kept separate
 * - Idempotence: re-running the merger produces no further merges
 */

package layout

import "testing"

// buildFragment creates a fragment with derived geometry filled in.
func buildFragment(text string, startX, endX, startY, endY int, confidence float64) *Fragment {
	f := &Fragment{
		Text:       text,
		StartX:     startX,
		EndX:       endX,
		StartY:     startY,
		EndY:       endY,
		Confidence: confidence,
		CharCount:  len([]rune(text)),
		WordCount:  1,
		SourceTile: QuadrantTopLeft,
	}
	f.refresh()
	return f
}

// prepareFragments sorts and fills adjacency, matching assembler output.
func prepareFragments(frags []*Fragment) []*Fragment {
	sortByReadingKey(frags)
	computeAdjacency(frags)
	return frags
}

func TestMergeAdjacentFragmentsOnSameLine(t *testing.T) {
	frags := prepareFragments([]*Fragment{
		buildFragment("Hello", 100, 200, 50, 70, 0.90),
		buildFragment("World", 210, 300, 52, 72, 0.85),
	})

	th := defaultThresholds(len(frags))
	lines := MergeLines(frags, &th, DefaultLookahead)

	if len(lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(lines))
	}

	line := lines[0]
	if line.Text != "Hello World" {
		t.Errorf("merged text = %q, want %q", line.Text, "Hello World")
	}
	if line.StartX != 100 || line.EndX != 300 || line.StartY != 50 || line.EndY != 72 {
		t.Errorf("merged box = [%d,%d]x[%d,%d], want [100,300]x[50,72]",
			line.StartX, line.EndX, line.StartY, line.EndY)
	}
	if line.Confidence != 0.90 {
		t.Errorf("merged confidence = %v, want max of inputs 0.90", line.Confidence)
	}
	if line.CharCount != 11 {
		t.Errorf("merged char count = %d, want 11 (5+5+1 for the space)", line.CharCount)
	}
}

func TestNoMergeAcrossLargeGap(t *testing.T) {
	frags := prepareFragments([]*Fragment{
		buildFragment("Hello", 100, 200, 50, 70, 0.90),
		buildFragment("World", 500, 590, 52, 72, 0.85),
	})

	th := defaultThresholds(len(frags))
	lines := MergeLines(frags, &th, DefaultLookahead)

	if len(lines) != 2 {
		t.Fatalf("expected 2 separate lines across a 300px gap, got %d", len(lines))
	}
	if lines[0].Text != "Hello" || lines[1].Text != "World" {
		t.Errorf("line order = [%q, %q], want [Hello, World]", lines[0].Text, lines[1].Text)
	}
}

func TestMergeJoinsTextInLeftToRightOrder(t *testing.T) {
	// "World" carries the smaller composite key here (lower mid_y), so the
	// merger sees it first, but the joined text must still read left to
	// right by start_x.
	frags := prepareFragments([]*Fragment{
		buildFragment("World", 210, 300, 44, 64, 0.85),
		buildFragment("Hello", 100, 200, 50, 70, 0.90),
	})

	th := defaultThresholds(len(frags))
	lines := MergeLines(frags, &th, DefaultLookahead)

	if len(lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(lines))
	}
	if lines[0].Text != "Hello World" {
		t.Errorf("merged text = %q, want %q", lines[0].Text, "Hello World")
	}
}

func TestMergeChainCollapsesThreeFragments(t *testing.T) {
	frags := prepareFragments([]*Fragment{
		buildFragment("one", 100, 160, 50, 70, 0.9),
		buildFragment("two", 170, 230, 50, 70, 0.9),
		buildFragment("three", 240, 340, 50, 70, 0.9),
	})

	th := defaultThresholds(len(frags))
	lines := MergeLines(frags, &th, DefaultLookahead)

	if len(lines) != 1 {
		t.Fatalf("expected chain of 3 to collapse into 1 line, got %d", len(lines))
	}
	if lines[0].Text != "one two three" {
		t.Errorf("merged text = %q, want %q", lines[0].Text, "one two three")
	}
}

func TestMergerIdempotence(t *testing.T) {
	frags := prepareFragments([]*Fragment{
		buildFragment("alpha", 100, 400, 100, 140, 0.9),
		buildFragment("beta", 420, 700, 100, 140, 0.9),
		buildFragment("gamma", 100, 400, 300, 340, 0.9),
		buildFragment("delta", 1400, 1700, 100, 140, 0.9),
	})

	th := defaultThresholds(len(frags))
	once := MergeLines(frags, &th, DefaultLookahead)
	twice := MergeLines(once, &th, DefaultLookahead)

	if len(twice) != len(once) {
		t.Fatalf("second merge pass changed line count: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Text != twice[i].Text {
			t.Errorf("line %d changed on re-merge: %q -> %q", i, once[i].Text, twice[i].Text)
		}
	}
}

func TestMergePassthroughForDegenerateInput(t *testing.T) {
	th := defaultThresholds(0)

	if got := MergeLines(nil, &th, DefaultLookahead); len(got) != 0 {
		t.Errorf("nil input: got %d lines, want 0", len(got))
	}

	single := prepareFragments([]*Fragment{buildFragment("only", 10, 50, 10, 30, 0.9)})
	if got := MergeLines(single, &th, DefaultLookahead); len(got) != 1 || got[0].Text != "only" {
		t.Errorf("single fragment should pass through unchanged")
	}
}

func TestLookaheadBoundsTheScan(t *testing.T) {
	// 5 fragments on one visual line; with lookahead 1 each reference can
	// only see its immediate successor, which is still enough because every
	// merge restarts the window at the same reference.
	var frags []*Fragment
	for i := 0; i < 5; i++ {
		x := 100 + i*110
		frags = append(frags, buildFragment("w", x, x+60, 50, 70, 0.9))
	}
	frags = prepareFragments(frags)

	th := defaultThresholds(len(frags))
	lines := MergeLines(frags, &th, 1)

	if len(lines) != 1 {
		t.Fatalf("expected restart-on-merge to collapse the row even with lookahead 1, got %d lines", len(lines))
	}
}
