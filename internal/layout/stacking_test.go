/**
 * Column-Stacking Reorderer Tests
 *
 * Validates that split columns are pulled back together: a segment's
 * vertical continuation moves directly after it, chains of stacked
 * segments collapse link by link, and ids reflect the final order.
 */

package layout

import "testing"

func normSegment(id, left, right, top, bottom int) *Segment {
	return &Segment{
		ID:         id,
		NormLeft:   left,
		NormRight:  right,
		NormTop:    top,
		NormBottom: bottom,
	}
}

func TestStackingPullsColumnContinuationForward(t *testing.T) {
	// Segment 1's bottom half ranks after an interleaved right-hand
	// segment; the reorderer must move it directly after its top half.
	top := normSegment(0, 10, 45, 10, 30)
	interloper := normSegment(1, 55, 90, 10, 30)
	bottom := normSegment(2, 11, 44, 32, 50)

	out := StackColumns([]*Segment{top, interloper, bottom}, 3, 3)

	want := []*Segment{top, bottom, interloper}
	for i, s := range out {
		if s != want[i] {
			t.Fatalf("position %d: got segment at (%d,%d), want (%d,%d)",
				i, s.NormLeft, s.NormTop, want[i].NormLeft, want[i].NormTop)
		}
		if s.ID != i {
			t.Errorf("position %d: id = %d after renumbering", i, s.ID)
		}
	}
}

func TestStackingCollapsesChainOfThree(t *testing.T) {
	colTop := normSegment(0, 10, 45, 10, 30)
	right := normSegment(1, 55, 90, 10, 30)
	colMid := normSegment(2, 10, 45, 32, 50)
	colBottom := normSegment(3, 10, 45, 52, 70)

	out := StackColumns([]*Segment{colTop, right, colMid, colBottom}, 3, 3)

	want := []*Segment{colTop, colMid, colBottom, right}
	for i, s := range out {
		if s != want[i] {
			t.Fatalf("position %d: got segment top=%d, want top=%d", i, s.NormTop, want[i].NormTop)
		}
	}
}

func TestStackingLeavesUnrelatedOrderAlone(t *testing.T) {
	a := normSegment(0, 10, 45, 10, 30)
	b := normSegment(1, 55, 90, 40, 60)

	out := StackColumns([]*Segment{a, b}, 3, 3)
	if out[0] != a || out[1] != b {
		t.Error("segments with no column relationship must keep their rank order")
	}
}

func TestColumnAlignmentPredicates(t *testing.T) {
	ref := normSegment(0, 10, 45, 10, 30)
	testCases := []struct {
		name    string
		seg     *Segment
		aligned bool
		close   bool
	}{
		{"left edges match", normSegment(1, 12, 60, 32, 50), true, true},
		{"right edges match", normSegment(1, 20, 44, 32, 50), true, true},
		{"neither edge", normSegment(1, 20, 60, 32, 50), false, true},
		{"too far below", normSegment(1, 10, 45, 40, 60), true, false},
		{"overlapping counts as close", normSegment(1, 10, 45, 25, 45), true, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := columnsAligned(ref, tc.seg, 3); got != tc.aligned {
				t.Errorf("columnsAligned = %v, want %v", got, tc.aligned)
			}
			if got := verticallyClose(ref, tc.seg, 3); got != tc.close {
				t.Errorf("verticallyClose = %v, want %v", got, tc.close)
			}
		})
	}
}

func TestStackingDegenerateInputs(t *testing.T) {
	if out := StackColumns(nil, 3, 3); len(out) != 0 {
		t.Errorf("nil input: got %d segments", len(out))
	}
	single := []*Segment{normSegment(5, 10, 45, 10, 30)}
	out := StackColumns(single, 3, 3)
	if len(out) != 1 || out[0].ID != 0 {
		t.Errorf("single segment should survive with id renumbered to 0, got id %d", out[0].ID)
	}
}
