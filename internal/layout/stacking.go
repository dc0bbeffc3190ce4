/**
 * Column-Stacking Reorderer
 *
 * Final ordering pass in normalized (percentage) space. The composite-key
 * ranking interleaves side-by-side columns row by row; this pass pulls
 * each segment's vertical continuation directly after it, so a full left
 * column reads before the right column starts.
 */

package layout

// columnsAligned reports whether two segments share a column: left edges
// or right edges within tolerance, in normalized space.
func columnsAligned(a, b *Segment, tolerance int) bool {
	return absInt(a.NormLeft-b.NormLeft) <= tolerance ||
		absInt(a.NormRight-b.NormRight) <= tolerance
}

// verticallyClose reports whether candidate starts at or just below ref's
// bottom edge, in normalized space. Negative gaps (overlap) count as
// close.
func verticallyClose(ref, candidate *Segment, tolerance int) bool {
	return candidate.NormTop-ref.NormBottom <= tolerance
}

// StackColumns reorders segments so column continuations follow their
// predecessor immediately. Requires normalized edges.
//
// For each reference position the first later segment that is
// column-aligned and vertically close is moved to the slot directly after
// the reference. The scan then advances one position, so the moved
// segment becomes the next reference and whole column chains are pulled
// together link by link. Ids are renumbered 0..N-1 to reflect the final
// order.
func StackColumns(segments []*Segment, alignTolerance, gapTolerance int) []*Segment {
	out := append([]*Segment(nil), segments...)

	for i := 0; i < len(out)-1; i++ {
		ref := out[i]
		for j := i + 1; j < len(out); j++ {
			if !columnsAligned(ref, out[j], alignTolerance) ||
				!verticallyClose(ref, out[j], gapTolerance) {
				continue
			}
			if j > i+1 {
				moved := out[j]
				copy(out[i+2:j+1], out[i+1:j])
				out[i+1] = moved
			}
			break
		}
	}

	for i, s := range out {
		s.ID = i
	}
	return out
}
