/**
 * Line Merger
 *
 * Fuses fragments that sit on the same visual line into single line
 * records. Uses a bounded lookahead window with restart-on-merge instead
 * of full restarts, keeping the pass near-linear: O(N * K) with K the
 * window size, versus O(N^2) for the naive restart variant.
 */

package layout

// DefaultLookahead is the number of forward candidates examined per merge
// decision.
const DefaultLookahead = 20

// Char width substitutes when a fragment has no usable character width.
const (
	adaptiveCharWidthFallback = 36
	legacyCharWidthFallback   = 50
)

// shouldMergeLines reports whether candidate belongs on the same visual
// line as ref. With adaptive thresholds the horizontal gap limit is local:
// 3x the average character width of the two candidates, so headers and
// captions with larger glyphs get a proportionally permissive limit. The
// legacy path (no thresholds) uses 2x the smaller character width.
func shouldMergeLines(ref, candidate *Fragment, th *Thresholds) bool {
	var verticalTolerance, gapThreshold float64

	if th != nil {
		verticalTolerance = th.LineVerticalTolerance

		refCW := float64(ref.CharacterWidth)
		if refCW <= 0 {
			refCW = adaptiveCharWidthFallback
		}
		curCW := float64(candidate.CharacterWidth)
		if curCW <= 0 {
			curCW = adaptiveCharWidthFallback
		}
		gapThreshold = (refCW + curCW) / 2 * 3.0
	} else {
		refCW := float64(ref.CharacterWidth)
		if refCW <= 0 {
			refCW = legacyCharWidthFallback
		}
		curCW := float64(candidate.CharacterWidth)
		if curCW <= 0 {
			curCW = legacyCharWidthFallback
		}
		verticalTolerance = minFloat(refCW, curCW)
		gapThreshold = 2 * minFloat(refCW, curCW)
	}

	if float64(absInt(candidate.MidY-ref.MidY)) >= verticalTolerance {
		return false
	}

	// Horizontal gap between the boxes: whichever is further left has its
	// right edge measured against the other's left edge.
	var gap int
	if candidate.StartX < ref.StartX {
		gap = ref.StartX - candidate.EndX
	} else {
		gap = candidate.StartX - ref.EndX
	}

	return float64(gap) < gapThreshold
}

// mergeTwoLines combines two fragments into one line: text joined with a
// single space in left-to-right order, union bounding box, summed counts
// (plus one for the inserted space), maximum confidence.
func mergeTwoLines(a, b *Fragment) *Fragment {
	first, second := a, b
	if b.StartX < a.StartX {
		first, second = b, a
	}

	merged := &Fragment{
		Text:       first.Text + " " + second.Text,
		StartX:     minInt(first.StartX, second.StartX),
		EndX:       maxInt(first.EndX, second.EndX),
		StartY:     minInt(first.StartY, second.StartY),
		EndY:       maxInt(first.EndY, second.EndY),
		Confidence: maxFloat(first.Confidence, second.Confidence),
		CharCount:  first.CharCount + second.CharCount + 1,
		WordCount:  first.WordCount + second.WordCount,
		SourceTile: first.SourceTile,
	}
	merged.refresh()
	return merged
}

// MergeLines fuses same-line fragments into line records. Fragments must
// arrive sorted by composite key. For each reference position the next
// lookahead fragments are scanned; on a merge the scan restarts at the
// same reference (a merge may enable further merges), otherwise the
// reference advances. The result is re-sorted by composite key (a merge
// can shift it) with adjacency metrics recomputed.
//
// Collections with fewer than two fragments pass through unchanged.
func MergeLines(frags []*Fragment, th *Thresholds, lookahead int) []*Fragment {
	if len(frags) < 2 {
		return frags
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}

	lines := append([]*Fragment(nil), frags...)

	i := 0
	for i < len(lines) {
		ref := lines[i]

		merged := true
		for merged {
			merged = false

			limit := minInt(i+1+lookahead, len(lines))
			for j := i + 1; j < limit; j++ {
				if !shouldMergeLines(ref, lines[j], th) {
					continue
				}

				ref = mergeTwoLines(ref, lines[j])
				lines[i] = ref
				lines = append(lines[:j], lines[j+1:]...)

				merged = true
				break // restart the lookahead window from the same reference
			}
		}

		i++
	}

	sortByReadingKey(lines)
	computeAdjacency(lines)
	return lines
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
