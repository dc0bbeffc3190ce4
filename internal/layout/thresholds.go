/**
 * Adaptive threshold estimation.
 *
 * Analyzes the spacing patterns of an assembled page to derive the
 * tolerances used by line merging and block grouping. Percentile-based
 * statistics resist outliers from stray noise fragments; pages with too
 * few fragments fall back to fixed defaults calibrated for ~300 DPI.
 */

package layout

import "sort"

// Fixed fallback thresholds, pixel units at ~300 DPI.
const (
	defaultLineVerticalTolerance    = 50
	defaultLineHorizontalGap        = 100
	defaultBlockVerticalTolerance   = 70
	defaultBlockHorizontalTolerance = 50

	// Minimum fragment count for reliable page statistics.
	minFragmentsForStats = 10
)

// Thresholds holds the page-specific tolerances consumed by the line
// merger and the block/segment builders. Computed once per page and
// never mutated afterwards.
type Thresholds struct {
	LineVerticalTolerance    float64
	LineHorizontalGap        float64
	BlockVerticalTolerance   float64
	BlockHorizontalTolerance float64

	// Statistics the thresholds were derived from, kept for diagnostics.
	MedianHeight          float64
	MedianVerticalSpacing float64
	MedianCharWidth       float64
	LineSpacingRatio      float64
	FragmentsAnalyzed     int
	UsedDefaults          bool
}

func defaultThresholds(analyzed int) Thresholds {
	return Thresholds{
		LineVerticalTolerance:    defaultLineVerticalTolerance,
		LineHorizontalGap:        defaultLineHorizontalGap,
		BlockVerticalTolerance:   defaultBlockVerticalTolerance,
		BlockHorizontalTolerance: defaultBlockHorizontalTolerance,
		MedianHeight:             50,
		MedianVerticalSpacing:    75,
		MedianCharWidth:          50,
		LineSpacingRatio:         1.5,
		FragmentsAnalyzed:        analyzed,
		UsedDefaults:             true,
	}
}

// EstimateThresholds derives adaptive tolerances from the assembled,
// sorted fragment collection. Fragments must carry adjacency metrics.
func EstimateThresholds(frags []*Fragment) Thresholds {
	if len(frags) < minFragmentsForStats {
		return defaultThresholds(len(frags))
	}

	var verticalDiffs, heights, charWidths []float64
	for _, f := range frags {
		if f.HasPrev && f.PrevMidYDiff > 0 {
			verticalDiffs = append(verticalDiffs, float64(f.PrevMidYDiff))
		}
		if f.Height > 0 {
			heights = append(heights, float64(f.Height))
		}
		if f.CharacterWidth > 0 {
			charWidths = append(charWidths, float64(f.CharacterWidth))
		}
	}

	medianHeight := medianOr(heights, 50)
	p25Vertical := percentileOr(verticalDiffs, 25, medianHeight)
	medianVertical := medianOr(verticalDiffs, medianHeight*1.5)
	medianCharWidth := medianOr(charWidths, 50)

	lineSpacingRatio := 1.5
	if medianHeight > 0 {
		lineSpacingRatio = medianVertical / medianHeight
	}

	return Thresholds{
		// 80% of tight line spacing, floored at half the text height, so
		// fragments on one line merge despite slight vertical misalignment.
		LineVerticalTolerance: maxFloat(p25Vertical*0.8, medianHeight*0.5),

		// 2.5x character width covers a normal word space plus a small gap.
		LineHorizontalGap: medianCharWidth * 2.5,

		// Whichever is larger handles both normal and tight line spacing
		// without over-segmenting.
		BlockVerticalTolerance: maxFloat(medianVertical*1.2, medianHeight*1.4),

		BlockHorizontalTolerance: medianCharWidth * 1.5,

		MedianHeight:          medianHeight,
		MedianVerticalSpacing: medianVertical,
		MedianCharWidth:       medianCharWidth,
		LineSpacingRatio:      lineSpacingRatio,
		FragmentsAnalyzed:     len(frags),
		UsedDefaults:          false,
	}
}

// percentile computes the linearly interpolated p-th percentile of values,
// matching numpy's default interpolation.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func percentileOr(values []float64, p float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return percentile(values, p)
}

func medianOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return percentile(values, 50)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
