/**
 * Page pipeline
 *
 * Runs the full reading-order reconstruction for one page: assembly,
 * threshold estimation, line merging, block and segment grouping,
 * normalization, column stacking. Pure and deterministic; identical input
 * always yields identical output.
 */

package layout

// Config carries the tunable pipeline parameters. Zero values are
// replaced by the documented defaults, so Config{} behaves the same as
// DefaultConfig().
type Config struct {
	// MinConfidence is the OCR confidence floor; detections below it are
	// discarded during assembly.
	MinConfidence float64

	// MergeLookahead bounds the line merger's forward scan window.
	MergeLookahead int

	// ColumnAlignTolerance and VerticalGapTolerance drive the column
	// stacking pass, in normalized percentage units.
	ColumnAlignTolerance int
	VerticalGapTolerance int

	// PageWidth and PageHeight are the reference dimensions used for edge
	// normalization, in original screenshot pixels.
	PageWidth  int
	PageHeight int
}

// DefaultConfig returns the calibrated defaults for 300 DPI pages.
func DefaultConfig() Config {
	return Config{
		MinConfidence:        0.3,
		MergeLookahead:       DefaultLookahead,
		ColumnAlignTolerance: 3,
		VerticalGapTolerance: 3,
		PageWidth:            ReferencePageWidth,
		PageHeight:           ReferencePageHeight,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.MergeLookahead <= 0 {
		c.MergeLookahead = d.MergeLookahead
	}
	if c.ColumnAlignTolerance <= 0 {
		c.ColumnAlignTolerance = d.ColumnAlignTolerance
	}
	if c.VerticalGapTolerance <= 0 {
		c.VerticalGapTolerance = d.VerticalGapTolerance
	}
	if c.PageWidth <= 0 {
		c.PageWidth = d.PageWidth
	}
	if c.PageHeight <= 0 {
		c.PageHeight = d.PageHeight
	}
	return c
}

// Page is the result of reconstructing one page: ordered segments plus
// the thresholds and counters needed to diagnose the run.
type Page struct {
	Segments   []*Segment
	Thresholds Thresholds

	FragmentsIn       int
	FragmentsFiltered int
	LineCount         int
}

// LastSegment returns the final segment in reading order, or nil for an
// empty page. Callers use it to carry context across page boundaries.
func (p *Page) LastSegment() *Segment {
	if len(p.Segments) == 0 {
		return nil
	}
	return p.Segments[len(p.Segments)-1]
}

// ReconstructPage runs the full pipeline over the quadrant tiles of one
// page. An empty or fully filtered input yields an empty Page, never an
// error.
func ReconstructPage(tiles []Tile, cfg Config) *Page {
	cfg = cfg.withDefaults()

	assembled := Assemble(tiles, cfg.MinConfidence)
	page := ReconstructFromFragments(assembled.Fragments, cfg)
	page.FragmentsIn += assembled.Filtered
	page.FragmentsFiltered = assembled.Filtered
	return page
}

// ReconstructFromFragments runs the pipeline from an already assembled,
// sorted fragment collection. Exposed for callers that produce fragments
// without the quadrant tiling step.
func ReconstructFromFragments(frags []*Fragment, cfg Config) *Page {
	cfg = cfg.withDefaults()

	page := &Page{FragmentsIn: len(frags)}
	if len(frags) == 0 {
		page.Thresholds = defaultThresholds(0)
		return page
	}

	th := EstimateThresholds(frags)
	page.Thresholds = th

	lines := MergeLines(frags, &th, cfg.MergeLookahead)
	page.LineCount = len(lines)

	blocks := BuildBlocks(lines, &th)
	segments := BuildSegments(blocks)
	NormalizeSegments(segments, cfg.PageWidth, cfg.PageHeight)
	page.Segments = StackColumns(segments, cfg.ColumnAlignTolerance, cfg.VerticalGapTolerance)
	return page
}
