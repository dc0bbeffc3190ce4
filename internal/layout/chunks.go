/**
 * Chunk export
 *
 * Flattens reconstructed segments into compact, language-model-friendly
 * records: coarse position and width categories instead of raw pixels,
 * line texts in reading order, and a row-group id so chunks on the same
 * horizontal band can be related without geometry.
 */

package layout

import "encoding/json"

// Position categories, from the normalized horizontal center.
const (
	PositionLeft   = "left"
	PositionCenter = "center"
	PositionRight  = "right"
)

// Width categories, from the normalized width.
const (
	WidthNarrow = "narrow"
	WidthMedium = "medium"
	WidthWide   = "wide"
)

// Top edges within this many percent share a row group.
const yGroupTolerance = 5

// Chunk is one segment flattened for downstream consumption.
type Chunk struct {
	SegmentID int      `json:"segment_id"`
	Left      int      `json:"left"`
	Right     int      `json:"right"`
	Top       int      `json:"top"`
	Bottom    int      `json:"bottom"`
	Position  string   `json:"position"`
	Width     string   `json:"width"`
	YGroup    int      `json:"y_group"`
	Texts     []string `json:"texts"`

	AvgConfidence float64 `json:"avg_confidence"`
	CharCount     int     `json:"char_count"`
	WordCount     int     `json:"word_count"`
}

// PagePayload is the chunk export for one page. PrevPageContext carries
// the final chunk of the preceding page so a consumer can stitch text
// that continues across the page boundary; nil for the first page.
type PagePayload struct {
	PageNumber      int     `json:"page_number"`
	Chunks          []Chunk `json:"chunks"`
	PrevPageContext *Chunk  `json:"prev_page_context,omitempty"`
}

// MarshalJSON keeps an empty chunk list as [] rather than null.
func (p PagePayload) MarshalJSON() ([]byte, error) {
	type alias PagePayload
	a := alias(p)
	if a.Chunks == nil {
		a.Chunks = []Chunk{}
	}
	return json.Marshal(a)
}

func positionCategory(normLeft, normRight int) string {
	mid := (normLeft + normRight) / 2
	switch {
	case mid < 33:
		return PositionLeft
	case mid < 67:
		return PositionCenter
	default:
		return PositionRight
	}
}

func widthCategory(normLeft, normRight int) string {
	width := normRight - normLeft
	switch {
	case width < 40:
		return WidthNarrow
	case width < 70:
		return WidthMedium
	default:
		return WidthWide
	}
}

// chunkFromSegment flattens one segment: non-empty line texts in block
// order, mean line confidence, summed counts.
func chunkFromSegment(s *Segment) Chunk {
	c := Chunk{
		SegmentID: s.ID,
		Left:      s.NormLeft,
		Right:     s.NormRight,
		Top:       s.NormTop,
		Bottom:    s.NormBottom,
		Position:  positionCategory(s.NormLeft, s.NormRight),
		Width:     widthCategory(s.NormLeft, s.NormRight),
		Texts:     []string{},
	}

	var confidenceSum float64
	lineN := 0
	for _, b := range s.Blocks {
		for _, l := range b.Lines {
			if l.Text != "" {
				c.Texts = append(c.Texts, l.Text)
			}
			confidenceSum += l.Confidence
			lineN++
			c.CharCount += l.CharCount
			c.WordCount += l.WordCount
		}
	}
	if lineN > 0 {
		c.AvgConfidence = confidenceSum / float64(lineN)
	}
	return c
}

// assignYGroups gives chunks whose top edges fall within the tolerance a
// shared group id. Groups are keyed by the top edge of their first
// member, in segment order.
func assignYGroups(chunks []Chunk) {
	var groupTops []int
	for i := range chunks {
		assigned := false
		for g, top := range groupTops {
			if absInt(chunks[i].Top-top) <= yGroupTolerance {
				chunks[i].YGroup = g
				assigned = true
				break
			}
		}
		if !assigned {
			chunks[i].YGroup = len(groupTops)
			groupTops = append(groupTops, chunks[i].Top)
		}
	}
}

// BuildPayload exports a page's segments as chunks. prevContext is the
// final chunk of the preceding page, or nil.
func BuildPayload(page *Page, pageNumber int, prevContext *Chunk) PagePayload {
	payload := PagePayload{
		PageNumber:      pageNumber,
		Chunks:          make([]Chunk, 0, len(page.Segments)),
		PrevPageContext: prevContext,
	}
	for _, s := range page.Segments {
		payload.Chunks = append(payload.Chunks, chunkFromSegment(s))
	}
	assignYGroups(payload.Chunks)
	return payload
}

// LastChunk returns the final chunk of the payload, or nil when the page
// produced none.
func (p PagePayload) LastChunk() *Chunk {
	if len(p.Chunks) == 0 {
		return nil
	}
	c := p.Chunks[len(p.Chunks)-1]
	return &c
}
