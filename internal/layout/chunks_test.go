/**
 * Chunk Export Tests
 *
 * Validates position/width categorization, row grouping, text flattening,
 * and the cross-page continuation context.
 */

package layout

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPositionAndWidthCategories(t *testing.T) {
	testCases := []struct {
		name        string
		left, right int
		position    string
		width       string
	}{
		{"narrow left column", 4, 27, PositionLeft, WidthNarrow},
		{"centered body", 25, 75, PositionCenter, WidthMedium},
		{"right sidebar", 60, 90, PositionRight, WidthNarrow},
		{"full width", 0, 100, PositionCenter, WidthWide},
		{"boundary mid 33", 0, 66, PositionCenter, WidthMedium},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := positionCategory(tc.left, tc.right); got != tc.position {
				t.Errorf("position = %q, want %q", got, tc.position)
			}
			if got := widthCategory(tc.left, tc.right); got != tc.width {
				t.Errorf("width = %q, want %q", got, tc.width)
			}
		})
	}
}

func chunkTestPage() *Page {
	makeSegment := func(id, left, right, top, bottom int, texts ...string) *Segment {
		block := &Block{}
		for _, txt := range texts {
			conf := 0.8
			if txt == "" {
				conf = 0
			}
			block.Lines = append(block.Lines, &Fragment{
				Text:       txt,
				Confidence: conf,
				CharCount:  len(txt),
				WordCount:  len(strings.Fields(txt)),
			})
		}
		return &Segment{
			ID:         id,
			Blocks:     []*Block{block},
			NormLeft:   left,
			NormRight:  right,
			NormTop:    top,
			NormBottom: bottom,
		}
	}

	return &Page{Segments: []*Segment{
		makeSegment(0, 4, 27, 10, 40, "left column line", ""),
		makeSegment(1, 55, 78, 12, 40, "right column line"),
		makeSegment(2, 4, 96, 60, 90, "footer spans the page"),
	}}
}

func TestBuildPayloadFlattensSegments(t *testing.T) {
	payload := BuildPayload(chunkTestPage(), 3, nil)

	if payload.PageNumber != 3 {
		t.Errorf("page number = %d, want 3", payload.PageNumber)
	}
	if len(payload.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(payload.Chunks))
	}

	first := payload.Chunks[0]
	if len(first.Texts) != 1 || first.Texts[0] != "left column line" {
		t.Errorf("empty line texts must be dropped, got %v", first.Texts)
	}
	// Confidence averages over all lines, empty ones included.
	if !almostEqual(first.AvgConfidence, 0.4) {
		t.Errorf("avg confidence = %v, want 0.4", first.AvgConfidence)
	}
	if first.CharCount != 16 || first.WordCount != 3 {
		t.Errorf("counts = %d chars / %d words, want 16/3", first.CharCount, first.WordCount)
	}
}

func TestRowGrouping(t *testing.T) {
	payload := BuildPayload(chunkTestPage(), 1, nil)

	// Tops 10 and 12 share a row group; the footer at 60 gets its own.
	if payload.Chunks[0].YGroup != payload.Chunks[1].YGroup {
		t.Errorf("side-by-side chunks in different row groups: %d vs %d",
			payload.Chunks[0].YGroup, payload.Chunks[1].YGroup)
	}
	if payload.Chunks[2].YGroup == payload.Chunks[0].YGroup {
		t.Error("footer must not share the columns' row group")
	}
}

func TestPrevPageContext(t *testing.T) {
	first := BuildPayload(chunkTestPage(), 1, nil)
	if first.PrevPageContext != nil {
		t.Error("first page must carry no continuation context")
	}

	last := first.LastChunk()
	if last == nil || last.SegmentID != 2 {
		t.Fatalf("LastChunk = %+v, want footer segment", last)
	}

	second := BuildPayload(chunkTestPage(), 2, last)
	if second.PrevPageContext == nil || second.PrevPageContext.SegmentID != 2 {
		t.Error("second page must carry the first page's final chunk")
	}
}

func TestEmptyPayloadMarshalsChunksAsArray(t *testing.T) {
	payload := BuildPayload(&Page{}, 1, nil)
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"chunks":[]`) {
		t.Errorf("empty chunk list must marshal as [], got %s", data)
	}
}
