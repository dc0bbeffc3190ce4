/**
 * Fragment Assembler Tests
 *
 * Validates quadrant stitching, confidence filtering, and the 2x downscale
 * back to original screenshot coordinates.
 */

package layout

import "testing"

func word(text string, x1, y1, x2, y2 int, confidence float64) Word {
	return Word{
		Text:       text,
		BBox:       [4][2]int{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}},
		Confidence: confidence,
	}
}

func TestAssembleStitchesQuadrants(t *testing.T) {
	// 2x-upscaled tiles: left column 1000px wide, top row 1400px tall.
	tiles := []Tile{
		{Quadrant: QuadrantTopLeft, Width: 1000, Height: 1400, Words: []Word{
			word("tl", 100, 100, 300, 160, 0.9),
		}},
		{Quadrant: QuadrantTopRight, Width: 1000, Height: 1400, Words: []Word{
			word("tr", 50, 100, 250, 160, 0.9),
		}},
		{Quadrant: QuadrantBottomLeft, Width: 1000, Height: 1400, Words: []Word{
			word("bl", 100, 60, 300, 120, 0.9),
		}},
		{Quadrant: QuadrantBottomRight, Width: 1000, Height: 1400, Words: []Word{
			word("br", 50, 60, 250, 120, 0.9),
		}},
	}

	result := Assemble(tiles, 0.3)
	if len(result.Fragments) != 4 {
		t.Fatalf("expected 4 fragments, got %d", len(result.Fragments))
	}

	byText := map[string]*Fragment{}
	for _, f := range result.Fragments {
		byText[f.Text] = f
	}

	testCases := []struct {
		text           string
		startX, startY int
	}{
		// Halved coordinates after stitching in the upscaled space.
		{"tl", 50, 50},
		{"tr", 525, 50},  // (50+1000)/2
		{"bl", 50, 730},  // (60+1400)/2
		{"br", 525, 730}, // shifted on both axes
	}
	for _, tc := range testCases {
		f, ok := byText[tc.text]
		if !ok {
			t.Fatalf("fragment %q missing from result", tc.text)
		}
		if f.StartX != tc.startX || f.StartY != tc.startY {
			t.Errorf("%q origin = (%d,%d), want (%d,%d)",
				tc.text, f.StartX, f.StartY, tc.startX, tc.startY)
		}
	}
}

func TestAssembleFiltersLowConfidence(t *testing.T) {
	tiles := []Tile{
		{Quadrant: QuadrantTopLeft, Width: 1000, Height: 1400, Words: []Word{
			word("keep", 100, 100, 300, 160, 0.9),
			word("noise", 400, 100, 500, 160, 0.1),
		}},
	}

	result := Assemble(tiles, 0.3)
	if len(result.Fragments) != 1 {
		t.Fatalf("expected 1 surviving fragment, got %d", len(result.Fragments))
	}
	if result.Fragments[0].Text != "keep" {
		t.Errorf("surviving fragment = %q, want %q", result.Fragments[0].Text, "keep")
	}
	if result.Filtered != 1 {
		t.Errorf("filtered count = %d, want 1", result.Filtered)
	}
}

func TestAssembleOutputSortedByCompositeKey(t *testing.T) {
	tiles := []Tile{
		{Quadrant: QuadrantTopLeft, Width: 1000, Height: 1400, Words: []Word{
			word("second", 600, 100, 800, 160, 0.9),
			word("third", 100, 400, 300, 460, 0.9),
			word("first", 100, 100, 300, 160, 0.9),
		}},
	}

	result := Assemble(tiles, 0.3)
	want := []string{"first", "second", "third"}
	for i, f := range result.Fragments {
		if f.Text != want[i] {
			t.Errorf("position %d = %q, want %q", i, f.Text, want[i])
		}
	}

	// First fragment carries no adjacency; the rest do.
	if result.Fragments[0].HasPrev {
		t.Error("first fragment should have no predecessor metrics")
	}
	for _, f := range result.Fragments[1:] {
		if !f.HasPrev {
			t.Errorf("fragment %q missing predecessor metrics", f.Text)
		}
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	testCases := []struct {
		name  string
		tiles []Tile
	}{
		{"no tiles", nil},
		{"tiles without words", []Tile{{Quadrant: QuadrantTopLeft, Width: 1000, Height: 1400}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Assemble(tc.tiles, 0.3)
			if len(result.Fragments) != 0 || result.Filtered != 0 {
				t.Errorf("expected empty result, got %d fragments / %d filtered",
					len(result.Fragments), result.Filtered)
			}
		})
	}
}
