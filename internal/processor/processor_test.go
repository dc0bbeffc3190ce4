package processor

import (
	"testing"

	"github.com/adverant/nexus/readingorder-worker/internal/layout"
)

func testPage(ids ...int) *layout.Page {
	page := &layout.Page{}
	for _, id := range ids {
		page.Segments = append(page.Segments, &layout.Segment{ID: id})
	}
	return page
}

func TestApplyRefinedOrderRearrangesAndRenumbers(t *testing.T) {
	page := testPage(0, 1, 2)
	first := page.Segments[2]

	applyRefinedOrder(page, []int{2, 0, 1})

	if len(page.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(page.Segments))
	}
	if page.Segments[0] != first {
		t.Error("segment previously numbered 2 should now lead")
	}
	for i, s := range page.Segments {
		if s.ID != i {
			t.Errorf("segment %d has id %d, want %d", i, s.ID, i)
		}
	}
}

func TestApplyRefinedOrderIgnoresIncompleteCoverage(t *testing.T) {
	page := testPage(0, 1, 2)
	original := append([]*layout.Segment(nil), page.Segments...)

	// Unknown id shrinks the mapped sequence; the page keeps its order.
	applyRefinedOrder(page, []int{2, 0, 9})

	for i, s := range page.Segments {
		if s != original[i] {
			t.Errorf("segment %d was moved by an invalid order", i)
		}
		if s.ID != i {
			t.Errorf("segment %d id changed to %d", i, s.ID)
		}
	}
}

func TestApplyRefinedOrderIdentity(t *testing.T) {
	page := testPage(0, 1)

	applyRefinedOrder(page, []int{0, 1})

	if page.Segments[0].ID != 0 || page.Segments[1].ID != 1 {
		t.Errorf("identity order changed ids: %d, %d",
			page.Segments[0].ID, page.Segments[1].ID)
	}
}
