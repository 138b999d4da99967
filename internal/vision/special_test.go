package vision

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

func square(side int) []image.Point {
	return []image.Point{{X: 0, Y: 0}, {X: side, Y: 0}, {X: side, Y: side}, {X: 0, Y: side}}
}

func newCandidatesForTest(t *testing.T, parent []image.Point, children [][]image.Point) *Candidates {
	t.Helper()

	all := append([][]image.Point{parent}, children...)
	pv := gocv.NewPointsVectorFromPoints(all)

	hierarchy := make([]hierarchyNode, len(all))
	hierarchy[0] = hierarchyNode{next: -1, prev: -1, parent: -1}
	if len(children) > 0 {
		hierarchy[0].firstChild = 1
	} else {
		hierarchy[0].firstChild = -1
	}
	for i := range children {
		idx := i + 1
		node := hierarchyNode{parent: 0, firstChild: -1}
		if i+1 < len(children) {
			node.next = int32(idx + 1)
		} else {
			node.next = -1
		}
		if i > 0 {
			node.prev = int32(idx - 1)
		} else {
			node.prev = -1
		}
		hierarchy[idx] = node
	}

	return &Candidates{
		contours:  pv,
		hierarchy: hierarchy,
		Objects:   []*DetectedObject{{}},
		objIdx:    []int{0},
	}
}

func TestEvaluateSpecialCountsHolesInAreaWindow(t *testing.T) {
	cand := newCandidatesForTest(t, square(100), [][]image.Point{
		square(10), // area 100, in window
		square(11), // area 121, in window
		square(30), // area 900, out of window
	})
	defer cand.Close()

	s := qcsettings.Defaults()
	s.MinHoleArea, s.MaxHoleArea = 50, 150
	s.ExpectedHoleCount = 2

	obj := cand.Objects[0]
	reason := EvaluateSpecial(obj, cand, 0, s)

	if reason != nil {
		t.Fatalf("EvaluateSpecial() = %v, want nil (2 holes expected and found)", reason)
	}
	if obj.HoleCount != 2 {
		t.Errorf("HoleCount = %d, want 2", obj.HoleCount)
	}
}

func TestEvaluateSpecialWrongCount(t *testing.T) {
	cand := newCandidatesForTest(t, square(100), [][]image.Point{
		square(10), square(11), square(12),
	})
	defer cand.Close()

	s := qcsettings.Defaults()
	s.MinHoleArea, s.MaxHoleArea = 50, 200
	s.ExpectedHoleCount = 2

	obj := cand.Objects[0]
	reason := EvaluateSpecial(obj, cand, 0, s)

	if reason == nil || reason.Code != CodeWrongHoleCount {
		t.Fatalf("EvaluateSpecial() = %v, want CodeWrongHoleCount", reason)
	}
	if obj.HoleCount != 3 {
		t.Errorf("HoleCount = %d, want 3", obj.HoleCount)
	}
}
