package vision

import (
	"image"
	"math"
	"testing"
)

func TestConvexHullAreaDropsInteriorPoints(t *testing.T) {
	points := []image.Point{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		{X: 5, Y: 5}, // interior point, must not inflate the hull area
	}

	area := convexHullArea(points)
	if math.Abs(area-100) > 1e-9 {
		t.Errorf("convexHullArea() = %v, want 100", area)
	}
}

func TestContourCentroidRectangle(t *testing.T) {
	rect := []image.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 10}, {X: 0, Y: 10}}
	cx, cy := contourCentroid(rect)
	if math.Abs(cx-10) > 1e-9 || math.Abs(cy-5) > 1e-9 {
		t.Errorf("contourCentroid() = (%v,%v), want (10,5)", cx, cy)
	}
}
