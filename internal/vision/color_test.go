package vision

import (
	"image"
	"math"
	"testing"
)

func TestRotatedRectCornersAxisAligned(t *testing.T) {
	r := RotatedRect{CenterX: 50, CenterY: 50, Width: 20, Height: 10, AngleDeg: 0}
	corners := rotatedRectCorners(r)

	want := []image.Point{{40, 45}, {60, 45}, {60, 55}, {40, 55}}
	for i, w := range want {
		if corners[i] != w {
			t.Errorf("corners[%d] = %v, want %v", i, corners[i], w)
		}
	}
}

func TestRotatedRectCornersPreservesCentroidUnderRotation(t *testing.T) {
	r := RotatedRect{CenterX: 100, CenterY: 100, Width: 40, Height: 20, AngleDeg: 37}
	corners := rotatedRectCorners(r)

	var sumX, sumY float64
	for _, p := range corners {
		sumX += float64(p.X)
		sumY += float64(p.Y)
	}
	cx, cy := sumX/4, sumY/4

	if math.Abs(cx-100) > 1.0 || math.Abs(cy-100) > 1.0 {
		t.Errorf("corner centroid = (%v,%v), want ~(100,100)", cx, cy)
	}
}

func TestRotatedRectCornersNinetyDegreesSwapsExtent(t *testing.T) {
	r := RotatedRect{CenterX: 0, CenterY: 0, Width: 20, Height: 10, AngleDeg: 90}
	corners := rotatedRectCorners(r)

	var minX, maxX, minY, maxY int
	minX, maxX = corners[0].X, corners[0].X
	minY, maxY = corners[0].Y, corners[0].Y
	for _, p := range corners[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	gotW, gotH := maxX-minX, maxY-minY
	if math.Abs(float64(gotW-10)) > 1 || math.Abs(float64(gotH-20)) > 1 {
		t.Errorf("rotated bbox = %dx%d, want ~10x20 (axes swapped by 90deg rotation)", gotW, gotH)
	}
}
