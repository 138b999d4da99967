package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// minAreaRectNormalized wraps gocv.MinAreaRect and normalizes the result
// so Width is always the long side (§3, §4.4), rotating the stored angle
// by 90° when the raw rect reports width < height.
func minAreaRectNormalized(points []image.Point) RotatedRect {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	r := gocv.MinAreaRect(pv)
	w, h, angle := float64(r.Width), float64(r.Height), r.Angle
	if w < h {
		w, h = h, w
		angle += 90
	}
	// normalize into (-90,90] the way OpenCV's own convention does, then
	// fold into pose.go's later mod-180 handling rather than here.
	for angle > 90 {
		angle -= 180
	}
	for angle <= -90 {
		angle += 180
	}

	return RotatedRect{
		CenterX: float64(r.Center.X),
		CenterY: float64(r.Center.Y),
		Width:   w,
		Height:  h,
		AngleDeg: angle,
	}
}

// convexHullArea computes the area of the convex hull of points via
// gocv.ConvexHull and gocv.ContourArea rather than a hand-rolled hull
// implementation.
func convexHullArea(points []image.Point) float64 {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(pv, &hull, false, true)

	hullPV := gocv.NewPointVectorFromMat(hull)
	defer hullPV.Close()
	return gocv.ContourArea(hullPV)
}

// contourCentroid is the image-moments centroid (M10/M00, M01/M00) of the
// filled region bounded by points (§3 "centroid_px from moments").
func contourCentroid(points []image.Point) (float64, float64) {
	if len(points) == 0 {
		return 0, 0
	}
	m := gocv.Moments(points, false)
	if m["m00"] == 0 {
		var sx, sy float64
		for _, p := range points {
			sx += float64(p.X)
			sy += float64(p.Y)
		}
		n := float64(len(points))
		return sx / n, sy / n
	}
	return m["m10"] / m["m00"], m["m01"] / m["m00"]
}
