package calibration

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

// cornerSubPixWindow, cornerSubPixMaxIter and cornerSubPixEps are the
// §4.10 step-3 sub-pixel refinement parameters: a 5x5 search window, at
// most 40 iterations, stopping once the correction drops below 0.001px.
const (
	cornerSubPixWindow  = 5
	cornerSubPixMaxIter = 40
	cornerSubPixEps     = 0.001
)

// dotMask applies an HSV gate to isolate the fiducial dots, honoring the
// optional ROI crop in Settings. The returned mask is full-frame sized;
// anything outside the ROI is zeroed rather than cropped away, so pixel
// coordinates recovered from it need no origin compensation.
func dotMask(frame gocv.Mat, s qcsettings.Settings) gocv.Mat {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	lower := gocv.NewScalar(float64(s.HLow), float64(s.SLow), float64(s.VLow), 0)
	upper := gocv.NewScalar(float64(s.HHigh), float64(s.SHigh), float64(s.VHigh), 0)
	mask := gocv.NewMat()
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	if s.ROIWidth > 0 && s.ROIHeight > 0 {
		roi := image.Rect(0, 0, mask.Cols(), mask.Rows()).Intersect(
			image.Rect(s.ROIX, s.ROIY, s.ROIX+s.ROIWidth, s.ROIY+s.ROIHeight))
		zeroOutsideROI(&mask, roi)
	}

	return mask
}

func zeroOutsideROI(mask *gocv.Mat, roi image.Rectangle) {
	full := image.Rect(0, 0, mask.Cols(), mask.Rows())
	for _, band := range subtractRect(full, roi) {
		sub := mask.Region(band)
		sub.SetTo(gocv.NewScalar(0, 0, 0, 0))
		sub.Close()
	}
}

// subtractRect returns up to four axis-aligned bands covering outer minus
// inner, used to blank the area outside a ROI without external deps.
func subtractRect(outer, inner image.Rectangle) []image.Rectangle {
	var bands []image.Rectangle
	if inner.Min.Y > outer.Min.Y {
		bands = append(bands, image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y))
	}
	if inner.Max.Y < outer.Max.Y {
		bands = append(bands, image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y))
	}
	if inner.Min.X > outer.Min.X {
		bands = append(bands, image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y))
	}
	if inner.Max.X < outer.Max.X {
		bands = append(bands, image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y))
	}
	return bands
}

// DetectDotCenters implements §4.10 steps 1-4: HSV gate to a binary dot
// mask, external contours filtered by min_dot_area, a moments-based
// first-pass centroid per dot, then sub-pixel refinement against the
// grayscale frame. It returns an error naming the mismatch if the
// detected count is not exactly GridSize.
func DetectDotCenters(frame gocv.Mat, s qcsettings.Settings) ([]Point2D, error) {
	mask := dotMask(frame, s)
	defer mask.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var corners []gocv.Point2f
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < s.MinDotArea {
			continue
		}
		m := gocv.Moments(c.ToPoints(), false)
		if m["m00"] == 0 {
			continue
		}
		corners = append(corners, gocv.Point2f{
			X: float32(m["m10"] / m["m00"]),
			Y: float32(m["m01"] / m["m00"]),
		})
	}

	if len(corners) != GridSize {
		return nil, fmt.Errorf("calibration: expected %d dots, found %d", GridSize, len(corners))
	}

	cornersVec := gocv.NewPoint2fVectorFromPoints(corners)
	defer cornersVec.Close()
	criteria := gocv.NewTermCriteria(gocv.MaxIter+gocv.EPS, cornerSubPixMaxIter, cornerSubPixEps)
	gocv.CornerSubPix(gray, cornersVec,
		image.Pt(cornerSubPixWindow, cornerSubPixWindow),
		image.Pt(-1, -1), criteria)

	refined := cornersVec.ToPoints()
	points := make([]Point2D, len(refined))
	for i, p := range refined {
		points[i] = Point2D{X: float64(p.X), Y: float64(p.Y)}
	}

	return sortRowMajor(points), nil
}

// sortRowMajor implements §4.10 step 5: sort by Y ascending, partition
// into GridRows consecutive groups of GridCols, sort each group by X.
func sortRowMajor(points []Point2D) []Point2D {
	sorted := make([]Point2D, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	for row := 0; row < GridRows; row++ {
		start := row * GridCols
		end := start + GridCols
		if end > len(sorted) {
			break
		}
		group := sorted[start:end]
		sort.Slice(group, func(i, j int) bool { return group[i].X < group[j].X })
	}
	return sorted
}

// Result bundles everything Calibrate produces: the homography, solver
// quality metrics, and the detected pixel centers in row-major order.
type Result struct {
	Homography Homography
	Sidecar    Sidecar
	PixelDots  []Point2D
}

// Calibrate runs the full §4.10 pipeline on one frame: detect and refine
// the 20 dots, pair them with the compile-time robot grid, solve the
// homography by RANSAC, and compute reprojection error statistics. It
// does not persist anything — callers apply the max-error quality gate
// and call SaveHomography themselves.
func Calibrate(frame gocv.Mat, s qcsettings.Settings) (Result, error) {
	pixelDots, err := DetectDotCenters(frame, s)
	if err != nil {
		return Result{}, err
	}

	h, errsMM, err := SolveHomography(pixelDots, RobotGrid[:])
	if err != nil {
		return Result{}, fmt.Errorf("calibration: %w", err)
	}

	var sum, max float64
	for _, e := range errsMM {
		sum += e
		if e > max {
			max = e
		}
	}
	mean := sum / float64(len(errsMM))

	var sq float64
	for _, e := range errsMM {
		sq += e * e
	}
	rms := math.Sqrt(sq / float64(len(errsMM)))

	side := Sidecar{
		NumPoints:  len(pixelDots),
		AvgErrorMM: mean,
		MaxErrorMM: max,
		RMSErrorMM: rms,
		HSV: HSVGate{
			HLow: s.HLow, HHigh: s.HHigh,
			SLow: s.SLow, SHigh: s.SHigh,
			VLow: s.VLow, VHigh: s.VHigh,
		},
	}

	return Result{Homography: h, Sidecar: side, PixelDots: pixelDots}, nil
}
