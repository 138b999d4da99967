package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

// EvaluateColor implements §4.6: rasterizes the object's min_area_rect
// into a per-object mask, takes the mean LAB over the original
// (non-downscaled) frame under that mask, and checks the CIE76 ΔE
// against the reference.
func EvaluateColor(obj *DetectedObject, frame gocv.Mat, s qcsettings.Settings) *Reason {
	mask := gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()

	corners := rotatedRectCorners(obj.Rect)
	gocv.FillPoly(&mask, gocv.NewPointsVectorFromPoints([][]image.Point{corners}), gocv.NewScalar(255, 255, 255, 0))

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(frame, &lab, gocv.ColorBGRToLab)

	mean := gocv.Mean(lab, mask)
	obj.MeanLAB = [3]float64{mean.Val1, mean.Val2, mean.Val3}

	dl := obj.MeanLAB[0] - s.ReferenceLAB[0]
	da := obj.MeanLAB[1] - s.ReferenceLAB[1]
	db := obj.MeanLAB[2] - s.ReferenceLAB[2]
	obj.DeltaE = math.Sqrt(dl*dl + da*da + db*db)

	if obj.DeltaE > s.ToleranceDeltaE {
		obj.ColorOK = false
		return &Reason{Section: SectionColor, Code: CodeColorDeltaETooHigh, Value: obj.DeltaE}
	}
	obj.ColorOK = true
	return nil
}

func rotatedRectCorners(r RotatedRect) []image.Point {
	rad := r.AngleDeg * math.Pi / 180
	cosA, sinA := math.Cos(rad), math.Sin(rad)
	hw, hh := r.Width/2, r.Height/2

	local := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	pts := make([]image.Point, 4)
	for i, p := range local {
		x := r.CenterX + p[0]*cosA - p[1]*sinA
		y := r.CenterY + p[0]*sinA + p[1]*cosA
		pts[i] = image.Pt(int(math.Round(x)), int(math.Round(y)))
	}
	return pts
}
