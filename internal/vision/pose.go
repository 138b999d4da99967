package vision

import (
	"image"
	"math"

	"gonum.org/v2/gonum/mat"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

// EstimatePose implements §4.9: PCA orientation on the contour points
// (largest-eigenvalue eigenvector), normalized modulo 180° since the
// part is line-symmetric under a half-turn, with the commissioning
// angle offset applied afterward. This sidesteps the minAreaRect
// angle-wrap pathology spec.md calls out in §9.
func EstimatePose(obj *DetectedObject, s qcsettings.Settings) {
	angle := pcaAngleDeg(obj.Contour)
	angle = normalizeAngleDeg(angle + s.AngleOffsetDeg)
	obj.AngleDeg = angle
}

// pcaAngleDeg returns atan2(vy, vx) in degrees for the eigenvector of the
// largest eigenvalue of the point-covariance matrix, using gonum's
// symmetric eigendecomposition rather than a hand-rolled quadratic
// formula (see DESIGN.md).
func pcaAngleDeg(points []image.Point) float64 {
	n := float64(len(points))
	if n == 0 {
		return 0
	}

	var meanX, meanY float64
	for _, p := range points {
		meanX += float64(p.X)
		meanY += float64(p.Y)
	}
	meanX /= n
	meanY /= n

	var sxx, sxy, syy float64
	for _, p := range points {
		dx := float64(p.X) - meanX
		dy := float64(p.Y) - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	sxx /= n
	sxy /= n
	syy /= n

	cov := mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy})
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return 0
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// gonum returns eigenvalues ascending; the largest is the last column.
	maxIdx := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[maxIdx] {
			maxIdx = i
		}
	}

	vx := vectors.At(0, maxIdx)
	vy := vectors.At(1, maxIdx)
	return math.Atan2(vy, vx) * 180 / math.Pi
}

// normalizeAngleDeg folds an angle into [0,180).
func normalizeAngleDeg(deg float64) float64 {
	deg = math.Mod(deg, 180)
	if deg < 0 {
		deg += 180
	}
	return deg
}
