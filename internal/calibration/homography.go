package calibration

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"gonum.org/v2/gonum/mat"
)

// homographyMagic tags the binary matrix file so a stray file of the
// wrong format fails fast instead of silently decoding garbage.
const homographyMagic = "QCH1"

// tensorName is the single named tensor the binary file carries, matching
// the "key H" the sidecar JSON refers to.
const tensorName = "H"

// Homography is a 3x3 projective transform between the camera pixel
// plane and the robot plane, stored row-major.
type Homography struct {
	M [3][3]float64
}

// Sidecar is the JSON metadata persisted alongside the binary matrix
// file: everything needed to audit a calibration run after the fact.
type Sidecar struct {
	Timestamp  time.Time `json:"timestamp"`
	NumPoints  int       `json:"num_points"`
	AvgErrorMM float64   `json:"avg_error_mm"`
	MaxErrorMM float64   `json:"max_error_mm"`
	RMSErrorMM float64   `json:"rms_error_mm"`
	HSV        HSVGate   `json:"hsv"`
}

// HSVGate records the HSV bounds used to find the dots, so a stale
// calibration can be diagnosed against the settings that produced it.
type HSVGate struct {
	HLow, HHigh, SLow, SHigh, VLow, VHigh int
}

// Apply maps one pixel coordinate to robot-plane millimeters via
// H * [x, y, 1]^T, dividing through by the homogeneous coordinate.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h.M[2][0]*x + h.M[2][1]*y + h.M[2][2]
	X := (h.M[0][0]*x + h.M[0][1]*y + h.M[0][2]) / w
	Y := (h.M[1][0]*x + h.M[1][1]*y + h.M[1][2]) / w
	return X, Y
}

// ApplyMany is the vectorized form §4.11 requires: N pixel points in,
// N robot-plane points out, same order.
func (h Homography) ApplyMany(points []Point2D) []Point2D {
	out := make([]Point2D, len(points))
	for i, p := range points {
		x, y := h.Apply(p.X, p.Y)
		out[i] = Point2D{X: x, Y: y}
	}
	return out
}

// determinant3x3 is used both to validate a loaded matrix and to reject
// degenerate RANSAC minimal samples before attempting a solve.
func determinant3x3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Validate reports an error if H has the wrong shape — unreachable given
// the [3][3]float64 type, so this only checks for a singular or
// non-finite matrix — per §4.11's "must fail loudly" requirement.
func (h Homography) Validate() error {
	for i := range h.M {
		for j := range h.M[i] {
			if math.IsNaN(h.M[i][j]) || math.IsInf(h.M[i][j], 0) {
				return fmt.Errorf("homography: non-finite entry at [%d][%d]", i, j)
			}
		}
	}
	det := determinant3x3(h.M)
	if math.Abs(det) < 1e-9 {
		return fmt.Errorf("homography: singular matrix (determinant %.3e)", det)
	}
	return nil
}

// SaveHomography writes the matrix as a small named-tensor binary file
// (magic, name, row-major float64s) plus a JSON sidecar at path+".json".
func SaveHomography(path string, h Homography, side Sidecar) error {
	var buf bytes.Buffer
	buf.WriteString(homographyMagic)
	nameBytes := []byte(tensorName)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(nameBytes))); err != nil {
		return fmt.Errorf("write homography name length: %w", err)
	}
	buf.Write(nameBytes)
	for i := range h.M {
		for j := range h.M[i] {
			if err := binary.Write(&buf, binary.LittleEndian, h.M[i][j]); err != nil {
				return fmt.Errorf("write homography entry: %w", err)
			}
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write homography file: %w", err)
	}

	sideData, err := json.MarshalIndent(side, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal homography sidecar: %w", err)
	}
	if err := os.WriteFile(path+".json", sideData, 0o644); err != nil {
		return fmt.Errorf("write homography sidecar: %w", err)
	}
	return nil
}

// LoadHomography reads a matrix file written by SaveHomography and
// validates it before returning — callers never see a singular or
// malformed matrix.
func LoadHomography(path string) (Homography, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Homography{}, fmt.Errorf("read homography file: %w", err)
	}
	r := bytes.NewReader(data)

	magic := make([]byte, len(homographyMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != homographyMagic {
		return Homography{}, fmt.Errorf("homography file: bad magic")
	}

	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return Homography{}, fmt.Errorf("homography file: read name length: %w", err)
	}
	name := make([]byte, nameLen)
	if _, err := r.Read(name); err != nil {
		return Homography{}, fmt.Errorf("homography file: read name: %w", err)
	}
	if string(name) != tensorName {
		return Homography{}, fmt.Errorf("homography file: unexpected tensor name %q", name)
	}

	var h Homography
	for i := range h.M {
		for j := range h.M[i] {
			if err := binary.Read(r, binary.LittleEndian, &h.M[i][j]); err != nil {
				return Homography{}, fmt.Errorf("homography file: read entry [%d][%d]: %w", i, j, err)
			}
		}
	}

	if err := h.Validate(); err != nil {
		return Homography{}, fmt.Errorf("homography file: %w", err)
	}
	return h, nil
}

// LoadSidecar reads the JSON sidecar written alongside path by
// SaveHomography, for status endpoints that only need the calibration
// quality metrics and not the matrix itself.
func LoadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(path + ".json")
	if err != nil {
		return Sidecar{}, fmt.Errorf("read homography sidecar: %w", err)
	}
	var side Sidecar
	if err := json.Unmarshal(data, &side); err != nil {
		return Sidecar{}, fmt.Errorf("parse homography sidecar: %w", err)
	}
	return side, nil
}

// ransacReprojectPX is the §4.10 step-7 inlier threshold. It is compared
// against the robot-plane distance (mm) between a mapped pixel point and
// its robot point; fitDLT works on unnormalized coordinates.
const ransacReprojectPX = 3.0

// SolveHomography fits a homography mapping pixelPoints[i] -> robotPoints[i]
// using RANSAC over the direct linear transform, per §4.10 step 7. It
// returns the best-fitting matrix over the inlier set plus per-point
// reprojection errors (mm) for every input pair using the final matrix.
func SolveHomography(pixelPoints, robotPoints []Point2D) (Homography, []float64, error) {
	n := len(pixelPoints)
	if n != len(robotPoints) {
		return Homography{}, nil, fmt.Errorf("solve homography: point count mismatch (%d pixel, %d robot)", n, len(robotPoints))
	}
	if n < 4 {
		return Homography{}, nil, fmt.Errorf("solve homography: need at least 4 point pairs, got %d", n)
	}

	const iterations = 500
	rng := rand.New(rand.NewSource(1))

	var best Homography
	bestInliers := -1
	haveBest := false

	for iter := 0; iter < iterations; iter++ {
		sampleIdx := sampleFour(rng, n)
		h, err := fitDLT(subset(pixelPoints, sampleIdx), subset(robotPoints, sampleIdx))
		if err != nil {
			continue
		}
		if err := h.Validate(); err != nil {
			continue
		}

		count := 0
		for i := 0; i < n; i++ {
			gotX, gotY := h.Apply(pixelPoints[i].X, pixelPoints[i].Y)
			d := math.Hypot(gotX-robotPoints[i].X, gotY-robotPoints[i].Y)
			if d <= ransacReprojectPX {
				count++
			}
		}

		if count > bestInliers {
			bestInliers = count
			best = h
			haveBest = true
		}
	}

	if !haveBest {
		return Homography{}, nil, fmt.Errorf("solve homography: RANSAC found no valid model")
	}

	// Refit on the full inlier set of the winning model for a tighter fit.
	var inlierPixel, inlierRobot []Point2D
	for i := 0; i < n; i++ {
		gotX, gotY := best.Apply(pixelPoints[i].X, pixelPoints[i].Y)
		d := math.Hypot(gotX-robotPoints[i].X, gotY-robotPoints[i].Y)
		if d <= ransacReprojectPX {
			inlierPixel = append(inlierPixel, pixelPoints[i])
			inlierRobot = append(inlierRobot, robotPoints[i])
		}
	}
	if len(inlierPixel) >= 4 {
		if refit, err := fitDLT(inlierPixel, inlierRobot); err == nil {
			if err := refit.Validate(); err == nil {
				best = refit
			}
		}
	}

	errs := make([]float64, n)
	for i := 0; i < n; i++ {
		gotX, gotY := best.Apply(pixelPoints[i].X, pixelPoints[i].Y)
		errs[i] = math.Hypot(gotX-robotPoints[i].X, gotY-robotPoints[i].Y)
	}

	return best, errs, nil
}

func sampleFour(rng *rand.Rand, n int) [4]int {
	var idx [4]int
	for {
		seen := map[int]bool{}
		ok := true
		for i := 0; i < 4; i++ {
			v := rng.Intn(n)
			if seen[v] {
				ok = false
				break
			}
			seen[v] = true
			idx[i] = v
		}
		if ok {
			return idx
		}
	}
}

func subset(points []Point2D, idx [4]int) []Point2D {
	out := make([]Point2D, 4)
	for i, v := range idx {
		out[i] = points[v]
	}
	return out
}

// fitDLT solves the direct linear transform for a homography from
// matched point pairs via least squares (normal equations over an
// 2N x 8 system, h[2][2] fixed to 1).
func fitDLT(src, dst []Point2D) (Homography, error) {
	n := len(src)
	if n < 4 {
		return Homography{}, fmt.Errorf("fitDLT: need at least 4 points, got %d", n)
	}

	A := mat.NewDense(2*n, 8, nil)
	b := mat.NewVecDense(2*n, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		A.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * u, -y * u})
		b.SetVec(2*i, u)

		A.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * v, -y * v})
		b.SetVec(2*i+1, v)
	}

	var AtA mat.Dense
	AtA.Mul(A.T(), A)
	var Atb mat.VecDense
	Atb.MulVec(A.T(), b)

	var h mat.VecDense
	if err := h.SolveVec(&AtA, &Atb); err != nil {
		return Homography{}, fmt.Errorf("fitDLT: %w", err)
	}

	var out Homography
	out.M[0] = [3]float64{h.AtVec(0), h.AtVec(1), h.AtVec(2)}
	out.M[1] = [3]float64{h.AtVec(3), h.AtVec(4), h.AtVec(5)}
	out.M[2] = [3]float64{h.AtVec(6), h.AtVec(7), 1}
	return out, nil
}
