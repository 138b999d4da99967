package calibration

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// syntheticPairs builds pixel/robot point pairs related by a known
// affine map, so SolveHomography's recovered matrix can be checked
// against ground truth directly.
func syntheticPairs(scaleX, scaleY, offX, offY float64) ([]Point2D, []Point2D) {
	var pixel, robot []Point2D
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridCols; col++ {
			px := Point2D{X: float64(col) * 40, Y: float64(row) * 40}
			pixel = append(pixel, px)
			robot = append(robot, Point2D{X: px.X*scaleX + offX, Y: px.Y*scaleY + offY})
		}
	}
	return pixel, robot
}

func TestSolveHomographyRecoversAffineMap(t *testing.T) {
	pixel, robot := syntheticPairs(2.5, -1.5, 10, 20)

	h, errs, err := SolveHomography(pixel, robot)
	if err != nil {
		t.Fatalf("SolveHomography() error = %v", err)
	}

	for i, p := range pixel {
		gotX, gotY := h.Apply(p.X, p.Y)
		if math.Abs(gotX-robot[i].X) > 1e-3 || math.Abs(gotY-robot[i].Y) > 1e-3 {
			t.Errorf("point %d: H(%v) = (%v,%v), want %v", i, p, gotX, gotY, robot[i])
		}
		if errs[i] > 1e-3 {
			t.Errorf("point %d: reprojection error = %v, want ~0", i, errs[i])
		}
	}
}

func TestSolveHomographyRejectsMismatchedLengths(t *testing.T) {
	_, _, err := SolveHomography([]Point2D{{X: 0, Y: 0}}, []Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err == nil {
		t.Fatal("SolveHomography() error = nil, want mismatch error")
	}
}

func TestSolveHomographyRejectsTooFewPoints(t *testing.T) {
	pixel := []Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	robot := []Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}
	_, _, err := SolveHomography(pixel, robot)
	if err == nil {
		t.Fatal("SolveHomography() error = nil, want too-few-points error")
	}
}

func TestHomographyValidateRejectsSingular(t *testing.T) {
	var h Homography // zero matrix: determinant 0
	if err := h.Validate(); err == nil {
		t.Error("Validate() = nil, want singular-matrix error")
	}
}

func TestHomographyValidateRejectsNonFinite(t *testing.T) {
	h := Homography{M: [3][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, math.NaN()},
	}}
	if err := h.Validate(); err == nil {
		t.Error("Validate() = nil, want non-finite error")
	}
}

func TestHomographyApplyIdentity(t *testing.T) {
	h := Homography{M: [3][3]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}}
	x, y := h.Apply(12.5, -3)
	if x != 12.5 || y != -3 {
		t.Errorf("Apply() = (%v,%v), want (12.5,-3)", x, y)
	}
}

func TestSaveLoadHomographyRoundTrips(t *testing.T) {
	pixel, robot := syntheticPairs(1.2, 0.8, 5, -5)
	h, _, err := SolveHomography(pixel, robot)
	if err != nil {
		t.Fatalf("SolveHomography() error = %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "homography.bin")
	side := Sidecar{
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		NumPoints:  len(pixel),
		AvgErrorMM: 0.1,
		MaxErrorMM: 0.2,
		RMSErrorMM: 0.15,
		HSV:        HSVGate{HLow: 0, HHigh: 10, SLow: 80, SHigh: 255, VLow: 60, VHigh: 255},
	}

	if err := SaveHomography(path, h, side); err != nil {
		t.Fatalf("SaveHomography() error = %v", err)
	}

	loaded, err := LoadHomography(path)
	if err != nil {
		t.Fatalf("LoadHomography() error = %v", err)
	}
	for i := range h.M {
		for j := range h.M[i] {
			if math.Abs(loaded.M[i][j]-h.M[i][j]) > 1e-9 {
				t.Errorf("loaded.M[%d][%d] = %v, want %v", i, j, loaded.M[i][j], h.M[i][j])
			}
		}
	}

	sideData, err := os.ReadFile(path + ".json")
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	if len(sideData) == 0 {
		t.Error("sidecar JSON is empty")
	}

	loadedSide, err := LoadSidecar(path)
	if err != nil {
		t.Fatalf("LoadSidecar() error = %v", err)
	}
	if loadedSide.NumPoints != side.NumPoints || loadedSide.RMSErrorMM != side.RMSErrorMM {
		t.Errorf("LoadSidecar() = %+v, want %+v", loadedSide, side)
	}
}

func TestLoadHomographyRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(path, []byte("not a homography file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHomography(path); err == nil {
		t.Error("LoadHomography() error = nil, want bad-magic error")
	}
}
