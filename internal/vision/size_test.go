package vision

import (
	"math"
	"testing"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

func settingsForSizeTests() qcsettings.Settings {
	s := qcsettings.Defaults()
	s.MMPerPixel = 0.383
	s.ExpectedWidthMM, s.ExpectedHeightMM = 96.7, 25.7
	s.ToleranceWidthMM, s.ToleranceHeightMM = 3.0, 2.0
	return s
}

func TestEvaluateSizePass(t *testing.T) {
	s := settingsForSizeTests()
	obj := &DetectedObject{Rect: RotatedRect{Width: 96.7 / s.MMPerPixel, Height: 25.7 / s.MMPerPixel}}

	if reason := EvaluateSize(obj, s); reason != nil {
		t.Fatalf("EvaluateSize() = %v, want nil", reason)
	}
	if !obj.SizeOK {
		t.Error("SizeOK = false, want true")
	}
	if math.Abs(obj.WidthMM-96.7) > 1e-6 {
		t.Errorf("WidthMM = %v, want ~96.7", obj.WidthMM)
	}
}

func TestEvaluateSizeWidthFailsFirst(t *testing.T) {
	s := settingsForSizeTests()
	// both width and height out of tolerance — width must be reported first
	obj := &DetectedObject{Rect: RotatedRect{Width: 200 / s.MMPerPixel, Height: 5 / s.MMPerPixel}}

	reason := EvaluateSize(obj, s)
	if reason == nil || reason.Code != CodeWidthOutOfTolerance {
		t.Errorf("reason = %v, want CodeWidthOutOfTolerance", reason)
	}
}

func TestEvaluateSizeHeightFails(t *testing.T) {
	s := settingsForSizeTests()
	obj := &DetectedObject{Rect: RotatedRect{Width: 96.7 / s.MMPerPixel, Height: 40 / s.MMPerPixel}}

	reason := EvaluateSize(obj, s)
	if reason == nil || reason.Code != CodeHeightOutOfTolerance {
		t.Errorf("reason = %v, want CodeHeightOutOfTolerance", reason)
	}
}
