package vision

import "github.com/your-org/qc-cell/internal/qcsettings"

// EvaluateSize implements §4.5: converts the normalized rect's pixel
// dimensions to millimeters via mm_per_pixel and checks each axis'
// tolerance independently, reporting width before height per the
// fixed check order.
func EvaluateSize(obj *DetectedObject, s qcsettings.Settings) *Reason {
	obj.WidthMM = obj.Rect.Width * s.MMPerPixel
	obj.HeightMM = obj.Rect.Height * s.MMPerPixel

	widthDelta := obj.WidthMM - s.ExpectedWidthMM
	if widthDelta < 0 {
		widthDelta = -widthDelta
	}
	if widthDelta > s.ToleranceWidthMM {
		obj.SizeOK = false
		return &Reason{Section: SectionSize, Code: CodeWidthOutOfTolerance, Value: obj.WidthMM}
	}

	heightDelta := obj.HeightMM - s.ExpectedHeightMM
	if heightDelta < 0 {
		heightDelta = -heightDelta
	}
	if heightDelta > s.ToleranceHeightMM {
		obj.SizeOK = false
		return &Reason{Section: SectionSize, Code: CodeHeightOutOfTolerance, Value: obj.HeightMM}
	}

	obj.SizeOK = true
	return nil
}
