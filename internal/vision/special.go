package vision

import "github.com/your-org/qc-cell/internal/qcsettings"

// EvaluateSpecial implements §4.7: counts direct-child contours of the
// object's top-level contour whose area lies in [min_hole_area,
// max_hole_area] and checks the count against expected_hole_count.
func EvaluateSpecial(obj *DetectedObject, cand *Candidates, objIndex int, s qcsettings.Settings) *Reason {
	areas := cand.childAreas(cand.contourIndex(objIndex), s.MinHoleArea, s.MaxHoleArea)
	obj.HoleAreas = areas
	obj.HoleCount = len(areas)

	if obj.HoleCount != s.ExpectedHoleCount {
		obj.SpecialOK = false
		return &Reason{Section: SectionSpecial, Code: CodeWrongHoleCount, Value: float64(obj.HoleCount)}
	}
	obj.SpecialOK = true
	return nil
}
