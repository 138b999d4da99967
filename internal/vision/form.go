package vision

import "github.com/your-org/qc-cell/internal/qcsettings"

// EvaluateForm implements §4.4's form_ok predicate: aspect, then solidity,
// then extent, checked in that order — the reason reported is the first
// predicate that failed. Sets obj.FormOK and returns the failing Reason,
// or nil on pass.
func EvaluateForm(obj *DetectedObject, s qcsettings.Settings) *Reason {
	if obj.Aspect < s.MinAspect || obj.Aspect > s.MaxAspect {
		obj.FormOK = false
		return &Reason{Section: SectionForm, Code: CodeAspectOutOfRange, Value: obj.Aspect}
	}
	if obj.Solidity < s.MinSolidity {
		obj.FormOK = false
		return &Reason{Section: SectionForm, Code: CodeLowSolidity, Value: obj.Solidity}
	}
	if obj.Extent < s.MinExtent {
		obj.FormOK = false
		return &Reason{Section: SectionForm, Code: CodeLowExtent, Value: obj.Extent}
	}
	obj.FormOK = true
	return nil
}
