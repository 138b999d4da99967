package vision

import (
	"testing"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

func settingsForFormTests() qcsettings.Settings {
	s := qcsettings.Defaults()
	s.MinAspect, s.MaxAspect = 2.0, 7.0
	s.MinSolidity = 0.88
	s.MinExtent = 0.90
	return s
}

func TestEvaluateFormPass(t *testing.T) {
	s := settingsForFormTests()
	obj := &DetectedObject{Aspect: 3.5, Solidity: 0.95, Extent: 0.95}

	if reason := EvaluateForm(obj, s); reason != nil {
		t.Fatalf("EvaluateForm() reason = %v, want nil", reason)
	}
	if !obj.FormOK {
		t.Error("FormOK = false, want true")
	}
}

func TestEvaluateFormBoundaryAcceptsExactAspect(t *testing.T) {
	s := settingsForFormTests()

	low := &DetectedObject{Aspect: s.MinAspect, Solidity: 0.95, Extent: 0.95}
	if reason := EvaluateForm(low, s); reason != nil {
		t.Errorf("aspect at MinAspect: reason = %v, want nil (accepted at boundary)", reason)
	}

	high := &DetectedObject{Aspect: s.MaxAspect, Solidity: 0.95, Extent: 0.95}
	if reason := EvaluateForm(high, s); reason != nil {
		t.Errorf("aspect at MaxAspect: reason = %v, want nil (accepted at boundary)", reason)
	}
}

func TestEvaluateFormChecksAspectFirst(t *testing.T) {
	s := settingsForFormTests()
	obj := &DetectedObject{Aspect: 1.0, Solidity: 0.1, Extent: 0.1} // all three checks would fail

	reason := EvaluateForm(obj, s)
	if reason == nil {
		t.Fatal("EvaluateForm() = nil, want a failure reason")
	}
	if reason.Code != CodeAspectOutOfRange {
		t.Errorf("reason.Code = %v, want CodeAspectOutOfRange (first predicate in order)", reason.Code)
	}
	if obj.FormOK {
		t.Error("FormOK = true, want false")
	}
}

func TestEvaluateFormLowSolidity(t *testing.T) {
	s := settingsForFormTests()
	obj := &DetectedObject{Aspect: 3.0, Solidity: 0.5, Extent: 0.95}

	reason := EvaluateForm(obj, s)
	if reason == nil || reason.Code != CodeLowSolidity {
		t.Errorf("reason = %v, want CodeLowSolidity", reason)
	}
}

func TestEvaluateFormLowExtent(t *testing.T) {
	s := settingsForFormTests()
	obj := &DetectedObject{Aspect: 3.0, Solidity: 0.95, Extent: 0.5}

	reason := EvaluateForm(obj, s)
	if reason == nil || reason.Code != CodeLowExtent {
		t.Errorf("reason = %v, want CodeLowExtent", reason)
	}
}
