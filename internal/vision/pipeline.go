package vision

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/observability"
	"github.com/your-org/qc-cell/internal/qcsettings"
)

// Pipeline runs one full QC cycle: preprocess → contour/form → size →
// color → special → combine → pose. It owns no state across cycles;
// Settings are passed in fresh each call so a reload takes effect on the
// very next frame.
type Pipeline struct{}

func NewPipeline() *Pipeline { return &Pipeline{} }

// Run processes one frame and returns the DetectedObjects ready for the
// command builder. The caller is responsible for closing the returned
// PreprocessResult's rasters (exposed for optional debug display).
func (p *Pipeline) Run(frame gocv.Mat, s qcsettings.Settings) ([]*DetectedObject, PreprocessResult, error) {
	observability.FramesProcessed.Inc()

	pre, err := Preprocess(frame, s)
	if err != nil {
		return nil, PreprocessResult{}, fmt.Errorf("preprocess: %w", err)
	}

	cand, err := ExtractCandidates(pre.Mask, s)
	if err != nil {
		pre.Close()
		return nil, PreprocessResult{}, fmt.Errorf("extract candidates: %w", err)
	}
	defer cand.Close()

	observability.ObjectsDetected.Add(float64(len(cand.Objects)))

	for i, obj := range cand.Objects {
		formReason := EvaluateForm(obj, s) // already computed in ExtractCandidates but re-asserted here for clarity/testability

		start := time.Now()
		sizeReason := EvaluateSize(obj, s)
		observability.EvaluatorDuration.WithLabelValues("size").Observe(time.Since(start).Seconds())

		start = time.Now()
		colorReason := EvaluateColor(obj, frame, s)
		observability.EvaluatorDuration.WithLabelValues("color").Observe(time.Since(start).Seconds())

		start = time.Now()
		specialReason := EvaluateSpecial(obj, cand, i, s)
		observability.EvaluatorDuration.WithLabelValues("special").Observe(time.Since(start).Seconds())

		obj.Combine(formReason, sizeReason, colorReason, specialReason)

		EstimatePose(obj, s)

		pass := "true"
		reason := "none"
		if !obj.OverallOK {
			pass = "false"
			if len(obj.Reasons) > 0 {
				reason = obj.Reasons[0].Section.String()
			}
		}
		observability.VerdictsTotal.WithLabelValues(pass, reason).Inc()
	}

	return cand.Objects, pre, nil
}
