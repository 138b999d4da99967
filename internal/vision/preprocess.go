package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

// PreprocessResult bundles every raster produced by the §4.3 pipeline.
// All rasters share the frame's spatial dimensions once Preprocess
// returns, even when an internal downscale was used along the way.
// Callers must Close every Mat field when done.
type PreprocessResult struct {
	Mask        gocv.Mat
	Gray        gocv.Mat
	Threshold   gocv.Mat
	Edges       gocv.Mat
	DebugOverlay gocv.Mat
}

func (r PreprocessResult) Close() {
	r.Mask.Close()
	r.Gray.Close()
	r.Threshold.Close()
	r.Edges.Close()
	r.DebugOverlay.Close()
}

// Preprocess runs the HSV-gate → blur → threshold → edge pipeline
// described in §4.3. settings must already be Normalize()d.
func Preprocess(frame gocv.Mat, s qcsettings.Settings) (PreprocessResult, error) {
	if s.BlurK%2 == 0 || s.BlurK < 1 {
		return PreprocessResult{}, fmt.Errorf("invalid settings: blur_k must be odd and >=1, got %d", s.BlurK)
	}
	if s.BlockSize%2 == 0 || s.BlockSize < 3 {
		return PreprocessResult{}, fmt.Errorf("invalid settings: block_size must be odd and >=3, got %d", s.BlockSize)
	}
	if s.CannyHigh <= s.CannyLow {
		return PreprocessResult{}, fmt.Errorf("invalid settings: canny_high (%d) must exceed canny_low (%d)", s.CannyHigh, s.CannyLow)
	}

	work := frame.Clone()
	defer work.Close()

	downscaled := s.Scale < 1.0
	origSize := image.Pt(frame.Cols(), frame.Rows())
	if downscaled {
		small := image.Pt(maxInt(1, int(float64(origSize.X)*s.Scale)), maxInt(1, int(float64(origSize.Y)*s.Scale)))
		resized := gocv.NewMat()
		gocv.Resize(work, &resized, small, 0, 0, gocv.InterpolationLinear)
		work.Close()
		work = resized
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(work, &hsv, gocv.ColorBGRToHSV)

	lower := gocv.NewScalar(float64(s.HLow), float64(s.SLow), float64(s.VLow), 0)
	upper := gocv.NewScalar(float64(s.HHigh), float64(s.SHigh), float64(s.VHigh), 0)
	maskSmall := gocv.NewMat()
	defer maskSmall.Close()
	gocv.InRangeWithScalar(hsv, lower, upper, &maskSmall)

	masked := gocv.NewMat()
	defer masked.Close()
	gocv.BitwiseAndWithMask(work, work, &masked, maskSmall)

	gray := gocv.NewMat()
	gocv.CvtColor(masked, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(s.BlurK, s.BlurK), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	switch s.ThreshMode {
	case qcsettings.ThreshAdaptiveMean:
		gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv, s.BlockSize, float32(s.C))
	case qcsettings.ThreshAdaptiveGaussian:
		gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, s.BlockSize, float32(s.C))
	default:
		gocv.Threshold(blurred, &thresh, float32(s.GlobalThresh), 255, gocv.ThresholdBinaryInv)
	}

	edges := gocv.NewMat()
	gocv.Canny(blurred, &edges, float32(s.CannyLow), float32(s.CannyHigh))

	debug := work.Clone()
	drawContourOverlay(&debug, thresh, s.MinArea)

	mask := thresh
	if downscaled {
		full := gocv.NewMat()
		gocv.Resize(thresh, &full, origSize, 0, 0, gocv.InterpolationNearestNeighbor)
		thresh.Close()
		mask = full

		grayFull := gocv.NewMat()
		gocv.Resize(gray, &grayFull, origSize, 0, 0, gocv.InterpolationLinear)
		gray.Close()
		gray = grayFull

		edgesFull := gocv.NewMat()
		gocv.Resize(edges, &edgesFull, origSize, 0, 0, gocv.InterpolationNearestNeighbor)
		edges.Close()
		edges = edgesFull

		debugFull := gocv.NewMat()
		gocv.Resize(debug, &debugFull, origSize, 0, 0, gocv.InterpolationLinear)
		debug.Close()
		debug = debugFull
	}

	return PreprocessResult{
		Mask:         mask,
		Gray:         gray,
		Threshold:    mask.Clone(),
		Edges:        edges,
		DebugOverlay: debug,
	}, nil
}

func drawContourOverlay(dst *gocv.Mat, mask gocv.Mat, minArea float64) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < minArea {
			continue
		}
		gocv.DrawContours(dst, contours, i, gocv.NewScalar(0, 255, 0, 0), 2)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
