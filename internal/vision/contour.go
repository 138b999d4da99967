package vision

import (
	"encoding/binary"

	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/qcsettings"
)

// hierarchyNode mirrors one row of OpenCV's findContours hierarchy output:
// [nextSibling, prevSibling, firstChild, parent] contour indices, -1 when absent.
type hierarchyNode struct {
	next, prev, firstChild, parent int32
}

// Candidates owns the full contour tree extracted from one binary mask.
// It is produced once by ExtractCandidates and consumed by both the form
// evaluator (top-level contours) and the special evaluator (children of
// each top-level contour), then released with Close.
type Candidates struct {
	contours   gocv.PointsVector
	hierarchy  []hierarchyNode
	Objects    []*DetectedObject
	objIdx     []int // contour index in `contours` for Objects[i]
}

func (c *Candidates) Close() {
	c.contours.Close()
}

// childAreas returns the areas of every direct child of contour index idx
// whose area lies in [minArea, maxArea].
func (c *Candidates) childAreas(idx int, minArea, maxArea float64) []float64 {
	var areas []float64
	child := c.hierarchy[idx].firstChild
	for child != -1 {
		area := gocv.ContourArea(c.contours.At(int(child)))
		if area >= minArea && area <= maxArea {
			areas = append(areas, area)
		}
		child = c.hierarchy[child].next
	}
	return areas
}

// ExtractCandidates finds the full contour tree in mask, builds a
// DetectedObject for every top-level contour whose area passes the
// coarse min_area filter, computes its shape descriptors, and runs the
// form evaluator (§4.4). Degenerate candidates (zero hull or rect area)
// are dropped silently per §4.4 edge cases.
func ExtractCandidates(mask gocv.Mat, s qcsettings.Settings) (*Candidates, error) {
	var hierarchyMat gocv.Mat
	contours := gocv.FindContoursWithParams(mask, &hierarchyMat, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer hierarchyMat.Close()

	hierarchy, err := decodeHierarchy(hierarchyMat, contours.Size())
	if err != nil {
		contours.Close()
		return nil, err
	}

	cand := &Candidates{contours: contours, hierarchy: hierarchy}

	for i := 0; i < contours.Size(); i++ {
		if hierarchy[i].parent != -1 {
			continue // only top-level contours are part candidates
		}
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < s.MinArea {
			continue
		}

		points := c.ToPoints()
		rect := minAreaRectNormalized(points)
		if rect.Width <= 0 || rect.Height <= 0 {
			continue // degenerate bounding rect
		}

		hullArea := convexHullArea(points)
		if hullArea <= 0 {
			continue // degenerate hull
		}

		obj := &DetectedObject{
			Contour:   points,
			CentroidX: rect.CenterX,
			CentroidY: rect.CenterY,
			Rect:      rect,
			Area:      area,
			Aspect:    rect.Width / rect.Height,
			Solidity:  area / hullArea,
			Extent:    area / (rect.Width * rect.Height),
		}
		cx, cy := contourCentroid(points)
		obj.CentroidX, obj.CentroidY = cx, cy

		reason := EvaluateForm(obj, s)
		obj.FormOK = reason == nil
		_ = reason // stashed by caller via Combine; form evaluator also used standalone in tests

		cand.Objects = append(cand.Objects, obj)
		cand.objIdx = append(cand.objIdx, i)
	}

	return cand, nil
}

// contourIndex returns the index into the underlying contour tree for the
// i-th DetectedObject, for use by the special evaluator.
func (c *Candidates) contourIndex(i int) int { return c.objIdx[i] }

func decodeHierarchy(m gocv.Mat, n int) ([]hierarchyNode, error) {
	nodes := make([]hierarchyNode, n)
	if n == 0 {
		return nodes, nil
	}
	raw := m.ToBytes()
	// OpenCV hierarchy is a 1xN Mat of CV_32SC4: 4 little-endian int32 per contour.
	for i := 0; i < n; i++ {
		off := i * 16
		if off+16 > len(raw) {
			break
		}
		nodes[i] = hierarchyNode{
			next:       int32(binary.LittleEndian.Uint32(raw[off : off+4])),
			prev:       int32(binary.LittleEndian.Uint32(raw[off+4 : off+8])),
			firstChild: int32(binary.LittleEndian.Uint32(raw[off+8 : off+12])),
			parent:     int32(binary.LittleEndian.Uint32(raw[off+12 : off+16])),
		}
	}
	return nodes, nil
}
