package vision

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Frame is an immutable raster of pixels in BGR order, produced by a
// FrameSource and consumed once per QC cycle (§3). Mat is not actually
// mutated after capture by anything in this package; callers must still
// call Close when done, mirroring the teacher's own tensor-lifetime
// discipline for its ONNX sessions.
type Frame struct {
	Mat       gocv.Mat
	Seq       uint64
	Timestamp time.Time
}

func (f Frame) Width() int  { return f.Mat.Cols() }
func (f Frame) Height() int { return f.Mat.Rows() }

func (f Frame) Close() error {
	return f.Mat.Close()
}

// FrameSource produces timestamped color frames on demand. The concrete
// vendor-SDK-backed depth camera driver is out of scope per spec.md; only
// this interface and a bench/demo VideoCapture-backed implementation are
// provided here.
type FrameSource interface {
	// Next blocks until a frame is available or the source is exhausted/closed.
	Next() (Frame, error)
	Close() error
}

// CaptureSource is a FrameSource backed by a gocv.VideoCapture — suitable
// for a USB/RTSP camera in development, or a recorded clip for bench
// testing. Production deployments swap this for the vendor SDK adapter.
type CaptureSource struct {
	cap *gocv.VideoCapture
	seq uint64
}

// NewCaptureSourceFromDevice opens a local camera device by index.
func NewCaptureSourceFromDevice(index int, width, height int) (*CaptureSource, error) {
	cap, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", index, err)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	return &CaptureSource{cap: cap}, nil
}

// NewCaptureSourceFromFile opens a video file or RTSP URL.
func NewCaptureSourceFromFile(path string) (*CaptureSource, error) {
	cap, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("open capture source %q: %w", path, err)
	}
	return &CaptureSource{cap: cap}, nil
}

func (c *CaptureSource) Next() (Frame, error) {
	mat := gocv.NewMat()
	if ok := c.cap.Read(&mat); !ok {
		mat.Close()
		return Frame{}, fmt.Errorf("read frame: capture device returned no frame")
	}
	if mat.Empty() {
		mat.Close()
		return Frame{}, fmt.Errorf("read frame: empty frame")
	}
	c.seq++
	return Frame{Mat: mat, Seq: c.seq, Timestamp: time.Now()}, nil
}

func (c *CaptureSource) Close() error {
	return c.cap.Close()
}
