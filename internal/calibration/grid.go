// Package calibration solves the pixel-to-robot homography from a single
// frame of the 20-dot calibration grid, and applies the saved matrix to
// map detected-object centroids into robot-plane millimeters.
package calibration

// GridRows and GridCols define the fiducial dot pattern: 4 rows, 5
// columns, 20 dots total (§3/§4.10).
const (
	GridRows = 4
	GridCols = 5
	GridSize = GridRows * GridCols

	// StepXMM and StepYMM are the robot-frame spacing between adjacent
	// dots, origin at the grid's first corner dot.
	StepXMM = 112.5
	StepYMM = 140.0
)

// Point2D is a plain (X, Y) pair, used both for pixel coordinates and
// robot-plane millimeter coordinates depending on context.
type Point2D struct {
	X, Y float64
}

// RobotGrid is the compile-time constant robot-frame coordinate of every
// dot, in the same row-major order the solver sorts detected dots into:
// row 0 (Y=0) columns 0..4 ascending X, then row 1 (Y=StepYMM), etc.
var RobotGrid = buildRobotGrid()

func buildRobotGrid() [GridSize]Point2D {
	var grid [GridSize]Point2D
	for row := 0; row < GridRows; row++ {
		for col := 0; col < GridCols; col++ {
			grid[row*GridCols+col] = Point2D{
				X: float64(col) * StepXMM,
				Y: float64(row) * StepYMM,
			}
		}
	}
	return grid
}
