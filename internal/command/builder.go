// Package command builds robot move commands from evaluated vision
// objects and arbitrates which batch of commands is currently active,
// per §4.12-§4.13.
package command

import (
	"fmt"

	"github.com/your-org/qc-cell/internal/models"
	"github.com/your-org/qc-cell/internal/vision"
)

// Build implements §4.12: for each DetectedObject, in input order,
// produce a "movel X.XX Y.YY Z A.AA OK|NOK" line using the object's
// robot-plane position and PCA angle. zFixed is the configured tool
// approach height, held constant across every command in a batch.
func Build(objects []*vision.DetectedObject, zFixed float64) []models.Command {
	commands := make([]models.Command, len(objects))
	for i, obj := range objects {
		verdict := "NOK"
		if obj.OverallOK {
			verdict = "OK"
		}
		commands[i] = models.Command{
			Line:      fmt.Sprintf("movel %.2f %.2f %.2f %.2f %s", obj.RobotX, obj.RobotY, zFixed, obj.AngleDeg, verdict),
			RobotX:    obj.RobotX,
			RobotY:    obj.RobotY,
			AngleDeg:  obj.AngleDeg,
			OK:        obj.OverallOK,
			SourceIdx: i,
		}
	}
	return commands
}
