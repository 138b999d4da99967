package command

import (
	"testing"

	"github.com/your-org/qc-cell/internal/vision"
)

func TestBuildPreservesOrderAndFormatsVerdict(t *testing.T) {
	objects := []*vision.DetectedObject{
		{RobotX: 10.123, RobotY: 20.456, AngleDeg: 45.6, OverallOK: true},
		{RobotX: -5.5, RobotY: 3.25, AngleDeg: 90, OverallOK: false},
	}

	cmds := Build(objects, 55)

	if len(cmds) != 2 {
		t.Fatalf("len(cmds) = %d, want 2", len(cmds))
	}
	if cmds[0].Line != "movel 10.12 20.46 55.00 45.60 OK" {
		t.Errorf("cmds[0].Line = %q", cmds[0].Line)
	}
	if cmds[1].Line != "movel -5.50 3.25 55.00 90.00 NOK" {
		t.Errorf("cmds[1].Line = %q", cmds[1].Line)
	}
	if cmds[0].SourceIdx != 0 || cmds[1].SourceIdx != 1 {
		t.Error("SourceIdx does not track input order")
	}
}

func TestBuildEmptyInput(t *testing.T) {
	cmds := Build(nil, 55)
	if len(cmds) != 0 {
		t.Errorf("len(cmds) = %d, want 0", len(cmds))
	}
}
