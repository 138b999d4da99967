// Package models holds the wire types shared across process boundaries:
// vision-service -> NATS -> dispatch-service, and dispatch-service ->
// qcwatch for telemetry.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Command is one robot move line built from a single DetectedObject,
// carrying enough context for dispatch-side logging and for qcwatch to
// render a per-command status without re-deriving it from the line text.
type Command struct {
	Line      string  `json:"line"` // "movel X.XX Y.YY Z A.AA OK|NOK"
	RobotX    float64 `json:"robot_x"`
	RobotY    float64 `json:"robot_y"`
	AngleDeg  float64 `json:"angle_deg"`
	OK        bool    `json:"ok"`
	SourceIdx int     `json:"source_idx"` // position in the originating frame's object list
}

// Batch is the unit handed from the vision service to the dispatch
// service: a monotonic generation identifier plus the ordered command
// list built from one QC cycle (§4.12-§4.13).
type Batch struct {
	ID         uuid.UUID `json:"id"`
	Generation uint64    `json:"generation"`
	Commands   []Command `json:"commands"`
	CreatedAt  time.Time `json:"created_at"`
}

// QCEvent is the live telemetry record published to the EVENTS stream
// for every evaluated DetectedObject, consumed by cmd/qcwatch.
type QCEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Generation uint64   `json:"generation"`
	ObjectIdx int       `json:"object_idx"`
	OverallOK bool      `json:"overall_ok"`
	Reasons   []string  `json:"reasons,omitempty"`
	WidthMM   float64   `json:"width_mm"`
	HeightMM  float64   `json:"height_mm"`
	DeltaE    float64   `json:"delta_e"`
	HoleCount int       `json:"hole_count"`
	AngleDeg  float64   `json:"angle_deg"`
	RobotX    float64   `json:"robot_x"`
	RobotY    float64   `json:"robot_y"`
}
