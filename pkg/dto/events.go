// Package dto holds the wire types exposed on qcwatch's HTTP/WebSocket
// surface — distinct from internal/models, which carries the NATS
// payloads exchanged between the vision and dispatch services.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// WSEvent is one message broadcast to connected qcwatch dashboard
// clients: a QC verdict for a single object, already flattened from
// models.QCEvent into display-ready fields.
type WSEvent struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Generation uint64    `json:"generation"`
	ObjectIdx  int       `json:"object_idx"`
	OverallOK  bool      `json:"overall_ok"`
	Reasons    []string  `json:"reasons,omitempty"`
	WidthMM    float64   `json:"width_mm"`
	HeightMM   float64   `json:"height_mm"`
	DeltaE     float64   `json:"delta_e"`
	HoleCount  int       `json:"hole_count"`
	AngleDeg   float64   `json:"angle_deg"`
	RobotX     float64   `json:"robot_x"`
	RobotY     float64   `json:"robot_y"`
}

// DispatchStatus is the /v1/dispatch/status response: a snapshot of the
// robot link and dispatch state machine for the dashboard's status
// strip.
type DispatchStatus struct {
	LinkState     string `json:"link_state"`
	DispatchState string `json:"dispatch_state"`
	QueueDepth    int    `json:"queue_depth"`
}

// CalibrationStatus is the /v1/calibration/status response.
type CalibrationStatus struct {
	Calibrated   bool      `json:"calibrated"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	NumPoints    int       `json:"num_points,omitempty"`
	AvgErrorMM   float64   `json:"avg_error_mm,omitempty"`
	MaxErrorMM   float64   `json:"max_error_mm,omitempty"`
	RMSErrorMM   float64   `json:"rms_error_mm,omitempty"`
}
