package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/your-org/qc-cell/internal/calibration"
	"github.com/your-org/qc-cell/pkg/dto"
)

// CellHandler exposes read-only status endpoints for the robot link,
// dispatch state machine, and the most recent calibration run. The
// dispatch state is fed in from whatever process actually owns the
// robot link (see SetDispatchStatus) rather than held here directly —
// qcwatch and the dispatch service are separate processes, so this
// handler never owns a second TCP connection to the controller.
type CellHandler struct {
	mu              sync.RWMutex
	status          dto.DispatchStatus
	calibrationPath string // path to the saved homography file; its sidecar JSON is at calibrationPath+".json"
}

func NewCellHandler(calibrationPath string) *CellHandler {
	return &CellHandler{calibrationPath: calibrationPath}
}

// SetDispatchStatus updates the cached status, most recently reported
// over the cell.status subject.
func (h *CellHandler) SetDispatchStatus(status dto.DispatchStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

func (h *CellHandler) DispatchStatus(c *gin.Context) {
	h.mu.RLock()
	status := h.status
	h.mu.RUnlock()
	c.JSON(http.StatusOK, status)
}

func (h *CellHandler) CalibrationStatus(c *gin.Context) {
	if _, err := calibration.LoadHomography(h.calibrationPath); err != nil {
		c.JSON(http.StatusOK, dto.CalibrationStatus{Calibrated: false})
		return
	}
	side, err := calibration.LoadSidecar(h.calibrationPath)
	if err != nil {
		c.JSON(http.StatusOK, dto.CalibrationStatus{Calibrated: false})
		return
	}

	c.JSON(http.StatusOK, dto.CalibrationStatus{
		Calibrated: true,
		Timestamp:  side.Timestamp,
		NumPoints:  side.NumPoints,
		AvgErrorMM: side.AvgErrorMM,
		MaxErrorMM: side.MaxErrorMM,
		RMSErrorMM: side.RMSErrorMM,
	})
}
