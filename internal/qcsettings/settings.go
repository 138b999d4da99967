// Package qcsettings holds the tunable QC parameters: HSV gate, morphology,
// edge thresholds, and every evaluator's pass/fail thresholds. It is
// distinct from internal/config, which carries service-level wiring
// (ports, hosts, paths) — Settings is produced by an external tuning
// utility and is only ever replaced wholesale by a reload.
package qcsettings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// ThreshMode selects the binarization strategy applied after blur.
type ThreshMode int

const (
	ThreshGlobal ThreshMode = iota
	ThreshAdaptiveMean
	ThreshAdaptiveGaussian
)

// Settings is the full set of QC tunables, loaded from and persisted to a
// flat JSON document. Unknown keys are ignored on load; missing keys keep
// their Defaults() value, and the result is then normalized by Normalize.
type Settings struct {
	// HSV gate
	HLow  int `json:"h_low"`
	HHigh int `json:"h_high"`
	SLow  int `json:"s_low"`
	SHigh int `json:"s_high"`
	VLow  int `json:"v_low"`
	VHigh int `json:"v_high"`

	// Morphology
	BlurK      int        `json:"blur_k"`
	BlockSize  int        `json:"block_size"`
	C          float64    `json:"c"`
	ThreshMode ThreshMode `json:"thresh_mode"`
	GlobalThresh int      `json:"global_thresh"`

	// Edge
	CannyLow  int `json:"canny_low"`
	CannyHigh int `json:"canny_high"`

	// Filters
	MinArea float64 `json:"min_area"`
	Scale   float64 `json:"scale"`

	// Form evaluator (§4.4)
	MinAspect    float64 `json:"min_aspect"`
	MaxAspect    float64 `json:"max_aspect"`
	MinSolidity  float64 `json:"min_solidity"`
	MinExtent    float64 `json:"min_extent"`

	// Size evaluator (§4.5)
	MMPerPixel        float64 `json:"mm_per_pixel"`
	ExpectedWidthMM   float64 `json:"expected_width_mm"`
	ExpectedHeightMM  float64 `json:"expected_height_mm"`
	ToleranceWidthMM  float64 `json:"tolerance_width_mm"`
	ToleranceHeightMM float64 `json:"tolerance_height_mm"`

	// Color evaluator (§4.6) — LAB as OpenCV stores it: L,a,b in [0,255]
	ReferenceLAB    [3]float64 `json:"reference_lab"`
	ToleranceDeltaE float64    `json:"tolerance_delta_e"`

	// Special evaluator (§4.7)
	ExpectedHoleCount int     `json:"expected_hole_count"`
	MinHoleArea       float64 `json:"min_hole_area"`
	MaxHoleArea       float64 `json:"max_hole_area"`

	// Pose estimator (§4.9) — commissioning-time offset, no authoritative
	// non-zero value exists anywhere in the source this was distilled
	// from (see DESIGN.md); operators set this during integration.
	AngleOffsetDeg float64 `json:"angle_offset_deg"`

	// Calibration solver (§4.10)
	MinDotArea            float64 `json:"min_dot_area"`
	MaxCalibrationErrorMM float64 `json:"max_calibration_error_mm"`
	ROIX                  int     `json:"roi_x"`
	ROIY                  int     `json:"roi_y"`
	ROIWidth              int     `json:"roi_width"`
	ROIHeight             int     `json:"roi_height"`
}

// Defaults mirrors the production defaults recovered from the original
// implementation's evaluator modules.
func Defaults() Settings {
	return Settings{
		HLow: 0, HHigh: 10, SLow: 80, SHigh: 255, VLow: 60, VHigh: 255,
		BlurK: 5, BlockSize: 11, C: 2, ThreshMode: ThreshGlobal, GlobalThresh: 125,
		CannyLow: 50, CannyHigh: 150,
		MinArea: 1000, Scale: 1.0,
		MinAspect: 2.0, MaxAspect: 7.0, MinSolidity: 0.88, MinExtent: 0.90,
		MMPerPixel: 0.383, ExpectedWidthMM: 96.7, ExpectedHeightMM: 25.7,
		ToleranceWidthMM: 3.0, ToleranceHeightMM: 2.0,
		ReferenceLAB:    [3]float64{107.30393, 187.07338, 160.88551},
		ToleranceDeltaE: 25.0,
		ExpectedHoleCount: 2, MinHoleArea: 50, MaxHoleArea: 150,
		AngleOffsetDeg: 0.0,
		MinDotArea:     20, MaxCalibrationErrorMM: 3.0,
	}
}

// Normalize enforces the §3 invariants in place: odd fields are forced
// odd, canny_high must exceed canny_low, scale is clamped to (0,1].
func (s *Settings) Normalize() {
	if s.BlurK < 1 {
		s.BlurK = 1
	}
	if s.BlurK%2 == 0 {
		s.BlurK++
	}
	if s.BlockSize < 3 {
		s.BlockSize = 3
	}
	if s.BlockSize%2 == 0 {
		s.BlockSize++
	}
	if s.CannyHigh <= s.CannyLow {
		s.CannyHigh = s.CannyLow + 1
	}
	if s.Scale <= 0 {
		s.Scale = 1.0
	}
	if s.Scale > 1 {
		s.Scale = 1.0
	}
}

// Validate reports a configuration error for settings Normalize cannot
// silently repair — an inverted HSV gate, a zero/negative min area, an
// out-of-range thresh_mode.
func (s Settings) Validate() error {
	if s.HLow > s.HHigh {
		return fmt.Errorf("invalid settings: h_low (%d) > h_high (%d)", s.HLow, s.HHigh)
	}
	if s.SLow > s.SHigh {
		return fmt.Errorf("invalid settings: s_low (%d) > s_high (%d)", s.SLow, s.SHigh)
	}
	if s.VLow > s.VHigh {
		return fmt.Errorf("invalid settings: v_low (%d) > v_high (%d)", s.VLow, s.VHigh)
	}
	if s.MinArea <= 0 {
		return fmt.Errorf("invalid settings: min_area must be positive, got %v", s.MinArea)
	}
	if s.ThreshMode != ThreshGlobal && s.ThreshMode != ThreshAdaptiveMean && s.ThreshMode != ThreshAdaptiveGaussian {
		return fmt.Errorf("invalid settings: unknown thresh_mode %d", s.ThreshMode)
	}
	return nil
}

// Load reads Settings from a JSON file over Defaults(), so any key absent
// from the file keeps its default (a key present with an explicit zero
// value keeps that zero), then normalizes/validates the result.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save persists Settings as indented JSON.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

// Store holds the current Settings behind a RWMutex and supports atomic
// reload from disk. Settings are immutable after load and freely shared
// per §5 — Store only protects the pointer swap on reload, never a
// field-by-field mutation.
type Store struct {
	mu   sync.RWMutex
	path string
	cur  Settings
}

func NewStore(path string) (*Store, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cur: s}, nil
}

func (st *Store) Current() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Reload re-reads the settings file from disk, replacing Current()
// atomically. cmd/visionsvc calls it from a 5s polling ticker.
func (st *Store) Reload() error {
	s, err := Load(st.path)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.cur = s
	st.mu.Unlock()
	return nil
}
