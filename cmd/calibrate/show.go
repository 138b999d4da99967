package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/your-org/qc-cell/internal/calibration"
)

func newShowCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the currently saved homography and its quality metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}

			path := filepath.Join(cfg.Vision.CalibrationDir, "homography.bin")
			h, err := calibration.LoadHomography(path)
			if err != nil {
				return fmt.Errorf("no valid calibration saved at %s: %w", path, err)
			}
			side, err := calibration.LoadSidecar(path)
			if err != nil {
				return fmt.Errorf("load calibration metadata: %w", err)
			}

			rep := newReporter()
			rep.section("HOMOGRAPHY")
			rep.label(12, "Saved:", side.Timestamp.Format("2006-01-02 15:04:05"))
			rep.label(12, "Points:", fmt.Sprintf("%d", side.NumPoints))
			rep.label(12, "Avg error:", fmt.Sprintf("%.3f mm", side.AvgErrorMM))
			rep.label(12, "Max error:", fmt.Sprintf("%.3f mm", side.MaxErrorMM))
			rep.label(12, "RMS error:", fmt.Sprintf("%.3f mm", side.RMSErrorMM))
			for i := range h.M {
				rep.label(12, fmt.Sprintf("row %d:", i), fmt.Sprintf("%.6f  %.6f  %.6f", h.M[i][0], h.M[i][1], h.M[i][2]))
			}
			return nil
		},
	}
	return cmd
}
