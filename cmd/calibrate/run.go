package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/qc-cell/internal/calibration"
	"github.com/your-org/qc-cell/internal/config"
	"github.com/your-org/qc-cell/internal/qcsettings"
	"github.com/your-org/qc-cell/internal/storage"
	"github.com/your-org/qc-cell/internal/vision"
)

func newRunCmd(root *Root) *cobra.Command {
	var (
		warmupSeconds int
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture a frame of the dot grid and solve the homography",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config()
			if err != nil {
				return err
			}

			rep := newReporter()
			rep.section("CAPTURE")
			rep.label(10, "Camera:", fmt.Sprintf("index %d", cfg.Vision.CameraIndex))

			source, err := vision.NewCaptureSourceFromDevice(cfg.Vision.CameraIndex, cfg.Vision.FrameWidth, cfg.Vision.FrameHeight)
			if err != nil {
				return fmt.Errorf("open capture device: %w", err)
			}
			defer source.Close()

			countdown(warmupSeconds)

			frame, err := source.Next()
			if err != nil {
				return fmt.Errorf("capture frame: %w", err)
			}
			defer frame.Close()

			settings, err := qcsettings.Load(cfg.Vision.SettingsPath)
			if err != nil {
				return fmt.Errorf("load qc settings: %w", err)
			}

			rep.section("SOLVE")
			result, err := calibration.Calibrate(frame.Mat, settings)
			if err != nil {
				return fmt.Errorf("calibrate: %w", err)
			}
			result.Sidecar.Timestamp = time.Now()

			rep.label(14, "Dots found:", fmt.Sprintf("%d", result.Sidecar.NumPoints))
			rep.label(14, "Avg error:", fmt.Sprintf("%.3f mm", result.Sidecar.AvgErrorMM))
			rep.label(14, "Max error:", fmt.Sprintf("%.3f mm", result.Sidecar.MaxErrorMM))
			rep.label(14, "RMS error:", fmt.Sprintf("%.3f mm", result.Sidecar.RMSErrorMM))

			passed := result.Sidecar.MaxErrorMM <= settings.MaxCalibrationErrorMM
			rep.result(passed, fmt.Sprintf("tolerance: %.3f mm", settings.MaxCalibrationErrorMM))

			if !passed && !force {
				return fmt.Errorf("calibration exceeds tolerance (%.3f > %.3f mm); rerun with --force to save anyway",
					result.Sidecar.MaxErrorMM, settings.MaxCalibrationErrorMM)
			}

			if err := os.MkdirAll(cfg.Vision.CalibrationDir, 0o755); err != nil {
				return fmt.Errorf("create calibration dir: %w", err)
			}
			path := filepath.Join(cfg.Vision.CalibrationDir, "homography.bin")
			if err := calibration.SaveHomography(path, result.Homography, result.Sidecar); err != nil {
				return fmt.Errorf("save homography: %w", err)
			}
			rep.label(10, "Saved:", path)

			uploadCalibrationArtifacts(rep, cfg, path)
			return nil
		},
	}

	cmd.Flags().IntVar(&warmupSeconds, "warmup", 2, "seconds to let the camera settle before capture")
	cmd.Flags().BoolVar(&force, "force", false, "save even if reprojection error exceeds tolerance")

	return cmd
}

// uploadCalibrationArtifacts mirrors the just-saved homography matrix and
// its sidecar to MinIO so the commissioning record survives a lost disk;
// the local file under cfg.Vision.CalibrationDir stays the artifact of
// record that cmd/visionsvc actually loads from. Best-effort: a MinIO
// outage must not block commissioning.
func uploadCalibrationArtifacts(rep *reporter, cfg *config.Config, path string) {
	matData, err := os.ReadFile(path)
	if err != nil {
		rep.label(10, "MinIO:", fmt.Sprintf("skip (%v)", err))
		return
	}
	sideData, err := os.ReadFile(path + ".json")
	if err != nil {
		rep.label(10, "MinIO:", fmt.Sprintf("skip (%v)", err))
		return
	}

	store, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		rep.label(10, "MinIO:", fmt.Sprintf("skip (%v)", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		rep.label(10, "MinIO:", fmt.Sprintf("skip (%v)", err))
		return
	}
	if err := store.PutObject(ctx, "calibration/homography.bin", matData, "application/octet-stream"); err != nil {
		rep.label(10, "MinIO:", fmt.Sprintf("upload failed (%v)", err))
		return
	}
	if err := store.PutObject(ctx, "calibration/homography.bin.json", sideData, "application/json"); err != nil {
		rep.label(10, "MinIO:", fmt.Sprintf("upload failed (%v)", err))
		return
	}
	rep.label(10, "MinIO:", "uploaded calibration/homography.bin")
}
