package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gocv.io/x/gocv"

	"github.com/your-org/qc-cell/internal/calibration"
	"github.com/your-org/qc-cell/internal/command"
	"github.com/your-org/qc-cell/internal/config"
	"github.com/your-org/qc-cell/internal/models"
	"github.com/your-org/qc-cell/internal/observability"
	"github.com/your-org/qc-cell/internal/qcsettings"
	"github.com/your-org/qc-cell/internal/queue"
	"github.com/your-org/qc-cell/internal/storage"
	"github.com/your-org/qc-cell/internal/vision"
)

// cellStreamID partitions the NATS subject space; a single-line cell has
// exactly one logical stream.
const cellStreamID = "cell"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.Logging)
	logger.Info("starting vision service", "camera_index", cfg.Vision.CameraIndex)

	settingsStore, err := qcsettings.NewStore(cfg.Vision.SettingsPath)
	if err != nil {
		logger.Error("load qc settings", "error", err)
		os.Exit(1)
	}

	homographyPath := filepath.Join(cfg.Vision.CalibrationDir, "homography.bin")
	var homog atomic.Pointer[calibration.Homography]
	if h, err := calibration.LoadHomography(homographyPath); err == nil {
		homog.Store(&h)
	} else {
		logger.Warn("no valid calibration on disk yet — robot coordinates will be zero until calibrate is run", "error", err)
		homog.Store(&calibration.Homography{})
	}

	source, err := vision.NewCaptureSourceFromDevice(cfg.Vision.CameraIndex, cfg.Vision.FrameWidth, cfg.Vision.FrameHeight)
	if err != nil {
		logger.Error("open capture source", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		logger.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		logger.Warn("connect to minio — debug snapshots disabled", "error", err)
	} else if err := minioStore.EnsureBucket(context.Background()); err != nil {
		logger.Warn("ensure minio bucket — debug snapshots disabled", "error", err)
		minioStore = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := producer.EnsureStreams(ctx); err != nil {
		logger.Warn("ensure nats streams", "error", err)
	}

	pipeline := vision.NewPipeline()
	var generation uint64

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := settingsStore.Reload(); err != nil {
					logger.Warn("reload qc settings", "error", err)
				}
				if h, err := calibration.LoadHomography(homographyPath); err == nil {
					homog.Store(&h)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			frame, err := source.Next()
			if err != nil {
				logger.Warn("read frame", "error", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}

			settings := settingsStore.Current()
			objects, pre, err := pipeline.Run(frame.Mat, settings)
			frame.Close()
			if err != nil {
				logger.Error("run qc pipeline", "error", err)
				continue
			}

			anyRejected := false
			for _, obj := range objects {
				if !obj.OverallOK {
					anyRejected = true
					break
				}
			}
			var snapshot []byte
			if anyRejected && minioStore != nil {
				if buf, err := gocv.IMEncode(gocv.PNGFileExt, pre.DebugOverlay); err != nil {
					logger.Warn("encode debug overlay", "error", err)
				} else {
					snapshot = append([]byte(nil), buf.GetBytes()...)
					buf.Close()
				}
			}
			pre.Close()

			if h := homog.Load(); h != nil && h.Validate() == nil {
				for _, obj := range objects {
					obj.RobotX, obj.RobotY = h.Apply(obj.CentroidX, obj.CentroidY)
				}
			}

			generation++
			now := time.Now()
			commands := command.Build(objects, cfg.Robot.ApproachZ)
			batch := models.Batch{
				ID:         uuid.New(),
				Generation: generation,
				Commands:   commands,
				CreatedAt:  now,
			}

			if err := producer.PublishBatch(ctx, cellStreamID, batch); err != nil {
				logger.Error("publish batch", "error", err)
			}
			observability.BatchesPublished.Inc()

			if snapshot != nil {
				key := fmt.Sprintf("snapshots/generation-%d.png", generation)
				go func(key string, data []byte) {
					uploadCtx, uploadCancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer uploadCancel()
					if err := minioStore.PutObject(uploadCtx, key, data, "image/png"); err != nil {
						logger.Warn("upload debug snapshot", "key", key, "error", err)
					}
				}(key, snapshot)
			}

			for i, obj := range objects {
				event := models.QCEvent{
					Timestamp: now,
					Generation: generation,
					ObjectIdx: i,
					OverallOK: obj.OverallOK,
					Reasons:   reasonStrings(obj.Reasons),
					WidthMM:   obj.WidthMM,
					HeightMM:  obj.HeightMM,
					DeltaE:    obj.DeltaE,
					HoleCount: obj.HoleCount,
					AngleDeg:  obj.AngleDeg,
					RobotX:    obj.RobotX,
					RobotY:    obj.RobotY,
				}
				if err := producer.PublishEvent(ctx, cellStreamID, event); err != nil {
					logger.Error("publish qc event", "error", err)
				}
			}
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		const addr = ":8082"
		logger.Info("vision service metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down vision service...")
	cancel()
	time.Sleep(1 * time.Second)
	logger.Info("vision service stopped")
}

func reasonStrings(reasons []vision.Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = r.String()
	}
	return out
}
