package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/qc-cell/internal/api"
	"github.com/your-org/qc-cell/internal/api/handlers"
	"github.com/your-org/qc-cell/internal/api/ws"
	"github.com/your-org/qc-cell/internal/config"
	"github.com/your-org/qc-cell/internal/models"
	"github.com/your-org/qc-cell/internal/observability"
	"github.com/your-org/qc-cell/internal/queue"
	"github.com/your-org/qc-cell/internal/storage"
	"github.com/your-org/qc-cell/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.Logging)
	logger.Info("starting qcwatch", "port", cfg.Server.Port)

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		logger.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		logger.Warn("ensure minio bucket", "error", err)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		logger.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := producer.EnsureStreams(ctx); err != nil {
		logger.Warn("ensure nats streams", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		logger.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeEvents(ctx, "qcwatch-events", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.QCEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			logger.Error("unmarshal qc event", "error", err)
			return nil
		}

		hub.BroadcastEvent(&dto.WSEvent{
			ID:         uuid.New(),
			Timestamp:  event.Timestamp,
			Generation: event.Generation,
			ObjectIdx:  event.ObjectIdx,
			OverallOK:  event.OverallOK,
			Reasons:    event.Reasons,
			WidthMM:    event.WidthMM,
			HeightMM:   event.HeightMM,
			DeltaE:     event.DeltaE,
			HoleCount:  event.HoleCount,
			AngleDeg:   event.AngleDeg,
			RobotX:     event.RobotX,
			RobotY:     event.RobotY,
		})
		return nil
	})
	if err != nil {
		logger.Warn("start event consumer", "error", err)
	}

	// qcwatch never opens its own TCP connection to the robot
	// controller — the dispatch service owns that link and broadcasts
	// its status over cell.status, which cellHandler just caches.
	cellHandler := handlers.NewCellHandler(filepath.Join(cfg.Vision.CalibrationDir, "homography.bin"))
	if err := consumer.SubscribeStatus(func(data []byte) {
		var status dto.DispatchStatus
		if err := json.Unmarshal(data, &status); err != nil {
			logger.Warn("unmarshal cell status", "error", err)
			return
		}
		cellHandler.SetDispatchStatus(status)
	}); err != nil {
		logger.Warn("subscribe cell status", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
		Cell:     cellHandler,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("qcwatch HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down qcwatch...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("qcwatch stopped")
}
