package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/qc-cell/internal/batchwatcher"
	"github.com/your-org/qc-cell/internal/command"
	"github.com/your-org/qc-cell/internal/config"
	"github.com/your-org/qc-cell/internal/models"
	"github.com/your-org/qc-cell/internal/observability"
	"github.com/your-org/qc-cell/internal/queue"
	"github.com/your-org/qc-cell/internal/robot"
	"github.com/your-org/qc-cell/pkg/dto"
)

// batchAdapter funnels both the NATS batch consumer and the file-drop
// watcher into the same Trigger/Dispatcher pair, so a batch accepted
// from either source activates or stashes through identical logic.
type batchAdapter struct {
	trig *command.Trigger
	disp *robot.Dispatcher
}

func (a *batchAdapter) Offer(b models.Batch) (bool, error) {
	activated, err := a.trig.Offer(b)
	if err != nil {
		return false, err
	}
	if activated {
		a.activate(b)
	}
	return activated, nil
}

// activate hands a batch's commands to the dispatcher and, on
// completion, promotes whatever batch the trigger stashed as pending.
func (a *batchAdapter) activate(b models.Batch) {
	a.disp.ActivateBatch(b.Commands, func() {
		if next, promoted := a.trig.Complete(); promoted {
			a.activate(next)
		}
	})
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.Logging)
	logger.Info("starting dispatch service", "robot_host", cfg.Robot.Host, "robot_port", cfg.Robot.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link := robot.NewLink(cfg.Robot.Host, cfg.Robot.Port, cfg.Robot.ConnectTimeout,
		cfg.Robot.ReconnectMinDelay, cfg.Robot.ReconnectMaxDelay, logger)
	go link.Run(ctx)

	dispatcher := robot.NewDispatcher(link, logger)
	go dispatcher.Run(ctx)

	receiver := robot.NewReceiver(link, dispatcher.Acks(), logger)
	go receiver.Run(ctx)

	adapter := &batchAdapter{trig: command.NewTrigger(), disp: dispatcher}

	if cfg.Vision.BatchDir != "" {
		watcher := batchwatcher.NewWatcher(cfg.Vision.BatchDir+"/drop.json", adapter, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("batch watcher stopped", "error", err)
			}
		}()
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		logger.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		logger.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		logger.Error("connect to nats consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeBatches(ctx, "dispatch-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var batch models.Batch
		if err := json.Unmarshal(msg.Data(), &batch); err != nil {
			logger.Error("unmarshal batch", "error", err)
			return nil // don't retry on a malformed payload
		}

		activated, err := adapter.Offer(batch)
		if err != nil {
			logger.Info("batch rejected", "generation", batch.Generation, "error", err)
			observability.BatchesRejected.WithLabelValues("stale_generation").Inc()
			return nil
		}
		logger.Info("batch accepted", "generation", batch.Generation, "commands", len(batch.Commands), "activated", activated)
		return nil
	}, cfg.Robot.ConsumerWorkers)
	if err != nil {
		logger.Error("start batch consumer", "error", err)
		os.Exit(1)
	}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state, depth := dispatcher.Snapshot()
				status := dto.DispatchStatus{
					LinkState:     link.State().String(),
					DispatchState: state.String(),
					QueueDepth:    depth,
				}
				data, err := json.Marshal(status)
				if err != nil {
					continue
				}
				if err := producer.PublishStatus(data); err != nil {
					logger.Warn("publish cell status", "error", err)
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
		const addr = ":8081"
		logger.Info("dispatch service metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down dispatch service...")
	cancel()
	time.Sleep(3 * time.Second) // let the dispatcher flush an in-flight ack
	logger.Info("dispatch service stopped")
}
