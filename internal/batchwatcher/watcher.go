// Package batchwatcher implements the file-drop batch adapter: an
// operator or external tool can write a JSON file of pre-built "movel"
// command lines and have it picked up as a batch through the same
// acceptance path the NATS consumer uses, without a vision cycle in
// between. Useful for bench testing the dispatcher/robot link in
// isolation.
package batchwatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/your-org/qc-cell/internal/models"
	"github.com/your-org/qc-cell/internal/observability"
)

// BatchAcceptor is the slice of command.Trigger the watcher depends on,
// so it and the NATS consumer both funnel into the same arbitration
// logic without the watcher needing to import the dispatch wiring.
type BatchAcceptor interface {
	Offer(b models.Batch) (activated bool, err error)
}

// fileBatch is the on-disk JSON shape, matching the original vision
// drop file: a flat list of command strings, each optionally prefixed
// with "add " (stripped on load).
type fileBatch struct {
	Objects []string `json:"objects"`
}

// debounceWindow coalesces the burst of events a single save can
// produce (editors and atomic-rename writers often fire WRITE, CREATE,
// and CHMOD for one logical update).
const debounceWindow = 50 * time.Millisecond

// Watcher loads a new batch whenever the target drop file changes,
// watching its parent directory (not the file itself) so an
// atomic-rename write — which replaces the inode fsnotify is watching —
// is still caught.
type Watcher struct {
	path     string
	acceptor BatchAcceptor
	logger   *slog.Logger

	generation uint64 // atomic, monotonic across the process lifetime
}

func NewWatcher(path string, acceptor BatchAcceptor, logger *slog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		acceptor: acceptor,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. The parent directory must exist;
// the drop file itself does not need to exist yet.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("batchwatcher: fsnotify error", "err", err)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce == nil {
				debounce = time.AfterFunc(debounceWindow, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(debounceWindow)
			}

		case <-fire:
			w.load1()
		}
	}
}

func (w *Watcher) load1() {
	commands, err := w.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		w.logger.Error("batchwatcher: failed to load drop file", "path", w.path, "err", err)
		observability.BatchesRejected.WithLabelValues("parse_error").Inc()
		return
	}
	if len(commands) == 0 {
		w.logger.Info("batchwatcher: drop file contained no commands", "path", w.path)
		return
	}

	batch := models.Batch{
		ID:         uuid.New(),
		Generation: atomic.AddUint64(&w.generation, 1),
		Commands:   commands,
		CreatedAt:  time.Now(),
	}

	activated, err := w.acceptor.Offer(batch)
	if err != nil {
		w.logger.Warn("batchwatcher: batch rejected", "generation", batch.Generation, "err", err)
		observability.BatchesRejected.WithLabelValues("stale_generation").Inc()
		return
	}
	w.logger.Info("batchwatcher: loaded batch", "path", w.path, "generation", batch.Generation, "commands", len(commands), "activated", activated)
}

func (w *Watcher) load() ([]models.Command, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("read drop file: %w", err)
	}

	var fb fileBatch
	if err := json.Unmarshal(raw, &fb); err != nil {
		return nil, fmt.Errorf("unmarshal drop file: %w", err)
	}

	commands := make([]models.Command, 0, len(fb.Objects))
	for idx, raw := range fb.Objects {
		line := strings.TrimSpace(raw)
		if len(line) >= 4 && strings.EqualFold(line[:4], "add ") {
			line = strings.TrimSpace(line[4:])
		}
		if line == "" {
			continue
		}
		cmd, err := parseCommandLine(line)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", idx, err)
		}
		cmd.SourceIdx = idx
		commands = append(commands, cmd)
	}
	return commands, nil
}

// parseCommandLine parses "movel X Y Z A VERDICT" back into a Command,
// the inverse of command.Build's formatting.
func parseCommandLine(line string) (models.Command, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 || !strings.EqualFold(fields[0], "movel") {
		return models.Command{}, fmt.Errorf("malformed command line %q", line)
	}

	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return models.Command{}, fmt.Errorf("parse x: %w", err)
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return models.Command{}, fmt.Errorf("parse y: %w", err)
	}
	angle, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return models.Command{}, fmt.Errorf("parse angle: %w", err)
	}

	return models.Command{
		Line:     line,
		RobotX:   x,
		RobotY:   y,
		AngleDeg: angle,
		OK:       strings.EqualFold(fields[5], "OK"),
	}, nil
}
