package batchwatcher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/your-org/qc-cell/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAcceptor struct {
	mu      sync.Mutex
	offered []models.Batch
	err     error
}

func (f *fakeAcceptor) Offer(b models.Batch) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.offered = append(f.offered, b)
	return true, nil
}

func (f *fakeAcceptor) batches() []models.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Batch, len(f.offered))
	copy(out, f.offered)
	return out
}

func writeDropFile(t *testing.T, path string, objects []string) {
	t.Helper()
	raw, err := json.Marshal(fileBatch{Objects: objects})
	if err != nil {
		t.Fatalf("marshal drop file: %v", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write drop file: %v", err)
	}
}

func TestWatcherLoadsBatchOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.json")
	writeDropFile(t, path, []string{"add movel 97.55 233.55 55 26.49 NOK"})

	acceptor := &fakeAcceptor{}
	w := NewWatcher(path, acceptor, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// give the watcher time to register on the directory before the
	// rewrite below, then trigger a change event.
	time.Sleep(50 * time.Millisecond)
	writeDropFile(t, path, []string{"add movel 97.55 233.55 55 26.49 NOK"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(acceptor.batches()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	batches := acceptor.batches()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	cmd := batches[0].Commands[0]
	if cmd.RobotX != 97.55 || cmd.RobotY != 233.55 || cmd.AngleDeg != 26.49 || cmd.OK {
		t.Errorf("parsed command = %+v, want x=97.55 y=233.55 angle=26.49 ok=false", cmd)
	}
}

func TestWatcherDebouncesBurstOfWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.json")

	acceptor := &fakeAcceptor{}
	w := NewWatcher(path, acceptor, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	// several rapid rewrites within the debounce window should coalesce
	// into a single accepted batch, not one per write.
	for i := 0; i < 5; i++ {
		writeDropFile(t, path, []string{"movel 1 2 55 3 OK"})
		time.Sleep(time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)
	if n := len(acceptor.batches()); n != 1 {
		t.Fatalf("got %d batches from a debounced write burst, want exactly 1", n)
	}
}

func TestParseCommandLineRejectsMalformedInput(t *testing.T) {
	if _, err := parseCommandLine("not a command"); err == nil {
		t.Error("parseCommandLine() error = nil, want error for malformed line")
	}
}

func TestLoadStripsAddPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.json")
	writeDropFile(t, path, []string{"add movel 1.00 2.00 55 3.00 OK", "movel 4.00 5.00 55 6.00 NOK"})

	w := NewWatcher(path, &fakeAcceptor{}, discardLogger())
	commands, err := w.load()
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(commands))
	}
	if commands[0].RobotX != 1.00 || commands[1].RobotX != 4.00 {
		t.Errorf("commands = %+v, want x=1.00 then x=4.00", commands)
	}
}
