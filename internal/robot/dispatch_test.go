package robot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/your-org/qc-cell/internal/models"
)

// fakeLink is a linkSender test double that records every sent line and
// lets tests trigger a disconnect edge on demand.
type fakeLink struct {
	mu         sync.Mutex
	sent       []string
	failNext   bool
	disconnect chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{disconnect: make(chan struct{})}
}

func (f *fakeLink) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeLink) Disconnected() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnect
}

func (f *fakeLink) sentLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestDispatcherSendsCommandsInOrder(t *testing.T) {
	link := newFakeLink()
	d := NewDispatcher(link, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	done := make(chan struct{})
	d.ActivateBatch([]models.Command{
		{Line: "movel 1 1 1 1 OK"},
		{Line: "movel 2 2 2 2 OK"},
	}, func() { close(done) })

	waitFor(t, func() bool { return len(link.sentLines()) == 1 })
	d.Acks() <- AckEvent{Done: true}

	waitFor(t, func() bool { return len(link.sentLines()) == 2 })
	d.Acks() <- AckEvent{Done: true}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch completion callback never fired")
	}

	lines := link.sentLines()
	if lines[0] != "movel 1 1 1 1 OK\n" || lines[1] != "movel 2 2 2 2 OK\n" {
		t.Errorf("sent lines = %v, want in-order movel 1 then movel 2", lines)
	}
}

func TestDispatcherSnapshotReportsQueueDepth(t *testing.T) {
	link := newFakeLink()
	d := NewDispatcher(link, discardLogger())

	if state, depth := d.Snapshot(); state != StateIdle || depth != 0 {
		t.Fatalf("initial Snapshot() = (%v, %d), want (StateIdle, 0)", state, depth)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.ActivateBatch([]models.Command{
		{Line: "movel 1 1 1 1 OK"},
		{Line: "movel 2 2 2 2 OK"},
	}, nil)

	waitFor(t, func() bool {
		_, depth := d.Snapshot()
		return depth == 1
	})
}

func TestDispatcherIgnoresAckWhenIdle(t *testing.T) {
	link := newFakeLink()
	d := NewDispatcher(link, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Acks() <- AckEvent{Done: true}
	time.Sleep(20 * time.Millisecond)

	if len(link.sentLines()) != 0 {
		t.Error("dispatcher sent a command despite being idle")
	}
}

func TestDispatcherReenqueuesAtHeadOnSendFailure(t *testing.T) {
	link := newFakeLink()
	link.failNext = true
	d := NewDispatcher(link, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.ActivateBatch([]models.Command{
		{Line: "movel 1 1 1 1 OK"},
	}, nil)

	// the first send fails (context.DeadlineExceeded) and must be
	// retried without dropping the command.
	waitFor(t, func() bool { return len(link.sentLines()) == 1 })

	if lines := link.sentLines(); lines[0] != "movel 1 1 1 1 OK\n" {
		t.Errorf("sent lines = %v, want the retried command to eventually go out", lines)
	}
}

func TestDispatcherShutdownFlushesInFlightAck(t *testing.T) {
	link := newFakeLink()
	d := NewDispatcher(link, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.ActivateBatch([]models.Command{{Line: "movel 1 1 1 1 OK"}}, nil)
	waitFor(t, func() bool { return len(link.sentLines()) == 1 })

	go func() {
		time.Sleep(10 * time.Millisecond)
		d.Acks() <- AckEvent{Done: true}
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}
