package robot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"github.com/your-org/qc-cell/internal/models"
	"github.com/your-org/qc-cell/internal/observability"
)

// DispatchState is the §4.15 dispatch state machine's state.
type DispatchState int

const (
	StateIdle DispatchState = iota
	StateArmed
	StateInFlight
	StateCompleting
)

func (s DispatchState) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateInFlight:
		return "in_flight"
	case StateCompleting:
		return "completing"
	default:
		return "idle"
	}
}

// AckEvent is one parsed acknowledgment from the receiver.
type AckEvent struct {
	Done bool // false means an IDLE line, already filtered to informational by the receiver
}

// ShutdownFlushTimeout bounds how long Run waits for an in-flight
// acknowledgment before dropping the rest of the queue on shutdown.
const ShutdownFlushTimeout = 3 * time.Second

// linkSender is the slice of *Link the dispatcher depends on — enough to
// send a command and watch for the disconnect edge, without pulling in
// the full connect/reconnect lifecycle. Satisfied by *Link; tests use a
// fake.
type linkSender interface {
	Send([]byte) error
	Disconnected() <-chan struct{}
}

// Dispatcher implements the §4.15 state machine: at most one command in
// flight at any time, commands delivered strictly in enqueue order, a
// send error re-enqueues at the head of the queue rather than dropping
// the command.
type Dispatcher struct {
	link   linkSender
	ackCh  chan AckEvent
	logger *slog.Logger

	mu          sync.Mutex
	state       DispatchState
	queue       []models.Command
	ready       bool
	onBatchDone func()

	wake chan struct{}
}

func NewDispatcher(link linkSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		link:   link,
		ackCh:  make(chan AckEvent, 8),
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Acks returns the channel the receiver publishes parsed DONE
// acknowledgments to. IDLE lines are informational and never reach here.
func (d *Dispatcher) Acks() chan<- AckEvent { return d.ackCh }

// Snapshot reports the current state and queue depth, for status
// endpoints and dashboards — never used by the state machine itself.
func (d *Dispatcher) Snapshot() (state DispatchState, queueDepth int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, len(d.queue)
}

// ActivateBatch implements the activate_batch transition: Idle -> Armed,
// ready=true. onDone is invoked exactly once, from the dispatcher's own
// goroutine, when this batch's queue drains — callers use it to promote
// a pending batch (§4.13).
func (d *Dispatcher) ActivateBatch(commands []models.Command, onDone func()) {
	d.mu.Lock()
	d.queue = append([]models.Command(nil), commands...)
	d.ready = true
	d.state = StateArmed
	d.onBatchDone = onDone
	d.mu.Unlock()

	observability.DispatchState.Set(float64(StateArmed))
	observability.QueueDepth.Set(float64(len(commands)))
	d.signal()
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drives the state machine until ctx is cancelled, fanning in the
// wake signal (new batch, retry-after-send-error) and the link's
// disconnect edge so neither source can starve the other.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		disconnect := d.link.Disconnected()
		wake := channerics.Merge(ctx.Done(), d.wake, disconnect)

		select {
		case <-ctx.Done():
			d.flushShutdown()
			return
		case ack, ok := <-d.ackCh:
			if !ok {
				return
			}
			d.handleAck(ack)
		case _, ok := <-wake:
			if !ok {
				// wake closes once ctx is done too (it's one of the merged
				// sources), so treat channel-closed the same as ctx.Done().
				d.flushShutdown()
				return
			}
			d.step()
		}
	}
}

// step sends the next queued command if the machine is Armed, ready,
// and the queue is non-empty.
func (d *Dispatcher) step() {
	d.mu.Lock()
	if d.state != StateArmed || !d.ready || len(d.queue) == 0 {
		d.mu.Unlock()
		return
	}
	cmd := d.queue[0]
	d.ready = false
	d.state = StateInFlight
	d.mu.Unlock()

	observability.DispatchState.Set(float64(StateInFlight))

	if err := d.link.Send([]byte(cmd.Line + "\n")); err != nil {
		d.logger.Warn("robot dispatch: send failed, re-enqueueing at head", "err", err, "line", cmd.Line)
		observability.CommandsReenqueued.Inc()

		d.mu.Lock()
		d.queue = append([]models.Command{cmd}, d.queue[1:]...)
		d.ready = true
		d.state = StateArmed
		d.mu.Unlock()

		observability.DispatchState.Set(float64(StateArmed))
		d.signal()
		return
	}

	observability.CommandsSent.Inc()

	d.mu.Lock()
	d.queue = d.queue[1:]
	d.mu.Unlock()
	observability.QueueDepth.Set(float64(d.queueLen()))
}

func (d *Dispatcher) queueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// handleAck implements the DONE branch of §4.15's transition table. IDLE
// never reaches here — the receiver filters it out as informational.
func (d *Dispatcher) handleAck(ack AckEvent) {
	if !ack.Done {
		return
	}

	d.mu.Lock()
	if d.state == StateIdle {
		d.mu.Unlock()
		return // inactive: ignore per §4.15
	}

	if len(d.queue) > 0 {
		d.ready = true
		d.state = StateArmed
		d.mu.Unlock()
		observability.DispatchState.Set(float64(StateArmed))
		d.signal()
		return
	}

	d.state = StateCompleting
	onDone := d.onBatchDone
	d.onBatchDone = nil
	d.mu.Unlock()

	observability.DispatchState.Set(float64(StateCompleting))
	observability.BatchesDispatched.Inc()

	if onDone != nil {
		onDone()
	}

	// onDone may have activated a promoted batch (state Armed); only a
	// machine still Completing returns to Idle.
	d.mu.Lock()
	toIdle := d.state == StateCompleting
	if toIdle {
		d.state = StateIdle
	}
	d.mu.Unlock()
	if toIdle {
		observability.DispatchState.Set(float64(StateIdle))
	}
}

// flushShutdown implements §4.15's shutdown transition: wait up to
// ShutdownFlushTimeout for an in-flight acknowledgment, then give up on
// the remaining queue.
func (d *Dispatcher) flushShutdown() {
	d.mu.Lock()
	inFlight := d.state == StateInFlight
	d.mu.Unlock()
	if !inFlight {
		return
	}

	select {
	case ack := <-d.ackCh:
		d.handleAck(ack)
	case <-time.After(ShutdownFlushTimeout):
		d.logger.Warn("robot dispatch: shutdown flush timed out, dropping remaining queue")
	}
}
