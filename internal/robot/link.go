// Package robot owns the TCP link to the robot controller, the dispatch
// state machine that feeds it one command at a time, and the
// acknowledgment receiver, per §4.14-§4.16.
package robot

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/your-org/qc-cell/internal/observability"
)

// ConnState is the TCP link's connection lifecycle, per §4.14.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Link maintains at most one outbound connection to the controller.
// States: Disconnected -> Connecting -> Connected -> Disconnected. The
// connect attempt has a bounded timeout; once connected, reads/writes
// have no deadline. Reconnect backoff doubles from minBackoff to
// maxBackoff and resets on a successful connect.
type Link struct {
	host           string
	port           int
	connectTimeout time.Duration
	minBackoff     time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	mu    sync.RWMutex
	conn  net.Conn
	state ConnState

	// disconnect is closed once to broadcast a disconnect edge, then
	// replaced with a fresh channel — the edge-triggered signal pattern
	// §5 requires: only set/clear, never read-modify-write.
	disconnect chan struct{}
}

func NewLink(host string, port int, connectTimeout, minBackoff, maxBackoff time.Duration, logger *slog.Logger) *Link {
	return &Link{
		host:           host,
		port:           port,
		connectTimeout: connectTimeout,
		minBackoff:     minBackoff,
		maxBackoff:     maxBackoff,
		logger:         logger,
		disconnect:     make(chan struct{}),
	}
}

// Conn returns the current connection, or nil when not connected.
func (l *Link) Conn() net.Conn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conn
}

// State reports the current connection lifecycle state.
func (l *Link) State() ConnState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Disconnected returns the channel that closes the next time this link
// drops its connection. Callers must call this again after it fires to
// observe the following disconnect — the channel identity changes on
// every reconnect.
func (l *Link) Disconnected() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.disconnect
}

// Send writes data over the current connection. Thread-safe: any number
// of callers may call Send concurrently, though §4.15 only ever has one
// command in flight at a time. Any write error tears the link down.
func (l *Link) Send(data []byte) error {
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("robot link: not connected")
	}
	if _, err := conn.Write(data); err != nil {
		l.Disconnect()
		return fmt.Errorf("robot link: send: %w", err)
	}
	return nil
}

// Disconnect tears down the current connection and fires the disconnect
// signal. Safe to call multiple times or from any goroutine (the
// receiver calls this on a zero-byte read or socket error).
func (l *Link) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == ConnDisconnected {
		return
	}
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.state = ConnDisconnected
	close(l.disconnect)
	l.disconnect = make(chan struct{})
	observability.LinkState.Set(0)
}

// Run drives the connect/backoff loop until ctx is cancelled.
func (l *Link) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		select {
		case <-ctx.Done():
			l.Disconnect()
			return
		default:
		}

		l.mu.Lock()
		l.state = ConnConnecting
		l.mu.Unlock()
		observability.LinkState.Set(1)

		dialer := net.Dialer{Timeout: l.connectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", l.host, l.port))
		if err != nil {
			l.logger.Warn("robot link: connect failed, retrying", "err", err, "backoff", backoff)
			observability.LinkReconnects.Inc()

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > l.maxBackoff {
				backoff = l.maxBackoff
			}
			continue
		}

		l.mu.Lock()
		l.conn = conn
		l.state = ConnConnected
		disconnected := l.disconnect
		l.mu.Unlock()
		observability.LinkState.Set(2)
		l.logger.Info("robot link: connected", "host", l.host, "port", l.port)
		backoff = l.minBackoff

		select {
		case <-ctx.Done():
			l.Disconnect()
			return
		case <-disconnected:
			// torn down by Send/Disconnect elsewhere; loop to reconnect.
		}
	}
}
