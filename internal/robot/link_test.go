package robot

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLinkConnectsAndReportsState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	link := NewLink("127.0.0.1", addr.Port, time.Second, 10*time.Millisecond, 100*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Run(ctx)

	select {
	case conn := <-accepted:
		defer conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted a connection")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if link.State() == ConnConnected {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if link.State() != ConnConnected {
		t.Fatalf("link.State() = %v, want ConnConnected", link.State())
	}
	if link.Conn() == nil {
		t.Error("link.Conn() = nil, want a connection")
	}
}

func TestLinkDisconnectClosesSignalAndClearsConn(t *testing.T) {
	link := NewLink("127.0.0.1", 0, time.Second, time.Millisecond, time.Millisecond, discardLogger())
	link.mu.Lock()
	link.state = ConnConnected
	link.mu.Unlock()

	signal := link.Disconnected()
	link.Disconnect()

	select {
	case <-signal:
	default:
		t.Error("Disconnected() channel was not closed after Disconnect()")
	}

	if link.State() != ConnDisconnected {
		t.Errorf("State() = %v, want ConnDisconnected", link.State())
	}
	if link.Conn() != nil {
		t.Error("Conn() should be nil after Disconnect()")
	}

	// the channel identity must change so a fresh Disconnected() call
	// waits for the *next* edge, not the one that already fired.
	if link.Disconnected() == signal {
		t.Error("Disconnected() returned the same channel after firing")
	}
}

func TestLinkSendWithoutConnectionFails(t *testing.T) {
	link := NewLink("127.0.0.1", 0, time.Second, time.Millisecond, time.Millisecond, discardLogger())
	if err := link.Send([]byte("hello")); err == nil {
		t.Error("Send() error = nil, want error when not connected")
	}
}
