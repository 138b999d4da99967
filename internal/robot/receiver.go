package robot

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// readBufferSize is generous for the short ack lines ("DONE", "IDLE")
// this protocol exchanges.
const readBufferSize = 4096

// Receiver reads from the link's current connection, decodes leniently,
// and classifies each line per §4.16: any line containing the substring
// DONE (case-insensitive) is an acknowledgment; any line containing
// IDLE is informational and never forwarded. It never blocks the
// sender — acks are posted to a buffered channel the dispatcher owns.
type Receiver struct {
	link   *Link
	acks   chan<- AckEvent
	logger *slog.Logger
}

func NewReceiver(link *Link, acks chan<- AckEvent, logger *slog.Logger) *Receiver {
	return &Receiver{link: link, acks: acks, logger: logger}
}

// Run blocks reading frames until ctx is cancelled. While the link has
// no connection it polls briefly rather than busy-spinning; once
// connected it suspends on the socket read, matching §5's scheduling
// model.
func (r *Receiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn := r.link.Conn()
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		buf := make([]byte, readBufferSize)
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			r.logger.Warn("robot receiver: connection lost", "err", err, "bytes_read", n)
			r.link.Disconnect()
			continue
		}

		// Lossy UTF-8 decode per §4.16: invalid sequences are dropped
		// rather than failing the read.
		text := strings.ToValidUTF8(string(buf[:n]), "")
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			up := strings.ToUpper(line)

			switch {
			case strings.Contains(up, "DONE"):
				select {
				case r.acks <- AckEvent{Done: true}:
				case <-ctx.Done():
					return
				}
			case strings.Contains(up, "IDLE"):
				// informational only — never treated as an acknowledgment.
			default:
				r.logger.Debug("robot receiver: unrecognized line", "line", line)
			}
		}
	}
}
