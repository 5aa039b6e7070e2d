package node

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/metrics"
	"github.com/codewiresh/h1link/internal/protocol"
)

const readSize = 32 * 1024

// Dispatcher answers one JSON request payload on w.
type Dispatcher interface {
	Dispatch(ctx context.Context, w connection.FrameWriter, payload []byte) error
}

// handleClient owns c until the peer disconnects, a write fails or the
// inbound stream becomes undecodable. Frames are dispatched on this
// goroutine in the order they complete, so replies on one connection never
// reorder.
func handleClient(ctx context.Context, c net.Conn, transport string, reg *Registry, d Dispatcher, logger *slog.Logger) {
	entry := reg.Add(c, transport)
	defer reg.Remove(entry.ID)

	metrics.ConnectionOpened(transport)
	defer metrics.ConnectionClosed()

	log := logger.With("conn", entry.ID, "remote", entry.Remote, "transport", transport)
	log.Info("client connected")
	defer log.Info("client disconnected")

	sw := connection.NewStreamWriter(c)
	reg.Attach(entry.ID, sw)
	w := meteredWriter{sw}

	buf := make([]byte, readSize)
	for {
		n, rerr := c.Read(buf)
		if n > 0 {
			frames, ferr := reg.Feed(entry.ID, buf[:n])
			for i := range frames {
				if err := handleFrame(ctx, w, d, &frames[i], log); err != nil {
					log.Warn("write failed, closing", "error", err)
					return
				}
			}
			if ferr != nil {
				log.Warn("closing undecodable stream", "error", ferr)
				return
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, net.ErrClosed) {
				return
			}
			log.Warn("read failed", "error", rerr)
			return
		}
	}
}

func handleFrame(ctx context.Context, w connection.FrameWriter, d Dispatcher, f *protocol.Frame, log *slog.Logger) error {
	metrics.RecordFrame("in", f.Type.String())
	if f.Type != protocol.TypeJSON {
		// Clients never send binary data; there is nothing to answer.
		log.Debug("ignoring inbound frame", "type", f.Type, "bytes", len(f.Payload))
		return nil
	}
	return d.Dispatch(ctx, w, f.Payload)
}

// meteredWriter counts outbound frames.
type meteredWriter struct {
	*connection.StreamWriter
}

func (m meteredWriter) WriteFrame(f *protocol.Frame) error {
	if err := m.StreamWriter.WriteFrame(f); err != nil {
		return err
	}
	metrics.RecordFrame("out", f.Type.String())
	return nil
}

func (m meteredWriter) SendJSON(v any) error {
	f, err := protocol.JSONFrame(v)
	if err != nil {
		return err
	}
	return m.WriteFrame(f)
}

func (m meteredWriter) SendBinary(data []byte, more bool) error {
	return m.WriteFrame(protocol.BinaryFrame(data, more))
}
