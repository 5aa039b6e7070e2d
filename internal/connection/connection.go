package connection

import (
	"errors"
	"io"
	"sync"

	"github.com/codewiresh/h1link/internal/protocol"
)

// ErrClosed is returned by writes after the writer has been closed.
var ErrClosed = errors.New("connection: writer closed")

// FrameWriter writes protocol frames to a transport.
type FrameWriter interface {
	WriteFrame(f *protocol.Frame) error
	SendJSON(v any) error
	SendBinary(data []byte, more bool) error
}

// StreamWriter writes protocol frames to a byte stream (TCP or a websocket
// adapted to net.Conn). It is safe for concurrent use.
type StreamWriter struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
	bytes  uint64
}

// NewStreamWriter creates a StreamWriter wrapping w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WriteFrame writes a single protocol frame to the underlying stream.
func (w *StreamWriter) WriteFrame(f *protocol.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := protocol.WriteFrame(w.w, f); err != nil {
		return err
	}
	w.bytes += uint64(f.Len())
	return nil
}

// SendJSON marshals v and sends it as a JSON frame.
func (w *StreamWriter) SendJSON(v any) error {
	f, err := protocol.JSONFrame(v)
	if err != nil {
		return err
	}
	return w.WriteFrame(f)
}

// SendBinary sends raw bytes as a binary frame.
func (w *StreamWriter) SendBinary(data []byte, more bool) error {
	return w.WriteFrame(protocol.BinaryFrame(data, more))
}

// BytesWritten reports the number of encoded bytes written so far.
func (w *StreamWriter) BytesWritten() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytes
}

// Close marks the writer closed. Later writes fail with ErrClosed. The
// underlying stream is owned by the caller and is not closed here.
func (w *StreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
