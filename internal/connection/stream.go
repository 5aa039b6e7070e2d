package connection

import (
	"io"

	"github.com/codewiresh/h1link/internal/protocol"
)

// FrameReader reads protocol frames from a transport.
type FrameReader interface {
	ReadFrame() (*protocol.Frame, error)
}

// StreamReader reads protocol frames from a blocking byte stream. It is used
// on the client side, where a goroutine may wait for each frame.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader creates a new StreamReader wrapping r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadFrame reads a single protocol frame from the underlying stream.
// Returns (nil, nil) on clean EOF.
func (r *StreamReader) ReadFrame() (*protocol.Frame, error) {
	return protocol.ReadFrame(r.r)
}
