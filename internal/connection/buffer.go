package connection

import (
	"errors"
	"fmt"

	"github.com/codewiresh/h1link/internal/protocol"
)

// Accumulator collects bytes read from one socket and cuts them into
// complete frames. It is not safe for concurrent use; each connection owns
// exactly one.
type Accumulator struct {
	buf      []byte
	maxFrame uint32
	dropped  int
}

// NewAccumulator returns an empty accumulator. maxFrame limits the announced
// frame length; zero means no limit.
func NewAccumulator(maxFrame uint32) *Accumulator {
	return &Accumulator{maxFrame: maxFrame}
}

// Write appends p to the pending bytes. It never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	a.buf = append(a.buf, p...)
	return len(p), nil
}

// Next removes and returns the next complete frame. It returns
// protocol.ErrIncomplete when more bytes are needed. Frames whose length
// field is shorter than the header are dropped and counted.
func (a *Accumulator) Next() (protocol.Frame, error) {
	for {
		if a.maxFrame > 0 {
			if length, ok := protocol.PeekLength(a.buf); ok && length > a.maxFrame {
				return protocol.Frame{}, fmt.Errorf("%w: %d bytes announced, limit %d",
					protocol.ErrFrameTooLarge, length, a.maxFrame)
			}
		}

		f, n, err := protocol.Decode(a.buf)
		if errors.Is(err, protocol.ErrShortFrame) {
			a.consume(n)
			a.dropped++
			continue
		}
		if err != nil {
			return protocol.Frame{}, err
		}
		a.consume(n)
		return f, nil
	}
}

// Frames drains every complete frame currently buffered, in arrival order.
// A non-nil error other than ErrIncomplete is returned alongside the frames
// decoded before it.
func (a *Accumulator) Frames() ([]protocol.Frame, error) {
	var frames []protocol.Frame
	for {
		f, err := a.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

// Buffered reports the number of bytes waiting for a complete frame.
func (a *Accumulator) Buffered() int {
	return len(a.buf)
}

// Dropped reports how many malformed frames have been discarded.
func (a *Accumulator) Dropped() int {
	return a.dropped
}

// Reset discards pending bytes and releases the backing storage.
func (a *Accumulator) Reset() {
	a.buf = nil
}

func (a *Accumulator) consume(n int) {
	rest := len(a.buf) - n
	if rest == 0 {
		// Reuse the backing array when fully drained.
		a.buf = a.buf[:0]
		return
	}
	copy(a.buf, a.buf[n:])
	a.buf = a.buf[:rest]
}
