// Package transfer streams a byte source to a peer as a sequence of binary
// frames.
//
// A transfer is one BINARY frame with more=1 per chunk, followed by exactly
// one empty BINARY frame with more=0. The wire protocol has no error frame,
// so a transfer that fails while reading is cut short with the terminal
// frame and the peer sees a truncated file.
package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/metrics"
	"github.com/codewiresh/h1link/internal/protocol"
)

// DefaultChunkSize is the payload size of every frame but the last.
const DefaultChunkSize = 4096

// ErrTruncated wraps a read failure that ended a transfer early. The
// terminal frame has already been sent when it is returned.
var ErrTruncated = errors.New("transfer: truncated")

// Sender emits chunked transfers.
type Sender struct {
	ChunkSize int
}

// NewSender returns a Sender using chunkSize, or DefaultChunkSize when
// chunkSize is not positive.
func NewSender(chunkSize int) *Sender {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Sender{ChunkSize: chunkSize}
}

// Send copies r to w and returns the number of payload bytes sent.
//
// A write failure aborts immediately since the peer can no longer be
// reached. A read failure sends the terminal frame and returns an error
// wrapping ErrTruncated.
func (s *Sender) Send(w connection.FrameWriter, r io.Reader) (int64, error) {
	size := s.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	var sent int64
	buf := make([]byte, size)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := w.SendBinary(chunk, true); err != nil {
				metrics.RecordTransfer(sent, true)
				return sent, fmt.Errorf("sending chunk: %w", err)
			}
			sent += int64(n)
		}

		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF), errors.Is(rerr, io.ErrUnexpectedEOF):
			if err := w.WriteFrame(protocol.EndOfStream()); err != nil {
				metrics.RecordTransfer(sent, true)
				return sent, fmt.Errorf("sending end of stream: %w", err)
			}
			metrics.RecordTransfer(sent, false)
			return sent, nil
		default:
			metrics.RecordTransfer(sent, true)
			if err := w.WriteFrame(protocol.EndOfStream()); err != nil {
				return sent, fmt.Errorf("sending end of stream after %v: %w", rerr, err)
			}
			return sent, fmt.Errorf("%w after %d bytes: %w", ErrTruncated, sent, rerr)
		}
	}
}
