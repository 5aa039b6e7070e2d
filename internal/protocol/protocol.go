package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Type is the message type carried in byte 4 of the header.
type Type byte

// Message types understood by the device.
const (
	TypeJSON   Type = 0x00
	TypeBinary Type = 0x01
)

// HeaderSize is the fixed header length. The length field counts it.
const HeaderSize = 8

// lengthSize is the number of leading bytes holding the total frame length.
const lengthSize = 4

var (
	// ErrIncomplete means the buffer does not yet hold a whole frame.
	ErrIncomplete = errors.New("protocol: incomplete frame")
	// ErrShortFrame means the length field is smaller than the header.
	ErrShortFrame = errors.New("protocol: frame length shorter than header")
	// ErrFrameTooLarge is returned when a configured frame limit is exceeded.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

func (t Type) String() string {
	switch t {
	case TypeJSON:
		return "json"
	case TypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Frame is one length-delimited unit on the wire.
//
// Wire format:
//
//	[length:u32 BE][type:u8][more:u8][reserved:2][payload]
//
// length counts from byte 0 and includes the 8-byte header.
type Frame struct {
	Type    Type
	More    bool
	Payload []byte
}

// Len returns the encoded size of f.
func (f *Frame) Len() int {
	return HeaderSize + len(f.Payload)
}

// Encode returns the wire encoding of a single frame.
func Encode(t Type, more bool, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), t, more, payload)
}

// AppendFrame appends the wire encoding of a frame to dst.
func AppendFrame(dst []byte, t Type, more bool, payload []byte) []byte {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(HeaderSize+len(payload)))
	header[4] = byte(t)
	if more {
		header[5] = 1
	}
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}

// PeekLength reports the total frame length announced at the front of buf.
// ok is false when fewer than four bytes are buffered.
func PeekLength(buf []byte) (length uint32, ok bool) {
	if len(buf) < lengthSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[:lengthSize]), true
}

// Decode extracts the first complete frame from buf and reports how many
// bytes it occupied. It returns ErrIncomplete, consuming nothing, until the
// whole frame is buffered. A length field smaller than the header yields
// ErrShortFrame together with the number of bytes the caller must drop to
// resynchronise. The returned payload does not alias buf.
func Decode(buf []byte) (Frame, int, error) {
	length, ok := PeekLength(buf)
	if !ok {
		return Frame{}, 0, ErrIncomplete
	}
	if length < HeaderSize {
		if uint64(len(buf)) < uint64(length) {
			return Frame{}, 0, ErrIncomplete
		}
		return Frame{}, max(int(length), lengthSize), ErrShortFrame
	}
	n, err := frameSize(length, math.MaxInt)
	if err != nil {
		return Frame{}, 0, err
	}
	if len(buf) < n {
		return Frame{}, 0, ErrIncomplete
	}

	payload := make([]byte, n-HeaderSize)
	copy(payload, buf[HeaderSize:n])
	return Frame{
		Type:    Type(buf[4]),
		More:    buf[5] != 0,
		Payload: payload,
	}, n, nil
}

// frameSize converts a header length to int. Lengths above limit (the
// platform's int range) are ErrFrameTooLarge; on 32-bit targets that is
// anything from 2^31.
func frameSize(length uint32, limit uint64) (int, error) {
	if uint64(length) > limit {
		return 0, fmt.Errorf("%w: %d bytes announced", ErrFrameTooLarge, length)
	}
	return int(length), nil
}

// ReadFrame reads a single frame from r. It returns (nil, nil) on a clean EOF
// before any header byte has been read.
func ReadFrame(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, length)
	}

	n, err := frameSize(length, math.MaxInt)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, n-HeaderSize)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading frame payload: %w", err)
		}
	}

	return &Frame{
		Type:    Type(header[4]),
		More:    header[5] != 0,
		Payload: payload,
	}, nil
}

// WriteFrame writes a single frame to w in one Write call so that concurrent
// writers serialised by a mutex never interleave header and payload.
func WriteFrame(w io.Writer, f *Frame) error {
	if _, err := w.Write(Encode(f.Type, f.More, f.Payload)); err != nil {
		return fmt.Errorf("writing %s frame: %w", f.Type, err)
	}
	return nil
}
