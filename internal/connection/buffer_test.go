package connection

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/codewiresh/h1link/internal/protocol"
)

func sampleStream() ([]byte, []protocol.Frame) {
	frames := []protocol.Frame{
		{Type: protocol.TypeJSON, Payload: []byte(`{"command":"ping"}`)},
		{Type: protocol.TypeJSON, Payload: []byte(`{"command":"record","camera":1}`)},
		{Type: protocol.TypeBinary, More: true, Payload: bytes.Repeat([]byte{7}, 70000)},
		{Type: protocol.TypeBinary, More: false, Payload: []byte{}},
		{Type: protocol.TypeJSON, Payload: []byte(`{}`)},
	}
	var wire []byte
	for _, f := range frames {
		wire = protocol.AppendFrame(wire, f.Type, f.More, f.Payload)
	}
	return wire, frames
}

func assertFrames(t *testing.T, got, want []protocol.Frame) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Type != want[i].Type || got[i].More != want[i].More {
			t.Errorf("frame[%d] = (%s, %v), want (%s, %v)", i, got[i].Type, got[i].More, want[i].Type, want[i].More)
		}
		if !bytes.Equal(got[i].Payload, want[i].Payload) {
			t.Errorf("frame[%d] payload length %d, want %d", i, len(got[i].Payload), len(want[i].Payload))
		}
	}
}

func TestAccumulatorSingleWrite(t *testing.T) {
	wire, want := sampleStream()

	acc := NewAccumulator(0)
	acc.Write(wire)
	got, err := acc.Frames()
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	assertFrames(t, got, want)
	if acc.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", acc.Buffered())
	}
}

func TestAccumulatorByteAtATime(t *testing.T) {
	wire, want := sampleStream()

	acc := NewAccumulator(0)
	var got []protocol.Frame
	for i := range wire {
		acc.Write(wire[i : i+1])
		frames, err := acc.Frames()
		if err != nil {
			t.Fatalf("Frames at byte %d: %v", i, err)
		}
		got = append(got, frames...)
	}
	assertFrames(t, got, want)
}

func TestAccumulatorRandomSplits(t *testing.T) {
	wire, want := sampleStream()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		acc := NewAccumulator(0)
		var got []protocol.Frame
		for off := 0; off < len(wire); {
			n := 1 + rng.Intn(9000)
			end := min(off+n, len(wire))
			acc.Write(wire[off:end])
			off = end

			frames, err := acc.Frames()
			if err != nil {
				t.Fatalf("round %d: Frames: %v", round, err)
			}
			got = append(got, frames...)
		}
		assertFrames(t, got, want)
	}
}

func TestAccumulatorHoldsPartialFrame(t *testing.T) {
	wire := protocol.Encode(protocol.TypeJSON, false, []byte(`{"command":"gps"}`))

	acc := NewAccumulator(0)
	acc.Write(wire[:len(wire)-1])
	if _, err := acc.Next(); !errors.Is(err, protocol.ErrIncomplete) {
		t.Fatalf("Next err = %v, want ErrIncomplete", err)
	}
	if acc.Buffered() != len(wire)-1 {
		t.Fatalf("Buffered = %d, want %d", acc.Buffered(), len(wire)-1)
	}

	acc.Write(wire[len(wire)-1:])
	f, err := acc.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(f.Payload) != `{"command":"gps"}` {
		t.Errorf("Payload = %q", f.Payload)
	}
}

func TestAccumulatorDropsShortFrames(t *testing.T) {
	var bad [6]byte
	binary.BigEndian.PutUint32(bad[0:4], 6)
	good := protocol.Encode(protocol.TypeJSON, false, []byte(`{"command":"ping"}`))

	acc := NewAccumulator(0)
	acc.Write(bad[:])
	acc.Write(good)

	frames, err := acc.Frames()
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(frames))
	}
	if acc.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", acc.Dropped())
	}
}

func TestAccumulatorMaxFrame(t *testing.T) {
	wire := protocol.Encode(protocol.TypeBinary, true, make([]byte, 100))

	acc := NewAccumulator(64)
	acc.Write(wire[:4])
	if _, err := acc.Next(); !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("Next err = %v, want ErrFrameTooLarge", err)
	}
}

func TestAccumulatorReset(t *testing.T) {
	acc := NewAccumulator(0)
	acc.Write([]byte{0, 0, 0})
	acc.Reset()
	if acc.Buffered() != 0 {
		t.Errorf("Buffered after Reset = %d, want 0", acc.Buffered())
	}
}
