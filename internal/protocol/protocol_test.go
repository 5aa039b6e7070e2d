package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Encode / Decode round trips
// ---------------------------------------------------------------------------

func TestEncodeDecodeRoundTrip(t *testing.T) {
	large := bytes.Repeat([]byte{0xAB, 0x01, 0x00}, 30000) // > 64 KB

	tests := []struct {
		name    string
		typ     Type
		more    bool
		payload []byte
	}{
		{"json empty", TypeJSON, false, []byte{}},
		{"json one byte", TypeJSON, false, []byte("{")},
		{"json command", TypeJSON, false, []byte(`{"command":"ping"}`)},
		{"binary more", TypeBinary, true, []byte{0x01}},
		{"binary terminal", TypeBinary, false, []byte{}},
		{"binary large", TypeBinary, true, large},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := Encode(tt.typ, tt.more, tt.payload)

			f, n, err := Decode(wire)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if n != len(wire) {
				t.Errorf("consumed = %d, want %d", n, len(wire))
			}
			if f.Type != tt.typ {
				t.Errorf("Type = %s, want %s", f.Type, tt.typ)
			}
			if f.More != tt.more {
				t.Errorf("More = %v, want %v", f.More, tt.more)
			}
			if !bytes.Equal(f.Payload, tt.payload) {
				t.Errorf("Payload length = %d, want %d", len(f.Payload), len(tt.payload))
			}
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte("test")
	wire := Encode(TypeBinary, true, payload)

	if len(wire) != HeaderSize+len(payload) {
		t.Fatalf("wire length = %d, want %d", len(wire), HeaderSize+len(payload))
	}
	if got := binary.BigEndian.Uint32(wire[0:4]); got != uint32(HeaderSize+len(payload)) {
		t.Errorf("length field = %d, want %d", got, HeaderSize+len(payload))
	}
	if wire[4] != byte(TypeBinary) {
		t.Errorf("wire[4] = 0x%02x, want 0x%02x", wire[4], TypeBinary)
	}
	if wire[5] != 1 {
		t.Errorf("wire[5] = %d, want 1", wire[5])
	}
	if wire[6] != 0 || wire[7] != 0 {
		t.Errorf("reserved bytes = %v, want zero", wire[6:8])
	}
	if !bytes.Equal(wire[8:], payload) {
		t.Errorf("wire payload = %q, want %q", wire[8:], payload)
	}
}

// The python bench client builds frames as length(msg+4) + 0,0,0,0 + json.
func TestDecodeLegacyClientFrame(t *testing.T) {
	body := []byte(`{"command":"ping"}`)
	msg := append([]byte{0, 0, 0, 0}, body...)
	wire := make([]byte, 4, 4+len(msg))
	binary.BigEndian.PutUint32(wire, uint32(len(msg)+4))
	wire = append(wire, msg...)

	f, n, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(wire) {
		t.Errorf("consumed = %d, want %d", n, len(wire))
	}
	if f.Type != TypeJSON {
		t.Errorf("Type = %s, want json", f.Type)
	}
	if string(f.Payload) != string(body) {
		t.Errorf("Payload = %q, want %q", f.Payload, body)
	}
}

// ---------------------------------------------------------------------------
// Incomplete and malformed input
// ---------------------------------------------------------------------------

func TestDecodeIncomplete(t *testing.T) {
	wire := Encode(TypeJSON, false, []byte(`{"command":"status"}`))

	for i := 0; i < len(wire); i++ {
		_, n, err := Decode(wire[:i])
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("Decode(%d bytes) err = %v, want ErrIncomplete", i, err)
		}
		if n != 0 {
			t.Fatalf("Decode(%d bytes) consumed %d, want 0", i, n)
		}
	}
}

func TestDecodeHugeLengthWaits(t *testing.T) {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], 0xFFFFFFF0)

	_, n, err := Decode(header[:])
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	if n != 0 {
		t.Errorf("consumed = %d, want 0", n)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
		drop   int
	}{
		{"zero length", 0, 4},
		{"length of prefix", 4, 4},
		{"length below header", 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 16)
			binary.BigEndian.PutUint32(buf[0:4], tt.length)

			_, n, err := Decode(buf)
			if !errors.Is(err, ErrShortFrame) {
				t.Fatalf("err = %v, want ErrShortFrame", err)
			}
			if n != tt.drop {
				t.Errorf("drop = %d, want %d", n, tt.drop)
			}
		})
	}
}

func TestDecodeDoesNotAliasBuffer(t *testing.T) {
	wire := Encode(TypeBinary, true, []byte("abc"))
	f, _, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wire[HeaderSize] = 'z'
	if string(f.Payload) != "abc" {
		t.Errorf("Payload changed with buffer: %q", f.Payload)
	}
}

func TestDecodeConsumesOnlyFirstFrame(t *testing.T) {
	first := Encode(TypeJSON, false, []byte(`{"command":"ping"}`))
	second := Encode(TypeBinary, false, nil)
	buf := append(append([]byte{}, first...), second...)

	_, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(first) {
		t.Fatalf("consumed = %d, want %d", n, len(first))
	}

	f, n, err := Decode(buf[n:])
	if err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if n != len(second) || !f.IsEndOfStream() {
		t.Errorf("second frame = %+v (n=%d), want end of stream", f, n)
	}
}

// ---------------------------------------------------------------------------
// Streaming helpers
// ---------------------------------------------------------------------------

func TestReadWriteFrame(t *testing.T) {
	frames := []*Frame{
		{Type: TypeJSON, Payload: []byte(`{"command":"readfile","status":0}`)},
		BinaryFrame([]byte("chunk"), true),
		EndOfStream(),
	}

	var buf bytes.Buffer
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	for i, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame[%d]: %v", i, err)
		}
		if got.Type != want.Type || got.More != want.More {
			t.Errorf("frame[%d] = (%s, %v), want (%s, %v)", i, got.Type, got.More, want.Type, want.More)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame[%d] Payload = %q, want %q", i, got.Payload, want.Payload)
		}
	}

	got, err := ReadFrame(&buf)
	if got != nil || err != nil {
		t.Errorf("expected (nil, nil) after all frames, got (%v, %v)", got, err)
	}
}

func TestReadFramePartialHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00, 0x00}))
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestReadFrameShortLength(t *testing.T) {
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], 3)
	_, err := ReadFrame(bytes.NewReader(header[:]))
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("err = %v, want ErrShortFrame", err)
	}
}

func TestJSONFrame(t *testing.T) {
	f, err := JSONFrame(map[string]any{"command": "ping", "status": 0})
	if err != nil {
		t.Fatalf("JSONFrame: %v", err)
	}
	if f.Type != TypeJSON {
		t.Errorf("Type = %s, want json", f.Type)
	}
	if string(f.Payload) != `{"command":"ping","status":0}` {
		t.Errorf("Payload = %s", f.Payload)
	}
}

func TestTypeString(t *testing.T) {
	if TypeJSON.String() != "json" || TypeBinary.String() != "binary" {
		t.Errorf("unexpected names: %s %s", TypeJSON, TypeBinary)
	}
	if Type(7).String() != "unknown(0x07)" {
		t.Errorf("Type(7) = %s", Type(7))
	}
}

func TestFrameSizeRespectsIntRange(t *testing.T) {
	const maxInt32 = 1<<31 - 1

	tests := []struct {
		length  uint32
		limit   uint64
		want    int64
		wantErr bool
	}{
		{HeaderSize, maxInt32, HeaderSize, false},
		{maxInt32, maxInt32, maxInt32, false},
		{1 << 31, maxInt32, 0, true},
		{0xFFFFFFFF, maxInt32, 0, true},
	}
	for _, tt := range tests {
		got, err := frameSize(tt.length, tt.limit)
		if tt.wantErr {
			if !errors.Is(err, ErrFrameTooLarge) {
				t.Errorf("frameSize(%d, %d) err = %v, want ErrFrameTooLarge", tt.length, tt.limit, err)
			}
			continue
		}
		if err != nil || int64(got) != tt.want {
			t.Errorf("frameSize(%d, %d) = %d, %v; want %d", tt.length, tt.limit, got, err, tt.want)
		}
	}
}
