package transfer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewiresh/h1link/internal/connection"
	"github.com/codewiresh/h1link/internal/protocol"
)

func collect(t *testing.T, wire []byte) []*protocol.Frame {
	t.Helper()
	r := bytes.NewReader(wire)
	var frames []*protocol.Frame
	for {
		f, err := protocol.ReadFrame(r)
		require.NoError(t, err)
		if f == nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestSendChunkCounts(t *testing.T) {
	sizes := []int{0, 1, 4095, 4096, 4097, 8192, 100000}
	for _, n := range sizes {
		var wire bytes.Buffer
		w := connection.NewStreamWriter(&wire)
		src := bytes.Repeat([]byte{0xab}, n)

		sent, err := NewSender(0).Send(w, bytes.NewReader(src))
		require.NoError(t, err, "size %d", n)
		assert.EqualValues(t, n, sent)

		frames := collect(t, wire.Bytes())
		want := (n + DefaultChunkSize - 1) / DefaultChunkSize
		require.Len(t, frames, want+1, "size %d", n)

		got := []byte{}
		for _, f := range frames[:want] {
			assert.Equal(t, protocol.TypeBinary, f.Type)
			assert.True(t, f.More)
			assert.LessOrEqual(t, len(f.Payload), DefaultChunkSize)
			got = append(got, f.Payload...)
		}
		assert.Equal(t, src, got)
		assert.True(t, frames[want].IsEndOfStream())
	}
}

func TestSendSmallReads(t *testing.T) {
	var wire bytes.Buffer
	w := connection.NewStreamWriter(&wire)
	src := bytes.Repeat([]byte("0123456789"), 1000)

	_, err := NewSender(4096).Send(w, iotest.OneByteReader(bytes.NewReader(src)))
	require.NoError(t, err)

	frames := collect(t, wire.Bytes())
	require.Len(t, frames, 4)
	assert.Len(t, frames[0].Payload, 4096)
	assert.Len(t, frames[1].Payload, 4096)
	assert.Len(t, frames[2].Payload, 10000-8192)
}

func TestSendReadErrorTerminates(t *testing.T) {
	var wire bytes.Buffer
	w := connection.NewStreamWriter(&wire)
	boom := errors.New("disk gone")
	src := io.MultiReader(bytes.NewReader(make([]byte, 5000)), iotest.ErrReader(boom))

	sent, err := NewSender(4096).Send(w, src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 5000, sent)

	frames := collect(t, wire.Bytes())
	require.Len(t, frames, 3)
	assert.Len(t, frames[0].Payload, 4096)
	assert.Len(t, frames[1].Payload, 904)
	assert.True(t, frames[2].IsEndOfStream())
}

func TestSendWriteErrorAborts(t *testing.T) {
	var wire bytes.Buffer
	w := connection.NewStreamWriter(&wire)
	w.Close()

	_, err := NewSender(16).Send(w, bytes.NewReader(make([]byte, 64)))
	require.Error(t, err)
	assert.ErrorIs(t, err, connection.ErrClosed)
	assert.Zero(t, wire.Len())
}
