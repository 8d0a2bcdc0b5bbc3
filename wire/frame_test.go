package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameBits is property P3: the length field is 8*len(payload) and the
// flag bits match the reliability-table row for (receipt=0, reliable,
// sequenced=0, ordered).
func TestFrameBits(t *testing.T) {
	f := &Frame{Payload: []byte("hello"), HasReliable: true, ReliableIdx: 7, HasOrder: true, OrderIdx: 9}
	data := f.Encode()

	lengthField := uint16(data[1])<<8 | uint16(data[2])
	assert.Equal(t, uint16(8*len(f.Payload)), lengthField)

	wantTag := reliabilityTag(true, true)
	assert.Equal(t, wantTag, data[0]>>flagReliabilityShift)
}

func TestFrameRoundTripReliableOrdered(t *testing.T) {
	f := &Frame{Payload: []byte("payload"), HasReliable: true, ReliableIdx: 11, HasOrder: true, OrderIdx: 22}
	got, err := DecodeFrame(NewReader(f.Encode()))
	require.NoError(t, err)
	assert.Equal(t, f.Payload, got.Payload)
	assert.True(t, got.Reliable())
	assert.Equal(t, f.ReliableIdx, got.ReliableIdx)
	assert.True(t, got.Ordered())
	assert.Equal(t, f.OrderIdx, got.OrderIdx)
}

func TestFrameRoundTripUnreliableUnordered(t *testing.T) {
	f := &Frame{Payload: []byte{0x00, 0x01, 0x02, 0x03}}
	got, err := DecodeFrame(NewReader(f.Encode()))
	require.NoError(t, err)
	assert.False(t, got.Reliable())
	assert.False(t, got.Ordered())
	assert.Equal(t, f.Payload, got.Payload)
}

func TestFrameRoundTripFragmented(t *testing.T) {
	f := &Frame{
		Payload: []byte("chunk"), HasReliable: true, ReliableIdx: 3, HasOrder: true, OrderIdx: 4,
		Fragmented: true, FragmentCount: 5, FragmentChan: 2, FragmentIdx: 1,
	}
	got, err := DecodeFrame(NewReader(f.Encode()))
	require.NoError(t, err)
	assert.True(t, got.Fragmented)
	assert.Equal(t, f.FragmentCount, got.FragmentCount)
	assert.Equal(t, f.FragmentChan, got.FragmentChan)
	assert.Equal(t, f.FragmentIdx, got.FragmentIdx)
}

func TestFrameRejectsNonzeroOrderChannel(t *testing.T) {
	f := &Frame{Payload: []byte("x"), HasReliable: true, ReliableIdx: 1, HasOrder: true, OrderIdx: 1}
	data := f.Encode()
	// order channel byte is the last byte before the payload
	data[len(data)-len(f.Payload)-1] = 1
	_, err := DecodeFrame(NewReader(data))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestFrameSetRoundTrip(t *testing.T) {
	fs := &FrameSet{
		Idx: 12,
		Frames: []*Frame{
			{Payload: []byte("a")},
			{Payload: []byte("bb"), HasReliable: true, ReliableIdx: 1, HasOrder: true, OrderIdx: 1},
		},
	}
	data := fs.Encode()
	assert.Equal(t, byte(0x88), data[0])

	got, err := DecodeFrameSet(NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, fs.Idx, got.Idx)
	require.Len(t, got.Frames, 2)
	assert.Equal(t, []byte("a"), got.Frames[0].Payload)
	assert.Equal(t, []byte("bb"), got.Frames[1].Payload)
}

func TestFrameSetDecodeStopsCleanlyOnTruncation(t *testing.T) {
	fs := &FrameSet{Idx: 1, Frames: []*Frame{{Payload: []byte("full")}}}
	data := fs.Encode()
	truncated := append(data, 0x20) // a stray partial flag byte with no length field
	got, err := DecodeFrameSet(NewReader(truncated))
	require.NoError(t, err)
	assert.Len(t, got.Frames, 1)
}

func TestIsFrameSetIdent(t *testing.T) {
	for b := byte(0x80); b <= 0x8f; b++ {
		assert.True(t, IsFrameSetIdent(b))
	}
	assert.False(t, IsFrameSetIdent(0x70))
	assert.False(t, IsFrameSetIdent(0x90))
}
