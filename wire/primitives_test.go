package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.Byte(0x42)
	w.Bool(true)
	w.Uint16(1234)
	w.Uint32(567890)
	w.Uint64(1 << 40)
	w.Uint24LE(0x123456)

	r := NewReader(w.Bytes())

	b, err := r.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), b)

	v, err := r.Bool()
	require.NoError(t, err)
	assert.True(t, v)

	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), u16)

	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(567890), u32)

	u64, err := r.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	u24, err := r.Uint24LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123456), u24)
}

func TestReaderUnderrun(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.Uint32()
	assert.ErrorIs(t, err, ErrUnderrun)
}

func TestUint24LEIsLittleEndian(t *testing.T) {
	w := NewWriter(0)
	w.Uint24LE(0x010203)
	assert.Equal(t, []byte{0x03, 0x02, 0x01}, w.Bytes())
}
