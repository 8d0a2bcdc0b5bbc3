package wire

import "encoding/binary"

// Reader unpacks primitive fields from a byte slice, tracking an offset and
// failing with ErrUnderrun once the slice is exhausted. It is the decode-side
// counterpart of Writer; see source/protocol/raknet.go's BitStream in the
// teacher repo for the idiom this generalizes (byte/uint16/uint32/uint64
// readers over a flat buffer with a running offset).
type Reader struct {
	data   []byte
	offset int
}

// NewReader wraps data for sequential decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.data) - r.offset
}

// Bytes returns the next n bytes without copying, advancing the offset.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, ErrUnderrun
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

// Rest returns every remaining byte, consuming the reader.
func (r *Reader) Rest() []byte {
	b := r.data[r.offset:]
	r.offset = len(r.data)
	return b
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Bool reads one byte: 0x01 is true, anything else is false.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	return b == 0x01, nil
}

// Uint16 reads a big-endian 16-bit field.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 reads a big-endian 32-bit field.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 reads a big-endian 64-bit field.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Uint24LE reads a 24-bit little-endian field (reliable/order/frame-set
// indices throughout the protocol are encoded this way).
func (r *Reader) Uint24LE() (uint32, error) {
	b, err := r.Bytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}
