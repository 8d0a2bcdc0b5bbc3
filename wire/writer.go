package wire

import "encoding/binary"

// Writer appends primitive fields to a growing byte slice. It is the
// encode-side counterpart of Reader.
type Writer struct {
	data []byte
}

// NewWriter returns an empty Writer, optionally pre-sizing the backing slice.
func NewWriter(sizeHint int) *Writer {
	return &Writer{data: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.data
}

// Byte appends a single byte.
func (w *Writer) Byte(b byte) {
	w.data = append(w.data, b)
}

// Raw appends a slice verbatim.
func (w *Writer) Raw(b []byte) {
	w.data = append(w.data, b...)
}

// Bool appends 0x01 for true, 0x00 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(0x01)
	} else {
		w.Byte(0x00)
	}
}

// Uint16 appends a big-endian 16-bit field.
func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.data = append(w.data, b[:]...)
}

// Uint32 appends a big-endian 32-bit field.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.data = append(w.data, b[:]...)
}

// Uint64 appends a big-endian 64-bit field.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.data = append(w.data, b[:]...)
}

// Uint24LE appends a 24-bit little-endian field.
func (w *Writer) Uint24LE(v uint32) {
	w.data = append(w.data, byte(v), byte(v>>8), byte(v>>16))
}
