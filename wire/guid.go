package wire

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// GUID is the protocol's opaque 8-byte peer identity. It is generated once
// per engine and never changes for that engine's lifetime (spec §3).
type GUID [8]byte

// NewGUID generates a random GUID. The source implementation draws 8 bytes
// straight from os.urandom; we instead fold a github.com/google/uuid value
// down to 8 bytes (xor of its two halves) so GUID generation goes through
// the same dependency the rest of the pack uses for random identity.
func NewGUID() GUID {
	u := uuid.New()
	var g GUID
	for i := range g {
		g[i] = u[i] ^ u[i+8]
	}
	return g
}

// ReadGUID reads a fixed 8-byte GUID.
func ReadGUID(r *Reader) (GUID, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return GUID{}, err
	}
	var g GUID
	copy(g[:], b)
	return g, nil
}

// Write appends the GUID's 8 bytes verbatim.
func (g GUID) Write(w *Writer) {
	w.Raw(g[:])
}

// String renders the GUID as hex, for logging.
func (g GUID) String() string {
	return hex.EncodeToString(g[:])
}
