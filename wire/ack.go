package wire

import "sort"

// AckRecord is a run-length list of frame-set indices, shared by ACK and
// NACK (spec §4.2). Wire form: count:u16 ranges; each range is single:bool
// then first:u24le (single) or first:u24le,last:u24le (range, both
// inclusive — see DESIGN.md's "NACK range semantics" decision).
type AckRecord struct {
	Ident   byte
	Indices []uint32
}

// NewACK builds an ACK record over the given (unsorted, possibly unsorted)
// indices.
func NewACK(indices []uint32) *AckRecord {
	return &AckRecord{Ident: IdentACK, Indices: indices}
}

// NewNACK builds a NACK record.
func NewNACK(indices []uint32) *AckRecord {
	return &AckRecord{Ident: IdentNACK, Indices: indices}
}

// Encode sorts and coalesces the indices into runs and packs them.
func (a *AckRecord) Encode() []byte {
	sorted := append([]uint32(nil), a.Indices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	type run struct{ first, last uint32 }
	var runs []run
	for _, idx := range sorted {
		if len(runs) > 0 && runs[len(runs)-1].last+1 == idx {
			runs[len(runs)-1].last = idx
			continue
		}
		runs = append(runs, run{idx, idx})
	}

	w := NewWriter(3 + len(runs)*7)
	w.Byte(a.Ident)
	w.Uint16(uint16(len(runs)))
	for _, r := range runs {
		single := r.first == r.last
		w.Bool(single)
		w.Uint24LE(r.first)
		if !single {
			w.Uint24LE(r.last)
		}
	}
	return w.Bytes()
}

// decodeAckRecord decodes an ACK or NACK body, expecting the given ident.
func decodeAckRecord(r *Reader, ident byte) (*AckRecord, error) {
	if err := checkIdent(r, ident); err != nil {
		return nil, err
	}
	count, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	var indices []uint32
	for i := uint16(0); i < count; i++ {
		single, err := r.Bool()
		if err != nil {
			return nil, err
		}
		first, err := r.Uint24LE()
		if err != nil {
			return nil, err
		}
		if single {
			indices = append(indices, first)
			continue
		}
		last, err := r.Uint24LE()
		if err != nil {
			return nil, err
		}
		for idx := first; idx <= last; idx++ {
			indices = append(indices, idx)
		}
	}
	return &AckRecord{Ident: ident, Indices: indices}, nil
}

// DecodeACK decodes an ACK record.
func DecodeACK(r *Reader) (*AckRecord, error) {
	return decodeAckRecord(r, IdentACK)
}

// DecodeNACK decodes a NACK record.
func DecodeNACK(r *Reader) (*AckRecord, error) {
	return decodeAckRecord(r, IdentNACK)
}
