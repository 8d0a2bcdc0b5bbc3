package wire

import "errors"

// ErrUnderrun is returned when a decoder needs more bytes than a buffer has
// left. FrameSet decoding treats it as the expected end-of-frames signal;
// every other decoder propagates it to abort handling of the datagram.
var ErrUnderrun = errors.New("wire: buffer underrun")

// ErrInvariant is the sentinel wrapped by every protocol-invariant failure
// (wrong ident, wrong magic, unsupported reliability bits, bad version,
// nonzero order channel). Callers can test for the family with errors.Is.
var ErrInvariant = errors.New("wire: invariant violation")
