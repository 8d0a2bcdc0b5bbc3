package wire

import "fmt"

// Magic is the fixed 16-byte constant marking offline (pre-connection)
// datagrams (spec §4.1/§6).
var Magic = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

// Packet identifiers, per the spec §4.1 table.
const (
	IdentConnectedPing                    = 0x00
	IdentUnconnectedPing                  = 0x01
	IdentUnconnectedPingOpenConnections   = 0x02
	IdentConnectedPong                    = 0x03
	IdentOpenConnectionRequest1           = 0x05
	IdentOpenConnectionReply1             = 0x06
	IdentOpenConnectionRequest2           = 0x07
	IdentOpenConnectionReply2             = 0x08
	IdentConnectionRequest                = 0x09
	IdentConnectionRequestAccepted        = 0x10
	IdentNewIncomingConnection            = 0x13
	IdentDisconnectionNotification        = 0x15
	IdentIncompatibleProtocolVersion      = 0x19
	IdentUnconnectedPong                  = 0x1c
	IdentGame                             = 0xfe
	IdentACK                              = 0xc0
	IdentNACK                             = 0xa0
	IdentFrameSetBase                     = 0x80 // high nibble 0x8 marks a FrameSet
)

// DefaultMTU is the engine's MTU before handshake negotiation (spec §6).
const DefaultMTU = 1446

// ProtocolVersion is the protocol version this engine speaks (spec §6).
const ProtocolVersion = 10

func checkIdent(r *Reader, want byte) error {
	got, err := r.Byte()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("wire: expected ident 0x%02x, got 0x%02x: %w", want, got, ErrInvariant)
	}
	return nil
}

func checkMagic(r *Reader) error {
	b, err := r.Bytes(16)
	if err != nil {
		return err
	}
	for i, m := range Magic {
		if b[i] != m {
			return fmt.Errorf("wire: bad magic: %w", ErrInvariant)
		}
	}
	return nil
}

// ConnectedPing is an unreliable liveness probe exchanged once a peer is
// online (ident 0x00).
type ConnectedPing struct {
	LocalTime uint64
}

func DecodeConnectedPing(r *Reader) (*ConnectedPing, error) {
	if err := checkIdent(r, IdentConnectedPing); err != nil {
		return nil, err
	}
	t, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	return &ConnectedPing{LocalTime: t}, nil
}

func (p *ConnectedPing) Encode() []byte {
	w := NewWriter(9)
	w.Byte(IdentConnectedPing)
	w.Uint64(p.LocalTime)
	return w.Bytes()
}

// UnconnectedPing is a pre-connection status probe (ident 0x01).
type UnconnectedPing struct {
	LocalTime uint64
	GUID      GUID
}

func DecodeUnconnectedPing(r *Reader) (*UnconnectedPing, error) {
	if err := checkIdent(r, IdentUnconnectedPing); err != nil {
		return nil, err
	}
	t, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	return &UnconnectedPing{LocalTime: t, GUID: g}, nil
}

func (p *UnconnectedPing) Encode() []byte {
	return p.encode(IdentUnconnectedPing)
}

func (p *UnconnectedPing) encode(ident byte) []byte {
	w := NewWriter(9 + 16 + 8)
	w.Byte(ident)
	w.Uint64(p.LocalTime)
	w.Raw(Magic[:])
	p.GUID.Write(w)
	return w.Bytes()
}

// UnconnectedPingOpenConnections is identical on the wire to UnconnectedPing
// but carries a distinct ident (0x02), used by some clients to probe a
// server that may already have open connections.
type UnconnectedPingOpenConnections struct {
	UnconnectedPing
}

func DecodeUnconnectedPingOpenConnections(r *Reader) (*UnconnectedPingOpenConnections, error) {
	if err := checkIdent(r, IdentUnconnectedPingOpenConnections); err != nil {
		return nil, err
	}
	t, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	return &UnconnectedPingOpenConnections{UnconnectedPing{LocalTime: t, GUID: g}}, nil
}

func (p *UnconnectedPingOpenConnections) Encode() []byte {
	return p.UnconnectedPing.encode(IdentUnconnectedPingOpenConnections)
}

// ConnectedPong answers a ConnectedPing (ident 0x03).
type ConnectedPong struct {
	RemoteTime uint64
	LocalTime  uint64
}

func DecodeConnectedPong(r *Reader) (*ConnectedPong, error) {
	if err := checkIdent(r, IdentConnectedPong); err != nil {
		return nil, err
	}
	rt, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	lt, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	return &ConnectedPong{RemoteTime: rt, LocalTime: lt}, nil
}

func (p *ConnectedPong) Encode() []byte {
	w := NewWriter(17)
	w.Byte(IdentConnectedPong)
	w.Uint64(p.RemoteTime)
	w.Uint64(p.LocalTime)
	return w.Bytes()
}

// OpenConnectionRequest1 is the first handshake message: the client
// advertises its protocol version and probes the path MTU with padding
// (ident 0x05).
type OpenConnectionRequest1 struct {
	Version uint8
	MTU     uint16
}

func DecodeOpenConnectionRequest1(r *Reader) (*OpenConnectionRequest1, error) {
	if err := checkIdent(r, IdentOpenConnectionRequest1); err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	version, err := r.Byte()
	if err != nil {
		return nil, err
	}
	mtu := uint16(r.Remaining()) + 46
	r.Rest()
	return &OpenConnectionRequest1{Version: version, MTU: mtu}, nil
}

func (p *OpenConnectionRequest1) Encode() []byte {
	w := NewWriter(int(p.MTU))
	w.Byte(IdentOpenConnectionRequest1)
	w.Raw(Magic[:])
	w.Byte(p.Version)
	pad := int(p.MTU) - 46
	if pad < 0 {
		pad = 0
	}
	w.Raw(make([]byte, pad))
	return w.Bytes()
}

// OpenConnectionReply1 answers request 1, echoing an (possibly renegotiated)
// MTU (ident 0x06).
type OpenConnectionReply1 struct {
	GUID     GUID
	Security bool
	MTU      uint16
}

func DecodeOpenConnectionReply1(r *Reader) (*OpenConnectionReply1, error) {
	if err := checkIdent(r, IdentOpenConnectionReply1); err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	sec, err := r.Bool()
	if err != nil {
		return nil, err
	}
	mtu, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	return &OpenConnectionReply1{GUID: g, Security: sec, MTU: mtu}, nil
}

func (p *OpenConnectionReply1) Encode() []byte {
	w := NewWriter(9 + 16 + 1 + 2)
	w.Byte(IdentOpenConnectionReply1)
	w.Raw(Magic[:])
	p.GUID.Write(w)
	w.Bool(p.Security)
	w.Uint16(p.MTU)
	return w.Bytes()
}

// OpenConnectionRequest2 is the second handshake message: the client
// confirms the remote address and MTU and supplies its GUID (ident 0x07).
type OpenConnectionRequest2 struct {
	RemoteAddress Address
	MTU           uint16
	GUID          GUID
}

func DecodeOpenConnectionRequest2(r *Reader) (*OpenConnectionRequest2, error) {
	if err := checkIdent(r, IdentOpenConnectionRequest2); err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	addr, err := ReadAddress(r)
	if err != nil {
		return nil, err
	}
	mtu, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	return &OpenConnectionRequest2{RemoteAddress: addr, MTU: mtu, GUID: g}, nil
}

func (p *OpenConnectionRequest2) Encode() []byte {
	w := NewWriter(64)
	w.Byte(IdentOpenConnectionRequest2)
	w.Raw(Magic[:])
	p.RemoteAddress.Write(w)
	w.Uint16(p.MTU)
	p.GUID.Write(w)
	return w.Bytes()
}

// OpenConnectionReply2 answers request 2; once sent/received the engine
// transitions online (ident 0x08).
type OpenConnectionReply2 struct {
	GUID          GUID
	RemoteAddress Address
	MTU           uint16
	Encryption    bool
}

func DecodeOpenConnectionReply2(r *Reader) (*OpenConnectionReply2, error) {
	if err := checkIdent(r, IdentOpenConnectionReply2); err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	addr, err := ReadAddress(r)
	if err != nil {
		return nil, err
	}
	mtu, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	enc, err := r.Bool()
	if err != nil {
		return nil, err
	}
	return &OpenConnectionReply2{GUID: g, RemoteAddress: addr, MTU: mtu, Encryption: enc}, nil
}

func (p *OpenConnectionReply2) Encode() []byte {
	w := NewWriter(64)
	w.Byte(IdentOpenConnectionReply2)
	w.Raw(Magic[:])
	p.GUID.Write(w)
	p.RemoteAddress.Write(w)
	w.Uint16(p.MTU)
	w.Bool(p.Encryption)
	return w.Bytes()
}

// ConnectionRequest is the third handshake message, now sent over the
// (online) reliable frame transport (ident 0x09).
type ConnectionRequest struct {
	GUID      GUID
	LocalTime uint64
	Security  bool
}

func DecodeConnectionRequest(r *Reader) (*ConnectionRequest, error) {
	if err := checkIdent(r, IdentConnectionRequest); err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	t, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	sec, err := r.Bool()
	if err != nil {
		return nil, err
	}
	return &ConnectionRequest{GUID: g, LocalTime: t, Security: sec}, nil
}

func (p *ConnectionRequest) Encode() []byte {
	w := NewWriter(1 + 8 + 8 + 1)
	w.Byte(IdentConnectionRequest)
	p.GUID.Write(w)
	w.Uint64(p.LocalTime)
	w.Bool(p.Security)
	return w.Bytes()
}

// internalAddressSlots is the fixed count of padding Address entries carried
// by ConnectionRequestAccepted (spec §4.1).
const internalAddressSlots = 20

// newIncomingAddressSlots is the fixed count carried by
// NewIncomingConnection.
const newIncomingAddressSlots = 10

// ConnectionRequestAccepted answers ConnectionRequest (ident 0x10).
type ConnectionRequestAccepted struct {
	RemoteAddress     Address
	SystemIndex       uint16
	InternalAddresses [internalAddressSlots]Address
	RemoteTime        uint64
	LocalTime         uint64
}

func DecodeConnectionRequestAccepted(r *Reader) (*ConnectionRequestAccepted, error) {
	if err := checkIdent(r, IdentConnectionRequestAccepted); err != nil {
		return nil, err
	}
	addr, err := ReadAddress(r)
	if err != nil {
		return nil, err
	}
	sysIdx, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	p := &ConnectionRequestAccepted{RemoteAddress: addr, SystemIndex: sysIdx}
	for i := 0; i < internalAddressSlots; i++ {
		a, err := ReadAddress(r)
		if err != nil {
			return nil, err
		}
		p.InternalAddresses[i] = a
	}
	rt, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	lt, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	p.RemoteTime, p.LocalTime = rt, lt
	return p, nil
}

func (p *ConnectionRequestAccepted) Encode() []byte {
	w := NewWriter(256)
	w.Byte(IdentConnectionRequestAccepted)
	p.RemoteAddress.Write(w)
	w.Uint16(p.SystemIndex)
	for _, a := range p.InternalAddresses {
		a.Write(w)
	}
	w.Uint64(p.RemoteTime)
	w.Uint64(p.LocalTime)
	return w.Bytes()
}

// NewIncomingConnection is the fourth and final handshake message (ident
// 0x13).
type NewIncomingConnection struct {
	RemoteAddress     Address
	InternalAddresses [newIncomingAddressSlots]Address
}

func DecodeNewIncomingConnection(r *Reader) (*NewIncomingConnection, error) {
	if err := checkIdent(r, IdentNewIncomingConnection); err != nil {
		return nil, err
	}
	addr, err := ReadAddress(r)
	if err != nil {
		return nil, err
	}
	p := &NewIncomingConnection{RemoteAddress: addr}
	for i := 0; i < newIncomingAddressSlots; i++ {
		a, err := ReadAddress(r)
		if err != nil {
			return nil, err
		}
		p.InternalAddresses[i] = a
	}
	return p, nil
}

func (p *NewIncomingConnection) Encode() []byte {
	w := NewWriter(128)
	w.Byte(IdentNewIncomingConnection)
	p.RemoteAddress.Write(w)
	for _, a := range p.InternalAddresses {
		a.Write(w)
	}
	return w.Bytes()
}

// DisconnectionNotification carries no payload (ident 0x15).
type DisconnectionNotification struct{}

func DecodeDisconnectionNotification(r *Reader) (*DisconnectionNotification, error) {
	if err := checkIdent(r, IdentDisconnectionNotification); err != nil {
		return nil, err
	}
	return &DisconnectionNotification{}, nil
}

func (p *DisconnectionNotification) Encode() []byte {
	return []byte{IdentDisconnectionNotification}
}

// IncompatibleProtocolVersion tells a peer its protocol version is
// unsupported (ident 0x19).
type IncompatibleProtocolVersion struct {
	Version uint8
	GUID    GUID
}

func DecodeIncompatibleProtocolVersion(r *Reader) (*IncompatibleProtocolVersion, error) {
	if err := checkIdent(r, IdentIncompatibleProtocolVersion); err != nil {
		return nil, err
	}
	version, err := r.Byte()
	if err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	return &IncompatibleProtocolVersion{Version: version, GUID: g}, nil
}

func (p *IncompatibleProtocolVersion) Encode() []byte {
	w := NewWriter(1 + 1 + 16 + 8)
	w.Byte(IdentIncompatibleProtocolVersion)
	w.Byte(p.Version)
	w.Raw(Magic[:])
	p.GUID.Write(w)
	return w.Bytes()
}

// UnconnectedPong answers an UnconnectedPing with a host-supplied status
// blob (ident 0x1c).
type UnconnectedPong struct {
	RemoteTime uint64
	GUID       GUID
	Status     []byte
}

func DecodeUnconnectedPong(r *Reader) (*UnconnectedPong, error) {
	if err := checkIdent(r, IdentUnconnectedPong); err != nil {
		return nil, err
	}
	rt, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	g, err := ReadGUID(r)
	if err != nil {
		return nil, err
	}
	if err := checkMagic(r); err != nil {
		return nil, err
	}
	length, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	status, err := r.Bytes(int(length))
	if err != nil {
		return nil, err
	}
	statusCopy := make([]byte, len(status))
	copy(statusCopy, status)
	return &UnconnectedPong{RemoteTime: rt, GUID: g, Status: statusCopy}, nil
}

func (p *UnconnectedPong) Encode() []byte {
	w := NewWriter(9 + 8 + 16 + 2 + len(p.Status))
	w.Byte(IdentUnconnectedPong)
	w.Uint64(p.RemoteTime)
	p.GUID.Write(w)
	w.Raw(Magic[:])
	w.Uint16(uint16(len(p.Status)))
	w.Raw(p.Status)
	return w.Bytes()
}

// Game carries an opaque application payload (ident 0xfe). It is the
// application's data packet; Engine.Read also returns any other decoded
// packet kind the engine does not handle internally.
type Game struct {
	Payload []byte
}

func DecodeGame(r *Reader) (*Game, error) {
	if err := checkIdent(r, IdentGame); err != nil {
		return nil, err
	}
	return &Game{Payload: r.Rest()}, nil
}

func (p *Game) Encode() []byte {
	w := NewWriter(1 + len(p.Payload))
	w.Byte(IdentGame)
	w.Raw(p.Payload)
	return w.Bytes()
}
