package engine

import (
	"context"
	"errors"
	"fmt"

	"raknet-go/wire"
)

// StatusFunc supplies the status blob reported by UnconnectedPong in
// response to a pre-connection status probe.
type StatusFunc func(e *Engine) ([]byte, error)

// ErrStatusOnly is returned by ServeHandshake when the peer only ran a
// status probe (spec §4.6: "reply with UnconnectedPong, tick once to
// flush, close") rather than proceeding to a real connection. The caller
// should tear the peer engine down without invoking a login callback.
var ErrStatusOnly = errors.New("engine: peer closed after status probe")

// ErrVersionMismatch is returned by ServeHandshake when a peer's
// OpenConnectionRequest1 carries a protocol version this engine doesn't
// speak; the caller should tear the peer engine down after the
// IncompatibleProtocolVersion reply has been sent.
var ErrVersionMismatch = errors.New("engine: peer protocol version mismatch")

// ErrHandshakeUnexpectedPacket is wrapped by every "wrong packet for this
// handshake step" failure so callers can classify the whole class of
// handshake deviations with errors.Is (spec §7), instead of matching on
// an ad-hoc string.
var ErrHandshakeUnexpectedPacket = errors.New("engine: unexpected packet during handshake")

// ServeHandshake drives the server side of the per-peer handshake (spec
// §4.6) to completion. A status probe is answered and ends the exchange
// with ErrStatusOnly. Otherwise it runs the two offline connection-open
// steps, then — mirroring the
// client's matching steps 3 and 4 so scenario 2's "four-step server
// handler" actually completes — accepts the online ConnectionRequest and
// awaits NewIncomingConnection. Any other packet type at any step fails
// the handshake.
func ServeHandshake(ctx context.Context, e *Engine, statusFn StatusFunc) error {
	for {
		pkt, err := e.Read(ctx)
		if err != nil {
			return err
		}

		switch p := pkt.(type) {
		case *wire.UnconnectedPing:
			if err := e.replyStatus(p.LocalTime, statusFn); err != nil {
				return err
			}
			e.Tick()
			return ErrStatusOnly
		case *wire.UnconnectedPingOpenConnections:
			if err := e.replyStatus(p.LocalTime, statusFn); err != nil {
				return err
			}
			e.Tick()
			return ErrStatusOnly
		case *wire.OpenConnectionRequest1:
			if p.Version != e.Version {
				if err := e.Write(&wire.IncompatibleProtocolVersion{Version: e.Version, GUID: e.GUID}); err != nil {
					return err
				}
				e.Tick()
				return ErrVersionMismatch
			}
			e.SetMTU(p.MTU)
			if err := e.Write(&wire.OpenConnectionReply1{GUID: e.GUID, MTU: e.MTU(), Security: false}); err != nil {
				return err
			}
		case *wire.OpenConnectionRequest2:
			e.SetMTU(p.MTU)
			if err := e.Write(&wire.OpenConnectionReply2{
				GUID:          e.GUID,
				RemoteAddress: e.RemoteAddress,
				MTU:           e.MTU(),
				Encryption:    false,
			}); err != nil {
				return err
			}
			e.Tick()
			e.SetOnline(true)
			return e.completeLogin(ctx)
		default:
			return fmt.Errorf("handshake: unexpected packet %T from peer: %w", pkt, ErrHandshakeUnexpectedPacket)
		}
	}
}

// completeLogin answers the online ConnectionRequest and waits for
// NewIncomingConnection, the two steps original_source's server leaves to
// its login callback but which every peer must complete (spec §4.1's
// ConnectionRequest/ConnectionRequestAccepted/NewIncomingConnection
// table entries are core protocol, not application-specific).
func (e *Engine) completeLogin(ctx context.Context) error {
	pkt, err := e.Read(ctx)
	if err != nil {
		return err
	}
	req, ok := pkt.(*wire.ConnectionRequest)
	if !ok {
		return fmt.Errorf("handshake: unexpected packet %T, want ConnectionRequest: %w", pkt, ErrHandshakeUnexpectedPacket)
	}

	accepted := &wire.ConnectionRequestAccepted{
		RemoteAddress: e.RemoteAddress,
		SystemIndex:   0,
		RemoteTime:    req.LocalTime,
		LocalTime:     0,
	}
	for i := range accepted.InternalAddresses {
		accepted.InternalAddresses[i] = wire.EmptyAddress()
	}
	if err := e.Write(accepted); err != nil {
		return err
	}

	pkt, err = e.Read(ctx)
	if err != nil {
		return err
	}
	if _, ok := pkt.(*wire.NewIncomingConnection); !ok {
		return fmt.Errorf("handshake: unexpected packet %T, want NewIncomingConnection: %w", pkt, ErrHandshakeUnexpectedPacket)
	}
	return nil
}

func (e *Engine) replyStatus(pingTime uint64, statusFn StatusFunc) error {
	status, err := statusFn(e)
	if err != nil {
		return fmt.Errorf("handshake: status callback: %w", err)
	}
	return e.Write(&wire.UnconnectedPong{GUID: e.GUID, RemoteTime: pingTime, Status: status})
}
