package engine

import (
	"context"
	"fmt"

	"raknet-go/wire"
)

// Handshake drives the client side of the four-step handshake (spec §4.6)
// against e. On success e.Online() is true and its MTU reflects the
// server's final negotiated value. Any unexpected packet type at any step
// fails the handshake, per spec §7's "handshake deviation" error kind.
func Handshake(ctx context.Context, e *Engine) error {
	if err := e.Write(&wire.OpenConnectionRequest1{Version: wire.ProtocolVersion, MTU: e.MTU()}); err != nil {
		return err
	}
	reply1, err := readAs[*wire.OpenConnectionReply1](ctx, e)
	if err != nil {
		return fmt.Errorf("handshake: step 1: %w", err)
	}
	e.SetMTU(reply1.MTU)

	if err := e.Write(&wire.OpenConnectionRequest2{
		GUID:          e.GUID,
		MTU:           e.MTU(),
		RemoteAddress: e.RemoteAddress,
	}); err != nil {
		return err
	}
	reply2, err := readAs[*wire.OpenConnectionReply2](ctx, e)
	if err != nil {
		return fmt.Errorf("handshake: step 2: %w", err)
	}
	e.SetMTU(reply2.MTU)
	e.SetOnline(true)

	if err := e.Write(&wire.ConnectionRequest{GUID: e.GUID, LocalTime: 0, Security: false}); err != nil {
		return err
	}
	if _, err := readAs[*wire.ConnectionRequestAccepted](ctx, e); err != nil {
		return fmt.Errorf("handshake: step 3: %w", err)
	}

	nic := &wire.NewIncomingConnection{RemoteAddress: e.RemoteAddress}
	for i := range nic.InternalAddresses {
		nic.InternalAddresses[i] = wire.EmptyAddress()
	}
	return e.Write(nic)
}

// Status runs the pre-connection status probe (spec §4.6): ping, await
// pong, return its status blob.
func Status(ctx context.Context, e *Engine) ([]byte, error) {
	if err := e.Write(&wire.UnconnectedPing{GUID: e.GUID, LocalTime: 0}); err != nil {
		return nil, err
	}
	pong, err := readAs[*wire.UnconnectedPong](ctx, e)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return pong.Status, nil
}

// readAs reads the next application packet and asserts its concrete type,
// failing the handshake on any mismatch (spec §7).
func readAs[T wire.Packet](ctx context.Context, e *Engine) (T, error) {
	var zero T
	pkt, err := e.Read(ctx)
	if err != nil {
		return zero, err
	}
	v, ok := pkt.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected packet %T, want %T: %w", pkt, zero, ErrHandshakeUnexpectedPacket)
	}
	return v, nil
}
