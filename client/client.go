// Package client implements the application-facing entry points for the
// client role (spec §6): connect, probe status, and complete a login.
package client

import (
	"context"
	"fmt"
	"net"

	"raknet-go/engine"
	"raknet-go/transport"
	"raknet-go/wire"
)

// Conn pairs an engine (online once Login returns it) with the dialer that
// feeds it, so callers
// can Read/Write application packets and eventually Close the socket.
type Conn struct {
	*engine.Engine
	dialer *transport.Dialer
	cancel context.CancelFunc
}

// Close stops the tick loop and the underlying socket.
func (c *Conn) Close() error {
	c.cancel()
	return c.dialer.Close()
}

func dial(ctx context.Context, host string, port int) (*transport.Dialer, *engine.Engine, context.CancelFunc, error) {
	remote, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, nil, nil, err
	}
	dialer, err := transport.Dial(wire.FromUDPAddr(remote))
	if err != nil {
		return nil, nil, nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	eng := engine.New(dialer, wire.NewGUID(), dialer.LocalAddr(), wire.FromUDPAddr(remote), wire.DefaultMTU)

	go dialer.ReadLoop(func(data []byte) { _ = eng.OnDatagram(data) })
	go eng.Run(runCtx)

	return dialer, eng, cancel, nil
}

// Status runs the pre-connection status probe against host:port and
// returns the server's status blob (spec §4.6).
func Status(ctx context.Context, host string, port int) ([]byte, error) {
	dialer, eng, cancel, err := dial(ctx, host, port)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer dialer.Close()

	return engine.Status(ctx, eng)
}

// Connect opens a socket toward host:port without running the handshake,
// returning a Conn whose engine is still offline. Most callers want Login
// instead.
func Connect(ctx context.Context, host string, port int) (*Conn, error) {
	dialer, eng, cancel, err := dial(ctx, host, port)
	if err != nil {
		return nil, err
	}
	return &Conn{Engine: eng, dialer: dialer, cancel: cancel}, nil
}

// Login opens a socket and completes the full four-step handshake,
// returning a Conn that is online on success (spec §6).
func Login(ctx context.Context, host string, port int) (*Conn, error) {
	conn, err := Connect(ctx, host, port)
	if err != nil {
		return nil, err
	}
	if err := engine.Handshake(ctx, conn.Engine); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
