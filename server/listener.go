// Package server binds a UDP socket and demultiplexes incoming datagrams
// across one engine.Engine per remote peer, driving each peer's handshake
// and handing it off to the application once online (spec §4.6, §6).
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"raknet-go/engine"
	"raknet-go/transport"
	"raknet-go/wire"
)

// LoginFunc is invoked once a peer's handshake completes; its return value
// is irrelevant to the protocol, mirroring the source's fire-and-forget
// login callback (spec §6).
type LoginFunc func(e *engine.Engine)

// Listener binds one UDP socket and owns a remote-address → engine
// mapping (spec §5): the map is demultiplexer state, the per-peer
// transport views only borrow the socket (spec §9's cycle note).
type Listener struct {
	conn     *net.UDPConn
	guid     wire.GUID
	statusFn engine.StatusFunc
	loginFn  LoginFunc

	mu    sync.Mutex
	peers map[string]*peer

	cancel context.CancelFunc
}

type peer struct {
	engine *engine.Engine
	cancel context.CancelFunc
}

// Listen binds addr and begins demultiplexing. statusFn supplies the
// status blob for pre-connection probes; loginFn runs once a peer
// finishes its handshake.
func Listen(addr string, statusFn engine.StatusFunc, loginFn LoginFunc) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		conn:     conn,
		guid:     wire.NewGUID(),
		statusFn: statusFn,
		loginFn:  loginFn,
		peers:    make(map[string]*peer),
		cancel:   cancel,
	}

	go l.readLoop(ctx)
	log.Info().Str("addr", conn.LocalAddr().String()).Msg("server: listening")
	return l, nil
}

// Close stops demultiplexing and closes the socket; every peer's tick loop
// receives a cancellation on its next iteration (spec §5).
func (l *Listener) Close() error {
	l.cancel()
	return l.conn.Close()
}

// Addr returns the socket's bound local address, useful when Listen was
// given port 0.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

func (l *Listener) readLoop(ctx context.Context) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:n]...)
		l.dispatch(ctx, addr, data)
	}
}

func (l *Listener) dispatch(ctx context.Context, addr *net.UDPAddr, data []byte) {
	key := addr.String()

	l.mu.Lock()
	p, ok := l.peers[key]
	if !ok {
		if !bytes.Contains(data, wire.Magic[:]) {
			l.mu.Unlock()
			return
		}
		p = l.newPeerLocked(ctx, addr)
	}
	l.mu.Unlock()

	if err := p.engine.OnDatagram(data); err != nil {
		log.Debug().Err(err).Str("peer", key).Msg("server: dropping malformed datagram")
	}
}

// newPeerLocked must be called with l.mu held. It creates the engine for a
// newly observed source address and spawns its tick loop and handshake
// handler, mirroring original_source/server.py's
// "asyncio.Task(self.conn_callback(protocol))".
func (l *Listener) newPeerLocked(ctx context.Context, addr *net.UDPAddr) *peer {
	peerCtx, cancel := context.WithCancel(ctx)
	view := transport.NewPeerView(l.conn, addr)
	eng := engine.New(view, l.guid, wire.FromUDPAddr(l.conn.LocalAddr().(*net.UDPAddr)), wire.FromUDPAddr(addr), wire.DefaultMTU)

	p := &peer{engine: eng, cancel: cancel}
	l.peers[addr.String()] = p

	go eng.Run(peerCtx)
	go l.serveHandshake(peerCtx, p, addr)
	return p
}

func (l *Listener) serveHandshake(ctx context.Context, p *peer, addr *net.UDPAddr) {
	err := engine.ServeHandshake(ctx, p.engine, l.statusFn)
	switch {
	case err == nil:
		if l.loginFn != nil {
			l.loginFn(p.engine)
		}
	case errors.Is(err, engine.ErrStatusOnly):
		l.removePeer(addr)
		p.cancel()
	default:
		log.Debug().Err(err).Str("peer", addr.String()).Msg("server: handshake failed")
		l.removePeer(addr)
		p.cancel()
	}
}

func (l *Listener) removePeer(addr *net.UDPAddr) {
	l.mu.Lock()
	delete(l.peers, addr.String())
	l.mu.Unlock()
}
