// Package transport implements the engine.Transport contract (spec §6)
// over real UDP sockets: a client-side dialer bound to one fixed peer, and
// a server-side per-peer view over one shared listening socket.
package transport

import (
	"net"

	"github.com/rs/zerolog/log"

	"raknet-go/wire"
)

// Dialer is the client-side transport: one UDP socket connected to a
// single fixed remote peer.
type Dialer struct {
	conn *net.UDPConn
}

// Dial opens a UDP socket toward addr. The socket is "connected" so Send
// never needs to repeat the destination.
func Dial(addr wire.Address) (*Dialer, error) {
	conn, err := net.DialUDP("udp", nil, addr.UDPAddr())
	if err != nil {
		return nil, err
	}
	return &Dialer{conn: conn}, nil
}

// Send writes data to the dialed peer.
func (d *Dialer) Send(data []byte) error {
	_, err := d.conn.Write(data)
	return err
}

// LocalAddr returns the socket's local address in wire form.
func (d *Dialer) LocalAddr() wire.Address {
	return wire.FromUDPAddr(d.conn.LocalAddr().(*net.UDPAddr))
}

// Close releases the socket.
func (d *Dialer) Close() error {
	return d.conn.Close()
}

// ReadLoop reads datagrams until the socket closes, handing each to
// deliver. It runs on its own goroutine so the caller's tick loop and
// application code stay on theirs (spec §5's "network thread").
func (d *Dialer) ReadLoop(deliver func([]byte)) {
	buf := make([]byte, 65535)
	for {
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := append([]byte(nil), buf[:n]...)
		deliver(data)
	}
}

// PeerView is the server-side transport handed to one per-peer engine: it
// shares the listening socket but always sends to one fixed remote
// address (spec §9's "cycle between server and per-peer transport" note
// — this struct borrows the socket, it does not own it).
type PeerView struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
}

// NewPeerView wraps a shared listening socket for sends to one peer.
func NewPeerView(conn *net.UDPConn, remote *net.UDPAddr) *PeerView {
	return &PeerView{conn: conn, remote: remote}
}

// Send writes data to this peer's remote address over the shared socket.
func (p *PeerView) Send(data []byte) error {
	_, err := p.conn.WriteToUDP(data, p.remote)
	if err != nil {
		log.Debug().Err(err).Str("peer", p.remote.String()).Msg("transport: send failed")
	}
	return err
}
