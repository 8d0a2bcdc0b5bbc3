package engine

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raknet-go/wire"
)

// loopbackTransport hands every send straight to the peer engine's
// OnDatagram, simulating two engines talking over localhost without a
// real socket.
type loopbackTransport struct {
	peer *Engine
}

func (t *loopbackTransport) Send(data []byte) error {
	return t.peer.OnDatagram(append([]byte(nil), data...))
}

func newLoopbackPair() (client, server *Engine) {
	clientAddr := wire.Address{IP: net.IPv4(127, 0, 0, 1), Port: 11000}
	serverAddr := wire.Address{IP: net.IPv4(127, 0, 0, 1), Port: 11001}

	client = New(nil, wire.NewGUID(), clientAddr, serverAddr, wire.DefaultMTU)
	server = New(nil, wire.NewGUID(), serverAddr, clientAddr, wire.DefaultMTU)
	client.transport = &loopbackTransport{peer: server}
	server.transport = &loopbackTransport{peer: client}
	return client, server
}

// pump ticks both engines until ctx is done, simulating the 50ms tick loop
// fast enough for a test.
func pump(ctx context.Context, engines ...*Engine) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range engines {
				e.Tick()
			}
		}
	}
}

// TestStatusProbe is end-to-end scenario 1.
func TestStatusProbe(t *testing.T) {
	client, server := newLoopbackPair()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pump(ctx, client, server)

	statusBytes := []byte("MCPE;demo world;1")
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ServeHandshake(ctx, server, func(*Engine) ([]byte, error) { return statusBytes, nil })
	}()

	got, err := Status(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, statusBytes, got)

	assert.ErrorIs(t, <-serverDone, ErrStatusOnly)
}

// TestFullLogin is end-to-end scenario 2.
func TestFullLogin(t *testing.T) {
	client, server := newLoopbackPair()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pump(ctx, client, server)

	var wg sync.WaitGroup
	wg.Add(2)

	var serverErr error
	go func() {
		defer wg.Done()
		serverErr = ServeHandshake(ctx, server, func(*Engine) ([]byte, error) { return nil, nil })
	}()

	var clientErr error
	go func() {
		defer wg.Done()
		clientErr = Handshake(ctx, client)
	}()

	wg.Wait()
	require.NoError(t, serverErr)
	require.NoError(t, clientErr)
	assert.True(t, client.Online())
	assert.True(t, server.Online())
	assert.Equal(t, server.MTU(), client.MTU())
}

// TestVersionMismatch covers the IncompatibleProtocolVersion supplement:
// a client announcing a version the server doesn't speak gets that packet
// back instead of OpenConnectionReply1, and ServeHandshake reports
// ErrVersionMismatch.
func TestVersionMismatch(t *testing.T) {
	client, server := newLoopbackPair()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pump(ctx, client, server)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ServeHandshake(ctx, server, func(*Engine) ([]byte, error) { return nil, nil })
	}()

	require.NoError(t, client.Write(&wire.OpenConnectionRequest1{
		Version: wire.ProtocolVersion + 1,
		MTU:     client.MTU(),
	}))

	pkt, err := client.Read(ctx)
	require.NoError(t, err)
	reply, ok := pkt.(*wire.IncompatibleProtocolVersion)
	require.True(t, ok, "expected IncompatibleProtocolVersion, got %T", pkt)
	assert.Equal(t, server.GUID, reply.GUID)

	assert.ErrorIs(t, <-serverDone, ErrVersionMismatch)
}

// TestHandshakeUnexpectedPacketIsClassifiable covers spec §7's "handshake
// deviation" error kind: any wrong-packet failure during the handshake
// must satisfy errors.Is(err, ErrHandshakeUnexpectedPacket).
func TestHandshakeUnexpectedPacketIsClassifiable(t *testing.T) {
	client, server := newLoopbackPair()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go pump(ctx, client, server)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ServeHandshake(ctx, server, func(*Engine) ([]byte, error) { return nil, nil })
	}()

	require.NoError(t, client.Write(&wire.Game{Payload: []byte("not a handshake packet")}))

	assert.ErrorIs(t, <-serverDone, ErrHandshakeUnexpectedPacket)
}

// TestLargePayloadFragmentsAcrossHandshake is end-to-end scenario 3.
func TestLargePayloadFragmentsAcrossHandshake(t *testing.T) {
	client, server := newLoopbackPair()
	client.SetMTU(1400)
	server.SetMTU(1400)
	client.SetOnline(true)
	server.SetOnline(true)

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, client.Write(&wire.Game{Payload: payload}))
	assert.GreaterOrEqual(t, len(client.writeOnlineTasks), 4, "4096 bytes at mtu 1400 must split into >=4 fragments")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go pump(ctx, client)

	pkt, err := server.Read(ctx)
	require.NoError(t, err)
	game := pkt.(*wire.Game)
	assert.Equal(t, payload, game.Payload)
}
