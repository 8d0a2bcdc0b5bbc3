package engine

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raknet-go/wire"
)

var errEmptyQueue = errors.New("engine: read queue empty")

// captureTransport records every datagram sent through it, for assertions,
// without touching a real socket.
type captureTransport struct {
	sent [][]byte
}

func (c *captureTransport) Send(data []byte) error {
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func newTestEngine(transport Transport) *Engine {
	local := wire.Address{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	remote := wire.Address{IP: net.IPv4(127, 0, 0, 1), Port: 2}
	return New(transport, wire.NewGUID(), local, remote, wire.DefaultMTU)
}

func gameFrameSet(idx uint32, f *wire.Frame) *wire.FrameSet {
	return &wire.FrameSet{Idx: idx, Frames: []*wire.Frame{f}}
}

// TestOrderDiscipline is property P4: ordered frames delivered out of
// sequence surface in strict order_idx order; a missing index blocks
// successors.
func TestOrderDiscipline(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)

	mk := func(orderIdx uint32, n byte) *wire.Frame {
		return &wire.Frame{Payload: (&wire.Game{Payload: []byte{n}}).Encode(), HasReliable: true, ReliableIdx: orderIdx, HasOrder: true, OrderIdx: orderIdx}
	}

	// Deliver frame sets 0 (order_idx=0), 2 (order_idx=2), then 1 (order_idx=1).
	require.NoError(t, e.OnDatagram(gameFrameSet(0, mk(0, 10)).Encode()))
	require.NoError(t, e.OnDatagram(gameFrameSet(2, mk(2, 12)).Encode()))

	// Only order_idx 0 should have surfaced so far.
	pkt, err := e.tryRead()
	require.NoError(t, err)
	game := pkt.(*wire.Game)
	assert.Equal(t, byte(10), game.Payload[0])
	_, err = e.tryRead()
	assert.Error(t, err, "order_idx 2 must stay buffered until 1 arrives")

	require.NoError(t, e.OnDatagram(gameFrameSet(1, mk(1, 11)).Encode()))

	pkt, err = e.tryRead()
	require.NoError(t, err)
	assert.Equal(t, byte(11), pkt.(*wire.Game).Payload[0])

	pkt, err = e.tryRead()
	require.NoError(t, err)
	assert.Equal(t, byte(12), pkt.(*wire.Game).Payload[0])
}

// tryRead returns the head of the read queue without blocking, for
// deterministic tests.
func (e *Engine) tryRead() (wire.Packet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.readQueue) == 0 {
		return nil, errEmptyQueue
	}
	pkt := e.readQueue[0]
	e.readQueue = e.readQueue[1:]
	return pkt, nil
}

// TestFragmentReassembly is property P5: fragments delivered in any
// permutation reassemble byte-identical; partial arrivals never surface.
func TestFragmentReassembly(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)

	payload := (&wire.Game{Payload: []byte("hello fragmented world")}).Encode()
	chunks := [][]byte{payload[:8], payload[8:16], payload[16:]}

	frame := func(idx int, chunk []byte) *wire.Frame {
		return &wire.Frame{
			Payload: chunk, HasReliable: true, ReliableIdx: uint32(idx), HasOrder: true, OrderIdx: 0,
			Fragmented: true, FragmentCount: uint32(len(chunks)), FragmentChan: 5, FragmentIdx: uint32(idx),
		}
	}

	// Deliver out of order: 2, 0, 1.
	require.NoError(t, e.OnDatagram(gameFrameSet(0, frame(2, chunks[2])).Encode()))
	_, err := e.tryRead()
	assert.Error(t, err, "partial fragments must not surface")

	require.NoError(t, e.OnDatagram(gameFrameSet(1, frame(0, chunks[0])).Encode()))
	_, err = e.tryRead()
	assert.Error(t, err)

	require.NoError(t, e.OnDatagram(gameFrameSet(2, frame(1, chunks[1])).Encode()))

	pkt, err := e.tryRead()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello fragmented world"), pkt.(*wire.Game).Payload)
}

// TestAckStopsRetransmit and TestNackForcesRetransmit are property P6.
func TestAckStopsRetransmit(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)

	require.NoError(t, e.Write(&wire.Game{Payload: []byte("x")}))
	e.Tick() // sends frame set 0
	require.Len(t, transport.sent, 1)

	require.NoError(t, e.OnDatagram(wire.NewACK([]uint32{0}).Encode()))

	transport.sent = nil
	e.Tick() // nothing left alive to retransmit
	assert.Empty(t, transport.sent)
}

func TestNackForcesRetransmit(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)

	require.NoError(t, e.Write(&wire.Game{Payload: []byte("x")}))
	e.Tick() // frame set 0
	require.Len(t, transport.sent, 1)

	require.NoError(t, e.OnDatagram(wire.NewNACK([]uint32{0}).Encode()))

	transport.sent = nil
	e.Tick() // task was reset active, retransmits in a new frame set
	require.Len(t, transport.sent, 1)

	fs, err := wire.DecodeFrameSet(wire.NewReader(transport.sent[0]))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), fs.Idx, "retransmit rides a new frame-set index")
}

// TestMTUBound is property P7: every frame set produced by tick has
// encoded length <= mtu-28.
func TestMTUBound(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)
	e.SetMTU(128)

	for i := 0; i < 20; i++ {
		require.NoError(t, e.Write(&wire.Game{Payload: []byte("some payload bytes to pack")}))
	}
	e.Tick()

	require.NotEmpty(t, transport.sent)
	for _, data := range transport.sent {
		assert.LessOrEqual(t, len(data), int(e.MTU())-28)
	}
}

// TestOfflineRetryBudget is property P8 applied to the offline task: a
// pre-handshake write retries at most max_retries+1 times.
func TestOfflineRetryBudget(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)

	require.NoError(t, e.Write(&wire.OpenConnectionRequest1{Version: wire.ProtocolVersion, MTU: wire.DefaultMTU}))

	for i := 0; i < (taskTicks+1)*(taskRetries+1)+5; i++ {
		e.Tick()
	}
	assert.Len(t, transport.sent, taskRetries+1)
}

// TestCloseSendsDisconnectionNotification checks that a graceful Close
// sends a best-effort DisconnectionNotification before tearing down.
func TestCloseSendsDisconnectionNotification(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)

	e.Close()

	require.Len(t, transport.sent, 1)
	pkt, err := wire.Decode(transport.sent[0])
	require.NoError(t, err)
	_, ok := pkt.(*wire.DisconnectionNotification)
	assert.True(t, ok, "expected DisconnectionNotification, got %T", pkt)
}

// TestConnectedPingAutoReply checks the ingress special case: a
// ConnectedPing is answered with a ConnectedPong and never enqueued
// upward.
func TestConnectedPingAutoReply(t *testing.T) {
	transport := &captureTransport{}
	e := newTestEngine(transport)
	e.SetOnline(true)

	require.NoError(t, e.OnDatagram((&wire.ConnectedPing{LocalTime: 99}).Encode()))

	_, err := e.tryRead()
	assert.Error(t, err, "ConnectedPing must not be enqueued upward")

	require.Len(t, e.writeOnlineTasks, 1)
	frame := e.writeOnlineTasks[0].Obj.(*wire.Frame)
	pong, err := wire.DecodeConnectedPong(wire.NewReader(frame.Payload))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), pong.RemoteTime)
}
