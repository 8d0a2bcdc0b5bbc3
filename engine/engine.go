package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"raknet-go/wire"
)

// tickInterval is the egress tick period (spec §4.5): 50ms. A task refills
// to taskTicks (20) after each send and is active again 21 ticks later, so
// resends come about every 1.05s.
const tickInterval = 50 * time.Millisecond

const (
	taskTicks       = 20
	taskRetries     = 5
	maxFragmentChan = 32
)

// Transport is the raw send side the engine requires (spec §6). A server
// implementation supplies one bound to a fixed peer address; a client
// supplies one bound to its dialed socket.
type Transport interface {
	Send(data []byte) error
}

// Engine is the per-peer protocol state machine: wire ingress reassembly,
// reordering, ACK/NACK bookkeeping, and egress fragmentation/bin-packing
// (spec §3-§5). One Engine owns exactly one peer relationship.
//
// All mutable state is guarded by mu. The spec's source engine runs on a
// single cooperative event loop and needs no locking at all; since Go gives
// the ingress/tick loop and the application's Write/Read calls their own
// goroutines, this port takes one mutex across the struct, the same coarse
// locking shape the teacher repo uses for its Session type.
type Engine struct {
	mu sync.Mutex

	GUID          wire.GUID
	Version       uint8
	LocalAddress  wire.Address
	RemoteAddress wire.Address
	mtu           uint16

	online bool

	transport Transport

	readFrameSetIdx     uint32
	processedFrameSets  map[uint32]struct{}
	readOrderIdx        uint32
	readOrderChan       map[uint32]*wire.Frame
	readFragmentChan    map[uint16]map[uint32]*wire.Frame

	writeReliableIdx  uint32
	writeOrderIdx     uint32
	writeFrameSetIdx  uint32
	writeFragmentChan uint16
	writeFrameSetChan map[uint32][]uint32
	writeOnlineTasks  []*Task
	writeOfflineTask  *Task

	readQueue []wire.Packet
	readCond  *sync.Cond

	closed bool
}

// New constructs an offline engine ready to drive a handshake. mtu should
// be wire.DefaultMTU until negotiated.
func New(transport Transport, guid wire.GUID, local, remote wire.Address, mtu uint16) *Engine {
	e := &Engine{
		GUID:              guid,
		Version:           wire.ProtocolVersion,
		LocalAddress:      local,
		RemoteAddress:     remote,
		mtu:               mtu,
		transport:          transport,
		processedFrameSets: make(map[uint32]struct{}),
		readOrderChan:      make(map[uint32]*wire.Frame),
		readFragmentChan:   make(map[uint16]map[uint32]*wire.Frame),
		writeFrameSetChan:  make(map[uint32][]uint32),
	}
	e.readCond = sync.NewCond(&e.mu)
	return e
}

// Online reports whether the handshake has completed.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// SetOnline is called by the handshake drivers once the peer is confirmed.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	e.online = online
	e.mu.Unlock()
}

// MTU returns the current negotiated MTU.
func (e *Engine) MTU() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mtu
}

// SetMTU adopts an MTU value learned during the handshake.
func (e *Engine) SetMTU(mtu uint16) {
	e.mu.Lock()
	e.mtu = mtu
	e.mu.Unlock()
}

// Close marks the engine's tick loop for termination; outstanding tasks are
// abandoned without a flush (spec §5 cancellation). A graceful peer is
// told via a best-effort DisconnectionNotification before teardown — its
// delivery is not retried, since nothing is left running to retransmit it.
func (e *Engine) Close() {
	e.sendRaw((&wire.DisconnectionNotification{}).Encode())

	e.mu.Lock()
	e.closed = true
	e.readCond.Broadcast()
	e.mu.Unlock()
}

// Run drives the 50ms tick loop until ctx is cancelled or Close is called.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			e.Tick()
		}
	}
}

// Read blocks until an application-level packet is available, ctx is
// cancelled, or the engine is closed; the last two return an error.
func (e *Engine) Read(ctx context.Context) (wire.Packet, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.readCond.Broadcast()
			e.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.readQueue) == 0 && !e.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.readCond.Wait()
	}
	if len(e.readQueue) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("engine: closed")
	}
	pkt := e.readQueue[0]
	e.readQueue = e.readQueue[1:]
	return pkt, nil
}

func (e *Engine) enqueueRead(pkt wire.Packet) {
	e.mu.Lock()
	e.readQueue = append(e.readQueue, pkt)
	e.readCond.Broadcast()
	e.mu.Unlock()
}

func (e *Engine) sendRaw(data []byte) {
	if err := e.transport.Send(data); err != nil {
		log.Debug().Err(err).Msg("engine: raw send failed")
	}
}

// OnDatagram is the ingress entry point (spec §4.4): the demultiplexer
// hands each received datagram to the owning engine synchronously.
func (e *Engine) OnDatagram(data []byte) error {
	return e.processPacket(data)
}

// processPacket parses and dispatches one complete packet. It is the
// explicit, non-recursive form of the source's re-entrant ingress handler:
// reassembly and reordering call back into this same function instead of
// onDatagram calling itself, so deeply fragmented or buffered traffic never
// grows the call stack.
func (e *Engine) processPacket(data []byte) error {
	pkt, err := wire.Decode(data)
	if err != nil {
		log.Debug().Err(err).Msg("engine: dropping malformed datagram")
		return err
	}

	switch v := pkt.(type) {
	case *wire.ConnectedPing:
		_ = e.Write(&wire.ConnectedPong{RemoteTime: v.LocalTime, LocalTime: 0})
		return nil
	case *wire.AckRecord:
		e.handleAckRecord(v)
		return nil
	case *wire.FrameSet:
		return e.handleFrameSet(v)
	default:
		e.enqueueRead(pkt)
		return nil
	}
}

// handleAckRecord processes an ACK or NACK: tasks carrying a named frame's
// reliable index are stopped (ACK) or reset for immediate resend (NACK)
// (spec §4.4 step 3, I4).
func (e *Engine) handleAckRecord(rec *wire.AckRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, idx := range rec.Indices {
		reliableIdxs, ok := e.writeFrameSetChan[idx]
		if !ok {
			continue
		}
		delete(e.writeFrameSetChan, idx)

		for _, task := range e.writeOnlineTasks {
			frame, ok := task.Obj.(*wire.Frame)
			if !ok || !frame.HasReliable {
				continue
			}
			for _, rid := range reliableIdxs {
				if frame.ReliableIdx != rid {
					continue
				}
				if rec.Ident == wire.IdentACK {
					task.Stop()
				} else {
					task.Reset()
				}
			}
		}
	}
}

// processedFrameSetWindow bounds the dedup set's growth: entries further
// behind read_frame_set_idx than this are pruned, since a peer will not
// usefully retransmit a frame set that old.
const processedFrameSetWindow = 4096

// handleFrameSet processes one received frame set (spec §4.4 step 4):
// reassembly, reordering, gap detection, then ACK/NACK.
//
// Frame-set indices can legitimately arrive out of order (spec scenario
// 4), so a true duplicate is detected by set membership in
// processedFrameSets, not by comparison against the read_frame_set_idx
// counter — that counter can leap past an index that greedy bin-packing
// and reordering never actually delivered yet, and naively treating
// "idx < read_frame_set_idx" as "already seen" would wrongly drop a frame
// set that is simply late.
func (e *Engine) handleFrameSet(fs *wire.FrameSet) error {
	e.mu.Lock()
	if _, seen := e.processedFrameSets[fs.Idx]; seen {
		e.mu.Unlock()
		e.sendRaw(wire.NewACK([]uint32{fs.Idx}).Encode())
		return nil
	}
	e.processedFrameSets[fs.Idx] = struct{}{}
	gapStart := e.readFrameSetIdx
	e.mu.Unlock()

	for _, f := range fs.Frames {
		e.reassembleAndDispatch(f)
	}

	if gapStart < fs.Idx {
		nak := make([]uint32, 0, fs.Idx-gapStart)
		for i := gapStart; i < fs.Idx; i++ {
			nak = append(nak, i)
		}
		e.sendRaw(wire.NewNACK(nak).Encode())
	}
	e.sendRaw(wire.NewACK([]uint32{fs.Idx}).Encode())

	e.mu.Lock()
	if fs.Idx+1 > e.readFrameSetIdx {
		e.readFrameSetIdx = fs.Idx + 1
	}
	if e.readFrameSetIdx > processedFrameSetWindow {
		floor := e.readFrameSetIdx - processedFrameSetWindow
		for idx := range e.processedFrameSets {
			if idx < floor {
				delete(e.processedFrameSets, idx)
			}
		}
	}
	e.mu.Unlock()
	return nil
}

// reassembleAndDispatch applies fragment reassembly (I2) then order
// discipline (I3) to one frame off a frame set, finally handing complete,
// in-order payloads to processPacket.
func (e *Engine) reassembleAndDispatch(f *wire.Frame) {
	frame := f

	if f.Fragmented {
		e.mu.Lock()
		chans, ok := e.readFragmentChan[f.FragmentChan]
		if !ok {
			chans = make(map[uint32]*wire.Frame)
			e.readFragmentChan[f.FragmentChan] = chans
		}
		chans[f.FragmentIdx] = f
		complete := uint32(len(chans)) == f.FragmentCount
		if !complete {
			e.mu.Unlock()
			return
		}
		first := chans[0]
		var payload []byte
		for i := uint32(0); i < f.FragmentCount; i++ {
			payload = append(payload, chans[i].Payload...)
		}
		delete(e.readFragmentChan, f.FragmentChan)
		e.mu.Unlock()

		frame = &wire.Frame{
			Payload:     payload,
			HasReliable: first.HasReliable,
			ReliableIdx: first.ReliableIdx,
			HasOrder:    first.HasOrder,
			OrderIdx:    first.OrderIdx,
		}
	}

	if !frame.HasOrder {
		_ = e.processPacket(frame.Payload)
		return
	}

	e.mu.Lock()
	e.readOrderChan[frame.OrderIdx] = frame
	var ready []*wire.Frame
	for {
		next, ok := e.readOrderChan[e.readOrderIdx]
		if !ok {
			break
		}
		delete(e.readOrderChan, e.readOrderIdx)
		ready = append(ready, next)
		e.readOrderIdx++
	}
	e.mu.Unlock()

	for _, next := range ready {
		_ = e.processPacket(next.Payload)
	}
}

// Write enqueues packet for delivery (spec §4.5). Pre-handshake it becomes
// the single offline retransmit task (I5); once online it is framed,
// fragmented if needed, and queued as one or more online tasks.
func (e *Engine) Write(packet wire.Packet) error {
	data := packet.Encode()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.online {
		e.writeOfflineTask = NewTask(append([]byte(nil), data...), taskTicks, taskRetries)
		return nil
	}

	mtuFrame := int(e.mtu) - 60
	if len(data) <= mtuFrame {
		frame := e.buildSingleFrameLocked(data)
		retries := 0
		if frame.HasReliable {
			retries = taskRetries
		}
		e.writeOnlineTasks = append(e.writeOnlineTasks, NewTask(frame, taskTicks, retries))
		return nil
	}

	for _, frame := range e.buildFragmentedFramesLocked(data, mtuFrame) {
		e.writeOnlineTasks = append(e.writeOnlineTasks, NewTask(frame, taskTicks, taskRetries))
	}
	return nil
}

// buildSingleFrameLocked builds one frame for data that fits under the MTU
// unfragmented. ConnectedPing/Pong ride unreliable and unordered; every
// other packet rides reliable+ordered.
func (e *Engine) buildSingleFrameLocked(data []byte) *wire.Frame {
	if len(data) > 0 && (data[0] == wire.IdentConnectedPing || data[0] == wire.IdentConnectedPong) {
		return &wire.Frame{Payload: data}
	}
	frame := &wire.Frame{
		Payload:     data,
		HasReliable: true,
		ReliableIdx: e.writeReliableIdx,
		HasOrder:    true,
		OrderIdx:    e.writeOrderIdx,
	}
	e.writeReliableIdx++
	e.writeOrderIdx++
	return frame
}

// buildFragmentedFramesLocked splits data into mtuFrame-sized chunks, each
// becoming a reliable+ordered+fragmented frame sharing one fragment channel
// and order index (spec §4.5).
func (e *Engine) buildFragmentedFramesLocked(data []byte, mtuFrame int) []*wire.Frame {
	var chunks [][]byte
	for len(data) > 0 {
		n := mtuFrame
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}

	orderIdx := e.writeOrderIdx
	fragChan := e.writeFragmentChan
	frames := make([]*wire.Frame, len(chunks))
	for i, chunk := range chunks {
		frames[i] = &wire.Frame{
			Payload:       chunk,
			HasReliable:   true,
			ReliableIdx:   e.writeReliableIdx,
			HasOrder:      true,
			OrderIdx:      orderIdx,
			Fragmented:    true,
			FragmentCount: uint32(len(chunks)),
			FragmentChan:  fragChan,
			FragmentIdx:   uint32(i),
		}
		e.writeReliableIdx++
	}
	e.writeFragmentChan = (fragChan + 1) % maxFragmentChan
	e.writeOrderIdx++
	return frames
}

// Tick drives one offline retry or one online retransmit/bin-pack round
// (spec §4.5).
func (e *Engine) Tick() {
	e.mu.Lock()

	if !e.online {
		task := e.writeOfflineTask
		if task == nil || !task.Alive() {
			e.mu.Unlock()
			return
		}
		var data []byte
		if task.Active() {
			data = task.Obj.([]byte)
		}
		task.Tick()
		e.mu.Unlock()
		if data != nil {
			e.sendRaw(data)
		}
		return
	}

	var frames []*wire.Frame
	kept := e.writeOnlineTasks[:0:0]
	for _, task := range e.writeOnlineTasks {
		if !task.Alive() {
			continue
		}
		if task.Active() {
			frames = append(frames, task.Obj.(*wire.Frame))
		}
		task.Tick()
		kept = append(kept, task)
	}
	e.writeOnlineTasks = kept
	mtu := e.mtu
	e.mu.Unlock()

	e.emitFrameSets(frames, mtu)
}

// emitFrameSets greedily bin-packs frames into frame sets capped at
// mtu-28 bytes and sends each over the transport (spec §4.5, P7).
func (e *Engine) emitFrameSets(frames []*wire.Frame, mtu uint16) {
	limit := int(mtu) - 28
	for len(frames) > 0 {
		e.mu.Lock()
		idx := e.writeFrameSetIdx
		e.mu.Unlock()

		fs := &wire.FrameSet{Idx: idx}
		size := 1 + 3
		var reliableIdxs []uint32
		consumed := 0
		for _, f := range frames {
			fsz := f.EncodedSize()
			if len(fs.Frames) > 0 && size+fsz > limit {
				break
			}
			fs.Frames = append(fs.Frames, f)
			size += fsz
			consumed++
			if f.HasReliable {
				reliableIdxs = append(reliableIdxs, f.ReliableIdx)
			}
		}
		frames = frames[consumed:]

		e.mu.Lock()
		e.writeFrameSetChan[idx] = reliableIdxs
		e.writeFrameSetIdx++
		e.mu.Unlock()

		e.sendRaw(fs.Encode())
	}
}
