package demo

import (
	"context"

	"github.com/rs/zerolog/log"

	"raknet-go/engine"
	"raknet-go/wire"
)

// Echo drives one online peer's read loop, triggering bus events and
// writing every received Game packet straight back, until the peer's
// context is cancelled or the engine errors out.
func Echo(ctx context.Context, bus *EventManager, peerName string, e *engine.Engine) {
	bus.Trigger(Event{Type: EventPeerConnected, Peer: peerName})
	defer bus.Trigger(Event{Type: EventPeerDisconnected, Peer: peerName})

	for {
		pkt, err := e.Read(ctx)
		if err != nil {
			log.Debug().Err(err).Str("peer", peerName).Msg("demo: read loop exiting")
			return
		}
		bus.Trigger(Event{Type: EventPacketReceived, Peer: peerName, Data: pkt})

		game, ok := pkt.(*wire.Game)
		if !ok {
			continue
		}
		if err := e.Write(game); err != nil {
			log.Debug().Err(err).Str("peer", peerName).Msg("demo: echo write failed")
			return
		}
	}
}
