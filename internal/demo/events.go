// Package demo is a small application layer exercising the engine/
// transport/server stack: a peer lifecycle event bus plus an echo
// handler, wired together by cmd/raknet-server.
package demo

// EventType distinguishes the kinds of protocol lifecycle events the demo
// application reacts to.
type EventType int

const (
	EventPeerConnected EventType = iota
	EventPeerDisconnected
	EventPacketReceived
)

// Event carries one lifecycle occurrence for a single peer.
type Event struct {
	Type EventType
	Peer string
	Data interface{}
}

// EventHandler reacts to one Event.
type EventHandler func(Event)

// EventManager dispatches events to the handlers registered for their
// type, grounded on the teacher's core/events.EventManager pattern but
// retargeted from game events to connection lifecycle events.
type EventManager struct {
	handlers map[EventType][]EventHandler
}

// NewEventManager returns an empty manager.
func NewEventManager() *EventManager {
	return &EventManager{handlers: make(map[EventType][]EventHandler)}
}

// Register adds a handler for eventType.
func (em *EventManager) Register(eventType EventType, handler EventHandler) {
	em.handlers[eventType] = append(em.handlers[eventType], handler)
}

// Trigger runs every handler registered for ev.Type, in registration order.
func (em *EventManager) Trigger(ev Event) {
	for _, h := range em.handlers[ev.Type] {
		h(ev)
	}
}
