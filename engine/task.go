// Package engine implements the per-peer protocol state machine: ingress
// reassembly/reordering/ACK-NACK, egress fragmentation/bin-packing/tick,
// and the four-step handshake drivers.
package engine

// Task is a retransmit slot for either an offline raw datagram or an online
// Frame. It is ticked once per engine tick and resent while active.
type Task struct {
	Obj        interface{}
	MaxTicks   int
	MaxRetries int
	ticks      int
	retries    int
}

// NewTask creates a fresh task for obj, starting active on its first tick.
func NewTask(obj interface{}, maxTicks, maxRetries int) *Task {
	t := &Task{Obj: obj, MaxTicks: maxTicks, MaxRetries: maxRetries}
	t.reset()
	return t
}

// Alive reports whether the task has retries remaining.
func (t *Task) Alive() bool { return t.retries >= 0 }

// Active reports whether the task is ready to send this tick.
func (t *Task) Active() bool { return t.Alive() && t.ticks == 0 }

// reset returns the task to a fresh, immediately-active state.
func (t *Task) reset() {
	t.ticks = 0
	t.retries = t.MaxRetries
}

// Reset is the exported form used by the NACK handler to force an
// immediate resend.
func (t *Task) Reset() { t.reset() }

// Stop marks the task terminal; it will not be resent again.
func (t *Task) Stop() { t.retries = -1 }

// Tick advances the countdown; when it would go below zero, the task
// refills to MaxTicks and spends one retry.
func (t *Task) Tick() {
	t.ticks--
	if t.ticks < 0 {
		t.ticks = t.MaxTicks
		t.retries--
	}
}
