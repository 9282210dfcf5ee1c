package events

import "sodap/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Typed is implemented by events that render to the wire representation.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects the events of a single operation so they can be published
// only once the operation commits.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(e Event) {
	if b == nil || e == nil {
		return
	}
	b.pending = append(b.pending, e)
}

// Drain returns the wire form of the collected events and empties the buffer.
func (b *Buffer) Drain() []*types.Event {
	if b == nil {
		return nil
	}
	out := make([]*types.Event, 0, len(b.pending))
	for _, e := range b.pending {
		typed, ok := e.(Typed)
		if !ok {
			out = append(out, &types.Event{Type: e.EventType(), Attributes: map[string]string{}})
			continue
		}
		if evt := typed.Event(); evt != nil {
			out = append(out, evt)
		}
	}
	b.pending = nil
	return out
}

// Discard drops everything collected so far.
func (b *Buffer) Discard() {
	if b != nil {
		b.pending = nil
	}
}

// Len reports the number of pending events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pending)
}
