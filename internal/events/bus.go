package events

import (
	"encoding/json"
	"sync"
)

// BusEvent is one sequenced protocol event held for polling consumers.
type BusEvent struct {
	Seq  int64           `json:"seq"`
	Data json.RawMessage `json:"data"`
}

// Bus stores recent protocol events and provides incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []BusEvent
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]BusEvent, 0, maxEvents),
	}
}

// Publish appends one event line and assigns its sequence number.
func (b *Bus) Publish(data []byte) BusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event := BusEvent{
		Seq:  b.nextSeq,
		Data: json.RawMessage(append([]byte(nil), data...)),
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]BusEvent(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []BusEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]BusEvent, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
