package sessions

import (
	"sync"
	"time"
)

const (
	// maxBufferedEvents bounds the replay ring per session.
	maxBufferedEvents = 1024
	// maxEventAge bounds how far back replay can reach.
	maxEventAge = 5 * time.Minute
)

// Event is one buffered SSE frame.
type Event struct {
	ID      uint64
	Name    string
	Payload []byte
	At      time.Time
}

// EventBuffer is a bounded ring of emitted SSE frames supporting replay from
// a client-supplied Last-Event-ID. Event ids are monotonic per session.
type EventBuffer struct {
	mu     sync.Mutex
	nextID uint64
	events []Event
}

// NewEventBuffer constructs an empty buffer.
func NewEventBuffer() *EventBuffer {
	return &EventBuffer{}
}

// Append assigns the next event id, stores the frame, and evicts anything
// beyond the size or age bound. The payload is retained as-is; callers must
// not mutate it afterwards.
func (b *EventBuffer) Append(name string, payload []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.events = append(b.events, Event{ID: b.nextID, Name: name, Payload: payload, At: time.Now()})
	b.trimLocked()
	return b.nextID
}

func (b *EventBuffer) trimLocked() {
	if n := len(b.events) - maxBufferedEvents; n > 0 {
		b.events = append(b.events[:0:0], b.events[n:]...)
	}
	cutoff := time.Now().Add(-maxEventAge)
	idx := 0
	for idx < len(b.events) && b.events[idx].At.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		b.events = append(b.events[:0:0], b.events[idx:]...)
	}
}

// Since returns buffered events with id greater than lastID, in id order.
func (b *EventBuffer) Since(lastID uint64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, len(b.events))
	for _, ev := range b.events {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// LastID returns the most recently assigned event id.
func (b *EventBuffer) LastID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Clear drops all buffered events. The id counter is not reset so replay ids
// stay monotonic for the session's lifetime.
func (b *EventBuffer) Clear() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
