// Package buffer holds the bounded, insertion-ordered set of live events.
package buffer

import "github.com/hervehildenbrand/attack-radar/pkg/models"

// DefaultCapacity is the number of live events kept for display.
const DefaultCapacity = 18

// Buffer is a fixed-capacity sliding window of events. The oldest events
// are evicted from the head once capacity is exceeded; retained events keep
// their relative order.
//
// Buffer is not safe for concurrent use. The session serializes access.
type Buffer struct {
	events   []models.AttackEvent
	capacity int
}

// New creates an empty buffer. capacity must be positive.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("buffer: capacity must be positive")
	}
	return &Buffer{
		events:   make([]models.AttackEvent, 0, capacity+1),
		capacity: capacity,
	}
}

// Insert appends events to the tail and evicts overflow from the head.
// It returns the evicted events, oldest first.
func (b *Buffer) Insert(events ...models.AttackEvent) []models.AttackEvent {
	b.events = append(b.events, events...)
	return b.EvictOverflow()
}

// EvictOverflow drops events from the head until len <= capacity.
func (b *Buffer) EvictOverflow() []models.AttackEvent {
	overflow := len(b.events) - b.capacity
	if overflow <= 0 {
		return nil
	}

	evicted := make([]models.AttackEvent, overflow)
	copy(evicted, b.events[:overflow])

	// Shift in place so the backing array does not grow without bound
	n := copy(b.events, b.events[overflow:])
	clear(b.events[n:])
	b.events = b.events[:n]
	return evicted
}

// Snapshot returns a copy of the buffer, oldest first.
func (b *Buffer) Snapshot() []models.AttackEvent {
	out := make([]models.AttackEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Find returns the buffered event with the given id.
func (b *Buffer) Find(id string) (models.AttackEvent, bool) {
	for _, e := range b.events {
		if e.ID == id {
			return e, true
		}
	}
	return models.AttackEvent{}, false
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int { return len(b.events) }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Reset empties the buffer.
func (b *Buffer) Reset() {
	clear(b.events)
	b.events = b.events[:0]
}
