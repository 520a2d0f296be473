package engine

import "sync/atomic"

type (
	// Event is a scheduled note event pushed by the pattern lookahead and
	// consumed sample-accurately by the audio thread. The struct is a 32-byte
	// POD so a ring of them stays cache-friendly. Priority orders events
	// sharing a frame: note-offs (priority 0) run before note-ons (1).
	Event struct {
		Frame      uint64 // absolute project sample position
		InstanceID uint32 // pattern instance, for cancellation
		ChannelIdx uint8  // unit/channel index
		Status     uint8  // MIDI status byte
		Data1      uint8  // key
		Data2      uint8  // velocity
		Priority   uint8
		_          [15]byte
	}

	// EventQueue is a single-producer single-consumer ring of Events, written
	// by the lookahead worker and drained by the audio thread. Overflowing
	// pushes are dropped (the caller counts them); the consumer can peek so
	// events beyond the current block stay queued.
	EventQueue struct {
		buf   []Event
		read  atomic.Uint64
		write atomic.Uint64
	}
)

// Event priorities.
const (
	PriorityNoteOff = 0
	PriorityNoteOn  = 1
)

// DefaultEventCapacity is the ring size used by the playback engine.
const DefaultEventCapacity = 4096

// NewEventQueue creates a queue; capacity must be a power of two.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("event queue capacity must be a power of 2")
	}
	return &EventQueue{buf: make([]Event, capacity)}
}

// Push enqueues an event; returns false when the ring is full.
func (q *EventQueue) Push(ev Event) bool {
	write := q.write.Load()
	if write-q.read.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[write%uint64(len(q.buf))] = ev
	q.write.Store(write + 1)
	return true
}

// Peek returns the next event without consuming it.
func (q *EventQueue) Peek() (ev Event, ok bool) {
	read := q.read.Load()
	if read == q.write.Load() {
		return Event{}, false
	}
	return q.buf[read%uint64(len(q.buf))], true
}

// Pop consumes the next event.
func (q *EventQueue) Pop() (ev Event, ok bool) {
	read := q.read.Load()
	if read == q.write.Load() {
		return Event{}, false
	}
	ev = q.buf[read%uint64(len(q.buf))]
	q.read.Store(read + 1)
	return ev, true
}

// Len reports the number of queued events; exact only for the producer or
// consumer thread.
func (q *EventQueue) Len() int {
	return int(q.write.Load() - q.read.Load())
}
