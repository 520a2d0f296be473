package engine

import "sync/atomic"

// CommandKind discriminates the control→audio commands.
type CommandKind uint8

const (
	CmdNone CommandKind = iota
	CmdPlay
	CmdStop
	CmdSeek
	CmdSetBPM
	CmdSetLoop
	CmdSetMasterDb
	CmdSetMute
	CmdSetSolo
	CmdPanic
)

type (
	// Command is a small POD message from the control thread to the audio
	// thread. The meaning of the fields depends on Kind: Pos carries sample
	// positions (seek, loop start), Value1/Value2 carry parameters (bpm,
	// loop end, gain, flags).
	Command struct {
		Kind   CommandKind
		Track  int32
		Pos    int64
		Value1 float64
		Value2 float64
		Flag   bool
	}

	// CommandQueue is a single-producer single-consumer ring of fixed
	// capacity. Push is control-thread only, Pop audio-thread only. The
	// cursors are monotonically increasing; the store of the write cursor
	// publishes the element written before it. A full queue rejects the push
	// so the producer can coalesce or drop.
	CommandQueue struct {
		buf   []Command
		read  atomic.Uint64
		write atomic.Uint64
	}
)

// DefaultCommandCapacity is the ring size used by the engine.
const DefaultCommandCapacity = 1024

// NewCommandQueue creates a queue; capacity must be a power of two.
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("command queue capacity must be a power of 2")
	}
	return &CommandQueue{buf: make([]Command, capacity)}
}

// Push enqueues a command; returns false when the queue is full.
func (q *CommandQueue) Push(c Command) bool {
	write := q.write.Load()
	if write-q.read.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[write%uint64(len(q.buf))] = c
	q.write.Store(write + 1)
	return true
}

// Pop dequeues one command; ok is false when the queue is empty.
func (q *CommandQueue) Pop() (c Command, ok bool) {
	read := q.read.Load()
	if read == q.write.Load() {
		return Command{}, false
	}
	c = q.buf[read%uint64(len(q.buf))]
	q.read.Store(read + 1)
	return c, true
}

// Len reports the number of queued commands; exact only for the producer or
// consumer thread.
func (q *CommandQueue) Len() int {
	return int(q.write.Load() - q.read.Load())
}
