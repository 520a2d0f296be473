package engine

import (
	"math"
	"sync/atomic"

	"github.com/seosaudio/seos"
)

// Dirty-mask bits of ParamBuffer slots.
const (
	dirtyFader = 1 << iota
	dirtyPan
	dirtyTrim
)

type (
	// paramSlot is padded to its own cache line so that concurrent writers to
	// neighbouring slots do not false-share.
	paramSlot struct {
		faderDb atomic.Uint32 // float32 bits
		pan     atomic.Uint32
		trimDb  atomic.Uint32
		dirty   atomic.Uint32
		_       [48]byte
	}

	// ParamBuffer carries the continuously variable per-channel parameters
	// (fader, pan, trim) across the control→audio boundary. Floats are stored
	// bit-cast into uint32 atomics so the protocol only needs integer
	// load/store. A write stores the value with relaxed ordering and then
	// OR-s the dirty bit with release; the consumer exchanges the mask to
	// zero with acquire-release, which makes every value stored before the
	// bit was set visible. OR-aggregation is idempotent: two writes before
	// one consume collapse to the latest value, which is the intent.
	ParamBuffer struct {
		slots [seos.NumSlots]paramSlot
	}

	// ParamValues is one consumed slot worth of parameters.
	ParamValues struct {
		FaderDb, Pan, TrimDb float32
	}
)

func NewParamBuffer() *ParamBuffer {
	b := &ParamBuffer{}
	for i := range b.slots {
		b.slots[i].pan.Store(math.Float32bits(0))
	}
	return b
}

func (b *ParamBuffer) valid(slot int) bool { return slot >= 0 && slot < seos.NumSlots }

// SetFaderDb publishes a new fader value for a slot. Control thread only.
func (b *ParamBuffer) SetFaderDb(slot int, db float32) {
	if !b.valid(slot) {
		return
	}
	b.slots[slot].faderDb.Store(math.Float32bits(db))
	b.slots[slot].dirty.Or(dirtyFader)
}

// SetPan publishes a new pan position in [-1, 1]. Control thread only.
func (b *ParamBuffer) SetPan(slot int, pan float32) {
	if !b.valid(slot) {
		return
	}
	b.slots[slot].pan.Store(math.Float32bits(pan))
	b.slots[slot].dirty.Or(dirtyPan)
}

// SetTrimDb publishes a new trim value. Control thread only.
func (b *ParamBuffer) SetTrimDb(slot int, db float32) {
	if !b.valid(slot) {
		return
	}
	b.slots[slot].trimDb.Store(math.Float32bits(db))
	b.slots[slot].dirty.Or(dirtyTrim)
}

// ConsumeIfDirty clears the slot's dirty mask and overwrites the fields of v
// that had pending writes. Returns false and leaves v untouched when nothing
// changed. Audio thread only.
func (b *ParamBuffer) ConsumeIfDirty(slot int, v *ParamValues) bool {
	if !b.valid(slot) {
		return false
	}
	s := &b.slots[slot]
	mask := s.dirty.Swap(0)
	if mask == 0 {
		return false
	}
	if mask&dirtyFader != 0 {
		v.FaderDb = math.Float32frombits(s.faderDb.Load())
	}
	if mask&dirtyPan != 0 {
		v.Pan = math.Float32frombits(s.pan.Load())
	}
	if mask&dirtyTrim != 0 {
		v.TrimDb = math.Float32frombits(s.trimDb.Load())
	}
	return true
}

// Peek reads the slot's current values without touching the dirty mask. Used
// by the control side to display what it last wrote.
func (b *ParamBuffer) Peek(slot int) ParamValues {
	if !b.valid(slot) {
		return ParamValues{}
	}
	s := &b.slots[slot]
	return ParamValues{
		FaderDb: math.Float32frombits(s.faderDb.Load()),
		Pan:     math.Float32frombits(s.pan.Load()),
		TrimDb:  math.Float32frombits(s.trimDb.Load()),
	}
}
