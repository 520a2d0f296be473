package engine

import (
	"sync/atomic"
	"time"
)

type (
	// Telemetry is the set of counters the audio thread bumps when something
	// degrades, plus a callback-load estimate. Everything is atomic so the
	// host can poll from any thread; the audio thread never blocks or logs.
	Telemetry struct {
		Underruns      atomic.Uint64 // blocks where silence was substituted
		CommandDrops   atomic.Uint64 // command queue overflow, producer side
		EventDrops     atomic.Uint64 // pattern event ring overflow
		EventCancels   atomic.Uint64 // events discarded due to cancellation
		SlotMapMisses  atomic.Uint64 // connections dropped at compile, destination unresolvable
		ClipBoundsHits atomic.Uint64 // clips clamped at the source end
		Callbacks      atomic.Uint64

		loadPermille atomic.Uint32 // smoothed callback load, 0..1000
	}

	// blockTimer measures one callback against its real-time budget.
	blockTimer struct {
		start time.Time
	}
)

func NewTelemetry() *Telemetry { return &Telemetry{} }

func (t *Telemetry) beginBlock() blockTimer {
	t.Callbacks.Add(1)
	return blockTimer{start: time.Now()}
}

// endBlock folds the elapsed callback time into the load estimate, as a
// fraction of the block's real-time duration. Exponential smoothing with
// alpha 1/8 keeps it cheap and stable.
func (t *Telemetry) endBlock(bt blockTimer, frames int, sampleRate float64) {
	if frames <= 0 || sampleRate <= 0 {
		return
	}
	budget := float64(frames) / sampleRate
	load := time.Since(bt.start).Seconds() / budget
	permille := uint32(load * 1000)
	if permille > 10000 {
		permille = 10000
	}
	old := t.loadPermille.Load()
	t.loadPermille.Store(old - old/8 + permille/8)
}

// Load returns the smoothed callback CPU load where 1.0 means the whole
// real-time budget was spent rendering.
func (t *Telemetry) Load() float64 {
	return float64(t.loadPermille.Load()) / 1000
}
