package engine

import (
	"math"
	"sync/atomic"

	"github.com/seosaudio/seos"
)

type (
	// MeterSnapshot is one channel's meter reading: linear peaks over the
	// last published block plus sticky clip flags (bit 0 = left, bit 1 =
	// right).
	MeterSnapshot struct {
		PeakL, PeakR float32
		RmsL, RmsR   float32
		ClipFlags    uint32
	}

	meterHalf struct {
		peakL, peakR atomic.Uint32 // float32 bits
		rmsL, rmsR   atomic.Uint32
		clip         atomic.Uint32
	}

	// meterSlot double-buffers one channel. halves[writeIdx] is the half the
	// audio thread writes next; readers take 1-writeIdx, the most recently
	// completed half. The store of the flipped index publishes the written
	// values, giving wait-free reads with at most one block of staleness.
	// Clip flags are sticky: they are OR-ed into both halves when the peak
	// reaches 1.0 and cleared from both by the UI.
	meterSlot struct {
		halves   [2]meterHalf
		writeIdx atomic.Uint32
		_        [16]byte
	}

	// MeterBuffer is the per-slot meter snapshot table shared by the audio
	// thread (writer) and the UI (reader).
	MeterBuffer struct {
		slots [seos.NumSlots]meterSlot
	}
)

func NewMeterBuffer() *MeterBuffer { return &MeterBuffer{} }

// WritePeak publishes a block's peak and RMS values for a slot and flips the
// visible half. Audio thread only.
func (b *MeterBuffer) WritePeak(slot int, peakL, peakR, rmsL, rmsR float32) {
	if slot < 0 || slot >= seos.NumSlots {
		return
	}
	s := &b.slots[slot]
	idx := s.writeIdx.Load()
	h := &s.halves[idx]
	h.peakL.Store(math.Float32bits(peakL))
	h.peakR.Store(math.Float32bits(peakR))
	h.rmsL.Store(math.Float32bits(rmsL))
	h.rmsR.Store(math.Float32bits(rmsR))
	if peakL >= 1 || peakR >= 1 {
		var flags uint32
		if peakL >= 1 {
			flags |= 1
		}
		if peakR >= 1 {
			flags |= 2
		}
		s.halves[0].clip.Or(flags)
		s.halves[1].clip.Or(flags)
	}
	s.writeIdx.Store(1 - idx)
}

// ReadSnapshot returns the most recently completed meter values for a slot.
// Wait-free; safe from any thread.
func (b *MeterBuffer) ReadSnapshot(slot int) MeterSnapshot {
	if slot < 0 || slot >= seos.NumSlots {
		return MeterSnapshot{}
	}
	s := &b.slots[slot]
	h := &s.halves[1-s.writeIdx.Load()]
	return MeterSnapshot{
		PeakL:     math.Float32frombits(h.peakL.Load()),
		PeakR:     math.Float32frombits(h.peakR.Load()),
		RmsL:      math.Float32frombits(h.rmsL.Load()),
		RmsR:      math.Float32frombits(h.rmsR.Load()),
		ClipFlags: h.clip.Load(),
	}
}

// ClearClip resets the sticky clip flags of a slot on both halves.
func (b *MeterBuffer) ClearClip(slot int) {
	if slot < 0 || slot >= seos.NumSlots {
		return
	}
	b.slots[slot].halves[0].clip.Store(0)
	b.slots[slot].halves[1].clip.Store(0)
}
