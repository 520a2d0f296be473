package engine

import (
	"sync/atomic"

	"github.com/seosaudio/seos"
)

type (
	// RingBuffer is a generic fixed-size ring with a cursor, used for the
	// waveform history and the detector power windows.
	RingBuffer[T any] struct {
		Buffer []T
		Cursor int
	}

	// scopeSnap is one completed copy of the waveform ring.
	scopeSnap struct {
		frames [][2]float32
		cursor int
	}

	// Scope captures a short post-fade window of the master output so the
	// host can draw a compact oscilloscope. Only the audio thread writes the
	// live ring; each block it republishes a copy into a double buffer the
	// same way the meters do, so readers only ever see a completed snapshot,
	// never the live buffer.
	Scope struct {
		waveForm RingBuffer[[2]float32]
		wrap     bool

		snaps    [2]scopeSnap
		writeIdx atomic.Uint32
	}
)

func (r *RingBuffer[T]) WriteWrap(values []T) {
	r.Cursor = (r.Cursor + len(values)) % len(r.Buffer)
	a := min(len(values), r.Cursor)                 // how many values to copy before the cursor
	b := min(len(values)-a, len(r.Buffer)-r.Cursor) // how many values to copy to the end of the buffer
	copy(r.Buffer[r.Cursor-a:r.Cursor], values[len(values)-a:])
	copy(r.Buffer[len(r.Buffer)-b:], values[len(values)-a-b:])
}

func (r *RingBuffer[T]) WriteWrapSingle(value T) {
	r.Cursor = (r.Cursor + 1) % len(r.Buffer)
	r.Buffer[r.Cursor] = value
}

func (r *RingBuffer[T]) WriteOnce(values []T) {
	if r.Cursor < len(r.Buffer) {
		r.Cursor += copy(r.Buffer[r.Cursor:], values)
	}
}

func (r *RingBuffer[T]) WriteOnceSingle(value T) {
	if r.Cursor < len(r.Buffer) {
		r.Buffer[r.Cursor] = value
		r.Cursor++
	}
}

// NewScope allocates a scope holding the given number of frames.
func NewScope(lengthFrames int, wrap bool) *Scope {
	if lengthFrames <= 0 {
		lengthFrames = 4096
	}
	s := &Scope{
		waveForm: RingBuffer[[2]float32]{Buffer: make([][2]float32, lengthFrames)},
		wrap:     wrap,
	}
	s.snaps[0] = scopeSnap{frames: make([][2]float32, lengthFrames)}
	s.snaps[1] = scopeSnap{frames: make([][2]float32, lengthFrames)}
	return s
}

// Write appends a block of post-fade master frames and publishes the result.
// Audio thread only; does not allocate.
func (s *Scope) Write(buf seos.AudioBuffer) {
	if s.wrap {
		s.waveForm.WriteWrap(buf)
	} else {
		s.waveForm.WriteOnce(buf)
	}
	idx := s.writeIdx.Load()
	snap := &s.snaps[idx]
	copy(snap.frames, s.waveForm.Buffer)
	snap.cursor = s.waveForm.Cursor
	s.writeIdx.Store(1 - idx)
}

// Snapshot copies the most recently published waveform into dst and returns
// its cursor. Wait-free; safe from any thread.
func (s *Scope) Snapshot(dst [][2]float32) int {
	snap := &s.snaps[1-s.writeIdx.Load()]
	copy(dst, snap.frames)
	return snap.cursor
}

// Reset rewinds the capture, e.g. when playback starts. Call while the
// stream is stopped; it touches the live ring.
func (s *Scope) Reset() {
	s.waveForm.Cursor = 0
	for i := range s.waveForm.Buffer {
		s.waveForm.Buffer[i] = [2]float32{}
	}
	for h := range s.snaps {
		s.snaps[h].cursor = 0
		for i := range s.snaps[h].frames {
			s.snaps[h].frames[i] = [2]float32{}
		}
	}
}

// Len returns the scope length in frames.
func (s *Scope) Len() int { return len(s.waveForm.Buffer) }
