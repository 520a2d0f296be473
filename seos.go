// Package seos contains the domain types of the seos mixing engine: the
// project model edited by the control thread, the clip sources referenced by
// both sides, and the small pure helpers (volume, timeline) that everything
// else builds on. The real-time machinery lives in package engine; the device
// layer in package driver.
package seos

// AudioBuffer is a buffer of stereo audio samples of the form
// [[l0,r0],[l1,r1],...]
type AudioBuffer [][2]float32

// MixBuffer is the double-precision variant used for track self buffers and
// bus accumulation on the audio thread.
type MixBuffer [][2]float64

const (
	// NumSlots is the size of the dense channel slot space. Slot indices run
	// 0..NumSlots-1.
	NumSlots = 128

	// MasterSlot is the reserved slot of the master bus; tracks map to slots
	// 0..MaxTracks-1.
	MasterSlot = NumSlots - 1
	MaxTracks  = NumSlots - 2 // slots 0..126 minus the master leaves 126 routable tracks

	// MasterRoute is the sentinel route ID meaning "output to the master bus".
	MasterRoute = int32(-1)
)

// AudioSink is the destination for rendered audio; implementations live in
// package driver.
type AudioSink interface {
	WriteAudio(buffer AudioBuffer) error
	Close() error
}

// AudioContext is something that can open audio sinks, typically an audio
// device.
type AudioContext interface {
	Output() AudioSink
	Close() error
}

// AudioSource is a pull-style source of stereo audio, used by offline
// rendering and tests.
type AudioSource interface {
	ReadAudio(buffer AudioBuffer) (n int, err error)
	Close() error
}

// Copy returns a deep copy of the buffer.
func (b AudioBuffer) Copy() AudioBuffer {
	ret := make(AudioBuffer, len(b))
	copy(ret, b)
	return ret
}

// Fill sets every frame of the buffer to the given frame value.
func (b AudioBuffer) Fill(frame [2]float32) {
	for i := range b {
		b[i] = frame
	}
}

// Zero silences the buffer.
func (b MixBuffer) Zero() {
	for i := range b {
		b[i] = [2]float64{}
	}
}
