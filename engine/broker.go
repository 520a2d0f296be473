package engine

import (
	"sync"
	"time"

	"github.com/seosaudio/seos"
)

type (
	// Broker is the centralized message hub for the non-real-time threads:
	// the control-side model, the lookahead scheduler, the loudness detector
	// and the host UI. It is many-to-one communication, one channel per
	// recipient, plus a sync.Pool of audio buffers so the audio tap can pass
	// waveforms around without allocating every block. The audio thread
	// itself never receives through the broker; it is fed by the lock-free
	// command queue.
	//
	// For closing goroutines there are CloseXXX/FinishedXXX channel pairs:
	// CloseXXX has capacity 1 so requesting closure never blocks (a full
	// channel means someone already asked), and FinishedXXX is closed by the
	// goroutine when it has cleaned up.
	Broker struct {
		ToModel    chan MsgToModel
		ToDetector chan MsgToDetector
		ToHost     chan any

		CloseDetector    chan struct{}
		FinishedDetector chan struct{}

		bufferPool sync.Pool
	}

	// MsgToModel carries frequently published engine state to the control
	// side. The hot fields are unboxed to avoid allocations; rare payloads
	// ride in Data as pointer types (cheap to box).
	MsgToModel struct {
		Playing   bool
		SamplePos int64
		Load      float64

		HasDetectorResult bool
		DetectorResult    DetectorResult

		Reset bool // playback started; reset scopes and detectors

		Data any
	}

	// MsgToDetector feeds the loudness detector: audio buffer pointers to
	// analyze, plus reconfiguration.
	MsgToDetector struct {
		Reset bool
		Data  any

		WeightingType    WeightingType
		HasWeightingType bool
		Oversampling     bool
		HasOversampling  bool
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToModel:          make(chan MsgToModel, 1024),
		ToDetector:       make(chan MsgToDetector, 1024),
		ToHost:           make(chan any, 1024),
		CloseDetector:    make(chan struct{}, 1),
		FinishedDetector: make(chan struct{}),
		bufferPool:       sync.Pool{New: func() any { return &seos.AudioBuffer{} }},
	}
}

// GetAudioBuffer returns an empty audio buffer from the pool. Return it with
// PutAudioBuffer when done.
func (b *Broker) GetAudioBuffer() *seos.AudioBuffer {
	return b.bufferPool.Get().(*seos.AudioBuffer)
}

// PutAudioBuffer resets the buffer's length (keeping capacity) and returns it
// to the pool.
func (b *Broker) PutAudioBuffer(buf *seos.AudioBuffer) {
	if len(*buf) > 0 {
		*buf = (*buf)[:0]
	}
	b.bufferPool.Put(buf)
}

// TrySend sends a value to a channel if it is not full. Guaranteed
// non-blocking; returns true if the value was sent.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value arrives or the timeout elapses; ok is
// false on timeout or when the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
