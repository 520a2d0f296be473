package engine

import (
	"math"
	"sync/atomic"

	"github.com/seosaudio/seos"
)

// FadeState is the click-suppression state of the transport. Fades hide
// play/stop/seek discontinuities; they are not musical fades.
type FadeState int32

const (
	FadeNone FadeState = iota // steady state, unity gain while playing
	FadingIn
	FadingOut
	FadeSilent
)

// Transport fade lengths in samples (smoothstep shaped).
const (
	FadeInSamples  = 256
	FadeOutSamples = 512
)

type (
	// Transport is the play position state machine. The cross-thread fields
	// (playing, position, bpm, loop) are atomics so the control side can
	// display them; everything is mutated only by the audio thread, except
	// that commands arriving through the queue are applied by the audio
	// thread at block boundaries. The fade fields are audio-thread-private.
	Transport struct {
		playing     atomic.Bool
		pos         atomic.Int64
		bpm         atomic.Uint64 // float64 bits
		loopEnabled atomic.Bool
		loopStart   atomic.Int64
		loopEnd     atomic.Int64
		beatsPerBar atomic.Int32
		sampleRate  float64

		fade        FadeState
		fadeRem     int
		fadeTotal   int
		pendingSeek int64
		hasPending  bool
	}

	// blockSegment is a loop-aware span of the timeline covered by (part of)
	// one block.
	blockSegment struct {
		start   int64
		frames  int
		wrapped bool // this segment begins at the loop start after a wrap
	}
)

func NewTransport(sampleRate float64) *Transport {
	t := &Transport{sampleRate: sampleRate, fade: FadeSilent}
	t.bpm.Store(math.Float64bits(120))
	t.beatsPerBar.Store(4)
	return t
}

func (t *Transport) Playing() bool      { return t.playing.Load() }
func (t *Transport) Pos() int64         { return t.pos.Load() }
func (t *Transport) BPM() float64       { return math.Float64frombits(t.bpm.Load()) }
func (t *Transport) SampleRate() float64 { return t.sampleRate }
func (t *Transport) BeatsPerBar() int   { return int(t.beatsPerBar.Load()) }
func (t *Transport) Fade() FadeState    { return t.fade }

func (t *Transport) SetBPM(bpm float64) {
	if bpm > 0 {
		t.bpm.Store(math.Float64bits(bpm))
	}
}

func (t *Transport) SetBeatsPerBar(n int) {
	if n > 0 {
		t.beatsPerBar.Store(int32(n))
	}
}

func (t *Transport) SetLoop(start, end int64, enabled bool) {
	t.loopStart.Store(start)
	t.loopEnd.Store(end)
	t.loopEnabled.Store(enabled && start < end)
}

// Loop returns the loop range and whether looping is on.
func (t *Transport) Loop() (start, end int64, enabled bool) {
	return t.loopStart.Load(), t.loopEnd.Load(), t.loopEnabled.Load()
}

// Play starts playback at pos, fading in. Starting at a new position while
// already audible first fades out, then seeks and fades back in, so the jump
// never clicks. Audio thread only.
func (t *Transport) Play(pos int64) {
	switch t.fade {
	case FadeSilent:
		t.pos.Store(pos)
		t.playing.Store(true)
		t.startFadeIn()
	case FadingIn, FadeNone:
		if !t.playing.Load() {
			t.pos.Store(pos)
			t.playing.Store(true)
			t.startFadeIn()
			return
		}
		if pos == t.pos.Load() && t.fade == FadeNone {
			return // already there
		}
		if pos == t.pos.Load() && t.fade == FadingIn {
			t.startFadeIn() // restart the ramp
			return
		}
		t.pendingSeek = pos
		t.hasPending = true
		t.startFadeOut()
	case FadingOut:
		// Crossfade: keep fading out, then come back in at the new position.
		t.pendingSeek = pos
		t.hasPending = true
	}
}

// Stop requests a click-free stop. Audio thread only.
func (t *Transport) Stop() {
	switch t.fade {
	case FadeNone, FadingIn:
		if t.playing.Load() {
			t.hasPending = false
			t.startFadeOut()
		}
	}
}

// Seek moves the position. While audible it routes through the fade-out path
// of Play; while silent it just moves.
func (t *Transport) Seek(pos int64) {
	if t.playing.Load() && (t.fade == FadeNone || t.fade == FadingIn) {
		t.Play(pos)
		return
	}
	t.pos.Store(pos)
}

func (t *Transport) startFadeIn() {
	t.fade = FadingIn
	t.fadeRem = FadeInSamples
	t.fadeTotal = FadeInSamples
}

func (t *Transport) startFadeOut() {
	t.fade = FadingOut
	t.fadeRem = FadeOutSamples
	t.fadeTotal = FadeOutSamples
}

// fadeStep returns the gain for the next sample and advances the fade state
// machine, handling the fade-out completion transitions (stop, or pending
// seek + fade-in).
func (t *Transport) fadeStep() float64 {
	switch t.fade {
	case FadeNone:
		if t.playing.Load() {
			return 1
		}
		return 0
	case FadeSilent:
		return 0
	case FadingIn:
		g := seos.Smoothstep(1 - float64(t.fadeRem)/float64(t.fadeTotal))
		t.fadeRem--
		if t.fadeRem <= 0 {
			t.fade = FadeNone
		}
		return g
	case FadingOut:
		g := seos.Smoothstep(float64(t.fadeRem) / float64(t.fadeTotal))
		t.fadeRem--
		if t.fadeRem <= 0 {
			if t.hasPending {
				t.pos.Store(t.pendingSeek)
				t.hasPending = false
				t.startFadeIn()
			} else {
				t.playing.Store(false)
				t.fade = FadeSilent
			}
		}
		return g
	}
	return 0
}

// nextSegment returns the next loop-aware span of up to maxFrames starting at
// the current position. wrapped is true when this segment starts at the loop
// start because the previous one ended at the loop end.
func (t *Transport) nextSegment(maxFrames int) blockSegment {
	pos := t.pos.Load()
	seg := blockSegment{start: pos, frames: maxFrames}
	if t.loopEnabled.Load() {
		end := t.loopEnd.Load()
		if pos < end && pos+int64(maxFrames) > end {
			seg.frames = int(end - pos)
		}
	}
	return seg
}

// advance moves the play head past a rendered segment, wrapping at the loop
// end. Returns true when the head wrapped to the loop start.
func (t *Transport) advance(frames int) bool {
	pos := t.pos.Load() + int64(frames)
	if t.loopEnabled.Load() && pos >= t.loopEnd.Load() && t.pos.Load() < t.loopEnd.Load() {
		t.pos.Store(t.loopStart.Load())
		return true
	}
	t.pos.Store(pos)
	return false
}
