// Package driver opens the audio device and pumps the engine into it. Two
// backends exist: an exclusive-style low-latency stream through portaudio and
// a shared-mode stream through oto. Open tries exclusive first when asked and
// falls back to shared, reporting which mode it got.
package driver

import (
	"fmt"
	"math"

	"github.com/seosaudio/seos"
)

// Mode says which backend a driver ended up on.
type Mode int

const (
	ModeShared Mode = iota
	ModeExclusive
)

func (m Mode) String() string {
	if m == ModeExclusive {
		return "exclusive"
	}
	return "shared"
}

type (
	// Config is the requested stream setup. Zero values pick the defaults.
	Config struct {
		SampleRate   float64
		BufferFrames int
		Exclusive    bool
	}

	// Format is what the negotiation actually produced.
	Format struct {
		SampleRate   float64
		BufferFrames int
		BitDepth     int // 16, 24 or 32
		Float        bool
	}

	// Driver is an open audio stream pulling from a seos.AudioSource.
	Driver interface {
		Start() error
		Stop() error
		Close() error
		Mode() Mode
		Format() Format
		// Latency returns the estimated output latency in seconds: one
		// buffer one-way, three buffers round trip.
		Latency() (min, max float64)
	}
)

// DefaultConfig requests 48 kHz with a 512-frame buffer in shared mode.
func DefaultConfig() Config {
	return Config{SampleRate: 48000, BufferFrames: 512}
}

// rateLadder is the fallback order when the device rejects the requested
// sample rate.
var rateLadder = []float64{48000, 44100, 96000, 88200}

// Open negotiates a stream for the source. With cfg.Exclusive it tries the
// low-latency backend across the rate ladder first; any failure falls back to
// shared mode rather than erroring out, so the caller always gets sound if
// the machine has any output at all. Check Mode on the result to see whether
// the fallback happened.
func Open(cfg Config, src seos.AudioSource) (Driver, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = 512
	}
	wrapped := newSoftStart(src, cfg.SampleRate)
	if cfg.Exclusive {
		d, err := openExclusive(cfg, wrapped)
		if err == nil {
			return d, nil
		}
		// Fall through to shared mode with the same source.
	}
	d, err := openShared(cfg, wrapped)
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	return d, nil
}

// softStartFraction of a second is ramped in linearly when the stream opens,
// covering the driver's startup transient.
const softStartFraction = 0.15

// softStart wraps the engine source with the device-side protections: a short
// linear fade-in when the stream starts and a hard clamp to [-1, 1] so a
// misbehaving block cannot hand the converter garbage.
type softStart struct {
	src     seos.AudioSource
	ramp    int // frames left to ramp
	total   int
}

func newSoftStart(src seos.AudioSource, sampleRate float64) *softStart {
	n := int(softStartFraction * sampleRate)
	return &softStart{src: src, ramp: n, total: n}
}

func (s *softStart) ReadAudio(buffer seos.AudioBuffer) (int, error) {
	n, err := s.src.ReadAudio(buffer)
	for i := 0; i < n; i++ {
		g := float32(1)
		if s.ramp > 0 {
			g = float32(s.total-s.ramp) / float32(s.total)
			s.ramp--
		}
		buffer[i][0] = clampUnit(buffer[i][0] * g)
		buffer[i][1] = clampUnit(buffer[i][1] * g)
	}
	return n, err
}

func (s *softStart) Close() error { return s.src.Close() }

func clampUnit(x float32) float32 {
	if math.IsNaN(float64(x)) {
		return 0
	}
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
