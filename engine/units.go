package engine

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/seosaudio/seos"
)

// MaxVoices is the size of the preview voice bank.
const MaxVoices = 32

type (
	// ArsenalUnit is one instrument slot: metadata the host edits plus the
	// route deciding which track the unit's voices sound through.
	ArsenalUnit struct {
		ID      int32  `yaml:"id"`
		Name    string `yaml:"name,omitempty"`
		Enabled bool   `yaml:"enabled"`
		Armed   bool   `yaml:"armed,omitempty"`
		Solo    bool   `yaml:"solo,omitempty"`
		Muted   bool   `yaml:"muted,omitempty"`
		RouteID int32  `yaml:"route"`
	}

	// ArsenalSnapshot is the immutable unit list broadcast to the audio
	// thread. Published by pointer swap; the old snapshot lives for as long
	// as anything holds it.
	ArsenalSnapshot struct {
		Units []ArsenalUnit
	}

	// UnitManager owns the editable units on the control thread.
	UnitManager struct {
		mu       sync.Mutex
		units    []ArsenalUnit
		snapshot atomic.Pointer[ArsenalSnapshot]
	}

	// previewVoice is one voice of the built-in sine preview instrument that
	// sounds scheduled pattern events. Strictly audio-thread state.
	previewVoice struct {
		track   int // track index the voice mixes into
		key     uint8
		on      bool
		active  bool
		delay   int // frames until the voice starts sounding within a block
		age     int
		phase   float64
		inc     float64
		amp     float64
		env     float64
	}
)

func NewUnitManager() *UnitManager {
	m := &UnitManager{}
	m.snapshot.Store(&ArsenalSnapshot{})
	return m
}

// Set stores or replaces a unit by ID and broadcasts a new snapshot.
func (m *UnitManager) Set(u ArsenalUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.units {
		if m.units[i].ID == u.ID {
			m.units[i] = u
			m.publish()
			return
		}
	}
	m.units = append(m.units, u)
	m.publish()
}

// Remove deletes a unit by ID and broadcasts a new snapshot.
func (m *UnitManager) Remove(id int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.units {
		if m.units[i].ID == id {
			m.units = append(m.units[:i], m.units[i+1:]...)
			break
		}
	}
	m.publish()
}

// Snapshot returns the current immutable unit list. Safe from any thread.
func (m *UnitManager) Snapshot() *ArsenalSnapshot { return m.snapshot.Load() }

func (m *UnitManager) publish() {
	units := make([]ArsenalUnit, len(m.units))
	copy(units, m.units)
	m.snapshot.Store(&ArsenalSnapshot{Units: units})
}

// Envelope constants of the preview voices: a couple of ms attack, and a
// release time constant around 60 ms at 48 kHz.
const (
	voiceAttackPerFrame  = 1.0 / 96
	voiceReleaseAlpha    = 0.99965
	voiceSilentThreshold = 1e-4
)

// triggerVoice allocates a voice for a note-on, preferring released voices
// and then the oldest, like a polyphonic synth steals.
func (e *Engine) triggerVoice(track int, key, velocity uint8, delay int) {
	var age int
	oldestReleased := false
	oldest := 0
	for i := range e.voices {
		v := &e.voices[i]
		if (!v.on && !oldestReleased) ||
			(!v.on == oldestReleased && v.age >= age) {
			oldest = i
			oldestReleased = !v.on
			age = v.age
		}
	}
	freq := 440 * math.Pow(2, (float64(key)-69)/12)
	e.voices[oldest] = previewVoice{
		track:  track,
		key:    key,
		on:     true,
		active: true,
		delay:  delay,
		inc:    2 * math.Pi * freq / e.transport.SampleRate(),
		amp:    float64(velocity) / 127,
	}
}

// releaseVoice puts the matching sounding voice into its release phase.
func (e *Engine) releaseVoice(track int, key uint8, delay int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.on && v.track == track && v.key == key {
			v.on = false
			v.delay = delay
			v.age = 0
			return
		}
	}
}

// releaseAllVoices sends every sounding voice into its release phase, e.g. at
// a loop wrap where the queued note-offs no longer apply.
func (e *Engine) releaseAllVoices() {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.on {
			v.on = false
			v.delay = 0
			v.age = 0
		}
	}
}

// renderUnitVoices adds the preview voices routed to the given track into
// its self buffer. Pre-fader, like the clip renderer.
func (e *Engine) renderUnitVoices(self seos.MixBuffer, trackIndex int) {
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active || v.track != trackIndex {
			continue
		}
		start := v.delay
		if start > len(self) {
			v.delay -= len(self)
			continue
		}
		v.delay = 0
		for j := start; j < len(self); j++ {
			if v.on {
				v.env += (1 - v.env) * voiceAttackPerFrame
			} else {
				v.env *= voiceReleaseAlpha
			}
			s := math.Sin(v.phase) * v.amp * v.env
			v.phase += v.inc
			self[j][0] += s
			self[j][1] += s
		}
		if v.phase > 2*math.Pi {
			v.phase = math.Mod(v.phase, 2*math.Pi)
		}
		v.age += len(self) - start
		if !v.on && v.env < voiceSilentThreshold {
			v.active = false
		}
	}
}
