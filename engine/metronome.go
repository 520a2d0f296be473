package engine

import (
	"math"

	"github.com/seosaudio/seos"
)

// Click synthesis parameters: short decaying sine bursts, the bar click an
// octave above the beat click.
const (
	clickBeatHz  = 880.0
	clickBarHz   = 1760.0
	clickSeconds = 0.03
)

// metronome mixes click sounds on beat boundaries into the master bus.
// Audio-thread state; clicks are synthesized once at engine start.
type metronome struct {
	hi, lo []float64

	active []float64 // click currently sounding, nil when silent
	pos    int
}

func newMetronome(sampleRate int) *metronome {
	return &metronome{
		hi: synthClick(clickBarHz, sampleRate),
		lo: synthClick(clickBeatHz, sampleRate),
	}
}

func synthClick(freq float64, sampleRate int) []float64 {
	n := int(clickSeconds * float64(sampleRate))
	out := make([]float64, n)
	inc := 2 * math.Pi * freq / float64(sampleRate)
	for i := range out {
		env := math.Exp(-8 * float64(i) / float64(n))
		out[i] = math.Sin(float64(i)*inc) * env
	}
	return out
}

// reset drops a click in flight, e.g. on stop or seek.
func (m *metronome) reset() {
	m.active = nil
	m.pos = 0
}

// mix adds clicks for every beat boundary in [blockStart, blockStart+frames)
// into dst, scaled by gain. Beat positions come from the tempo map and the
// absolute song frame, so a loop wrap lands back on the right beat by itself.
func (m *metronome) mix(dst seos.MixBuffer, blockStart int64, tempo *seos.TempoMap, beatsPerBar, frames int, gain float64) {
	if tempo == nil {
		return
	}
	// Finish the click carried over from the previous block.
	if m.active != nil {
		m.continueClick(dst, 0, frames, gain)
	}
	// Start one beat early; candidates before blockStart are filtered on
	// their computed frame, so block splits stay consistent.
	beat := int64(math.Floor(tempo.BeatForSample(float64(blockStart)))) - 1
	for {
		frame := int64(math.Round(tempo.SampleForBeat(float64(beat))))
		if frame >= blockStart+int64(frames) {
			break
		}
		if frame >= blockStart {
			if beatsPerBar > 0 && beat%int64(beatsPerBar) == 0 {
				m.active = m.hi
			} else {
				m.active = m.lo
			}
			m.pos = 0
			m.continueClick(dst, int(frame-blockStart), frames, gain)
		}
		beat++
	}
}

func (m *metronome) continueClick(dst seos.MixBuffer, offset, frames int, gain float64) {
	for i := offset; i < frames && m.pos < len(m.active); i++ {
		s := m.active[m.pos] * gain
		dst[i][0] += s
		dst[i][1] += s
		m.pos++
	}
	if m.pos >= len(m.active) {
		m.active = nil
		m.pos = 0
	}
}
