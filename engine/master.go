package engine

import (
	"math"

	"github.com/seosaudio/seos"
)

// dcBlockR is the pole of the one-pole DC blocker (y = x - x1 + R*y1),
// roughly a 35 Hz high-pass at 48 kHz.
const dcBlockR = 0.995

// masterState is the audio-thread-private state of the master bus: the
// smoothed fader gain, the DC blocker history and the dither RNG.
type masterState struct {
	params ParamValues
	gain   float64
	inited bool

	dcX1L, dcY1L float64
	dcX1R, dcY1R float64
	ditherSeed   uint32
}

// processMaster applies the master fader, headroom and transport fade to the
// summed master buffer, optionally the safety chain (DC block, soft clip,
// TPDF dither), meters the result and writes it as float32 frames into out.
// The master buffer is left as-is; the engine clears all mix buffers at
// block start.
func (e *Engine) processMaster(out seos.AudioBuffer, frames int) {
	m := &e.masterState
	if !m.inited {
		m.params = ParamValues{FaderDb: e.masterDbSeed}
		m.gain = float64(seos.DbToLinear(m.params.FaderDb))
		m.ditherSeed = 22222
		m.inited = true
	}
	e.params.ConsumeIfDirty(seos.MasterSlot, &m.params)
	headroom := float64(e.settings.headroom())
	target := float64(seos.DbToLinear(m.params.FaderDb)) * headroom
	safety := e.settings.safety()

	g := m.gain * headroom
	step := (target - g) / float64(frames)
	src := e.master[:frames]
	var peakL, peakR, sumL, sumR float64
	for i := 0; i < frames; i++ {
		g += step
		fade := e.transport.fadeStep()
		l := src[i][0] * g * fade
		r := src[i][1] * g * fade
		if safety {
			// One-pole DC block, then a cubic soft clip normalized back to
			// unity slope at zero.
			yl := l - m.dcX1L + dcBlockR*m.dcY1L
			m.dcX1L, m.dcY1L = l, yl
			yr := r - m.dcX1R + dcBlockR*m.dcY1R
			m.dcX1R, m.dcY1R = r, yr
			l = softClip(yl)
			r = softClip(yr)
			l += m.tpdf()
			r += m.tpdf()
		}
		if a := math.Abs(l); a > peakL {
			peakL = a
		}
		if a := math.Abs(r); a > peakR {
			peakR = a
		}
		sumL += l * l
		sumR += r * r
		out[i] = [2]float32{float32(l), float32(r)}
	}
	m.gain = target / headroomOrOne(headroom)

	e.meters.WritePeak(seos.MasterSlot,
		float32(peakL), float32(peakR),
		float32(math.Sqrt(sumL/float64(frames))),
		float32(math.Sqrt(sumR/float64(frames))))
}

func headroomOrOne(h float64) float64 {
	if h == 0 {
		return 1
	}
	return h
}

// softClip is the classic odd cubic x - (4/27)x^3: unity slope at zero,
// saturating smoothly to +-1 at +-1.5, hard clamp beyond.
func softClip(x float64) float64 {
	if x > 1.5 {
		return 1
	}
	if x < -1.5 {
		return -1
	}
	return x - 4.0/27.0*x*x*x
}

// tpdf is triangular dither at one 16-bit LSB, from two xorshift draws.
func (m *masterState) tpdf() float64 {
	const lsb = 1.0 / 32768
	a := m.xorshift()
	b := m.xorshift()
	return (float64(a)/math.MaxUint32 - float64(b)/math.MaxUint32) * lsb
}

func (m *masterState) xorshift() uint32 {
	x := m.ditherSeed
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	m.ditherSeed = x
	return x
}
