package engine

import (
	"math"

	"github.com/seosaudio/seos"
)

// trackState is the per-track render state that persists from block to
// block: the last consumed parameter values and the smoothed gains. It lives
// in the render plan, which only changes at safe points, so ramps never jump
// mid-playback.
type trackState struct {
	params         ParamValues
	gainL, gainR   float64
	inited         bool
}

// targetGains derives the post-fader stereo gains from the current
// parameters: 10^((fader+trim)/20) spread by constant-power pan.
func (s *trackState) targetGains() (float64, float64) {
	gain := seos.DbToLinear(s.params.FaderDb + s.params.TrimDb)
	panL, panR := seos.Pan(s.params.Pan)
	return float64(gain * panL), float64(gain * panR)
}

// processTrack runs one render-plan entry for a block: render clips into the
// self buffer, apply the ramped fader/pan/trim, meter, mix into the
// destinations, and leave the self buffer zeroed for the next block.
func (e *Engine) processTrack(rt *RenderTrack, state *trackState, g *AudioGraph, blockStart int64, frames int) {
	track := &g.Tracks[rt.TrackIndex]
	self := rt.Self[:frames]

	// Solo elsewhere silences this track completely; its meters read zero.
	if g.AnySolo && !track.Solo && !track.SoloSafe {
		if rt.Slot != InvalidSlot {
			e.meters.WritePeak(rt.Slot, 0, 0, 0, 0)
		}
		self.Zero()
		return
	}

	quality := e.settings.quality()
	for i := range track.Clips {
		renderClip(self, blockStart, &track.Clips[i], g.SampleRate, quality, e.telemetry)
	}
	e.renderUnitVoices(self, rt.TrackIndex)

	if !state.inited {
		state.params = ParamValues{FaderDb: track.FaderDb, Pan: track.Pan, TrimDb: track.TrimDb}
		state.gainL, state.gainR = state.targetGains()
		state.inited = true
	}
	if rt.Slot != InvalidSlot {
		e.params.ConsumeIfDirty(rt.Slot, &state.params)
	}
	targetL, targetR := state.targetGains()

	// Linear ramp across the block; zipper-free and cheap. The state lands
	// exactly on the target so repeated blocks are bit-identical.
	gl, gr := state.gainL, state.gainR
	stepL := (targetL - gl) / float64(frames)
	stepR := (targetR - gr) / float64(frames)
	var peakL, peakR, sumL, sumR float64
	for i := range self {
		gl += stepL
		gr += stepR
		l := self[i][0] * gl
		r := self[i][1] * gr
		self[i][0] = l
		self[i][1] = r
		if a := math.Abs(l); a > peakL {
			peakL = a
		}
		if a := math.Abs(r); a > peakR {
			peakR = a
		}
		sumL += l * l
		sumR += r * r
	}
	state.gainL, state.gainR = targetL, targetR

	if rt.Slot != InvalidSlot {
		e.meters.WritePeak(rt.Slot,
			float32(peakL), float32(peakR),
			float32(math.Sqrt(sumL/float64(frames))),
			float32(math.Sqrt(sumR/float64(frames))))
	}

	// Muted tracks keep rendering (the meters above stay live) but add
	// nothing downstream.
	if !track.Mute {
		for _, conn := range rt.Conns {
			dest := conn.Dest[:frames]
			if conn.GainL == 1 && conn.GainR == 1 {
				for i := range self {
					dest[i][0] += self[i][0]
					dest[i][1] += self[i][1]
				}
			} else {
				for i := range self {
					dest[i][0] += self[i][0] * conn.GainL
					dest[i][1] += self[i][1] * conn.GainR
				}
			}
		}
	}

	self.Zero()
}
