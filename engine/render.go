package engine

import (
	"math"

	"github.com/seosaudio/seos"
)

// EdgeFade is the clip edge fade length in samples. It exists purely to keep
// clip boundaries from clicking, is not a musical fade, and is fixed in
// samples regardless of rate so renders are deterministic.
const EdgeFade = 64

// sameRateEps is the ratio tolerance under which the renderer copies source
// samples verbatim instead of interpolating.
const sameRateEps = 1e-9

// renderClip accumulates one clip's contribution to the block
// [blockStart, blockStart+len(dst)) into dst. Returns the number of frames
// produced. Never reads outside the source; a clip that runs out of source
// frames mid-block is clamped and the remainder stays silent. Audio thread:
// no allocation, no branches beyond the per-sample kernel.
func renderClip(dst seos.MixBuffer, blockStart int64, clip *GraphClip, outRate float64, q Quality, tel *Telemetry) int {
	if clip.Kind != seos.ClipAudio || clip.TotalFrames == 0 || len(clip.Data) == 0 {
		return 0
	}
	blockEnd := blockStart + int64(len(dst))
	start, end := clip.Start, clip.End
	if start < blockStart {
		start = blockStart
	}
	if end > blockEnd {
		end = blockEnd
	}
	if start >= end {
		return 0
	}

	ratio := clip.SourceRate / outRate
	phase := clip.Offset + float64(start-clip.Start)*ratio
	total := float64(clip.TotalFrames)
	if phase >= total {
		if tel != nil {
			tel.ClipBoundsHits.Add(1)
		}
		return 0
	}
	n := int(end - start)
	if remaining := int((total - phase) / ratio); remaining < n {
		n = remaining
		if tel != nil {
			tel.ClipBoundsHits.Add(1)
		}
	}
	if n <= 0 {
		return 0
	}

	gain := clip.Gain
	out := dst[start-blockStart:]
	if math.Abs(ratio-1) < sameRateEps {
		base := int(math.Round(phase))
		for i := 0; i < n; i++ {
			l, r := sampleAt(clip.Data, clip.TotalFrames, base+i)
			g := gain * edgeFadeGain(start+int64(i), clip.Start, clip.End)
			out[i][0] += float64(l * g)
			out[i][1] += float64(r * g)
		}
		return n
	}
	// The phase is recomputed from the absolute position every sample, not
	// accumulated, so block boundaries never shift the interpolation and a
	// split render is bit-identical to an unsplit one.
	base := float64(start - clip.Start)
	for i := 0; i < n; i++ {
		p := clip.Offset + (base+float64(i))*ratio
		l, r := resampleAt(clip.Data, clip.TotalFrames, p, q)
		g := gain * edgeFadeGain(start+int64(i), clip.Start, clip.End)
		out[i][0] += float64(l * g)
		out[i][1] += float64(r * g)
	}
	return n
}

// edgeFadeGain is the linear anti-click ramp: 0 at the clip boundary, 1 from
// EdgeFade samples inwards.
func edgeFadeGain(pos, clipStart, clipEnd int64) float32 {
	g := float32(1)
	if d := pos - clipStart; d < EdgeFade {
		g = float32(d) / EdgeFade
	}
	if d := clipEnd - pos; d < EdgeFade {
		if f := float32(d) / EdgeFade; f < g {
			g = f
		}
	}
	return g
}
