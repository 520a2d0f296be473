package engine

import (
	"math"
	"testing"

	"github.com/seosaudio/seos"
)

func feedDetector(d *Detector, frames int, amp float32) {
	buf := d.broker.GetAudioBuffer()
	for i := 0; i < frames; i++ {
		*buf = append(*buf, [2]float32{amp, amp})
	}
	d.handle(MsgToDetector{Data: buf})
}

func drainResults(b *Broker) []DetectorResult {
	var results []DetectorResult
	for {
		select {
		case msg := <-b.ToModel:
			if msg.HasDetectorResult {
				results = append(results, msg.DetectorResult)
			}
		default:
			return results
		}
	}
}

func TestDetectorChunksAcrossBlockBoundaries(t *testing.T) {
	b := NewBroker()
	d := NewDetector(b, 1000) // 100-frame chunks
	feedDetector(d, 250, 0.5)
	if got := len(drainResults(b)); got != 2 {
		t.Fatalf("250 frames should yield 2 full chunks, got %d results", got)
	}
	// 50 frames wait in the tail; 50 more complete the third chunk.
	feedDetector(d, 50, 0.5)
	if got := len(drainResults(b)); got != 1 {
		t.Errorf("the tail plus 50 frames should complete one chunk, got %d", got)
	}
}

func TestLoudnessOfFullScaleSquare(t *testing.T) {
	// A full-scale DC-free square on both channels has mean square 1 per
	// channel, so unweighted loudness is 10*log10(2) ~ +3 LUFS.
	d := makeLoudnessDetector(NoWeighting)
	chunk := make(seos.AudioBuffer, 1000)
	for i := range chunk {
		v := float32(1)
		if i%2 == 1 {
			v = -1
		}
		chunk[i] = [2]float32{v, v}
	}
	var res LoudnessResult
	for i := 0; i < 4; i++ { // fill the momentary window
		res = d.update(chunk)
	}
	want := 10 * math.Log10(2)
	if got := float64(res[LoudnessMomentary]); math.Abs(got-want) > 0.01 {
		t.Errorf("momentary loudness = %v, want %v", got, want)
	}
	if got := float64(res[LoudnessMaxMomentary]); math.Abs(got-want) > 0.01 {
		t.Errorf("max momentary loudness = %v, want %v", got, want)
	}
	// The short-term window (30 chunks) is still mostly zeros.
	if res[LoudnessShortTerm] >= res[LoudnessMomentary] {
		t.Errorf("short-term should lag the momentary on a fresh signal")
	}
}

func TestLoudnessSilenceIsMinusInfinity(t *testing.T) {
	d := makeLoudnessDetector(NoWeighting)
	chunk := make(seos.AudioBuffer, 1000)
	res := d.update(chunk)
	if !math.IsInf(float64(res[LoudnessMomentary]), -1) {
		t.Errorf("silence should measure -inf, got %v", res[LoudnessMomentary])
	}
}

func TestPeakDetectorPlain(t *testing.T) {
	d := makePeakDetector(false)
	chunk := make(seos.AudioBuffer, 1000)
	for i := range chunk {
		chunk[i] = [2]float32{0.5, -0.25}
	}
	res := d.update(chunk)
	wantL := 20 * math.Log10(0.5)
	if got := float64(res[PeakMomentary][0]); math.Abs(got-wantL) > 0.01 {
		t.Errorf("left momentary peak = %v dB, want %v", got, wantL)
	}
	wantR := 20 * math.Log10(0.25)
	if got := float64(res[PeakIntegrated][1]); math.Abs(got-wantR) > 0.01 {
		t.Errorf("right integrated peak = %v dB, want %v", got, wantR)
	}
	// Integrated peak is sticky: quieter material must not lower it.
	for i := range chunk {
		chunk[i] = [2]float32{0.1, 0.1}
	}
	res = d.update(chunk)
	if got := float64(res[PeakIntegrated][0]); math.Abs(got-wantL) > 0.01 {
		t.Errorf("integrated peak dropped to %v dB after quiet material", got)
	}
}

func TestOversamplerOutputLength(t *testing.T) {
	var s oversamplerState
	x := make([]float32, 100)
	y := make([]float32, 400)
	out := s.oversample(x, y)
	if len(out) != 400 {
		t.Errorf("4x oversampler should emit 4*len(x) samples, got %d", len(out))
	}
}

func TestTruePeakCatchesIntersamplePeak(t *testing.T) {
	// A sine near a quarter of the sample rate peaks between samples; the
	// 4x interpolator must read higher than the raw samples do.
	plain := makePeakDetector(false)
	oversampled := makePeakDetector(true)
	chunk := make(seos.AudioBuffer, 1000)
	for i := range chunk {
		v := float32(math.Sin(2*math.Pi*0.24*float64(i) + 0.4))
		chunk[i] = [2]float32{v, v}
	}
	p := plain.update(chunk)
	tp := oversampled.update(chunk)
	if tp[PeakIntegrated][0] < p[PeakIntegrated][0] {
		t.Errorf("true peak %v dB below sample peak %v dB", tp[PeakIntegrated][0], p[PeakIntegrated][0])
	}
}

func TestDetectorResetClearsState(t *testing.T) {
	b := NewBroker()
	d := NewDetector(b, 1000)
	feedDetector(d, 150, 0.9)
	d.handle(MsgToDetector{Reset: true})
	if len(d.tail) != 0 {
		t.Errorf("reset should drop the partial chunk, tail %d frames", len(d.tail))
	}
	if d.peak.maxPeak[0] != 0 || d.loudness.maxPowers[0] != 0 {
		t.Errorf("reset should clear the sticky maxima")
	}
	drainResults(b)
	// Quiet material after the reset reads its own level, not the old peak.
	feedDetector(d, 100, 0.1)
	results := drainResults(b)
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	want := 20 * math.Log10(0.1)
	if got := float64(results[0].Peaks[PeakIntegrated][0]); math.Abs(got-want) > 1 {
		t.Errorf("post-reset integrated peak = %v dB, want about %v", got, want)
	}
}
