package engine

import (
	"testing"

	"github.com/seosaudio/seos"
)

// clickClock is the flat test tempo: one beat per 100 frames at a 1 kHz rate.
func clickClock() *seos.TempoMap {
	return seos.ConstantTempo(600, 1000)
}

func TestMetronomeClicksOnBeats(t *testing.T) {
	// A low rate keeps the click (30 ms) shorter than the beat spacing.
	m := newMetronome(1000)
	dst := make(seos.MixBuffer, 512)
	m.mix(dst, 0, clickClock(), 4, 512, 1)

	// Beat 0 is a bar click, beat 1 a beat click, beat 4 a bar click again.
	if dst[1][0] != m.hi[1] {
		t.Errorf("beat 0 should sound the bar click, got %v want %v", dst[1][0], m.hi[1])
	}
	if dst[101][0] != m.lo[1] {
		t.Errorf("beat 1 should sound the beat click, got %v want %v", dst[101][0], m.lo[1])
	}
	if dst[401][0] != m.hi[1] {
		t.Errorf("beat 4 should sound the bar click, got %v want %v", dst[401][0], m.hi[1])
	}
	// Between clicks there is silence.
	for i := 40; i < 100; i++ {
		if dst[i][0] != 0 {
			t.Fatalf("frame %d between clicks should be silent, got %v", i, dst[i][0])
		}
	}
}

func TestMetronomeGainScalesClick(t *testing.T) {
	m := newMetronome(1000)
	dst := make(seos.MixBuffer, 64)
	m.mix(dst, 0, clickClock(), 4, 64, 0.25)
	if dst[1][0] != m.hi[1]*0.25 {
		t.Errorf("click should scale by gain, got %v want %v", dst[1][0], m.hi[1]*0.25)
	}
}

func TestMetronomeCarriesAcrossBlocks(t *testing.T) {
	m := newMetronome(1000)
	// The beat at frame 100 starts 10 frames into a 16-frame block; the
	// click's remaining samples must continue in the next block.
	dst := make(seos.MixBuffer, 16)
	m.mix(dst, 90, clickClock(), 4, 16, 1)
	if dst[10] != [2]float64{m.lo[0], m.lo[0]} {
		t.Fatalf("click should start mid-block at frame 100")
	}
	dst2 := make(seos.MixBuffer, 16)
	m.mix(dst2, 106, clickClock(), 4, 16, 1)
	if dst2[0][0] != m.lo[6] {
		t.Errorf("next block should continue the click at sample 6, got %v want %v", dst2[0][0], m.lo[6])
	}
}

func TestMetronomeReset(t *testing.T) {
	m := newMetronome(1000)
	dst := make(seos.MixBuffer, 16)
	m.mix(dst, 90, clickClock(), 4, 16, 1)
	m.reset()
	dst2 := make(seos.MixBuffer, 16)
	m.mix(dst2, 106, clickClock(), 4, 16, 1)
	for i := range dst2 {
		if dst2[i][0] != 0 {
			t.Fatalf("reset should drop the click in flight, frame %d = %v", i, dst2[i][0])
		}
	}
}

func TestMetronomeNilTempoIsNoop(t *testing.T) {
	m := newMetronome(1000)
	dst := make(seos.MixBuffer, 64)
	m.mix(dst, 0, nil, 4, 64, 1)
	for i := range dst {
		if dst[i][0] != 0 {
			t.Fatalf("missing tempo map should mix nothing")
		}
	}
}

func TestMetronomeFollowsTempoChanges(t *testing.T) {
	m := newMetronome(1000)
	// Tempo halves at beat 2: beats land at frames 0, 100, 200, 400, 600.
	tm := seos.NewTempoMap([]seos.TempoChange{
		{Beat: 0, BPM: 600}, {Beat: 2, BPM: 300},
	}, 1000)
	dst := make(seos.MixBuffer, 700)
	m.mix(dst, 0, tm, 4, 700, 1)
	if dst[201][0] != m.lo[1] {
		t.Errorf("beat 2 should click at frame 200, got %v want %v", dst[201][0], m.lo[1])
	}
	if dst[401][0] != m.lo[1] {
		t.Errorf("beat 3 should click at frame 400, got %v want %v", dst[401][0], m.lo[1])
	}
	if dst[601][0] != m.hi[1] {
		t.Errorf("beat 4 should be a bar click at frame 600, got %v want %v", dst[601][0], m.hi[1])
	}
	// No click on the old grid once the tempo changed.
	if dst[301][0] != 0 {
		t.Errorf("frame 300 falls between beats, got %v", dst[301][0])
	}
}
