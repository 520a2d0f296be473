package driver

import (
	"math"
	"testing"

	"github.com/seosaudio/seos"
)

// constSource fills every frame with a fixed value.
type constSource struct {
	value float32
}

func (s *constSource) ReadAudio(buffer seos.AudioBuffer) (int, error) {
	for i := range buffer {
		buffer[i] = [2]float32{s.value, s.value}
	}
	return len(buffer), nil
}

func (s *constSource) Close() error { return nil }

func TestSoftStartRampsIn(t *testing.T) {
	s := newSoftStart(&constSource{value: 1}, 1000) // 150-frame ramp
	buf := make(seos.AudioBuffer, 200)
	n, err := s.ReadAudio(buf)
	if err != nil || n != 200 {
		t.Fatalf("read failed: n=%d err=%v", n, err)
	}
	if buf[0][0] != 0 {
		t.Errorf("ramp should start silent, got %v", buf[0][0])
	}
	for i := 0; i < 150; i++ {
		if want := float32(i) / 150; buf[i][0] != want {
			t.Fatalf("ramp must be linear, frame %d = %v want %v", i, buf[i][0], want)
		}
	}
	if buf[150][0] != 1 {
		t.Errorf("past the ramp the source passes through, got %v", buf[150][0])
	}
	// The ramp runs only once per stream.
	s.ReadAudio(buf)
	if buf[0][0] != 1 {
		t.Errorf("second read should be unity from the start, got %v", buf[0][0])
	}
}

func TestSoftStartClampsAndScrubsNaN(t *testing.T) {
	s := newSoftStart(&constSource{value: 3}, 1000)
	buf := make(seos.AudioBuffer, 200)
	s.ReadAudio(buf)
	for i := range buf {
		if buf[i][0] > 1 || buf[i][0] < -1 {
			t.Fatalf("output must clamp to [-1, 1], frame %d = %v", i, buf[i][0])
		}
	}
	s2 := newSoftStart(&constSource{value: float32(math.NaN())}, 1000)
	s2.ReadAudio(buf)
	for i := range buf {
		if buf[i][0] != 0 {
			t.Fatalf("NaN input must be scrubbed to 0, frame %d = %v", i, buf[i][0])
		}
	}
}

func TestLatencyEstimates(t *testing.T) {
	// One buffer one-way, three buffers round trip, on both backends.
	ex := &exclusiveDriver{format: Format{SampleRate: 48000, BufferFrames: 480}}
	if lo, hi := ex.Latency(); lo != 0.01 || hi != 3*lo {
		t.Errorf("exclusive latency = %v %v, want one and three buffers", lo, hi)
	}
	sh := &sharedDriver{format: Format{SampleRate: 48000, BufferFrames: 480}}
	if lo, hi := sh.Latency(); lo != 0.01 || hi != 3*lo {
		t.Errorf("shared latency = %v %v, want one and three buffers", lo, hi)
	}
}

func TestModeString(t *testing.T) {
	if ModeShared.String() != "shared" || ModeExclusive.String() != "exclusive" {
		t.Errorf("mode strings wrong: %v %v", ModeShared, ModeExclusive)
	}
}
