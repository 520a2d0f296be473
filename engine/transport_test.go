package engine

import (
	"testing"

	"github.com/seosaudio/seos"
)

func TestTransportFadeInShape(t *testing.T) {
	tr := NewTransport(48000)
	tr.Play(0)
	if !tr.Playing() || tr.Fade() != FadingIn {
		t.Fatalf("play from silence should start fading in")
	}
	if g := tr.fadeStep(); g != 0 {
		t.Errorf("fade-in should start at zero gain, got %v", g)
	}
	var last float64
	for i := 1; i < FadeInSamples; i++ {
		g := tr.fadeStep()
		if g < last {
			t.Fatalf("fade-in must be monotonic, sample %d went %v -> %v", i, last, g)
		}
		last = g
	}
	if tr.Fade() != FadeNone {
		t.Errorf("fade should complete after %d samples", FadeInSamples)
	}
	if g := tr.fadeStep(); g != 1 {
		t.Errorf("steady state should be unity, got %v", g)
	}
	// Midpoint check: halfway through a smoothstep is exactly one half.
	tr2 := NewTransport(48000)
	tr2.Play(0)
	for i := 0; i < FadeInSamples/2; i++ {
		tr2.fadeStep()
	}
	if g := tr2.fadeStep(); g != seos.Smoothstep(0.5) {
		t.Errorf("midpoint gain should be smoothstep(0.5), got %v", g)
	}
}

func TestTransportStopFadesOutThenSilent(t *testing.T) {
	tr := NewTransport(48000)
	tr.Play(0)
	for i := 0; i < FadeInSamples; i++ {
		tr.fadeStep()
	}
	tr.Stop()
	if tr.Fade() != FadingOut {
		t.Fatalf("stop while audible should fade out")
	}
	if !tr.Playing() {
		t.Errorf("transport still plays during the fade-out tail")
	}
	for i := 0; i < FadeOutSamples; i++ {
		tr.fadeStep()
	}
	if tr.Playing() || tr.Fade() != FadeSilent {
		t.Errorf("after the fade-out the transport should be silent and stopped")
	}
	if g := tr.fadeStep(); g != 0 {
		t.Errorf("silent state should be zero gain, got %v", g)
	}
}

func TestTransportSeekWhilePlayingCrossfades(t *testing.T) {
	tr := NewTransport(48000)
	tr.Play(0)
	for i := 0; i < FadeInSamples; i++ {
		tr.fadeStep()
	}
	tr.Play(96000)
	if tr.Fade() != FadingOut {
		t.Fatalf("jump while audible should first fade out")
	}
	if tr.Pos() == 96000 {
		t.Fatalf("position must not jump until the fade-out completes")
	}
	for i := 0; i < FadeOutSamples; i++ {
		tr.fadeStep()
	}
	if tr.Pos() != 96000 {
		t.Errorf("after the fade-out the pending seek should land, pos %d", tr.Pos())
	}
	if tr.Fade() != FadingIn || !tr.Playing() {
		t.Errorf("the jump should come back in fading, state %v", tr.Fade())
	}
}

func TestTransportSeekWhileStopped(t *testing.T) {
	tr := NewTransport(48000)
	tr.Seek(12345)
	if tr.Pos() != 12345 {
		t.Errorf("seek while silent should move immediately, pos %d", tr.Pos())
	}
	if tr.Playing() {
		t.Errorf("seek must not start playback")
	}
}

func TestTransportLoopSegments(t *testing.T) {
	tr := NewTransport(48000)
	tr.SetLoop(100, 1000, true)
	tr.Seek(990)
	tr.Play(990)

	seg := tr.nextSegment(64)
	if seg.start != 990 || seg.frames != 10 {
		t.Fatalf("segment should clamp at the loop end, got start %d frames %d", seg.start, seg.frames)
	}
	if wrapped := tr.advance(seg.frames); !wrapped {
		t.Fatalf("advancing to the loop end should wrap")
	}
	if tr.Pos() != 100 {
		t.Errorf("wrap should land on the loop start, pos %d", tr.Pos())
	}

	seg = tr.nextSegment(64)
	if seg.start != 100 || seg.frames != 64 {
		t.Errorf("post-wrap segment should run from the loop start, got %+v", seg)
	}
}

func TestTransportLoopDisabledRunsThrough(t *testing.T) {
	tr := NewTransport(48000)
	tr.SetLoop(0, 1000, false)
	tr.Seek(990)
	tr.Play(990)
	seg := tr.nextSegment(64)
	if seg.frames != 64 {
		t.Errorf("without looping the segment should not clamp, got %d", seg.frames)
	}
	tr.advance(64)
	if tr.Pos() != 990+64 {
		t.Errorf("position should run straight through, pos %d", tr.Pos())
	}
}

func TestTransportLoopRangeValidation(t *testing.T) {
	tr := NewTransport(48000)
	tr.SetLoop(500, 100, true) // inverted
	if _, _, enabled := tr.Loop(); enabled {
		t.Errorf("inverted loop range should not enable looping")
	}
}
