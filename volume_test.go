package seos

import (
	"math"
	"testing"
)

func TestDbToLinear(t *testing.T) {
	if g := DbToLinear(0); g != 1 {
		t.Errorf("0 dB should be unity gain, got %v", g)
	}
	if g := DbToLinear(SilenceDb); g != 0 {
		t.Errorf("%v dB should be exactly zero, got %v", SilenceDb, g)
	}
	if g := DbToLinear(-200); g != 0 {
		t.Errorf("below silence should be exactly zero, got %v", g)
	}
	if g := DbToLinear(-6); math.Abs(float64(g)-0.5012) > 1e-3 {
		t.Errorf("-6 dB should be about 0.5, got %v", g)
	}
}

func TestLinearToDbRoundtrip(t *testing.T) {
	for _, db := range []float32{-60, -24, -6, -3, 0, 6} {
		got := LinearToDb(DbToLinear(db))
		if math.Abs(float64(got-db)) > 1e-3 {
			t.Errorf("roundtrip of %v dB gave %v", db, got)
		}
	}
	if db := LinearToDb(0); db > SilenceDb {
		t.Errorf("zero gain should be at or below silence, got %v", db)
	}
}

func TestFormatDb(t *testing.T) {
	if s := FormatDb(-120); s != "-inf dB" {
		t.Errorf("below silence should format as -inf dB, got %q", s)
	}
	if s := FormatDb(0); s == "-inf dB" {
		t.Errorf("unity should not format as -inf")
	}
}

func TestPanConstantPower(t *testing.T) {
	l, r := Pan(0)
	if math.Abs(float64(l)-math.Sqrt2/2) > 1e-6 || math.Abs(float64(r)-math.Sqrt2/2) > 1e-6 {
		t.Errorf("center pan should be sqrt(2)/2 per side, got %v %v", l, r)
	}
	l, r = Pan(-1)
	if math.Abs(float64(l)-1) > 1e-6 || math.Abs(float64(r)) > 1e-6 {
		t.Errorf("hard left should be 1/0, got %v %v", l, r)
	}
	l, r = Pan(1)
	if math.Abs(float64(l)) > 1e-6 || math.Abs(float64(r)-1) > 1e-6 {
		t.Errorf("hard right should be 0/1, got %v %v", l, r)
	}
	// The power sum stays unity across the sweep.
	for p := float32(-1); p <= 1; p += 0.125 {
		l, r := Pan(p)
		if sum := float64(l*l + r*r); math.Abs(sum-1) > 1e-6 {
			t.Errorf("pan %v power sum %v, want 1", p, sum)
		}
	}
}

func TestSmoothstep(t *testing.T) {
	if v := Smoothstep(0); v != 0 {
		t.Errorf("smoothstep(0) = %v", v)
	}
	if v := Smoothstep(1); v != 1 {
		t.Errorf("smoothstep(1) = %v", v)
	}
	if v := Smoothstep(0.5); v != 0.5 {
		t.Errorf("smoothstep(0.5) = %v", v)
	}
	if v := Smoothstep(-1); v != 0 {
		t.Errorf("smoothstep should clamp below 0, got %v", v)
	}
	if v := Smoothstep(2); v != 1 {
		t.Errorf("smoothstep should clamp above 1, got %v", v)
	}
}
