package driver

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/seosaudio/seos"
)

func TestFrameTo16BitLE(t *testing.T) {
	buf := seos.AudioBuffer{
		{0, 0},
		{1, -1},
		{0.5, -0.5},
		{2, -2}, // out of range, clamps
	}
	out := FrameTo16BitLE(buf, nil)
	if len(out) != 16 {
		t.Fatalf("4 stereo frames should encode to 16 bytes, got %d", len(out))
	}
	want := []int16{
		0, 0,
		math.MaxInt16, -math.MaxInt16,
		16383, -16383,
		math.MaxInt16, -math.MaxInt16,
	}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(out[2*i:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestFrameTo16BitLEAppends(t *testing.T) {
	prefix := []byte{0xaa, 0xbb}
	out := FrameTo16BitLE(seos.AudioBuffer{{0, 0}}, prefix)
	if len(out) != 6 || !bytes.Equal(out[:2], prefix) {
		t.Errorf("conversion should append after the existing bytes, got %x", out)
	}
}

func TestFrameTo24BitLE(t *testing.T) {
	const maxInt24 = 1<<23 - 1
	out := FrameTo24BitLE(seos.AudioBuffer{{1, -0.5}}, nil)
	if len(out) != 6 {
		t.Fatalf("1 stereo frame should encode to 6 bytes, got %d", len(out))
	}
	l := int32(out[0]) | int32(out[1])<<8 | int32(out[2])<<16
	if l != maxInt24 {
		t.Errorf("left = %d, want %d", l, maxInt24)
	}
	r := int32(out[3]) | int32(out[4])<<8 | int32(out[5])<<16
	// Sign-extend the 24-bit value.
	if r&(1<<23) != 0 {
		r -= 1 << 24
	}
	if want := int32(-4194303); r != want {
		t.Errorf("right = %d, want %d", r, want)
	}
}

func TestFrameTo32BitLE(t *testing.T) {
	out := FrameTo32BitLE(seos.AudioBuffer{{1, -1}}, nil)
	if len(out) != 8 {
		t.Fatalf("1 stereo frame should encode to 8 bytes, got %d", len(out))
	}
	if got := int32(binary.LittleEndian.Uint32(out[0:])); got != math.MaxInt32 {
		t.Errorf("left = %d, want %d", got, int32(math.MaxInt32))
	}
	if got := int32(binary.LittleEndian.Uint32(out[4:])); got != -math.MaxInt32 {
		t.Errorf("right = %d, want %d", got, int32(-math.MaxInt32))
	}
}

func TestFrameToFloat32LE(t *testing.T) {
	out := FrameToFloat32LE(seos.AudioBuffer{{0.25, -0.75}}, nil)
	if len(out) != 8 {
		t.Fatalf("1 stereo frame should encode to 8 bytes, got %d", len(out))
	}
	l := math.Float32frombits(binary.LittleEndian.Uint32(out[0:]))
	r := math.Float32frombits(binary.LittleEndian.Uint32(out[4:]))
	if l != 0.25 || r != -0.75 {
		t.Errorf("round trip = %v %v, want 0.25 -0.75", l, r)
	}
}
