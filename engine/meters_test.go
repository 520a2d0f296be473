package engine

import (
	"testing"
)

func TestMeterWriteRead(t *testing.T) {
	b := NewMeterBuffer()
	b.WritePeak(5, 0.5, 0.25, 0.3, 0.2)
	s := b.ReadSnapshot(5)
	if s.PeakL != 0.5 || s.PeakR != 0.25 || s.RmsL != 0.3 || s.RmsR != 0.2 {
		t.Errorf("snapshot should return the last written block, got %+v", s)
	}
	if s.ClipFlags != 0 {
		t.Errorf("peaks below 1 should not set clip flags, got %b", s.ClipFlags)
	}
}

func TestMeterStalenessOneBlock(t *testing.T) {
	b := NewMeterBuffer()
	b.WritePeak(0, 0.1, 0.1, 0.1, 0.1)
	b.WritePeak(0, 0.9, 0.9, 0.9, 0.9)
	if s := b.ReadSnapshot(0); s.PeakL != 0.9 {
		t.Errorf("reader should see the most recently completed half, got %v", s.PeakL)
	}
}

func TestMeterClipSticky(t *testing.T) {
	b := NewMeterBuffer()
	b.WritePeak(1, 1.2, 0.5, 0, 0)
	if s := b.ReadSnapshot(1); s.ClipFlags != 1 {
		t.Fatalf("left overdrive should set bit 0, got %b", s.ClipFlags)
	}
	// The flag stays latched across later quiet blocks.
	b.WritePeak(1, 0.1, 0.1, 0, 0)
	if s := b.ReadSnapshot(1); s.ClipFlags != 1 {
		t.Errorf("clip flag should be sticky, got %b", s.ClipFlags)
	}
	b.ClearClip(1)
	if s := b.ReadSnapshot(1); s.ClipFlags != 0 {
		t.Errorf("ClearClip should reset both halves, got %b", s.ClipFlags)
	}
	b.WritePeak(1, 0.5, 1.0, 0, 0)
	if s := b.ReadSnapshot(1); s.ClipFlags != 2 {
		t.Errorf("right channel at exactly 1.0 should set bit 1, got %b", s.ClipFlags)
	}
}
