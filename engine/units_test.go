package engine

import (
	"testing"

	"github.com/seosaudio/seos"
)

func TestUnitManagerSetRemove(t *testing.T) {
	m := NewUnitManager()
	m.Set(ArsenalUnit{ID: 1, Name: "kick", Enabled: true, RouteID: 0})
	m.Set(ArsenalUnit{ID: 2, Name: "snare", Enabled: true, RouteID: 1})
	m.Set(ArsenalUnit{ID: 1, Name: "kick2", Enabled: true, RouteID: 0})
	snap := m.Snapshot()
	if len(snap.Units) != 2 {
		t.Fatalf("set with an existing ID should replace, got %d units", len(snap.Units))
	}
	if snap.Units[0].Name != "kick2" {
		t.Errorf("replaced unit should carry the new name, got %q", snap.Units[0].Name)
	}
	m.Remove(1)
	if units := m.Snapshot().Units; len(units) != 1 || units[0].ID != 2 {
		t.Errorf("remove should leave only unit 2, got %v", units)
	}
	// The old snapshot is unaffected by later edits.
	if len(snap.Units) != 2 {
		t.Errorf("old snapshot changed under the caller")
	}
}

func TestVoiceRendersOnItsTrackOnly(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	e.triggerVoice(0, 69, 127, 0)

	other := make(seos.MixBuffer, 256)
	e.renderUnitVoices(other, 1)
	for i := range other {
		if other[i][0] != 0 {
			t.Fatalf("voice on track 0 must not sound on track 1, frame %d = %v", i, other[i][0])
		}
	}

	self := make(seos.MixBuffer, 256)
	e.renderUnitVoices(self, 0)
	var peak float64
	for i := range self {
		if a := self[i][0]; a > peak {
			peak = a
		}
		if self[i][0] != self[i][1] {
			t.Fatalf("preview voice should be centered, frame %d %v != %v", i, self[i][0], self[i][1])
		}
	}
	if peak == 0 {
		t.Errorf("voice on its own track should produce signal")
	}
}

func TestVoiceDelayWithinBlock(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	e.triggerVoice(0, 69, 127, 100)
	self := make(seos.MixBuffer, 256)
	e.renderUnitVoices(self, 0)
	for i := 0; i < 100; i++ {
		if self[i][0] != 0 {
			t.Fatalf("frame %d before the event delay should be silent, got %v", i, self[i][0])
		}
	}
	var after float64
	for i := 100; i < 256; i++ {
		if a := self[i][0]; a > after {
			after = a
		}
	}
	if after == 0 {
		t.Errorf("voice should sound from the delay onwards")
	}
}

func TestVoiceDelayCarriesAcrossBlocks(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	e.triggerVoice(0, 60, 100, 300)
	self := make(seos.MixBuffer, 256)
	e.renderUnitVoices(self, 0)
	for i := range self {
		if self[i][0] != 0 {
			t.Fatalf("whole first block should be silent, frame %d = %v", i, self[i][0])
		}
	}
	self2 := make(seos.MixBuffer, 256)
	e.renderUnitVoices(self2, 0)
	for i := 0; i < 44; i++ {
		if self2[i][0] != 0 {
			t.Fatalf("remaining delay should silence frame %d, got %v", i, self2[i][0])
		}
	}
}

func TestVoiceReleaseDecaysToInactive(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	e.triggerVoice(0, 69, 127, 0)
	self := make(seos.MixBuffer, 512)
	e.renderUnitVoices(self, 0)
	e.releaseVoice(0, 69, 0)
	if e.voices[0].on {
		t.Fatalf("release should clear the gate")
	}
	// The release time constant is tens of ms; a second of rendering is
	// plenty for the envelope to hit the kill threshold.
	for i := 0; i < 100 && e.voices[0].active; i++ {
		self.Zero()
		e.renderUnitVoices(self, 0)
	}
	if e.voices[0].active {
		t.Errorf("released voice never fell silent")
	}
}

func TestVoiceStealingPrefersReleased(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	self := make(seos.MixBuffer, 64)
	for k := 0; k < MaxVoices; k++ {
		e.triggerVoice(0, uint8(40+k), 100, 0)
		e.renderUnitVoices(self, 0) // age the earlier voices
	}
	e.releaseVoice(0, 45, 0)
	var released int
	for i := range e.voices {
		if e.voices[i].key == 45 {
			released = i
		}
	}
	e.triggerVoice(0, 100, 100, 0)
	if e.voices[released].key != 100 || !e.voices[released].on {
		t.Errorf("a released voice should be stolen before any held one")
	}
}

func TestAllNotesOff(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	e.triggerVoice(0, 60, 100, 0)
	e.triggerVoice(1, 64, 100, 0)
	e.allNotesOff()
	for i := range e.voices {
		if e.voices[i].active {
			t.Fatalf("voice %d still active after all-notes-off", i)
		}
	}
}
