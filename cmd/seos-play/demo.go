package main

import (
	"github.com/seosaudio/seos"
	"github.com/seosaudio/seos/engine"
)

// demoProject is a two-track pattern arrangement played on the built-in
// preview instrument, so the player makes sound without any audio files.
func demoProject(sampleRate float64) *seos.Project {
	spb := int64(sampleRate * 60 / 120)
	fourBars := 16 * spb
	return &seos.Project{
		SampleRate:  sampleRate,
		BPM:         120,
		BeatsPerBar: 4,
		LoopStart:   0,
		LoopEnd:     fourBars,
		LoopEnabled: true,
		Tracks: []seos.Track{
			{
				ID: 1, Name: "bass", Route: seos.MasterRoute, VolumeDb: -6,
				Clips: []seos.Clip{{Kind: seos.ClipMIDI, Start: 0, End: fourBars, PatternID: 1}},
			},
			{
				ID: 2, Name: "lead", Route: seos.MasterRoute, VolumeDb: -9, Pan: 0.3,
				Clips: []seos.Clip{{Kind: seos.ClipMIDI, Start: 0, End: fourBars, PatternID: 2}},
			},
		},
	}
}

func demoPatterns(pm *engine.PatternManager) {
	pm.Set(engine.Pattern{ID: 1, Name: "bassline", Beats: 4, Notes: []engine.PatternNote{
		{Beat: 0, Length: 0.9, Key: 36, Velocity: 110},
		{Beat: 1.5, Length: 0.4, Key: 36, Velocity: 90},
		{Beat: 2, Length: 0.9, Key: 43, Velocity: 100},
		{Beat: 3, Length: 0.9, Key: 41, Velocity: 100},
	}})
	pm.Set(engine.Pattern{ID: 2, Name: "melody", Beats: 4, Notes: []engine.PatternNote{
		{Beat: 0, Length: 0.45, Key: 60, Velocity: 96},
		{Beat: 0.5, Length: 0.45, Key: 64, Velocity: 84},
		{Beat: 1, Length: 0.45, Key: 67, Velocity: 90},
		{Beat: 2, Length: 0.95, Key: 72, Velocity: 100},
		{Beat: 3, Length: 0.95, Key: 67, Velocity: 80},
	}})
}
