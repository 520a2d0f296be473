package engine

import (
	"github.com/seosaudio/seos"
)

type (
	// GraphClip is the flattened, POD-like clip descriptor the renderer
	// iterates. For audio clips Data points into a source kept alive by the
	// snapshot's references; for MIDI clips Data is nil and PatternID names
	// the pattern.
	GraphClip struct {
		Kind       seos.ClipKind
		Data       []float32 // interleaved stereo source samples
		TotalFrames int
		SourceRate float64
		Start, End int64
		Offset     float64
		Gain       float32
		PatternID  int32
	}

	// GraphTrack is the audio-side view of one channel strip. The snapshot
	// values of fader/pan/trim seed the param buffer fallback for unmapped
	// channels; the live values come from the ParamBuffer.
	GraphTrack struct {
		ID       int32
		Route    int32
		FaderDb  float32
		Pan      float32
		TrimDb   float32
		Mute     bool
		Solo     bool
		SoloSafe bool
		Clips    []GraphClip
		Sends    []seos.Send
	}

	// AudioGraph is an immutable snapshot of the project for the audio
	// thread. The control thread builds it (deep-copying scalars, retaining
	// audio data), publishes it by atomic pointer swap and retires the
	// previous one after a grace period. The audio thread only ever reads.
	AudioGraph struct {
		Tracks      []GraphTrack
		BPM         float64
		BeatsPerBar int
		SampleRate  float64
		AnySolo     bool

		retained []*seos.AudioData
	}
)

// SnapshotGraph builds an immutable AudioGraph from the project, resolving
// clip sources through the source manager. Sources are retained once per
// snapshot; Retire releases them. Control thread only.
func SnapshotGraph(p *seos.Project, sources *SourceManager) *AudioGraph {
	g := &AudioGraph{
		Tracks:      make([]GraphTrack, 0, len(p.Tracks)),
		BPM:         p.BPM,
		BeatsPerBar: p.BeatsPerBar,
		SampleRate:  p.SampleRate,
		AnySolo:     p.AnySolo(),
	}
	seen := make(map[*seos.AudioData]bool)
	for i := range p.Tracks {
		t := &p.Tracks[i]
		gt := GraphTrack{
			ID:       t.ID,
			Route:    t.Route,
			FaderDb:  t.VolumeDb,
			Pan:      t.Pan,
			TrimDb:   t.TrimDb,
			Mute:     t.Mute,
			Solo:     t.Solo,
			SoloSafe: t.SoloSafe,
			Clips:    make([]GraphClip, 0, len(t.Clips)),
			Sends:    append([]seos.Send(nil), t.Sends...),
		}
		for _, c := range t.Clips {
			gc := GraphClip{
				Kind:      c.Kind,
				Start:     c.Start,
				End:       c.End,
				Offset:    c.Offset,
				Gain:      c.Gain,
				PatternID: c.PatternID,
			}
			if gc.Gain == 0 {
				gc.Gain = 1
			}
			if c.Kind == seos.ClipAudio {
				data := c.Data
				if data == nil && sources != nil {
					data = sources.Get(c.Source)
				}
				if data == nil {
					continue // missing source; clip contributes silence
				}
				if !seen[data] {
					data.Retain()
					g.retained = append(g.retained, data)
					seen[data] = true
				}
				gc.Data = data.Samples
				gc.TotalFrames = data.Frames
				gc.SourceRate = data.SourceRate
			}
			gt.Clips = append(gt.Clips, gc)
		}
		g.Tracks = append(g.Tracks, gt)
	}
	return g
}

// Retire releases the snapshot's source references. The control thread calls
// this after the snapshot can no longer be observed by a callback (one
// callback period after the swap).
func (g *AudioGraph) Retire() {
	for _, d := range g.retained {
		d.Release()
	}
	g.retained = nil
}

// TrackIDs returns the channel IDs in track order, the input for a slot map
// rebuild.
func (g *AudioGraph) TrackIDs() []int32 {
	ids := make([]int32, len(g.Tracks))
	for i := range g.Tracks {
		ids[i] = g.Tracks[i].ID
	}
	return ids
}
