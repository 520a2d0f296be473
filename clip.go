package seos

import "sync/atomic"

type (
	// AudioData is a decoded, immutable, interleaved stereo float buffer. It
	// is shared between the control-side project model and the audio-side
	// snapshots through a thread-safe reference count; content never changes
	// after publication. The count is manipulated only on the control and
	// worker threads: the audio thread holds raw views whose lifetime is
	// guaranteed by the snapshot that carries them.
	AudioData struct {
		Path       string
		Samples    []float32 // interleaved stereo, len = 2*Frames
		Frames     int
		SourceRate float64

		refs    atomic.Int32
		release func(*AudioData)
	}

	// ClipKind discriminates the two clip payloads.
	ClipKind int

	// Clip places a slice of a source (or a pattern) on the track timeline.
	// Start and End are project sample positions; Offset is the source frame
	// that plays at Start.
	Clip struct {
		Kind      ClipKind `yaml:"kind"`
		Name      string   `yaml:"name,omitempty"`
		Start     int64    `yaml:"start"`
		End       int64    `yaml:"end"`
		Offset    float64  `yaml:"offset,omitempty"`
		Gain      float32  `yaml:"gain,omitempty"`
		Source    string   `yaml:"source,omitempty"`  // AudioData path, for audio clips
		PatternID int32    `yaml:"pattern,omitempty"` // pattern ID, for MIDI clips

		// Data is resolved by the source manager when snapshotting; nil for
		// MIDI clips or missing sources.
		Data *AudioData `yaml:"-"`
	}
)

const (
	ClipAudio ClipKind = iota
	ClipMIDI
)

// NewAudioData wraps decoded samples into a refcounted buffer with a single
// reference held by the caller. release, if non-nil, runs when the last
// reference is dropped.
func NewAudioData(path string, samples []float32, sourceRate float64, release func(*AudioData)) *AudioData {
	d := &AudioData{
		Path:       path,
		Samples:    samples,
		Frames:     len(samples) / 2,
		SourceRate: sourceRate,
		release:    release,
	}
	d.refs.Store(1)
	return d
}

// Retain adds a reference. Safe from any non-audio thread.
func (d *AudioData) Retain() { d.refs.Add(1) }

// Release drops a reference; the optional release hook runs when the count
// reaches zero. Never call on the audio thread.
func (d *AudioData) Release() {
	if d.refs.Add(-1) == 0 && d.release != nil {
		d.release(d)
	}
}

// Refs reports the current reference count, for tests and diagnostics.
func (d *AudioData) Refs() int32 { return d.refs.Load() }

// Valid reports whether the clip's basic placement invariants hold:
// start < end and the source window fits inside the source data. ratio is the
// source-rate/output-rate ratio the clip will be rendered at.
func (c *Clip) Valid(ratio float64) bool {
	if c.Start >= c.End {
		return false
	}
	if c.Kind == ClipMIDI {
		return c.PatternID >= 0
	}
	if c.Data == nil {
		return false
	}
	return c.Offset+float64(c.End-c.Start)*ratio <= float64(c.Data.Frames)+0.5
}

// Copy returns a value copy sharing the (immutable) source data.
func (c *Clip) Copy() Clip { return *c }
