package seos

import "sort"

type (
	// TempoChange sets a new tempo starting at a given beat. A TempoMap is an
	// ordered list of changes; the first change is implicitly anchored at beat
	// 0 (a map without a change at beat 0 behaves as if its first tempo also
	// applied from the start).
	TempoChange struct {
		Beat float64 `yaml:"beat"`
		BPM  float64 `yaml:"bpm"`
	}

	// TempoMap maps between beats and sample positions at a given sample
	// rate. The zero value is unusable; use NewTempoMap or a single-tempo
	// constructor.
	TempoMap struct {
		changes []TempoChange
		// samples[i] is the sample position of changes[i].Beat, precomputed so
		// lookups are a binary search plus a linear segment.
		samples []float64
		rate    float64
	}
)

// NewTempoMap builds a tempo map from tempo changes, sorted by beat. Changes
// with non-positive BPM are dropped. An empty list falls back to 120 BPM.
func NewTempoMap(changes []TempoChange, sampleRate float64) *TempoMap {
	valid := make([]TempoChange, 0, len(changes))
	for _, c := range changes {
		if c.BPM > 0 && c.Beat >= 0 {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		valid = append(valid, TempoChange{Beat: 0, BPM: 120})
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Beat < valid[j].Beat })
	if valid[0].Beat > 0 {
		valid = append([]TempoChange{{Beat: 0, BPM: valid[0].BPM}}, valid...)
	}
	m := &TempoMap{changes: valid, samples: make([]float64, len(valid)), rate: sampleRate}
	for i := 1; i < len(valid); i++ {
		prev := valid[i-1]
		beats := valid[i].Beat - prev.Beat
		m.samples[i] = m.samples[i-1] + beats*m.samplesPerBeat(prev.BPM)
	}
	return m
}

// ConstantTempo is the common case of a project with a single tempo.
func ConstantTempo(bpm, sampleRate float64) *TempoMap {
	return NewTempoMap([]TempoChange{{Beat: 0, BPM: bpm}}, sampleRate)
}

func (m *TempoMap) samplesPerBeat(bpm float64) float64 {
	return m.rate * 60 / bpm
}

// SampleRate returns the rate the map was built for.
func (m *TempoMap) SampleRate() float64 { return m.rate }

// BPMAt returns the tempo in force at the given beat.
func (m *TempoMap) BPMAt(beat float64) float64 {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].Beat > beat })
	if i == 0 {
		return m.changes[0].BPM
	}
	return m.changes[i-1].BPM
}

// SampleForBeat converts a beat position to a sample position.
func (m *TempoMap) SampleForBeat(beat float64) float64 {
	i := sort.Search(len(m.changes), func(i int) bool { return m.changes[i].Beat > beat })
	if i == 0 {
		i = 1
	}
	c := m.changes[i-1]
	return m.samples[i-1] + (beat-c.Beat)*m.samplesPerBeat(c.BPM)
}

// BeatForSample converts a sample position to a beat position.
func (m *TempoMap) BeatForSample(sample float64) float64 {
	i := sort.Search(len(m.samples), func(i int) bool { return m.samples[i] > sample })
	if i == 0 {
		i = 1
	}
	c := m.changes[i-1]
	return c.Beat + (sample-m.samples[i-1])/m.samplesPerBeat(c.BPM)
}

// SamplesPerBeatAt returns the number of samples in one beat at the tempo in
// force at the given sample position.
func (m *TempoMap) SamplesPerBeatAt(sample float64) float64 {
	return m.samplesPerBeat(m.BPMAt(m.BeatForSample(sample)))
}
