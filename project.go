package seos

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	// Send is an additive post-fader tap from a track to another channel.
	Send struct {
		Target int32   `yaml:"target"` // channel ID, or MasterRoute
		GainDb float32 `yaml:"gain"`
		Pan    float32 `yaml:"pan"`
		Mute   bool    `yaml:"mute,omitempty"`
	}

	// Track is the authoritative, control-thread-owned channel strip. ID is
	// stable across reordering; Route is either MasterRoute or the ID of
	// another track (bus routing).
	Track struct {
		ID       int32   `yaml:"id"`
		Name     string  `yaml:"name"`
		Color    uint32  `yaml:"color,omitempty"`
		VolumeDb float32 `yaml:"volume"`
		Pan      float32 `yaml:"pan"`
		TrimDb   float32 `yaml:"trim,omitempty"`
		Mute     bool    `yaml:"mute,omitempty"`
		Solo     bool    `yaml:"solo,omitempty"`
		SoloSafe bool    `yaml:"solosafe,omitempty"`
		Arm      bool    `yaml:"arm,omitempty"`
		Route    int32   `yaml:"route"`
		Inserts  int     `yaml:"inserts,omitempty"` // insert chain length, metadata only
		Clips    []Clip  `yaml:"clips,omitempty"`
		Sends    []Send  `yaml:"sends,omitempty"`
	}

	// Project is the whole editable document: tracks, tempo and loop
	// settings. The engine never reads it directly; it reads immutable
	// snapshots derived from it at safe points.
	Project struct {
		Name        string        `yaml:"name,omitempty"`
		SampleRate  float64       `yaml:"samplerate"`
		BPM         float64       `yaml:"bpm"`
		BeatsPerBar int           `yaml:"beatsperbar"`
		Tempo       []TempoChange `yaml:"tempo,omitempty"`
		MasterDb    float32       `yaml:"master"`
		LoopStart   int64         `yaml:"loopstart,omitempty"`
		LoopEnd     int64         `yaml:"loopend,omitempty"`
		LoopEnabled bool          `yaml:"loop,omitempty"`
		Tracks      []Track       `yaml:"tracks"`
	}
)

func (t *Track) Copy() Track {
	clips := make([]Clip, len(t.Clips))
	for i, c := range t.Clips {
		clips[i] = c.Copy()
	}
	sends := make([]Send, len(t.Sends))
	copy(sends, t.Sends)
	ret := *t
	ret.Clips = clips
	ret.Sends = sends
	return ret
}

func (p *Project) Copy() Project {
	tracks := make([]Track, len(p.Tracks))
	for i, t := range p.Tracks {
		tracks[i] = t.Copy()
	}
	tempo := make([]TempoChange, len(p.Tempo))
	copy(tempo, p.Tempo)
	ret := *p
	ret.Tracks = tracks
	ret.Tempo = tempo
	return ret
}

// TrackByID returns the track with the given ID, or nil.
func (p *Project) TrackByID(id int32) *Track {
	for i := range p.Tracks {
		if p.Tracks[i].ID == id {
			return &p.Tracks[i]
		}
	}
	return nil
}

// NextTrackID returns an ID one past the largest in use.
func (p *Project) NextTrackID() int32 {
	var max int32 = -1
	for i := range p.Tracks {
		if p.Tracks[i].ID > max {
			max = p.Tracks[i].ID
		}
	}
	return max + 1
}

// AnySolo reports whether any track has solo engaged.
func (p *Project) AnySolo() bool {
	for i := range p.Tracks {
		if p.Tracks[i].Solo {
			return true
		}
	}
	return false
}

func (p *Project) Validate() error {
	if p.SampleRate <= 0 {
		return errors.New("sample rate should be > 0")
	}
	if p.BPM <= 0 {
		return errors.New("BPM should be > 0")
	}
	if p.BeatsPerBar <= 0 {
		return errors.New("beats per bar should be > 0")
	}
	if p.LoopEnabled && p.LoopStart >= p.LoopEnd {
		return errors.New("loop start should be before loop end")
	}
	seen := make(map[int32]bool, len(p.Tracks))
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if seen[t.ID] {
			return fmt.Errorf("track ID %d used more than once", t.ID)
		}
		seen[t.ID] = true
		if t.Route != MasterRoute && t.Route == t.ID {
			return fmt.Errorf("track %q routes to itself", t.Name)
		}
		for _, c := range t.Clips {
			if c.Start >= c.End {
				return fmt.Errorf("track %q has a clip with start >= end", t.Name)
			}
			if c.Offset < 0 {
				return fmt.Errorf("track %q has a clip with a negative source offset", t.Name)
			}
		}
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.Route != MasterRoute && !seen[t.Route] {
			return fmt.Errorf("track %q routes to unknown channel %d", t.Name, t.Route)
		}
		for _, s := range t.Sends {
			if s.Target != MasterRoute && !seen[s.Target] {
				return fmt.Errorf("track %q sends to unknown channel %d", t.Name, s.Target)
			}
		}
	}
	return nil
}

// ReadProject parses a project from YAML.
func ReadProject(r io.Reader) (Project, error) {
	var p Project
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Project{}, fmt.Errorf("decoding project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Project{}, fmt.Errorf("validating project: %w", err)
	}
	return p, nil
}

// WriteProject serializes a project as YAML.
func (p *Project) WriteProject(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	return nil
}
