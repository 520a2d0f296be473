package engine

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

type (
	// PatternNote is one note of a pattern, positioned in beats relative to
	// the pattern start.
	PatternNote struct {
		Beat     float64 `yaml:"beat"`
		Length   float64 `yaml:"length"`
		Key      uint8   `yaml:"key"`
		Velocity uint8   `yaml:"velocity"`
	}

	// Pattern is a reusable note sequence; clips of kind ClipMIDI reference
	// patterns by ID.
	Pattern struct {
		ID    int32         `yaml:"id"`
		Name  string        `yaml:"name,omitempty"`
		Beats float64       `yaml:"beats"`
		Notes []PatternNote `yaml:"notes"`
	}

	// PatternSnapshot is an immutable, versioned view of all patterns. The
	// scheduler worker reads the current snapshot each refill; a new version
	// is published whenever a pattern changes.
	PatternSnapshot struct {
		Version  uint64
		Patterns map[int32]*Pattern
	}

	// PatternManager owns the editable patterns on the control thread and
	// publishes snapshots by atomic pointer swap.
	PatternManager struct {
		mu       sync.Mutex
		patterns map[int32]Pattern
		version  uint64
		snapshot atomic.Pointer[PatternSnapshot]
	}
)

func NewPatternManager() *PatternManager {
	m := &PatternManager{patterns: make(map[int32]Pattern)}
	m.publish()
	return m
}

// Set stores or replaces a pattern and publishes a new snapshot. Notes are
// kept sorted by beat so scheduling walks them in order.
func (m *PatternManager) Set(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := make([]PatternNote, len(p.Notes))
	copy(notes, p.Notes)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Beat < notes[j].Beat })
	p.Notes = notes
	m.patterns[p.ID] = p
	m.publish()
}

// Remove deletes a pattern and publishes a new snapshot.
func (m *PatternManager) Remove(id int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patterns, id)
	m.publish()
}

// Snapshot returns the current immutable snapshot. Safe from any thread.
func (m *PatternManager) Snapshot() *PatternSnapshot {
	return m.snapshot.Load()
}

// Patterns returns the editable patterns sorted by ID, for persistence.
func (m *PatternManager) Patterns() []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReadPatterns loads a YAML pattern bank into the manager.
func (m *PatternManager) ReadPatterns(r io.Reader) error {
	var patterns []Pattern
	if err := yaml.NewDecoder(r).Decode(&patterns); err != nil {
		return fmt.Errorf("decoding patterns: %w", err)
	}
	for _, p := range patterns {
		m.Set(p)
	}
	return nil
}

// WritePatterns writes the pattern bank as YAML.
func (m *PatternManager) WritePatterns(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(m.Patterns()); err != nil {
		return fmt.Errorf("encoding patterns: %w", err)
	}
	return enc.Close()
}

// publish deep-copies the table into a fresh snapshot; callers hold mu.
func (m *PatternManager) publish() {
	m.version++
	snap := &PatternSnapshot{
		Version:  m.version,
		Patterns: make(map[int32]*Pattern, len(m.patterns)),
	}
	for id := range m.patterns {
		p := m.patterns[id]
		snap.Patterns[id] = &p
	}
	m.snapshot.Store(snap)
}
