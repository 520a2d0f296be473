package engine

import (
	"fmt"
	"sync"

	"github.com/seosaudio/seos"
)

// SourceManager owns the decoded clip sources, keyed by path. Workers add
// sources after decoding; the control thread resolves clip references against
// the table while snapshotting. The manager holds one reference per entry;
// snapshots retain their own, so a source removed here lives on until the
// last snapshot holding it is retired. Locked access is fine: only control
// and worker threads call in.
type SourceManager struct {
	mu      sync.RWMutex
	sources map[string]*seos.AudioData
}

func NewSourceManager() *SourceManager {
	return &SourceManager{sources: make(map[string]*seos.AudioData)}
}

// Add registers a decoded source under its path, taking over the caller's
// reference. Replacing an existing entry releases the old one.
func (m *SourceManager) Add(data *seos.AudioData) error {
	if data == nil || data.Path == "" {
		return fmt.Errorf("source must have a path")
	}
	if data.Frames == 0 {
		return fmt.Errorf("source %q is empty", data.Path)
	}
	m.mu.Lock()
	old := m.sources[data.Path]
	m.sources[data.Path] = data
	m.mu.Unlock()
	if old != nil {
		old.Release()
	}
	return nil
}

// Get returns the source for a path without touching its reference count, or
// nil. Callers that keep the pointer must Retain it.
func (m *SourceManager) Get(path string) *seos.AudioData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sources[path]
}

// Remove drops the manager's reference to a path. Live snapshots keep the
// data alive until retired.
func (m *SourceManager) Remove(path string) {
	m.mu.Lock()
	data := m.sources[path]
	delete(m.sources, path)
	m.mu.Unlock()
	if data != nil {
		data.Release()
	}
}

// Paths lists the registered source paths.
func (m *SourceManager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.sources))
	for p := range m.sources {
		paths = append(paths, p)
	}
	return paths
}

// Close releases every entry.
func (m *SourceManager) Close() {
	m.mu.Lock()
	sources := m.sources
	m.sources = make(map[string]*seos.AudioData)
	m.mu.Unlock()
	for _, d := range sources {
		d.Release()
	}
}
