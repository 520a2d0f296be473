package engine

import (
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

type (
	// Config is the static engine configuration, typically loaded from YAML
	// next to the project file. Runtime-changeable toggles are mirrored into
	// the settings atomics; the rest is fixed for the life of the engine.
	Config struct {
		SampleRate      float64 `yaml:"samplerate"`
		MaxBlockFrames  int     `yaml:"maxblockframes"`
		Quality         string  `yaml:"quality"` // cubic, sinc8, sinc16, sinc32, sinc64
		Safety          bool    `yaml:"safety"`
		HeadroomDb      float32 `yaml:"headroom"`
		Metronome       bool    `yaml:"metronome"`
		MetronomeVolume float32 `yaml:"metronomevolume"`
		ScopeFrames     int     `yaml:"scopeframes"`
	}

	// settings are the block-stable runtime toggles. The audio thread latches
	// each at block start; mid-block writes take effect on the next block.
	settings struct {
		qualityVal      atomic.Int32
		safetyVal       atomic.Bool
		headroomBits    atomic.Uint32 // linear gain, float32 bits
		metronomeVal    atomic.Bool
		metronomeVolume atomic.Uint32 // float32 bits
	}
)

// DefaultConfig returns the configuration used when the host supplies
// nothing: 48 kHz, 2048-frame ceiling, cubic resampling, safety off.
func DefaultConfig() Config {
	return Config{
		SampleRate:      48000,
		MaxBlockFrames:  2048,
		Quality:         "cubic",
		HeadroomDb:      0,
		MetronomeVolume: 0.5,
		ScopeFrames:     4096,
	}
}

// ReadConfig parses a YAML config, filling unset fields with defaults.
func ReadConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if c.SampleRate <= 0 || c.MaxBlockFrames <= 0 {
		return Config{}, fmt.Errorf("config needs positive samplerate and maxblockframes")
	}
	if _, err := ParseQuality(c.Quality); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ParseQuality maps the config string to a kernel quality.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "", "cubic":
		return QualityCubic, nil
	case "sinc8":
		return QualitySinc8, nil
	case "sinc16":
		return QualitySinc16, nil
	case "sinc32":
		return QualitySinc32, nil
	case "sinc64":
		return QualitySinc64, nil
	}
	return 0, fmt.Errorf("unknown resampler quality %q", s)
}

func newSettings(c Config) *settings {
	s := &settings{}
	q, _ := ParseQuality(c.Quality)
	s.qualityVal.Store(int32(q))
	s.safetyVal.Store(c.Safety)
	s.SetHeadroomDb(c.HeadroomDb)
	s.metronomeVal.Store(c.Metronome)
	s.metronomeVolume.Store(math.Float32bits(c.MetronomeVolume))
	return s
}

func (s *settings) quality() Quality { return Quality(s.qualityVal.Load()) }
func (s *settings) SetQuality(q Quality) {
	if q.valid() {
		s.qualityVal.Store(int32(q))
	}
}

func (s *settings) safety() bool        { return s.safetyVal.Load() }
func (s *settings) SetSafety(on bool)   { s.safetyVal.Store(on) }
func (s *settings) headroom() float32   { return math.Float32frombits(s.headroomBits.Load()) }
func (s *settings) SetHeadroomDb(db float32) {
	if db > 0 {
		db = 0 // headroom only attenuates
	}
	s.headroomBits.Store(math.Float32bits(dbToHeadroom(db)))
}

func dbToHeadroom(db float32) float32 {
	if db == 0 {
		return 1
	}
	return float32(math.Pow(10, float64(db)/20))
}

func (s *settings) metronome() bool      { return s.metronomeVal.Load() }
func (s *settings) SetMetronome(on bool) { s.metronomeVal.Store(on) }
func (s *settings) metronomeGain() float32 {
	return math.Float32frombits(s.metronomeVolume.Load())
}
func (s *settings) SetMetronomeVolume(v float32) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	s.metronomeVolume.Store(math.Float32bits(v))
}
