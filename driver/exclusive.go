package driver

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/seosaudio/seos"
)

// exclusiveDriver is the low-latency backend: a portaudio callback stream
// running float32 end to end, one buffer of latency. The engine renders
// directly inside the device callback.
type exclusiveDriver struct {
	src    seos.AudioSource
	stream *portaudio.Stream
	format Format
	tmp    seos.AudioBuffer

	mu      sync.Mutex
	started bool
}

var portaudioInit sync.Once
var portaudioInitErr error

func openExclusive(cfg Config, src seos.AudioSource) (Driver, error) {
	portaudioInit.Do(func() { portaudioInitErr = portaudio.Initialize() })
	if portaudioInitErr != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", portaudioInitErr)
	}
	d := &exclusiveDriver{
		src: src,
		tmp: make(seos.AudioBuffer, cfg.BufferFrames),
	}
	rates := append([]float64{cfg.SampleRate}, rateLadder...)
	var lastErr error
	for _, rate := range rates {
		stream, err := portaudio.OpenDefaultStream(0, 2, rate, cfg.BufferFrames, d.callback)
		if err != nil {
			lastErr = err
			continue
		}
		d.stream = stream
		d.format = Format{
			SampleRate:   rate,
			BufferFrames: cfg.BufferFrames,
			BitDepth:     32,
			Float:        true,
		}
		return d, nil
	}
	return nil, fmt.Errorf("no usable exclusive stream: %w", lastErr)
}

// callback is the portaudio render callback: pull a block from the source and
// deinterleave into the planar device buffers.
func (d *exclusiveDriver) callback(out [][]float32) {
	frames := len(out[0])
	if frames > len(d.tmp) {
		frames = len(d.tmp)
	}
	lockAudioThread()
	d.src.ReadAudio(d.tmp[:frames])
	for i := 0; i < frames; i++ {
		out[0][i] = d.tmp[i][0]
		out[1][i] = d.tmp[i][1]
	}
	for i := frames; i < len(out[0]); i++ {
		out[0][i] = 0
		out[1][i] = 0
	}
}

func (d *exclusiveDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	d.started = true
	return nil
}

func (d *exclusiveDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.started = false
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("stopping stream: %w", err)
	}
	return nil
}

func (d *exclusiveDriver) Close() error {
	d.Stop()
	if err := d.stream.Close(); err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	return d.src.Close()
}

func (d *exclusiveDriver) Mode() Mode     { return ModeExclusive }
func (d *exclusiveDriver) Format() Format { return d.format }

func (d *exclusiveDriver) Latency() (min, max float64) {
	one := float64(d.format.BufferFrames) / d.format.SampleRate
	return one, 3 * one
}
