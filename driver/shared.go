package driver

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/seosaudio/seos"
)

// otoContext is created once per process; oto does not support reopening.
var (
	otoOnce    sync.Once
	otoCtx     *oto.Context
	otoCtxErr  error
	otoCtxRate int
)

// sharedDriver is the shared-mode backend: oto pulls 16-bit PCM through an
// io.Reader, the OS mixer sits in between, latency is a few buffers.
type sharedDriver struct {
	src    seos.AudioSource
	player *oto.Player
	format Format

	mu      sync.Mutex
	started bool
	stopped bool
}

func openShared(cfg Config, src seos.AudioSource) (Driver, error) {
	rate := int(cfg.SampleRate)
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoCtxErr = err
			return
		}
		<-ready
		otoCtx = ctx
		otoCtxRate = rate
	})
	if otoCtxErr != nil {
		return nil, fmt.Errorf("creating shared context: %w", otoCtxErr)
	}
	if otoCtxRate != rate {
		return nil, fmt.Errorf("shared context already open at %d Hz, cannot reopen at %d Hz", otoCtxRate, rate)
	}
	d := &sharedDriver{
		src: src,
		format: Format{
			SampleRate:   float64(otoCtxRate),
			BufferFrames: cfg.BufferFrames,
			BitDepth:     16,
		},
	}
	d.player = otoCtx.NewPlayer(&sharedStream{driver: d, tmp: make(seos.AudioBuffer, cfg.BufferFrames)})
	d.player.SetBufferSize(cfg.BufferFrames * 4) // bytes per stereo 16-bit frame
	return d, nil
}

// sharedStream adapts the pull source to oto's io.Reader.
type sharedStream struct {
	driver  *sharedDriver
	tmp     seos.AudioBuffer
	scratch []byte
	tail    []byte // unconsumed bytes of the last converted block
}

func (s *sharedStream) Read(buf []byte) (int, error) {
	d := s.driver
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		// Keep feeding silence after stop so the device drains cleanly.
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}
	n := copy(buf, s.tail)
	s.tail = s.tail[n:]
	for n < len(buf) {
		frames := min((len(buf)-n+3)/4, len(s.tmp))
		d.src.ReadAudio(s.tmp[:frames])
		s.scratch = FrameTo16BitLE(s.tmp[:frames], s.scratch[:0])
		c := copy(buf[n:], s.scratch)
		n += c
		s.tail = s.scratch[c:]
	}
	return n, nil
}

func (d *sharedDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	d.stopped = false
	d.player.Play()
	d.started = true
	return nil
}

func (d *sharedDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil
	}
	d.stopped = true
	d.started = false
	return nil
}

func (d *sharedDriver) Close() error {
	d.Stop()
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("closing player: %w", err)
	}
	return d.src.Close()
}

func (d *sharedDriver) Mode() Mode     { return ModeShared }
func (d *sharedDriver) Format() Format { return d.format }

func (d *sharedDriver) Latency() (min, max float64) {
	one := float64(d.format.BufferFrames) / d.format.SampleRate
	return one, 3 * one
}
