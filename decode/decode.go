// Package decode turns audio files into seos.AudioData. WAV, MP3 and Ogg
// Vorbis are supported; the format is picked by file extension. Decoding runs
// on worker threads, never the audio thread.
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seosaudio/seos"
)

// File decodes an audio file into a refcounted stereo buffer. Mono sources
// are upmixed to both channels; more than two channels is an error.
func File(path string) (*seos.AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	var (
		samples  []float32
		channels int
		rate     float64
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		samples, channels, rate, err = decodeWav(f)
	case ".mp3":
		samples, channels, rate, err = decodeMp3(f)
	case ".ogg":
		samples, channels, rate, err = decodeOgg(f)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	stereo, err := toStereo(samples, channels)
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	return seos.NewAudioData(path, stereo, rate, nil), nil
}

// toStereo normalizes an interleaved buffer to two channels.
func toStereo(samples []float32, channels int) ([]float32, error) {
	switch channels {
	case 2:
		return samples, nil
	case 1:
		out := make([]float32, len(samples)*2)
		for i, s := range samples {
			out[2*i] = s
			out[2*i+1] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%d channels, only mono and stereo supported", channels)
}
