package decode

import (
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

func decodeMp3(r io.Reader) ([]float32, int, float64, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading mp3: %w", err)
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return samples, 2, float64(dec.SampleRate()), nil
}
