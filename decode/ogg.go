package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

func decodeOgg(r io.Reader) ([]float32, int, float64, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading ogg: %w", err)
	}
	return samples, format.Channels, float64(format.SampleRate), nil
}
