package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

func decodeWav(r io.ReadSeeker) ([]float32, int, float64, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, 0, 0, fmt.Errorf("wav has no format chunk")
	}
	f32 := buf.AsFloat32Buffer()
	return f32.Data, buf.Format.NumChannels, float64(buf.Format.SampleRate), nil
}
