package driver

import (
	"math"

	"github.com/seosaudio/seos"
)

// FrameTo16BitLE appends a stereo frame buffer as interleaved 16-bit
// little-endian PCM. Pass a zero-length slice with capacity to avoid
// reallocating every block.
func FrameTo16BitLE(buffer seos.AudioBuffer, out []byte) []byte {
	for _, frame := range buffer {
		for c := 0; c < 2; c++ {
			v := scaleToInt(frame[c], math.MaxInt16)
			out = append(out, byte(v), byte(v>>8))
		}
	}
	return out
}

// FrameTo24BitLE appends the frames as interleaved 24-bit little-endian PCM.
func FrameTo24BitLE(buffer seos.AudioBuffer, out []byte) []byte {
	const maxInt24 = 1<<23 - 1
	for _, frame := range buffer {
		for c := 0; c < 2; c++ {
			v := scaleToInt(frame[c], maxInt24)
			out = append(out, byte(v), byte(v>>8), byte(v>>16))
		}
	}
	return out
}

// FrameTo32BitLE appends the frames as interleaved 32-bit little-endian PCM.
func FrameTo32BitLE(buffer seos.AudioBuffer, out []byte) []byte {
	for _, frame := range buffer {
		for c := 0; c < 2; c++ {
			v := scaleToInt(frame[c], math.MaxInt32)
			out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		}
	}
	return out
}

// FrameToFloat32LE appends the frames as interleaved IEEE float32 bytes, the
// format shared-mode streams consume directly.
func FrameToFloat32LE(buffer seos.AudioBuffer, out []byte) []byte {
	for _, frame := range buffer {
		for c := 0; c < 2; c++ {
			bits := math.Float32bits(frame[c])
			out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
		}
	}
	return out
}

// scaleToInt maps [-1, 1] to [-limit, limit], clamping out-of-range input.
func scaleToInt(v float32, limit int32) int32 {
	if v >= 1 {
		return limit
	}
	if v <= -1 {
		return -limit
	}
	return int32(v * float32(limit))
}
