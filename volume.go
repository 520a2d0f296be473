package seos

import (
	"fmt"
	"math"
)

// SilenceDb is the fader level at or below which the gain is treated as
// exactly zero. Faders are displayed as -inf from here on down.
const SilenceDb = -90

// DbToLinear converts a decibel value to a linear gain. Values at or below
// SilenceDb map to exactly 0 so that a fully pulled-down fader is bit-exact
// silence.
func DbToLinear(db float32) float32 {
	if db <= SilenceDb {
		return 0
	}
	return float32(math.Pow(10, float64(db)/20))
}

// LinearToDb converts a linear gain to decibels, clamping to SilenceDb.
func LinearToDb(gain float32) float32 {
	if gain <= 0 {
		return SilenceDb
	}
	db := float32(20 * math.Log10(float64(gain)))
	if db < SilenceDb {
		return SilenceDb
	}
	return db
}

// FormatDb renders a fader value for display; anything at or below SilenceDb
// is shown as -inf.
func FormatDb(db float32) string {
	if db <= SilenceDb {
		return "-inf dB"
	}
	return fmt.Sprintf("%+.1f dB", db)
}

// Pan computes constant-power stereo gains for a pan position in [-1, 1],
// where -1 is hard left, 0 center and 1 hard right. At center both gains are
// cos(pi/4) so that the summed power stays constant across the sweep.
func Pan(pan float32) (gainL, gainR float32) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	angle := float64(pan+1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

// Smoothstep is the classic 3x^2-2x^3 ramp used by the transport fades; t is
// clamped to [0, 1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}
