package engine

import "math"

// Quality selects the interpolation kernel of the clip renderer. It is a
// block-level setting: the engine latches it at block start and it cannot
// change mid-block.
type Quality int32

const (
	QualityCubic Quality = iota // Catmull-Rom, cheapest
	QualitySinc8
	QualitySinc16
	QualitySinc32
	QualitySinc64
	numQualities
)

// sincPhases is the fractional resolution of the precomputed sinc tables.
// Coefficients for an arbitrary phase are linearly interpolated between
// adjacent rows.
const sincPhases = 512

// sincTables[q] holds (sincPhases+1) rows of taps(q) windowed-sinc
// coefficients, row i being the kernel for fractional phase i/sincPhases.
// Built once at startup; read-only afterwards, so the audio thread can use
// them freely.
var sincTables [numQualities][]float32

func init() {
	for q := QualitySinc8; q <= QualitySinc64; q++ {
		sincTables[q] = buildSincTable(q.Taps())
	}
}

// Taps returns the kernel width in source samples.
func (q Quality) Taps() int {
	switch q {
	case QualitySinc8:
		return 8
	case QualitySinc16:
		return 16
	case QualitySinc32:
		return 32
	case QualitySinc64:
		return 64
	default:
		return 4 // cubic reads 4 neighbours
	}
}

func (q Quality) valid() bool { return q >= QualityCubic && q < numQualities }

// buildSincTable computes a Blackman-windowed sinc kernel for each quantized
// fractional phase, normalized to unit DC gain so resampling does not change
// loudness.
func buildSincTable(taps int) []float32 {
	table := make([]float32, (sincPhases+1)*taps)
	half := taps / 2
	for p := 0; p <= sincPhases; p++ {
		frac := float64(p) / sincPhases
		row := table[p*taps : (p+1)*taps]
		var sum float64
		for k := 0; k < taps; k++ {
			// tap k reads source index floor(phase) + k - (half-1); x is the
			// distance from the interpolation point in samples
			x := float64(k-(half-1)) - frac
			v := sinc(x) * blackman(x, float64(half))
			row[k] = float32(v)
			sum += v
		}
		if sum != 0 {
			for k := range row {
				row[k] = float32(float64(row[k]) / sum)
			}
		}
	}
	return table
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func blackman(x, half float64) float64 {
	if x <= -half || x >= half {
		return 0
	}
	t := (x + half) / (2 * half) // 0..1 across the kernel
	return 0.42 - 0.5*math.Cos(2*math.Pi*t) + 0.08*math.Cos(4*math.Pi*t)
}

// sampleAt fetches one stereo source frame, treating anything outside
// [0, frames) as silence.
func sampleAt(data []float32, frames, i int) (l, r float32) {
	if i < 0 || i >= frames {
		return 0, 0
	}
	return data[2*i], data[2*i+1]
}

// resampleAt evaluates the source at fractional frame position phase using
// the given kernel quality.
func resampleAt(data []float32, frames int, phase float64, q Quality) (l, r float32) {
	i := int(math.Floor(phase))
	frac := phase - float64(i)
	if q == QualityCubic || !q.valid() {
		return catmullRom(data, frames, i, float32(frac))
	}
	taps := q.Taps()
	half := taps / 2
	rowPos := frac * sincPhases
	row := int(rowPos)
	mix := float32(rowPos - float64(row))
	t0 := sincTables[q][row*taps : (row+1)*taps]
	t1 := sincTables[q][(row+1)*taps : (row+2)*taps]
	for k := 0; k < taps; k++ {
		c := t0[k] + (t1[k]-t0[k])*mix
		sl, sr := sampleAt(data, frames, i+k-(half-1))
		l += c * sl
		r += c * sr
	}
	return l, r
}

// catmullRom evaluates the cubic Catmull-Rom spline through the four
// neighbours of frame i at fraction t. At t = 0 it reproduces the source
// sample exactly.
func catmullRom(data []float32, frames, i int, t float32) (l, r float32) {
	l0, r0 := sampleAt(data, frames, i-1)
	l1, r1 := sampleAt(data, frames, i)
	l2, r2 := sampleAt(data, frames, i+1)
	l3, r3 := sampleAt(data, frames, i+2)
	l = catmull1(l0, l1, l2, l3, t)
	r = catmull1(r0, r1, r2, r3, t)
	return l, r
}

func catmull1(p0, p1, p2, p3, t float32) float32 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}
