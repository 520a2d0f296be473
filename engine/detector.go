package engine

import (
	"math"

	"github.com/seosaudio/seos"
	"github.com/viterin/vek/vek32"
)

type (
	// Detector measures loudness (EBU R128 style sliding windows plus gated
	// integrated loudness) and true peak from the master tap. It runs in its
	// own goroutine, fed audio buffers through the broker, and reports
	// DetectorResults back to the model. It never touches the audio thread.
	Detector struct {
		broker      *Broker
		loudness    loudnessDetector
		peak        peakDetector
		chunkFrames int
		tail        seos.AudioBuffer
	}

	WeightingType int
	LoudnessType  int
	PeakType      int

	Decibel float32

	LoudnessResult [NumLoudnessTypes]Decibel
	PeakResult     [NumPeakTypes][2]Decibel

	DetectorResult struct {
		Loudness LoudnessResult
		Peaks    PeakResult
	}

	loudnessDetector struct {
		weighting       weighting
		states          [2][3]biquadState
		windows         [2]RingBuffer[float32] // 0 = momentary, 1 = short-term
		history         [2][]float32
		maxPowers       [2]float32
		integratedPower float32
		tmp, tmp2       []float32
		tmpbool         []bool
	}

	biquadState struct {
		x1, x2, y1, y2 float32
	}

	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}

	weighting struct {
		coeffs []biquadCoeff
		offset float32
	}

	peakDetector struct {
		oversampling bool
		states       [2]oversamplerState
		windows      [2][2]RingBuffer[float32]
		maxPeak      [2]float32
		tmp, tmp2    []float32
	}

	oversamplerState struct {
		history [11]float32
		tmp     []float32
	}
)

const (
	LoudnessMomentary LoudnessType = iota
	LoudnessShortTerm
	LoudnessMaxMomentary
	LoudnessMaxShortTerm
	LoudnessIntegrated
	NumLoudnessTypes
)

const (
	PeakMomentary PeakType = iota
	PeakShortTerm
	PeakIntegrated
	NumPeakTypes
)

const (
	KWeighting WeightingType = iota
	NoWeighting
	NumWeightingTypes
)

// maxIntegratedChunks caps the gating history at an hour of 100 ms chunks.
const maxIntegratedChunks = 10 * 60 * 60

// K-weighting as two cascaded biquads (shelf + high-pass), per ITU-R
// BS.1770. The offset compensates the slightly-above-unity gain at 1 kHz.
var weightings = [NumWeightingTypes]weighting{
	KWeighting: {coeffs: []biquadCoeff{
		{b0: 1.5308412300503476, b1: -2.6509799951547293, b2: 1.1690790799215869, a1: -1.6636551132560204, a2: 0.7125954280732254},
		{b0: 0.9995600645425144, b1: -1.9991201290850289, b2: 0.9995600645425144, a1: -1.9891696736297957, a2: 0.9891990357870394},
	}, offset: -0.691},
	NoWeighting: {coeffs: []biquadCoeff{}, offset: 0},
}

func NewDetector(b *Broker, sampleRate int) *Detector {
	return &Detector{
		broker:      b,
		loudness:    makeLoudnessDetector(KWeighting),
		peak:        makePeakDetector(true),
		chunkFrames: sampleRate / 10, // 100 ms per analysis chunk
	}
}

// Run processes messages until CloseDetector fires, then closes
// FinishedDetector. Call in a goroutine.
func (d *Detector) Run() {
	defer close(d.broker.FinishedDetector)
	for {
		select {
		case <-d.broker.CloseDetector:
			return
		case msg := <-d.broker.ToDetector:
			d.handle(msg)
		}
	}
}

func (d *Detector) handle(msg MsgToDetector) {
	if msg.Reset {
		d.loudness.reset()
		d.peak.reset()
		d.tail = d.tail[:0]
	}
	if msg.HasWeightingType && msg.WeightingType >= 0 && msg.WeightingType < NumWeightingTypes {
		d.loudness.weighting = weightings[msg.WeightingType]
		d.loudness.reset()
	}
	if msg.HasOversampling {
		d.peak.oversampling = msg.Oversampling
		d.peak.reset()
	}
	buf, ok := msg.Data.(*seos.AudioBuffer)
	if !ok {
		return
	}
	// Reassemble the incoming blocks into fixed 100 ms chunks; a partial
	// chunk waits in the tail for the next block.
	d.tail = append(d.tail, *buf...)
	d.broker.PutAudioBuffer(buf)
	for len(d.tail) >= d.chunkFrames {
		chunk := d.tail[:d.chunkFrames]
		TrySend(d.broker.ToModel, MsgToModel{
			HasDetectorResult: true,
			DetectorResult: DetectorResult{
				Loudness: d.loudness.update(chunk),
				Peaks:    d.peak.update(chunk),
			},
		})
		d.tail = d.tail[:copy(d.tail, d.tail[d.chunkFrames:])]
	}
}

func makeLoudnessDetector(w WeightingType) loudnessDetector {
	return loudnessDetector{
		weighting: weightings[w],
		windows: [2]RingBuffer[float32]{
			{Buffer: make([]float32, 4)},  // momentary = last 400 ms
			{Buffer: make([]float32, 30)}, // short-term = last 3 s
		},
	}
}

func makePeakDetector(oversampling bool) peakDetector {
	return peakDetector{
		oversampling: oversampling,
		windows: [2][2]RingBuffer[float32]{
			{{Buffer: make([]float32, 4)}, {Buffer: make([]float32, 4)}},
			{{Buffer: make([]float32, 30)}, {Buffer: make([]float32, 30)}},
		},
	}
}

// update runs one 100 ms chunk through the weighting filter, accumulates the
// sliding windows and, once a second, recomputes the two-stage gated
// integrated loudness per EBU tech 3341.
func (d *loudnessDetector) update(chunk seos.AudioBuffer) LoudnessResult {
	l := max(len(chunk), maxIntegratedChunks)
	setSliceLength(&d.tmp, l)
	setSliceLength(&d.tmp2, l)
	setSliceLength(&d.tmpbool, l)
	var total float32
	for chn := 0; chn < 2; chn++ {
		for i := 0; i < len(chunk); i++ {
			d.tmp[i] = chunk[i][chn]
		}
		for k := 0; k < len(d.weighting.coeffs); k++ {
			d.states[chn][k].filter(d.tmp[:len(chunk)], d.weighting.coeffs[k])
		}
		sq := vek32.Mul_Into(d.tmp2, d.tmp[:len(chunk)], d.tmp[:len(chunk)])
		total += vek32.Mean(sq)
	}
	var ret LoudnessResult
	for i := range d.windows {
		d.windows[i].WriteWrapSingle(total)
		mean := vek32.Mean(d.windows[i].Buffer)
		if len(d.history[i]) < maxIntegratedChunks {
			d.history[i] = append(d.history[i], mean)
		}
		if d.maxPowers[i] < mean {
			d.maxPowers[i] = mean
		}
		ret[i+int(LoudnessMomentary)] = power2loudness(mean, d.weighting.offset)
		ret[i+int(LoudnessMaxMomentary)] = power2loudness(d.maxPowers[i], d.weighting.offset)
	}
	if len(d.history[0])%10 == 0 {
		// First gate at -70 LUFS absolute, then 10 dB below the mean of
		// what survived.
		absThreshold := loudness2power(-70, d.weighting.offset)
		b := vek32.GtNumber_Into(d.tmpbool, d.history[0], absThreshold)
		m2 := vek32.Select_Into(d.tmp, d.history[0], b)
		if len(m2) > 0 {
			relThreshold := vek32.Mean(m2) / 10
			b2 := vek32.GtNumber_Into(d.tmpbool, m2, relThreshold)
			m3 := vek32.Select_Into(d.tmp2, m2, b2)
			if len(m3) > 0 {
				d.integratedPower = vek32.Mean(m3)
			}
		}
	}
	ret[LoudnessIntegrated] = power2loudness(d.integratedPower, d.weighting.offset)
	return ret
}

func (d *loudnessDetector) reset() {
	for i := range d.windows {
		d.windows[i].Cursor = 0
		for j := range d.windows[i].Buffer {
			d.windows[i].Buffer[j] = 0
		}
		d.history[i] = d.history[i][:0]
		d.maxPowers[i] = 0
	}
	d.integratedPower = 0
	d.states = [2][3]biquadState{}
}

func power2loudness(power, offset float32) Decibel {
	return Decibel(float32(10*math.Log10(float64(power))) + offset)
}

func loudness2power(loudness Decibel, offset float32) float32 {
	return float32(math.Pow(10, (float64(loudness)-float64(offset))/10))
}

func (state *biquadState) filter(buffer []float32, c biquadCoeff) {
	s := *state
	for i := 0; i < len(buffer); i++ {
		x := buffer[i]
		y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		buffer[i] = y
	}
	*state = s
}

func setSliceLength[T any](slice *[]T, length int) {
	if len(*slice) < length {
		*slice = append(*slice, make([]T, length-len(*slice))...)
	}
	*slice = (*slice)[:length]
}

// 4x polyphase interpolation filter for true-peak measurement, from ITU-R
// BS.1770-5. Row q holds the taps producing output phase q.
var oversamplingCoeffs = [4][12]float32{
	{0.0017089843750, 0.0109863281250, -0.0196533203125, 0.0332031250000, -0.0594482421875, 0.1373291015625, 0.9721679687500, -0.1022949218750, 0.0476074218750, -0.0266113281250, 0.0148925781250, -0.0083007812500},
	{-0.0291748046875, 0.0292968750000, -0.0517578125000, 0.0891113281250, -0.1665039062500, 0.4650878906250, 0.7797851562500, -0.2003173828125, 0.1015625000000, -0.0582275390625, 0.0330810546875, -0.0189208984375},
	{-0.0189208984375, 0.0330810546875, -0.058227539062, 0.1015625000000, -0.200317382812, 0.7797851562500, 0.4650878906250, -0.166503906250, 0.0891113281250, -0.051757812500, 0.0292968750000, -0.0291748046875},
	{-0.0083007812500, 0.0148925781250, -0.0266113281250, 0.0476074218750, -0.1022949218750, 0.9721679687500, 0.1373291015625, -0.0594482421875, 0.0332031250000, -0.0196533203125, 0.0109863281250, 0.0017089843750},
}

// oversample writes the 4x interpolated signal into y, carrying filter
// history across calls. y must hold at least 4*len(x) values.
func (s *oversamplerState) oversample(x []float32, y []float32) []float32 {
	setSliceLength(&s.tmp, len(x))
	for q, coeffs := range oversamplingCoeffs {
		for p := range x {
			var acc float32
			for j, c := range coeffs {
				if p-j >= 0 {
					acc += c * x[p-j]
				} else {
					acc += c * s.history[11+p-j]
				}
			}
			y[p*4+q] = acc
		}
	}
	z := min(len(x), 11)
	copy(s.history[:11-z], s.history[z:11])
	copy(s.history[11-z:], x[len(x)-z:])
	return y[:len(x)*4]
}

func (d *peakDetector) update(chunk seos.AudioBuffer) (ret PeakResult) {
	setSliceLength(&d.tmp, len(chunk))
	setSliceLength(&d.tmp2, 4*len(chunk))
	for chn := 0; chn < 2; chn++ {
		for i := range chunk {
			d.tmp[i] = chunk[i][chn]
		}
		o := d.tmp[:len(chunk)]
		if d.oversampling {
			o = d.states[chn].oversample(d.tmp[:len(chunk)], d.tmp2)
		}
		vek32.Abs_Inplace(o)
		p := vek32.Max(o)
		for i := range d.windows {
			d.windows[i][chn].WriteWrapSingle(p)
			windowPeak := vek32.Max(d.windows[i][chn].Buffer)
			ret[i+int(PeakMomentary)][chn] = Decibel(20 * math.Log10(float64(windowPeak)))
		}
		if d.maxPeak[chn] < p {
			d.maxPeak[chn] = p
		}
		ret[int(PeakIntegrated)][chn] = Decibel(20 * math.Log10(float64(d.maxPeak[chn])))
	}
	return
}

func (d *peakDetector) reset() {
	for chn := 0; chn < 2; chn++ {
		d.states[chn].history = [11]float32{}
		for i := range d.windows {
			d.windows[i][chn].Cursor = 0
			for j := range d.windows[i][chn].Buffer {
				d.windows[i][chn].Buffer[j] = 0
			}
		}
		d.maxPeak[chn] = 0
	}
}
