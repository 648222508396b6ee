// Package eq implements the reflection-colouring graphic/parametric EQ:
// a low shelf, one peaking filter per band, and a high shelf, whose
// gains are solved from target per-band dB values via a fixed response
// matrix.
package eq

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rtacoustics/raengine/pkg/dsp/filter"
)

const probeGainDB = 6.0

// Cascade is a low-shelf + per-band-peaking + high-shelf filter chain
// whose gains are lerped per sample towards a target set derived from
// per-band reflectance. Once current equals target, Process switches to
// a non-interpolating fast path.
type Cascade struct {
	bands       int
	filters     []*filter.Biquad
	designFreqs []float64
	response    *mat.Dense // (bands+2) x (bands+2), inverse response matrix
	fs          float64

	currentGainDB []float64
	targetGainDB  []float64
}

// NewCascade builds a cascade for the given per-band centre frequencies
// (length == bands). The low shelf corner is the first centre divided by
// sqrt(2) and the high shelf corner is the last centre times sqrt(2).
func NewCascade(bandCenters []float64, sampleRate float64) *Cascade {
	b := len(bandCenters)
	n := b + 2
	c := &Cascade{
		bands:         b,
		filters:       make([]*filter.Biquad, n),
		designFreqs:   make([]float64, n),
		fs:            sampleRate,
		currentGainDB: make([]float64, n),
		targetGainDB:  make([]float64, n),
	}

	lowShelfFreq := bandCenters[0] / math.Sqrt2
	highShelfFreq := bandCenters[b-1] * math.Sqrt2

	c.designFreqs[0] = lowShelfFreq
	copy(c.designFreqs[1:], bandCenters)
	c.designFreqs[n-1] = highShelfFreq

	for i := 0; i < n; i++ {
		c.filters[i] = filter.NewBiquad(1)
	}

	c.response = buildResponseMatrix(c.designFreqs, sampleRate)
	c.applyGains(c.currentGainDB)
	return c
}

// buildResponseMatrix samples each filter's magnitude response (at a
// probe gain of probeGainDB) at every design frequency, then inverts it
// so a target dB vector maps to per-filter gains that reproduce it.
func buildResponseMatrix(freqs []float64, fs float64) *mat.Dense {
	n := len(freqs)
	raw := mat.NewDense(n, n, nil)
	for col, designFreq := range freqs {
		probe := filter.NewBiquad(1)
		switch {
		case col == 0:
			probe.SetLowShelf(fs, designFreq, 0.707, probeGainDB)
		case col == n-1:
			probe.SetHighShelf(fs, designFreq, 0.707, probeGainDB)
		default:
			probe.SetPeakingEQ(fs, designFreq, 1.0, probeGainDB)
		}
		for row, atFreq := range freqs {
			mag := biquadMagnitudeDB(probe, atFreq, fs)
			raw.Set(row, col, mag/probeGainDB)
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(raw); err != nil {
		return mat.NewDense(n, n, identity(n))
	}
	return &inv
}

func identity(n int) []float64 {
	v := make([]float64, n*n)
	for i := 0; i < n; i++ {
		v[i*n+i] = 1
	}
	return v
}

// biquadMagnitudeDB evaluates the filter's coefficients at a given
// frequency using the standard z-domain magnitude formula, without
// running audio through it.
func biquadMagnitudeDB(b *filter.Biquad, freqHz, fs float64) float64 {
	w := 2 * math.Pi * freqHz / fs
	cosw := math.Cos(w)
	cos2w := math.Cos(2 * w)
	sinw := math.Sin(w)
	sin2w := math.Sin(2 * w)

	b0, b1, b2, a0, a1, a2 := b.Coefficients()
	numRe := float64(b0) + float64(b1)*cosw + float64(b2)*cos2w
	numIm := -float64(b1)*sinw - float64(b2)*sin2w
	denRe := float64(a0) + float64(a1)*cosw + float64(a2)*cos2w
	denIm := -float64(a1)*sinw - float64(a2)*sin2w

	numMag := math.Hypot(numRe, numIm)
	denMag := math.Hypot(denRe, denIm)
	if denMag < 1e-12 {
		denMag = 1e-12
	}
	ratio := numMag / denMag
	if ratio < 1e-9 {
		ratio = 1e-9
	}
	return 20 * math.Log10(ratio)
}

// SetTargetBandGainsDB sets the desired per-band gain (dB) for the
// Cascade's middle filters; the low/high shelves target the lowest and
// highest band gains, so the response beyond the band edges holds those
// edge gains.
func (c *Cascade) SetTargetBandGainsDB(bandGainsDB []float64) {
	target := mat.NewVecDense(c.bands+2, nil)
	target.SetVec(0, bandGainsDB[0])
	for i, g := range bandGainsDB {
		target.SetVec(i+1, g)
	}
	target.SetVec(c.bands+1, bandGainsDB[c.bands-1])

	var solved mat.VecDense
	solved.MulVec(c.response, target)
	for i := 0; i < c.bands+2; i++ {
		c.targetGainDB[i] = solved.AtVec(i)
	}
}

func (c *Cascade) applyGains(gains []float64) {
	n := len(c.filters)
	for i, f := range c.filters {
		freq := c.designFreqs[i]
		switch {
		case i == 0:
			f.SetLowShelf(c.fs, freq, 0.707, gains[i])
		case i == n-1:
			f.SetHighShelf(c.fs, freq, 0.707, gains[i])
		default:
			f.SetPeakingEQ(c.fs, freq, 1.0, gains[i])
		}
	}
}

const gainLerpPerSample = 0.01

func (c *Cascade) atTarget() bool {
	for i := range c.currentGainDB {
		if math.Abs(c.currentGainDB[i]-c.targetGainDB[i]) > 1e-3 {
			return false
		}
	}
	return true
}

// Process runs the cascade over buf in place. While gains are settling
// it recomputes coefficients every sample; once settled it runs the
// fixed cascade without touching filter state.
func (c *Cascade) Process(buf []float32) {
	if c.atTarget() {
		for _, f := range c.filters {
			f.Process(buf, 0)
		}
		return
	}
	for i := range buf {
		moving := false
		for j := range c.currentGainDB {
			if c.currentGainDB[j] != c.targetGainDB[j] {
				c.currentGainDB[j] = lerpStep(c.currentGainDB[j], c.targetGainDB[j], gainLerpPerSample)
				moving = true
			}
		}
		if moving {
			c.applyGains(c.currentGainDB)
		}
		sample := buf[i : i+1]
		for _, f := range c.filters {
			f.Process(sample, 0)
		}
	}
}

func lerpStep(cur, target, rate float64) float64 {
	if cur < target {
		cur += rate
		if cur > target {
			cur = target
		}
	} else if cur > target {
		cur -= rate
		if cur < target {
			cur = target
		}
	}
	return cur
}

func (c *Cascade) Reset() {
	for _, f := range c.filters {
		f.Reset()
	}
}
