// Package audiograph wires one per-virtual-source DSP chain
// (diffraction -> reflection EQ -> air absorption -> gain -> spatialise
// -> FDN feed) and the per-source bookkeeping that drives it from a
// published vsource.Map.
package audiograph

import (
	"math"

	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/dsp/airabsorption"
	"github.com/rtacoustics/raengine/pkg/dsp/diffraction"
	"github.com/rtacoustics/raengine/pkg/dsp/eq"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

const gainLerpPerSample = 0.002

// Voice is the DSP chain owned by one live virtual source.
type Voice struct {
	diffraction diffraction.Filter
	diffModel   diffmodel.Model
	reflection  *eq.Cascade
	air         *airabsorption.Filter

	gain, target float32

	fdnChannel int
	feedsFDN   bool

	scratch []float32
}

// NewVoice allocates a chain for a VS whose reflection path (if any)
// spans the given band centres.
func NewVoice(bandCenters []float64, fs float64, model diffmodel.Model) *Voice {
	return &Voice{
		air: airabsorption.New(fs),
	}
}

// ApplyDescriptor re-targets the chain's filters from a freshly
// published descriptor, building the diffraction/reflection stages
// lazily the first time they're needed. The diffraction stage is rebuilt
// from scratch whenever model differs from the one it was built with.
func (v *Voice) ApplyDescriptor(d vsource.Descriptor, bandCenters []float64, fs float64, model diffmodel.Model, shadow bool) {
	v.feedsFDN = d.FeedsFDN
	v.fdnChannel = d.FDNChannel
	v.target = 1

	if d.Diffraction != nil {
		if v.diffraction == nil || v.diffModel != model {
			v.diffraction = diffraction.New(model)
			v.diffModel = model
		}
		v.diffraction.SetTarget(*d.Diffraction, shadow, fs)
	} else {
		v.diffraction = nil
	}

	if len(d.Absorption) > 0 {
		if v.reflection == nil {
			v.reflection = eq.NewCascade(bandCenters, fs)
		}
		gains := make([]float64, len(d.Absorption))
		for i, r := range d.Absorption {
			gains[i] = reflectanceToDB(r)
		}
		v.reflection.SetTargetBandGainsDB(gains)
	} else {
		v.reflection = nil
	}

	v.air.SetDistance(d.Distance)
}

func reflectanceToDB(reflectance float64) float64 {
	if reflectance <= 1e-6 {
		return -60
	}
	return 20 * math.Log10(reflectance)
}

// FadeOut retargets the chain to silence without tearing it down, so a
// departing VS fades rather than clicks.
func (v *Voice) FadeOut() { v.target = 0 }

// Gain reports the current smoothed gain.
func (v *Voice) Gain() float32 { return v.gain }

// Process runs one block of mono input through the chain in place and
// applies the smoothed VS gain.
func (v *Voice) Process(buf []float32) {
	if v.diffraction != nil {
		v.diffraction.Process(buf)
	}
	if v.reflection != nil {
		v.reflection.Process(buf)
	}
	v.air.Process(buf)
	for i := range buf {
		if v.gain != v.target {
			v.gain = lerpStep(v.gain, v.target, gainLerpPerSample)
		}
		buf[i] *= v.gain
	}
}

func lerpStep(cur, target, rate float32) float32 {
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

func (v *Voice) Reset() {
	if v.diffraction != nil {
		v.diffraction.Reset()
	}
	if v.reflection != nil {
		v.reflection.Reset()
	}
	v.air.Reset()
	v.gain = 0
}
