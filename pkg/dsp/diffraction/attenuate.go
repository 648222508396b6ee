package diffraction

import (
	"github.com/rtacoustics/raengine/pkg/dsp/interpolation"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// Attenuate is the baseline sanity model: unit gain in the shadow zone,
// silence elsewhere.
type Attenuate struct {
	gain, target float32
}

func NewAttenuate() *Attenuate { return &Attenuate{} }

func (a *Attenuate) SetTarget(_ vsource.DiffractionGeometry, shadow bool, _ float64) {
	if shadow {
		a.target = 1
	} else {
		a.target = 0
	}
}

func (a *Attenuate) Process(buf []float32) {
	for i := range buf {
		a.gain = interpolation.Smooth(a.gain, a.target, 0.01)
		buf[i] *= a.gain
	}
}

func (a *Attenuate) Reset() { a.gain = 0 }
