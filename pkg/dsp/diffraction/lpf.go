package diffraction

import (
	"github.com/rtacoustics/raengine/pkg/dsp/filter"
	"github.com/rtacoustics/raengine/pkg/dsp/interpolation"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

const lpfCutoffHz = 1000.0

// LPF is the scalar-gain-times-single-low-pass shadow-zone model.
type LPF struct {
	biquad       *filter.Biquad
	gain, target float32
	fs           float64
}

func NewLPF() *LPF {
	return &LPF{biquad: filter.NewBiquad(1)}
}

func (l *LPF) SetTarget(_ vsource.DiffractionGeometry, shadow bool, fs float64) {
	if l.fs != fs {
		l.fs = fs
		l.biquad.SetLowpass(fs, lpfCutoffHz, 0.707)
	}
	if shadow {
		l.target = 1
	} else {
		l.target = 0
	}
}

func (l *LPF) Process(buf []float32) {
	for i := range buf {
		l.gain = interpolation.Smooth(l.gain, l.target, 0.01)
		buf[i] *= l.gain
	}
	l.biquad.Process(buf, 0)
}

func (l *LPF) Reset() {
	l.gain = 0
	l.biquad.Reset()
}
