// Package diffraction implements the eight diffraction DSP variants. The path geometry feeding every variant is
// identical (pkg/iem's DiffractionGeometry); only the filter each model
// builds from it differs.
package diffraction

import (
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// Filter is a per-virtual-source diffraction DSP stage. SetTarget is
// called whenever the IEM republishes geometry for this VS; Process runs
// once per audio block on the VS's mono stream.
type Filter interface {
	SetTarget(geom vsource.DiffractionGeometry, shadow bool, fs float64)
	Process(buf []float32)
	Reset()
}

// New constructs the filter for the given model. Switching model resets
// all per-VS filter state  — callers rebuild rather than mutate.
func New(m diffmodel.Model) Filter {
	switch m {
	case diffmodel.Attenuate:
		return NewAttenuate()
	case diffmodel.LPF:
		return NewLPF()
	case diffmodel.UDFA:
		return NewUDFA(false)
	case diffmodel.UDFAI:
		return NewUDFA(true)
	case diffmodel.NNBest:
		return NewNN(weightsBest)
	case diffmodel.NNSmall:
		return NewNN(weightsSmall)
	case diffmodel.UTD:
		return NewUTD()
	case diffmodel.BTM:
		return NewBTM()
	default:
		return NewAttenuate()
	}
}
