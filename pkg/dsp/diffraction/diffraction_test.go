package diffraction

import (
	"testing"

	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/vsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGeometry(shadow bool) vsource.DiffractionGeometry {
	deviation := 1.0
	if shadow {
		deviation = 4.0
	}
	return vsource.DiffractionGeometry{
		ThetaWedge:  4.5,
		ZWidth:      6,
		RS:          2,
		RL:          3,
		ZS:          1,
		ZL:          4,
		ThetaS:      1.2,
		ThetaL:      2.1,
		DS:          2.5,
		DL:          3.6,
		ZApex:       2.4,
		PhiApex:     1.0,
		Bisector:    -0.45,
		Deviation:   deviation,
		Shadow:      shadow,
		ValidApex:   true,
		ValidThetaS: true,
		ValidThetaL: true,
	}
}

func runsWithoutNaN(t *testing.T, f Filter) {
	t.Helper()
	f.SetTarget(sampleGeometry(true), true, 48000)
	buf := make([]float32, 256)
	buf[0] = 1
	for i := 0; i < 8; i++ {
		f.Process(buf)
	}
	for _, v := range buf {
		require.False(t, isNaNOrInf(v))
	}
}

func isNaNOrInf(v float32) bool {
	return v != v || v > 1e9 || v < -1e9
}

func TestAllModels_ProduceFiniteOutput(t *testing.T) {
	for _, m := range []diffmodel.Model{
		diffmodel.Attenuate, diffmodel.LPF, diffmodel.UDFA, diffmodel.UDFAI,
		diffmodel.NNBest, diffmodel.NNSmall, diffmodel.UTD, diffmodel.BTM,
	} {
		t.Run(m.String(), func(t *testing.T) {
			runsWithoutNaN(t, New(m))
		})
	}
}

func TestAttenuate_ZeroGainOutsideShadow(t *testing.T) {
	a := NewAttenuate()
	a.SetTarget(sampleGeometry(false), false, 48000)
	buf := []float32{1, 1, 1, 1}
	for i := 0; i < 200; i++ {
		a.Process(buf)
	}
	for _, v := range buf {
		assert.InDelta(t, 0, v, 1e-3)
	}
}

func TestUDFA_ShadowProducesAttenuation(t *testing.T) {
	u := NewUDFA(false)
	u.SetTarget(sampleGeometry(true), true, 48000)
	buf := make([]float32, 512)
	buf[0] = 1
	for i := 0; i < 20; i++ {
		u.Process(buf)
	}
	var energy float32
	for _, v := range buf {
		energy += v * v
	}
	assert.Less(t, energy, float32(1))
}
