package spatial

import (
	"testing"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/stretchr/testify/assert"
)

func straightAheadPose(src geomath.Vec3) Pose {
	return Pose{
		SourcePosition:   src,
		ListenerPosition: geomath.Vec3{},
		ListenerForward:  geomath.Vec3{Z: 1},
		ListenerRight:    geomath.Vec3{X: 1},
	}
}

func TestConstantPowerPan_CentreSourceIsBalanced(t *testing.T) {
	c := NewConstantPowerPan()
	mono := []float32{1, 1, 1, 1}
	outL := make([]float32, 4)
	outR := make([]float32, 4)
	c.Spatialize(mono, straightAheadPose(geomath.Vec3{Z: 3}), outL, outR)
	assert.InDelta(t, outL[0], outR[0], 1e-5)
}

func TestConstantPowerPan_RightSourceFavoursRightChannel(t *testing.T) {
	c := NewConstantPowerPan()
	mono := []float32{1, 1, 1, 1}
	outL := make([]float32, 4)
	outR := make([]float32, 4)
	c.Spatialize(mono, straightAheadPose(geomath.Vec3{X: 3, Z: 1}), outL, outR)
	assert.Greater(t, outR[0], outL[0])
}

func TestConstantPowerPan_ModeNonePassesThrough(t *testing.T) {
	c := NewConstantPowerPan()
	c.SetMode(ModeNone)
	mono := []float32{1, 2, 3}
	outL := make([]float32, 3)
	outR := make([]float32, 3)
	c.Spatialize(mono, straightAheadPose(geomath.Vec3{X: 5}), outL, outR)
	assert.Equal(t, mono, outL)
	assert.Equal(t, mono, outR)
}
