package eq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascade_ConvergesToFlatTarget(t *testing.T) {
	c := NewCascade([]float64{250, 1000, 4000}, 48000)
	c.SetTargetBandGainsDB([]float64{0, 0, 0})
	buf := make([]float32, 64)
	buf[0] = 1
	for i := 0; i < 500; i++ {
		c.Process(buf)
	}
	require.True(t, c.atTarget())
}

func TestCascade_HandlesNonFlatTargetWithoutBlowingUp(t *testing.T) {
	c := NewCascade([]float64{250, 1000, 4000}, 48000)
	c.SetTargetBandGainsDB([]float64{-6, -2, -10})
	buf := make([]float32, 256)
	buf[0] = 1
	for i := 0; i < 10; i++ {
		c.Process(buf)
		for _, v := range buf {
			assert.False(t, v != v, "NaN in output")
		}
	}
}
