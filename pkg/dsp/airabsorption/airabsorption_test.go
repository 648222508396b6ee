package airabsorption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_CloseDistancePassesDCThrough(t *testing.T) {
	f := New(48000)
	f.SetDistance(0.01)
	buf := make([]float32, 2000)
	for i := range buf {
		buf[i] = 1
	}
	f.Process(buf)
	assert.InDelta(t, 1.0, buf[len(buf)-1], 0.05)
}

func TestFilter_LongDistanceAttenuatesHighFrequency(t *testing.T) {
	f := New(48000)
	f.SetDistance(500)
	buf := make([]float32, 64)
	buf[0] = 1
	f.Process(buf)
	assert.Less(t, buf[0], float32(1))
}
