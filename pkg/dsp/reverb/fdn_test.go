package reverb

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Channels:    8,
		SampleRate:  48000,
		RoomDims:    [3]float64{5, 4, 3},
		BandCenters: []float64{250, 1000, 4000},
		T60:         []float64{0.8, 0.6, 0.4},
		Matrix:      Householder,
		Seed:        1,
	}
}

func TestNew_DelayLengthsAreUniqueAndReasonable(t *testing.T) {
	f := New(testConfig())
	seen := map[int]bool{}
	for _, d := range f.delays {
		seen[d] = true
		ms := float64(d) / 48.0
		assert.Greater(t, ms, 1.0)
		assert.Less(t, ms, 60.0)
	}
	assert.Len(t, seen, len(f.delays))
}

func TestHouseholder_IsOrthogonal(t *testing.T) {
	m := householder(6, rand.New(rand.NewSource(2)))
	for i := range m {
		var normSq float64
		for j := range m[i] {
			normSq += m[i][j] * m[i][j]
		}
		assert.InDelta(t, 1.0, normSq, 1e-9)
	}
	for i := range m {
		for k := i + 1; k < len(m); k++ {
			assert.InDelta(t, 0.0, dotProduct(m[i], m[k]), 1e-9)
		}
	}
}

func TestRandomOrthogonal_ColumnsAreUnitAndOrthogonal(t *testing.T) {
	m := randomOrthogonal(5, rand.New(rand.NewSource(3)))
	cols := make([][]float64, 5)
	for j := 0; j < 5; j++ {
		col := make([]float64, 5)
		for i := 0; i < 5; i++ {
			col[i] = m[i][j]
		}
		assert.InDelta(t, 1.0, dotProduct(col, col), 1e-9)
		cols[j] = col
	}
	for a := 0; a < 5; a++ {
		for b := a + 1; b < 5; b++ {
			assert.InDelta(t, 0.0, dotProduct(cols[a], cols[b]), 1e-9)
		}
	}
}

func TestProcessBlock_ImpulseProducesDecayingTail(t *testing.T) {
	f := New(testConfig())
	n := f.Channels()
	blockSize := 64
	inputs := make([][]float32, n)
	outputs := make([][]float32, n)
	for k := 0; k < n; k++ {
		inputs[k] = make([]float32, blockSize)
		outputs[k] = make([]float32, blockSize)
	}
	inputs[0][0] = 1

	var earlyEnergy, lateEnergy float64
	for block := 0; block < 200; block++ {
		f.ProcessBlock(inputs, outputs)
		for k := 0; k < n; k++ {
			for _, v := range outputs[k] {
				require.False(t, math.IsNaN(float64(v)))
				// The delay lines are 438..711 samples long, so nothing
				// leaves the network before block 7; the first 15 blocks
				// cover every line's first output.
				if block < 15 {
					earlyEnergy += float64(v) * float64(v)
				}
				if block >= 195 {
					lateEnergy += float64(v) * float64(v)
				}
			}
		}
		for k := range inputs {
			inputs[k][0] = 0
		}
	}
	assert.Greater(t, earlyEnergy, lateEnergy)
}

func TestReverbSourceDirections_MatchesRequestedCount(t *testing.T) {
	dirs := ReverbSourceDirections(6)
	assert.Len(t, dirs, 6)
}
