package raengine

import (
	"math"
	"testing"
	"time"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/internal/idpool"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/directivity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		SampleRate:       48000,
		BlockSize:        64,
		NumReverbSources: 4,
		BandCenters:      []float64{250, 1000, 4000},
		NumBands:         3,
		RoomDimensions:   [3]float64{5, 4, 3},
	}
}

func shoebox(t *testing.T, e *Engine) {
	t.Helper()
	abs := []float64{0.5, 0.5, 0.5}
	_, err := e.AddWall([3]geomath.Vec3{{X: -2, Y: -2, Z: -2}, {X: 2, Y: -2, Z: -2}, {X: 2, Y: 2, Z: -2}}, abs)
	require.NoError(t, err)
	_, err = e.AddWall([3]geomath.Vec3{{X: -2, Y: -2, Z: 2}, {X: 2, Y: 2, Z: 2}, {X: 2, Y: -2, Z: 2}}, abs)
	require.NoError(t, err)
}

func TestNew_SnapsReverbSourceCount(t *testing.T) {
	cfg := testConfig()
	cfg.NumReverbSources = 5
	e := New(cfg)
	assert.Equal(t, 4, e.cfg.NumReverbSources)
}

func TestEngine_InitAdvanceExitProducesFiniteOutput(t *testing.T) {
	e := New(testConfig())
	require.NoError(t, e.Init())
	defer e.Exit()

	shoebox(t, e)
	e.SetListenerPose(geomath.Vec3{}, geomath.IdentityQuat)
	e.UpsertSource(1, geomath.Vec3{Z: 1}, geomath.IdentityQuat, directivity.Omni)

	input := make([]float32, 64)
	input[0] = 1
	outL := make([]float32, 64)
	outR := make([]float32, 64)

	for i := 0; i < 50; i++ {
		require.NoError(t, e.SubmitAudio(1, input))
		e.Advance()
		e.GetOutput(outL, outR)
		for j := range input {
			input[j] = 0
		}
	}

	for _, v := range outL {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
	for _, v := range outR {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
}

func TestEngine_SetDiffractionModelDoesNotPanic(t *testing.T) {
	e := New(testConfig())
	e.UpsertSource(1, geomath.Vec3{Z: 1}, geomath.IdentityQuat, directivity.Omni)
	for _, m := range []diffmodel.Model{diffmodel.Attenuate, diffmodel.LPF, diffmodel.UDFA, diffmodel.BTM} {
		assert.NotPanics(t, func() { e.SetDiffractionModel(m) })
	}
}

func TestEngine_RemoveSourceIsReclaimedOnceIdle(t *testing.T) {
	e := New(testConfig())
	e.SetListenerPose(geomath.Vec3{}, geomath.IdentityQuat)
	e.UpsertSource(1, geomath.Vec3{Z: 1}, geomath.IdentityQuat, directivity.Omni)

	input := make([]float32, 64)
	for i := 0; i < 5; i++ {
		e.Advance()
	}

	e.RemoveSource(1)
	for i := 0; i < 2000; i++ {
		require.NoError(t, e.SubmitAudio(1, input))
		e.Advance()
	}

	e.sourcesMu.RLock()
	ss := e.sources[1]
	e.sourcesMu.RUnlock()
	assert.Nil(t, ss, "a removed source with no live voices should be reclaimed, not kept around forever")
}

func TestEngine_InitSourceRecyclesIDAfterCooldown(t *testing.T) {
	e := New(testConfig())
	e.SetListenerPose(geomath.Vec3{}, geomath.IdentityQuat)

	first := e.InitSource()
	e.UpsertSource(first, geomath.Vec3{Z: 1}, geomath.IdentityQuat, directivity.Omni)
	e.RemoveSource(first)
	e.Advance() // graph has no voices yet, so it reclaims immediately

	e.sourceIDs.SetClock(func() time.Time { return time.Now().Add(idpool.DefaultCooldown + time.Second) })
	second := e.InitSource()
	assert.Equal(t, first, second, "a cooldown-expired source id should be reissued before a fresh one is minted")
}

func TestEngine_ImpulseResponseModeArmsSingleImpulse(t *testing.T) {
	e := New(testConfig())
	e.SetListenerPose(geomath.Vec3{}, geomath.IdentityQuat)
	e.UpsertSource(1, geomath.Vec3{Z: 1}, geomath.IdentityQuat, directivity.Omni)
	e.SetImpulseResponseMode(true)
	assert.True(t, e.irArmed)

	outL := make([]float32, 64)
	outR := make([]float32, 64)
	e.Advance()
	e.GetOutput(outL, outR)
	assert.False(t, e.irArmed)
}
