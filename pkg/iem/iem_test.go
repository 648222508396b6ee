package iem

import (
	"testing"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backWall() [3]geomath.Vec3 {
	return [3]geomath.Vec3{
		{X: -10, Y: -10, Z: 5},
		{X: 10, Y: 10, Z: 5},
		{X: 10, Y: -10, Z: 5},
	}
}

func baseConfig() Config {
	return Config{
		DirectSoundMode: DirectSoundOn,
		ReflectionOrder: 0,
		MinEdgeLength:   0.01,
	}
}

// Reflection-order 0 with direct sound enabled and no occluders emits
// exactly one VS per source with the direct line's distance.
func TestDirectSound_NoOccluders_EmitsOneVS(t *testing.T) {
	r := New1Band(t)
	source := geomath.Vec3{X: 0, Y: 0, Z: 0}
	listener := geomath.Vec3{X: 3, Y: 0, Z: 0}

	descs := searchReflections(r.Snapshot(), baseConfig(), source, listener, 1)
	require.Len(t, descs, 1)
	assert.Equal(t, "direct", descs[0].Key)
	assert.InDelta(t, 3.0, descs[0].Distance, 1e-9)
	assert.True(t, descs[0].Visible)
}

func TestDirectSound_Off_EmitsNothing(t *testing.T) {
	r := New1Band(t)
	cfg := baseConfig()
	cfg.DirectSoundMode = DirectSoundOff
	descs := searchReflections(r.Snapshot(), cfg, geomath.Vec3{}, geomath.Vec3{X: 1}, 1)
	assert.Len(t, descs, 0)
}

// One plane that both source and listener face produces exactly one
// visible first-order reflection VS.
func TestSingleReflectingWall_EmitsFirstOrderVS(t *testing.T) {
	r := New1Band(t)
	_, err := r.AddWall(backWall(), []float64{0.2})
	require.NoError(t, err)

	source := geomath.Vec3{X: 0, Y: 0, Z: 0}
	listener := geomath.Vec3{X: 3, Y: 0, Z: 0}

	cfg := baseConfig()
	cfg.ReflectionOrder = 1
	snap := r.Snapshot()
	for _, p := range snap.Planes {
		p.UpdateListenerSide(listener)
	}

	descs := searchReflections(snap, cfg, source, listener, 1)
	var reflections int
	for _, d := range descs {
		if d.Key != "direct" {
			reflections++
			assert.True(t, d.Visible)
			assert.Greater(t, d.Distance, listener.Distance(source))
			require.Len(t, d.Absorption, 1)
			assert.InDelta(t, 0.894427191, d.Absorption[0], 1e-6) // reflectance sqrt(1-0.2)
		}
	}
	assert.Equal(t, 1, reflections)
}

// Every visible VS's reconstructed ray sequence has no segment obstructed
// by a non-exempt wall. A wall placed directly between source and
// listener, with no gap, obstructs the direct path entirely.
func TestConservativeIEM_DirectPathObstructed(t *testing.T) {
	r := New1Band(t)
	blocker := [3]geomath.Vec3{
		{X: -10, Y: -10, Z: 1},
		{X: 10, Y: 10, Z: 1},
		{X: 10, Y: -10, Z: 1},
	}
	_, err := r.AddWall(blocker, []float64{0.3})
	require.NoError(t, err)

	source := geomath.Vec3{X: 3, Y: -3, Z: 0}
	listener := geomath.Vec3{X: 3, Y: -3, Z: 2}

	descs := searchReflections(r.Snapshot(), baseConfig(), source, listener, 1)
	assert.Len(t, descs, 0)
}

func TestSearchDiffraction_NinetyDegreeCorner_FindsValidApex(t *testing.T) {
	r := New1Band(t)
	va := [3]geomath.Vec3{
		{X: 0, Y: 0, Z: -5},
		{X: 10, Y: 0, Z: -5},
		{X: 0, Y: 0, Z: 5},
	}
	vb := [3]geomath.Vec3{
		{X: 0, Y: 0, Z: -5},
		{X: 0, Y: 0, Z: 5},
		{X: 0, Y: 10, Z: 5},
	}
	_, err := r.AddWall(va, []float64{0.1})
	require.NoError(t, err)
	_, err = r.AddWall(vb, []float64{0.1})
	require.NoError(t, err)
	r.RecomputeTopology()

	source := geomath.Vec3{X: 5, Y: 3, Z: 0}
	listener := geomath.Vec3{X: -3, Y: 5, Z: 0}

	cfg := baseConfig()
	descs := searchDiffraction(r.Snapshot(), cfg, source, listener, 1)
	require.Len(t, descs, 1)
	require.NotNil(t, descs[0].Diffraction)
	assert.True(t, descs[0].Diffraction.Valid())
	assert.True(t, descs[0].Visible)
}

// New1Band is a small helper constructing an empty single-band room,
// shared across this package's scenario tests.
func New1Band(t *testing.T) *room.Room {
	t.Helper()
	return room.New(1)
}
