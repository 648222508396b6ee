package room

import (
	"math"
	"testing"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func square(y float64) [3]geomath.Vec3 {
	return [3]geomath.Vec3{
		{X: -1, Y: y, Z: -1},
		{X: 1, Y: y, Z: -1},
		{X: 1, Y: y, Z: 1},
	}
}

func TestAddWall_UnitNormalAndOffsetInvariant(t *testing.T) {
	r := New(3)
	id, err := r.AddWall(square(-1), []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)

	snap := r.Snapshot()
	w := snap.Walls[id]
	require.NotNil(t, w)
	assert.InDelta(t, 1.0, w.Normal.Length(), 1e-9)
	assert.InDelta(t, 0, w.Normal.Dot(w.Vertices[0])-w.Offset, 1e-9)
	for _, rb := range w.Reflectance {
		assert.GreaterOrEqual(t, rb, 0.0)
		assert.LessOrEqual(t, rb, 1.0)
	}
}

func TestAddWall_DegenerateRejected(t *testing.T) {
	r := New(1)
	degenerate := [3]geomath.Vec3{{X: 0}, {X: 1}, {X: 2}} // colinear
	_, err := r.AddWall(degenerate, []float64{0.1})
	assert.ErrorIs(t, err, ErrDegenerateVertices)
}

func TestPlaneCohesion(t *testing.T) {
	r := New(1)
	_, err := r.AddWall(square(-1), []float64{0.2})
	require.NoError(t, err)
	_, err = r.AddWall([3]geomath.Vec3{{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}}, []float64{0.2})
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap.Planes, 1)
	for _, p := range snap.Planes {
		for _, wid := range p.WallIDs {
			w := snap.Walls[wid]
			assert.Less(t, w.Normal.Sub(p.Normal).Length(), 1e-9)
			assert.InDelta(t, p.Offset, w.Offset, 1e-9)
		}
	}
}

func TestRemoveWall_RetiresPlaneWhenEmpty(t *testing.T) {
	r := New(1)
	id, err := r.AddWall(square(-1), []float64{0.2})
	require.NoError(t, err)
	require.Len(t, r.Snapshot().Planes, 1)

	r.RemoveWall(id)
	assert.Len(t, r.Snapshot().Walls, 0)
	assert.Len(t, r.Snapshot().Planes, 0)
}

func TestPredictedT60_Sabine_CubicRoom(t *testing.T) {
	// 10m cubic room, alpha=0.2 uniform -> T60 ~= 1.34s
	r := New(1)
	abs := []float64{0.2}
	half := 5.0
	faces := [][3]geomath.Vec3{
		{{X: -half, Y: -half, Z: -half}, {X: half, Y: -half, Z: -half}, {X: half, Y: half, Z: -half}},
		{{X: -half, Y: -half, Z: -half}, {X: half, Y: half, Z: -half}, {X: -half, Y: half, Z: -half}},
	}
	// Scale area up by tiling isn't necessary for T60 math validity; use a
	// single large-area wall approximation per face via a bigger triangle pair
	// that covers each 10x10 face exactly twice (two triangles per face x 6 faces).
	_ = faces

	totalArea := 6 * 100.0 // m^2
	totalAbsorption := totalArea * abs[0]
	volume := 1000.0
	expected := (24 * math.Ln10 / 343.0) * volume / totalAbsorption

	// Build the room directly from synthetic walls whose total area sums to 600.
	r2 := New(1)
	r2.UpdateRoom(volume, geomath.Vec3{X: 10, Y: 10, Z: 10})
	r2.SetReverbFormula(FormulaSabine)
	// 6 faces, each split into 2 triangles of area 50.
	addBoxFace(t, r2, abs)

	got := r2.PredictedT60()
	require.Len(t, got, 1)
	assert.InDelta(t, expected, got[0], expected*0.05)
	_ = r
}

// addBoxFace adds a closed 10x10x10 box (12 triangles) with the given
// uniform per-band absorption.
func addBoxFace(t *testing.T, r *Room, abs []float64) {
	t.Helper()
	h := 5.0
	corners := map[string]geomath.Vec3{
		"000": {X: -h, Y: -h, Z: -h}, "100": {X: h, Y: -h, Z: -h},
		"010": {X: -h, Y: h, Z: -h}, "110": {X: h, Y: h, Z: -h},
		"001": {X: -h, Y: -h, Z: h}, "101": {X: h, Y: -h, Z: h},
		"011": {X: -h, Y: h, Z: h}, "111": {X: h, Y: h, Z: h},
	}
	tris := [][3]string{
		{"000", "100", "110"}, {"000", "110", "010"}, // z-
		{"001", "111", "101"}, {"001", "011", "111"}, // z+
		{"000", "011", "001"}, {"000", "010", "011"}, // x-
		{"100", "101", "111"}, {"100", "111", "110"}, // x+
		{"000", "101", "100"}, {"000", "001", "101"}, // y-
		{"010", "110", "111"}, {"010", "111", "011"}, // y+
	}
	for _, tri := range tris {
		v := [3]geomath.Vec3{corners[tri[0]], corners[tri[1]], corners[tri[2]]}
		_, err := r.AddWall(v, abs)
		require.NoError(t, err)
	}
}

func TestPredictedT60_ZeroVolume(t *testing.T) {
	r := New(1)
	r.SetReverbFormula(FormulaSabine)
	r.UpdateRoom(0, geomath.Vec3{})
	got := r.PredictedT60()
	assert.Equal(t, []float64{0}, got)
}

func TestAbsorptionBounds_Rapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(-1, 2).Draw(t, "absorption")
		r := New(1)
		id, err := r.AddWall(square(-1), []float64{a})
		require.NoError(t, err)
		w := r.Snapshot().Walls[id]
		for _, v := range w.Absorption() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})
}
