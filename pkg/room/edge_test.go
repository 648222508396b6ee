package room

import (
	"math"
	"testing"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two walls meeting at a right angle along the z axis:
// wall A in the plane y=0 (normal -Y), wall B in the plane x=0 (normal -X),
// sharing the vertical edge at x=0,y=0, z in [-1,1]. Both faces point
// away from the quadrant x>0,y>0, so the exterior wedge is 3*pi/2.
func ninetyDegreeCorner() (a, b [3]geomath.Vec3) {
	a = [3]geomath.Vec3{
		{X: 0, Y: 0, Z: -1},
		{X: 2, Y: 0, Z: -1},
		{X: 0, Y: 0, Z: 1},
	}
	b = [3]geomath.Vec3{
		{X: 0, Y: 0, Z: -1},
		{X: 0, Y: 0, Z: 1},
		{X: 0, Y: 2, Z: 1},
	}
	return
}

func TestRecomputeTopology_DiscoversEdge(t *testing.T) {
	r := New(1)
	va, vb := ninetyDegreeCorner()
	_, err := r.AddWall(va, []float64{0.1})
	require.NoError(t, err)
	_, err = r.AddWall(vb, []float64{0.1})
	require.NoError(t, err)

	r.RecomputeTopology()
	snap := r.Snapshot()
	require.Len(t, snap.Edges, 1)

	for _, e := range snap.Edges {
		assert.InDelta(t, 2.0, e.Length, 1e-9)
		assert.Greater(t, e.WedgeAngle, 0.0)
		assert.Less(t, e.WedgeAngle, 2*math.Pi)
	}
}

func TestEdgeOrientation_ExteriorAngleInRange(t *testing.T) {
	r := New(1)
	va, vb := ninetyDegreeCorner()
	_, _ = r.AddWall(va, []float64{0.1})
	_, _ = r.AddWall(vb, []float64{0.1})
	r.RecomputeTopology()

	for _, e := range r.Snapshot().Edges {
		det := e.NormalA.Cross(e.NormalB).Dot(e.Tangent)
		// exterior wedge < pi (convex corner here) means curl should align with tangent.
		if e.WedgeAngle < math.Pi {
			assert.GreaterOrEqual(t, det, -1e-9)
		}
	}
}

func TestCoplanarWalls_NoEdgeDiscovered(t *testing.T) {
	r := New(1)
	_, _ = r.AddWall(square(-1), []float64{0.1})
	_, _ = r.AddWall([3]geomath.Vec3{{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: 1}, {X: -1, Y: -1, Z: 1}}, []float64{0.1})
	r.RecomputeTopology()
	assert.Len(t, r.Snapshot().Edges, 0)
}
