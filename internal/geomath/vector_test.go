package geomath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestReflectAcrossPlane_Involution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := Vec3{
			X: rapid.Float64Range(-1, 1).Draw(t, "nx"),
			Y: rapid.Float64Range(-1, 1).Draw(t, "ny"),
			Z: rapid.Float64Range(-1, 1).Draw(t, "nz"),
		}.Normalized()
		if n.Length() < 0.5 {
			return
		}
		d := rapid.Float64Range(-10, 10).Draw(t, "d")
		p := Vec3{
			X: rapid.Float64Range(-100, 100).Draw(t, "px"),
			Y: rapid.Float64Range(-100, 100).Draw(t, "py"),
			Z: rapid.Float64Range(-100, 100).Draw(t, "pz"),
		}

		reflected := ReflectAcrossPlane(p, n, d)
		back := ReflectAcrossPlane(reflected, n, d)

		assert.InDeltaf(t, p.X, back.X, 1e-6, "reflecting twice must be identity")
		assert.InDeltaf(t, p.Y, back.Y, 1e-6, "reflecting twice must be identity")
		assert.InDeltaf(t, p.Z, back.Z, 1e-6, "reflecting twice must be identity")

		// Image-source correctness : 2X = S + S_image
		// where X is the point's projection onto the plane.
		distP := SignedDistanceToPlane(p, n, d)
		x := p.Sub(n.Scale(distP))
		mid := p.Add(reflected).Scale(0.5)
		assert.InDeltaf(t, x.X, mid.X, 1e-6, "midpoint of S,S' must lie on the plane")
		assert.InDeltaf(t, x.Y, mid.Y, 1e-6, "midpoint of S,S' must lie on the plane")
		assert.InDeltaf(t, x.Z, mid.Z, 1e-6, "midpoint of S,S' must lie on the plane")
	})
}

func TestNormalized_UnitLength(t *testing.T) {
	v := Vec3{X: 3, Y: 4, Z: 0}
	n := v.Normalized()
	assert.InDelta(t, 1.0, n.Length(), 1e-9)
}

func TestQuatRotate_Identity(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	assert.Equal(t, v, IdentityQuat.Rotate(v))
}

func TestQuatForward_NinetyDegreeYaw(t *testing.T) {
	half := math.Pi / 4
	q := Quat{W: math.Cos(half), Y: math.Sin(half)}.Normalized()
	f := q.Forward()
	assert.InDelta(t, 1.0, f.X, 1e-9)
	assert.InDelta(t, 0.0, f.Z, 1e-9)
}
