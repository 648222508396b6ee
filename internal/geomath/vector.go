// Package geomath provides the 3-vector and quaternion primitives the room
// model and IEM path search are built on. No ecosystem library in the
// retrieval pack models arbitrary Euclidean 3-space (golang/geo targets
// geodetic/spherical coordinates), so this is a deliberate, narrow
// standard-library implementation rather than a dependency.
package geomath

import "math"

// Vec3 is a point or direction in room space, in metres.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Neg() Vec3 { return Vec3{-a.X, -a.Y, -a.Z} }

func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) LengthSq() float64 { return a.Dot(a) }
func (a Vec3) Length() float64   { return math.Sqrt(a.LengthSq()) }

func (a Vec3) Distance(b Vec3) float64 { return a.Sub(b).Length() }

// Normalized returns a unit vector in the same direction, or the zero
// vector if a is (numerically) zero-length.
func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l < 1e-12 {
		return Vec3{}
	}
	return a.Scale(1.0 / l)
}

// Lerp linearly interpolates between a and b by t in [0,1].
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// ReflectAcrossPlane reflects the point p across the plane with unit
// normal n and offset d (n·x = d). Used for image-source construction.
func ReflectAcrossPlane(p Vec3, n Vec3, d float64) Vec3 {
	dist := n.Dot(p) - d
	return p.Sub(n.Scale(2 * dist))
}

// SignedDistanceToPlane returns n·p - d, positive on the normal side.
func SignedDistanceToPlane(p Vec3, n Vec3, d float64) float64 {
	return n.Dot(p) - d
}

// Quat is a unit quaternion representing an orientation, (w, x, y, z).
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat is the no-rotation orientation.
var IdentityQuat = Quat{W: 1}

// Normalized returns a unit-length quaternion.
func (q Quat) Normalized() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n < 1e-12 {
		return IdentityQuat
	}
	inv := 1.0 / n
	return Quat{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// Rotate applies the quaternion's rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	qv := Vec3{q.X, q.Y, q.Z}
	uv := qv.Cross(v)
	uuv := qv.Cross(uv)
	return v.Add(uv.Scale(2 * q.W)).Add(uuv.Scale(2))
}

// Forward returns the +Z axis of the orientation (the listener/source
// look direction convention used throughout the engine).
func (q Quat) Forward() Vec3 {
	return q.Rotate(Vec3{Z: 1})
}

// Polyhedron returns n unit direction vectors taken from the vertex set
// of the smallest listed polyhedron with at least n vertices: tetrahedron
// (4), octahedron (6), cube (8), icosahedron (12) or dodecahedron (20).
// For an n below that set's size the first n vertices are returned, so
// the directions are not evenly spread; no concatenation of smaller sets
// is used. For n above 20 the dodecahedron set is repeated until n
// directions are collected. Used both by the late-reverb absorption feed's ray-casts and
// by the FDN's reverb-source spatialisation.
func Polyhedron(n int) []Vec3 {
	switch {
	case n <= 0:
		return nil
	case n <= 4:
		return tetrahedronVertices()[:n]
	case n <= 6:
		return octahedronVertices()[:n]
	case n <= 8:
		return cubeVertices()[:n]
	case n <= 12:
		return icosahedronVertices()[:n]
	case n <= 20:
		return dodecahedronVertices()[:n]
	default:
		// Concatenate full sets, repeating the finest available tiling.
		out := make([]Vec3, 0, n)
		base := dodecahedronVertices()
		for len(out) < n {
			for _, v := range base {
				if len(out) == n {
					break
				}
				out = append(out, v)
			}
		}
		return out
	}
}

func tetrahedronVertices() []Vec3 {
	return []Vec3{
		{X: 1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: -1},
		{X: -1, Y: 1, Z: -1}, {X: -1, Y: -1, Z: 1},
	}
}

func octahedronVertices() []Vec3 {
	return []Vec3{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
}

func cubeVertices() []Vec3 {
	s := 1.0 / math.Sqrt(3)
	out := make([]Vec3, 0, 8)
	for _, x := range []float64{-s, s} {
		for _, y := range []float64{-s, s} {
			for _, z := range []float64{-s, s} {
				out = append(out, Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

func icosahedronVertices() []Vec3 {
	phi := (1 + math.Sqrt(5)) / 2
	raw := [][3]float64{
		{-1, phi, 0}, {1, phi, 0}, {-1, -phi, 0}, {1, -phi, 0},
		{0, -1, phi}, {0, 1, phi}, {0, -1, -phi}, {0, 1, -phi},
		{phi, 0, -1}, {phi, 0, 1}, {-phi, 0, -1}, {-phi, 0, 1},
	}
	return normalizedSet(raw)
}

func dodecahedronVertices() []Vec3 {
	phi := (1 + math.Sqrt(5)) / 2
	inv := 1 / phi
	raw := [][3]float64{
		{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
		{-1, 1, 1}, {-1, 1, -1}, {-1, -1, 1}, {-1, -1, -1},
		{0, inv, phi}, {0, inv, -phi}, {0, -inv, phi}, {0, -inv, -phi},
		{inv, phi, 0}, {inv, -phi, 0}, {-inv, phi, 0}, {-inv, -phi, 0},
		{phi, 0, inv}, {phi, 0, -inv}, {-phi, 0, inv}, {-phi, 0, -inv},
	}
	return normalizedSet(raw)
}

func normalizedSet(raw [][3]float64) []Vec3 {
	out := make([]Vec3, len(raw))
	for i, r := range raw {
		out[i] = Vec3{X: r[0], Y: r[1], Z: r[2]}.Normalized()
	}
	return out
}
