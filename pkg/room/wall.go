// Package room maintains the scene's planar-geometry data model: walls,
// the planes they group into, and the edges shared between adjacent
// walls. It is the leaf of the engine's data flow (Room → IEM → VS map →
// audio graph).
package room

import (
	"fmt"
	"math"

	"github.com/rtacoustics/raengine/internal/geomath"
)

// WallID, PlaneID, EdgeID are opaque, pool-issued identifiers (internal/idpool).
type WallID uint32
type PlaneID uint32
type EdgeID uint32

// PathPartKind distinguishes a reflection leg from a diffraction leg in a
// virtual-source path.
type PathPartKind int

const (
	PathReflection PathPartKind = iota
	PathDiffraction
)

// Wall is an oriented triangle with outward unit normal, plane offset,
// area, and per-band reflectance.
type Wall struct {
	ID         WallID
	Vertices   [3]geomath.Vec3
	Normal     geomath.Vec3 // unit length
	Offset     float64      // d = n·v0
	Area       float64
	Reflectance []float64 // r_b = sqrt(1 - a_b), one per band
	PlaneID    PlaneID
	EdgeIDs    []EdgeID
	generation uint64 // bumped on every geometry/absorption update
}

// ErrDegenerateVertices is returned when a wall's three vertices do not
// span a non-degenerate triangle.
var ErrDegenerateVertices = fmt.Errorf("room: degenerate wall vertices")

// ErrBandMismatch is returned when an absorption vector's length does not
// match the room's configured band count.
var ErrBandMismatch = fmt.Errorf("room: absorption vector length mismatch")

// NewWall computes a wall's derived geometry (normal, offset, area) from
// three vertices and a per-band absorption vector. Absorption values are
// clamped to [0,1] before conversion to reflectance.
func NewWall(id WallID, vertices [3]geomath.Vec3, absorption []float64) (*Wall, error) {
	e1 := vertices[1].Sub(vertices[0])
	e2 := vertices[2].Sub(vertices[0])
	cross := e1.Cross(e2)
	area2 := cross.Length()
	if area2 < 1e-12 {
		return nil, ErrDegenerateVertices
	}

	normal := cross.Scale(1.0 / area2)
	w := &Wall{
		ID:          id,
		Vertices:    vertices,
		Normal:      normal,
		Offset:      normal.Dot(vertices[0]),
		Area:        area2 / 2,
		Reflectance: absorptionToReflectance(absorption),
	}
	return w, nil
}

func absorptionToReflectance(absorption []float64) []float64 {
	r := make([]float64, len(absorption))
	for i, a := range absorption {
		if a < 0 {
			a = 0
		} else if a > 1 {
			a = 1
		}
		r[i] = math.Sqrt(1 - a)
	}
	return r
}

// SetAbsorption replaces the wall's per-band absorption in place, deriving
// a fresh reflectance vector. The band count must match the current one.
func (w *Wall) SetAbsorption(absorption []float64) error {
	if len(w.Reflectance) != 0 && len(absorption) != len(w.Reflectance) {
		return ErrBandMismatch
	}
	w.Reflectance = absorptionToReflectance(absorption)
	w.generation++
	return nil
}

// Absorption returns the per-band absorption coefficients derived from
// the stored reflectance (a_b = 1 - r_b^2).
func (w *Wall) Absorption() []float64 {
	a := make([]float64, len(w.Reflectance))
	for i, r := range w.Reflectance {
		a[i] = 1 - r*r
	}
	return a
}

// SetVertices recomputes normal/offset/area from new vertex positions.
func (w *Wall) SetVertices(vertices [3]geomath.Vec3) error {
	fresh, err := NewWall(w.ID, vertices, w.Absorption())
	if err != nil {
		return err
	}
	w.Vertices = fresh.Vertices
	w.Normal = fresh.Normal
	w.Offset = fresh.Offset
	w.Area = fresh.Area
	w.generation++
	return nil
}

// SamePlane reports whether two (normal, offset) pairs describe the same
// plane within numerical tolerance (used when grouping walls into planes
// and when matching edge-discovery candidates).
func SamePlane(nA geomath.Vec3, dA float64, nB geomath.Vec3, dB float64) bool {
	const eps = 1e-6
	return nA.Sub(nB).Length() < eps && math.Abs(dA-dB) < eps
}

// ContainsPoint reports whether point p, known to lie in the wall's
// plane, falls within the wall's triangle (used by line–room obstruction
// tests).
func (w *Wall) ContainsPoint(p geomath.Vec3) bool {
	// Barycentric technique via same-side tests against each edge.
	v0, v1, v2 := w.Vertices[0], w.Vertices[1], w.Vertices[2]
	sign := func(a, b, c geomath.Vec3) float64 {
		return w.Normal.Dot(b.Sub(a).Cross(c.Sub(a)))
	}
	const eps = 1e-9
	d1 := sign(v0, v1, p)
	d2 := sign(v1, v2, p)
	d3 := sign(v2, v0, p)
	hasNeg := d1 < -eps || d2 < -eps || d3 < -eps
	hasPos := d1 > eps || d2 > eps || d3 > eps
	return !(hasNeg && hasPos)
}

// IntersectPlane intersects the infinite line through a and b with the
// wall's plane, returning the intersection point and whether the segment
// [a,b] actually crosses the plane (t in [0,1]).
func (w *Wall) IntersectPlane(a, b geomath.Vec3) (point geomath.Vec3, onSegment bool, ok bool) {
	dir := b.Sub(a)
	denom := w.Normal.Dot(dir)
	if math.Abs(denom) < 1e-12 {
		return geomath.Vec3{}, false, false
	}
	t := (w.Offset - w.Normal.Dot(a)) / denom
	point = a.Add(dir.Scale(t))
	return point, t >= -1e-9 && t <= 1+1e-9, true
}
