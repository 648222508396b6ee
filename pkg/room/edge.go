package room

import (
	"math"

	"github.com/rtacoustics/raengine/internal/geomath"
)

// Edge is an ordered connection between two walls meeting along a shared
// segment, carrying the diffraction-relevant wedge geometry.
type Edge struct {
	ID        EdgeID
	Base, Top geomath.Vec3
	NormalA   geomath.Vec3 // face normal of wall A
	NormalB   geomath.Vec3 // face normal of wall B, ordered so nA->nB sweeps the exterior wedge
	WallA     WallID
	WallB     WallID
	Tangent   geomath.Vec3 // unit vector base->top
	Bisector  geomath.Vec3 // unit sum of face normals (or nA x tangent if anti-parallel)
	WedgeAngle float64     // exterior wedge angle theta_w in (0, 2*pi)
	Length     float64     // z_w
	Mid        geomath.Vec3
	OffsetA    float64 // half-space offset of wall A's plane
	OffsetB    float64 // half-space offset of wall B's plane
}

const planeEps = 1e-6

// discoverEdge attempts to find the shared segment between walls a and b
// and build an Edge describing it. Returns (nil, false) if the walls do
// not share an edge, or if they have the same normal (a flat join).
func discoverEdge(id EdgeID, a, b *Wall) (*Edge, bool) {
	if a.Normal.Sub(b.Normal).Length() < 1e-4 {
		return nil, false
	}
	antiParallel := a.Normal.Add(b.Normal).Length() < 1e-4
	samePlaneUnsigned := math.Abs(math.Abs(a.Offset)-math.Abs(b.Offset)) < 1e-3 ||
		coplanarUnsigned(a, b)

	if antiParallel && samePlaneUnsigned {
		return discoverCoplanarEdge(id, a, b)
	}
	return discoverAngledEdge(id, a, b)
}

// coplanarUnsigned reports whether a and b's planes coincide when normal
// sign is ignored (back-to-back walls sharing the same infinite plane).
func coplanarUnsigned(a, b *Wall) bool {
	nA, dA := a.Normal, a.Offset
	nB, dB := b.Normal.Neg(), -b.Offset
	return geomath.SignedDistanceToPlane(geomath.Vec3{}, nA, dA)-geomath.SignedDistanceToPlane(geomath.Vec3{}, nB, dB) < 1e-6 &&
		nA.Sub(nB).Length() < 1e-4
}

// discoverCoplanarEdge handles two back-to-back, anti-parallel walls:
// scan shared vertex pairs that occur as consecutive winding edges in
// both triangles with opposite winding direction.
func discoverCoplanarEdge(id EdgeID, a, b *Wall) (*Edge, bool) {
	for i := 0; i < 3; i++ {
		av0, av1 := a.Vertices[i], a.Vertices[(i+1)%3]
		for j := 0; j < 3; j++ {
			bv0, bv1 := b.Vertices[j], b.Vertices[(j+1)%3]
			// Opposite winding: a goes av0->av1, b goes bv1->bv0 along the same segment.
			if closeEnough(av0, bv1) && closeEnough(av1, bv0) {
				return buildEdge(id, av0, av1, a, b, true), true
			}
		}
	}
	return nil, false
}

// discoverAngledEdge handles two walls at a genuine dihedral angle: there
// is at most one shared triangle edge, found by matching a vertex and its
// winding-adjacent neighbour in the other triangle.
func discoverAngledEdge(id EdgeID, a, b *Wall) (*Edge, bool) {
	for i := 0; i < 3; i++ {
		av0, av1 := a.Vertices[i], a.Vertices[(i+1)%3]
		for j := 0; j < 3; j++ {
			bv0, bv1 := b.Vertices[j], b.Vertices[(j+1)%3]
			if closeEnough(av0, bv0) && closeEnough(av1, bv1) {
				return orientAngledEdge(id, av0, av1, a, b)
			}
			if closeEnough(av0, bv1) && closeEnough(av1, bv0) {
				return orientAngledEdge(id, av0, av1, a, b)
			}
		}
	}
	return nil, false
}

// orientAngledEdge validates the candidate pair (third vertex of A must
// lie behind B's plane, i.e. interior angle > pi / exterior wedge < pi)
// and swaps (a,b) if needed so the stored normal pair respects
// right-hand-curl from first to second through the exterior wedge.
func orientAngledEdge(id EdgeID, base, top geomath.Vec3, a, b *Wall) (*Edge, bool) {
	thirdA := thirdVertex(a, base, top)
	behind := geomath.SignedDistanceToPlane(thirdA, b.Normal, b.Offset) < 0
	if !behind {
		a, b = b, a
	}

	tangent := top.Sub(base).Normalized()
	cross := a.Normal.Cross(b.Normal)
	if cross.Dot(tangent) < 0 {
		// Orientation wrong way; swap stored order so curl matches tangent.
		a, b = b, a
		cross = a.Normal.Cross(b.Normal)
	}
	return buildEdge(id, base, top, a, b, false), true
}

func thirdVertex(w *Wall, v0, v1 geomath.Vec3) geomath.Vec3 {
	for _, v := range w.Vertices {
		if !closeEnough(v, v0) && !closeEnough(v, v1) {
			return v
		}
	}
	return w.Vertices[0]
}

func buildEdge(id EdgeID, base, top geomath.Vec3, a, b *Wall, antiParallel bool) *Edge {
	tangent := top.Sub(base).Normalized()

	var bisector geomath.Vec3
	var wedge float64
	if antiParallel {
		bisector = a.Normal.Cross(tangent).Normalized()
		wedge = math.Pi
	} else {
		sum := a.Normal.Add(b.Normal)
		if sum.Length() < 1e-9 {
			bisector = a.Normal.Cross(tangent).Normalized()
		} else {
			bisector = sum.Normalized()
		}
		cosTheta := clampUnit(a.Normal.Dot(b.Normal))
		angle := math.Acos(cosTheta)
		sign := a.Normal.Cross(b.Normal).Dot(tangent)
		if sign >= 0 {
			wedge = math.Pi + angle
		} else {
			wedge = math.Pi - angle
		}
	}

	return &Edge{
		ID:         id,
		Base:       base,
		Top:        top,
		NormalA:    a.Normal,
		NormalB:    b.Normal,
		WallA:      a.ID,
		WallB:      b.ID,
		Tangent:    tangent,
		Bisector:   bisector,
		WedgeAngle: wedge,
		Length:     top.Distance(base),
		Mid:        base.Add(top).Scale(0.5),
		OffsetA:    a.Offset,
		OffsetB:    b.Offset,
	}
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func closeEnough(a, b geomath.Vec3) bool {
	return a.Distance(b) < 1e-6
}

// CoplanarOccluded reports whether this edge is blocked by a third wall
// lying in the edge's own plane. obstruct is the same line–room obstruction
// primitive the IEM uses, parameterised here to avoid an import cycle
// between room and iem.
func (e *Edge) CoplanarOccluded(walls []*Wall, obstruct func(a, b geomath.Vec3, exclude []PlaneID) bool) bool {
	probeOffset := e.Bisector.Scale(1e-3)
	sideA := e.Mid.Add(probeOffset)
	sideB := e.Mid.Sub(probeOffset)
	for _, w := range walls {
		if w.ID == e.WallA || w.ID == e.WallB {
			continue
		}
		if math.Abs(geomath.SignedDistanceToPlane(e.Mid, w.Normal, w.Offset)) > planeEps {
			continue
		}
		if obstruct(sideA, sideB, nil) {
			return true
		}
	}
	return false
}
