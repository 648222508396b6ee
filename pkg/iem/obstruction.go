package iem

import (
	"math"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/room"
)

// lineRoomObstructed implements "line-room obstruction" : for every plane not in exclude, find the
// plane-line intersection, then test whether any wall belonging to that
// plane contains the intersection point. Returns at the first hit.
// Points within eps of a plane are treated as on the plane, never
// obstructing, by the caller's segment-endpoint construction (apex and
// reflection points always lie exactly on their own plane, which is
// excluded).
func lineRoomObstructed(snap room.Snapshot, a, b geomath.Vec3, exclude map[room.PlaneID]bool) bool {
	for pid, p := range snap.Planes {
		if exclude[pid] {
			continue
		}
		point, onSeg, ok := planeLineIntersect(p.Normal, p.Offset, a, b)
		if !ok || !onSeg {
			continue
		}
		for _, wid := range p.WallIDs {
			w := snap.Walls[wid]
			if w == nil {
				continue
			}
			if w.ContainsPoint(point) {
				return true
			}
		}
	}
	return false
}

// planeLineIntersect intersects the segment [a,b] with the plane (n,d),
// mirroring room.Wall.IntersectPlane but parameterised directly on a
// plane's normal/offset so it can be tried once per plane rather than
// once per wall.
func planeLineIntersect(n geomath.Vec3, d float64, a, b geomath.Vec3) (point geomath.Vec3, onSegment bool, ok bool) {
	dir := b.Sub(a)
	denom := n.Dot(dir)
	if math.Abs(denom) < 1e-12 {
		return geomath.Vec3{}, false, false
	}
	t := (d - n.Dot(a)) / denom
	point = a.Add(dir.Scale(t))
	return point, t >= -1e-9 && t <= 1+1e-9, true
}

// wallInPlaneContaining returns the first wall of plane p whose triangle
// contains point, or nil if none does.
func wallInPlaneContaining(snap room.Snapshot, p *room.Plane, point geomath.Vec3) *room.Wall {
	for _, wid := range p.WallIDs {
		w := snap.Walls[wid]
		if w != nil && w.ContainsPoint(point) {
			return w
		}
	}
	return nil
}
