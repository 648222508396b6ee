package iem

import (
	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// reflSeed is a geometrically valid (but not yet visibility-tested)
// reflection chain under construction: the source reflected successively
// through parts[0..len-1]'s planes.
type reflSeed struct {
	parts     []vsource.PathPart
	planes    []room.PlaneID
	images    []geomath.Vec3 // images[0] = source; images[i+1] = source image after parts[0..i]
	lastPlane room.PlaneID
}

const hasNoPlane = room.PlaneID(0)

// extendSeed reflects the seed's current image across plane p. Source-side
// validity requires the current image sit in front of p; listener-side
// validity requires the listener sit in front of p.
func extendSeed(seed reflSeed, pid room.PlaneID, p *room.Plane) (reflSeed, bool) {
	cur := seed.images[len(seed.images)-1]
	if geomath.SignedDistanceToPlane(cur, p.Normal, p.Offset) <= 1e-9 {
		return reflSeed{}, false
	}
	if !p.ListenerSide {
		return reflSeed{}, false
	}
	img := geomath.ReflectAcrossPlane(cur, p.Normal, p.Offset)
	next := reflSeed{
		parts:     append(append([]vsource.PathPart(nil), seed.parts...), vsource.PathPart{Kind: room.PathReflection, ID: uint32(pid)}),
		planes:    append(append([]room.PlaneID(nil), seed.planes...), pid),
		images:    append(append([]geomath.Vec3(nil), seed.images...), img),
		lastPlane: pid,
	}
	return next, true
}

// unfoldPoints projects backward from target through the seed's plane
// chain to find the actual reflection points and the walls they fall on.
// target is the listener for a pure reflection path, or a diffraction
// apex for a combined specular-diffraction path.
func unfoldPoints(snap room.Snapshot, seed reflSeed, target geomath.Vec3) (points []geomath.Vec3, walls []*room.Wall, ok bool) {
	k := len(seed.parts)
	points = make([]geomath.Vec3, k)
	walls = make([]*room.Wall, k)

	aim := target
	for i := k - 1; i >= 0; i-- {
		p := snap.Planes[seed.planes[i]]
		if p == nil {
			return nil, nil, false
		}
		point, onSeg, intersects := planeLineIntersect(p.Normal, p.Offset, aim, seed.images[i+1])
		if !intersects || !onSeg {
			return nil, nil, false
		}
		w := wallInPlaneContaining(snap, p, point)
		if w == nil {
			return nil, nil, false
		}
		points[i] = point
		walls[i] = w
		aim = point
	}
	return points, walls, true
}

// pathClear tests every segment of the unfolded chain source -> points[0]
// -> ... -> points[k-1] -> target for obstruction, excluding each
// segment's own bounding planes.
func pathClear(snap room.Snapshot, source geomath.Vec3, points []geomath.Vec3, planes []room.PlaneID, target geomath.Vec3) bool {
	k := len(points)
	excludeOf := func(idxs ...int) map[room.PlaneID]bool {
		m := make(map[room.PlaneID]bool, len(idxs))
		for _, i := range idxs {
			if i >= 0 && i < k {
				m[planes[i]] = true
			}
		}
		return m
	}

	if lineRoomObstructed(snap, source, points[0], excludeOf(0)) {
		return false
	}
	for i := 0; i < k-1; i++ {
		if lineRoomObstructed(snap, points[i], points[i+1], excludeOf(i, i+1)) {
			return false
		}
	}
	if lineRoomObstructed(snap, points[k-1], target, excludeOf(k-1)) {
		return false
	}
	return true
}

// pathDistance sums the unfolded chain's segment lengths.
func pathDistance(source geomath.Vec3, points []geomath.Vec3, target geomath.Vec3) float64 {
	total := source.Distance(points[0])
	for i := 0; i < len(points)-1; i++ {
		total += points[i].Distance(points[i+1])
	}
	total += points[len(points)-1].Distance(target)
	return total
}

// absorptionProduct multiplies per-band reflectance across the walls a
// chain reflected from.
func absorptionProduct(walls []*room.Wall, numBands int) []float64 {
	out := make([]float64, numBands)
	for b := range out {
		out[b] = 1
	}
	for _, w := range walls {
		for b, r := range w.Reflectance {
			if b < numBands {
				out[b] *= r
			}
		}
	}
	return out
}

// searchReflections enumerates direct sound and order-1..reflectionOrder
// specular reflection paths for one source. feedsFDN reports, per
// resulting descriptor, whether its order equals reflectionOrder.
func searchReflections(snap room.Snapshot, cfg Config, source, listener geomath.Vec3, numBands int) []vsource.Descriptor {
	var out []vsource.Descriptor

	if cfg.DirectSoundMode != DirectSoundOff {
		visible := cfg.DirectSoundMode == DirectSoundForce || !lineRoomObstructed(snap, source, listener, nil)
		if visible {
			out = append(out, vsource.Descriptor{
				Key:      vsource.KeyOf(nil),
				Image:    source,
				Distance: source.Distance(listener),
				Visible:  true,
			})
		}
	}

	if cfg.ReflectionOrder <= 0 {
		return out
	}

	seeds := []reflSeed{{images: []geomath.Vec3{source}, lastPlane: hasNoPlane}}
	for order := 1; order <= cfg.ReflectionOrder; order++ {
		feedsFDN := order == cfg.ReflectionOrder
		var nextSeeds []reflSeed
		for _, seed := range seeds {
			for pid, p := range snap.Planes {
				if pid == seed.lastPlane {
					continue
				}
				next, ok := extendSeed(seed, pid, p)
				if !ok {
					continue
				}
				nextSeeds = append(nextSeeds, next)

				points, walls, unfolded := unfoldPoints(snap, next, listener)
				if !unfolded {
					continue
				}
				if !pathClear(snap, source, points, next.planes, listener) {
					continue
				}
				out = append(out, vsource.Descriptor{
					Key:        vsource.KeyOf(next.parts),
					Parts:      next.parts,
					Image:      next.images[len(next.images)-1],
					Absorption: absorptionProduct(walls, numBands),
					Distance:   pathDistance(source, points, listener),
					Visible:    true,
					FeedsFDN:   feedsFDN,
				})
			}
		}
		seeds = nextSeeds
		if len(seeds) == 0 {
			break
		}
	}
	return out
}
