package iem

import (
	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// searchDiffraction enumerates first-order diffraction paths, and (for
// models that support it) specular+diffraction chains up to
// SpecularDiffractionOrder reflection legs followed by one diffraction
// leg.
func searchDiffraction(snap room.Snapshot, cfg Config, source, listener geomath.Vec3, numBands int) []vsource.Descriptor {
	var out []vsource.Descriptor

	for eid, e := range snap.Edges {
		if e.Length < cfg.MinEdgeLength {
			continue
		}
		geom := BuildDiffractionGeometry(uint32(eid), e, source, listener)
		if !geom.Valid() {
			continue
		}
		apex := e.Base.Add(e.Tangent.Scale(geom.ZApex))
		excl := planeExclusionFor(snap, e)
		if lineRoomObstructed(snap, source, apex, excl) {
			continue
		}
		if lineRoomObstructed(snap, apex, listener, excl) {
			continue
		}
		geomCopy := geom
		out = append(out, vsource.Descriptor{
			Key:         vsource.KeyOf([]vsource.PathPart{{Kind: room.PathDiffraction, ID: uint32(eid)}}),
			Parts:       []vsource.PathPart{{Kind: room.PathDiffraction, ID: uint32(eid)}},
			Image:       apex,
			Diffraction: &geomCopy,
			Distance:    geom.DS + geom.DL,
			Visible:     true,
			FeedsFDN:    cfg.ReflectionOrder == 0 && cfg.SpecularDiffractionOrder == 0,
		})
	}

	order := cfg.SpecularDiffractionOrder
	if !diffmodel.SupportsCombinedOrder(cfg.DiffractionModel) {
		order = 0
	}
	if order <= 0 {
		return out
	}

	seeds := []reflSeed{{images: []geomath.Vec3{source}, lastPlane: hasNoPlane}}
	for depth := 1; depth <= order; depth++ {
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
				out = append(out, combinedPathsFor(snap, cfg, source, listener, next, numBands)...)
			}
		}
		seeds = nextSeeds
		if len(seeds) == 0 {
			break
		}
	}
	return out
}

// combinedPathsFor appends one diffraction leg to a reflection seed,
// using the seed's latest image as the pseudo-source for the diffraction
// geometry, then unfolds the reflection legs backward from the apex.
func combinedPathsFor(snap room.Snapshot, cfg Config, source, listener geomath.Vec3, seed reflSeed, numBands int) []vsource.Descriptor {
	var out []vsource.Descriptor
	pseudoSource := seed.images[len(seed.images)-1]

	for eid, e := range snap.Edges {
		if e.Length < cfg.MinEdgeLength {
			continue
		}
		geom := BuildDiffractionGeometry(uint32(eid), e, pseudoSource, listener)
		if !geom.Valid() {
			continue
		}
		apex := e.Base.Add(e.Tangent.Scale(geom.ZApex))

		points, walls, ok := unfoldPoints(snap, seed, apex)
		if !ok {
			continue
		}
		excl := planeExclusionFor(snap, e)
		if !pathClear(snap, source, points, seed.planes, apex) {
			continue
		}
		if lineRoomObstructed(snap, apex, listener, excl) {
			continue
		}

		parts := append(append([]vsource.PathPart(nil), seed.parts...), vsource.PathPart{Kind: room.PathDiffraction, ID: uint32(eid)})
		geomCopy := geom
		out = append(out, vsource.Descriptor{
			Key:         vsource.KeyOf(parts),
			Parts:       parts,
			Image:       apex,
			Absorption:  absorptionProduct(walls, numBands),
			Diffraction: &geomCopy,
			Distance:    pathDistance(source, points, apex) + apex.Distance(listener),
			Visible:     true,
			FeedsFDN:    true,
		})
	}
	return out
}

func planeExclusionFor(snap room.Snapshot, e *room.Edge) map[room.PlaneID]bool {
	excl := make(map[room.PlaneID]bool, 2)
	if wa := snap.Walls[e.WallA]; wa != nil {
		excl[wa.PlaneID] = true
	}
	if wb := snap.Walls[e.WallB]; wb != nil {
		excl[wb.PlaneID] = true
	}
	return excl
}
