package iem

import (
	"math"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/room"
)

// ReverbFeed is the per-direction absorption the FDN's reverb-source
// reflection filters use.
type ReverbFeed struct {
	Direction  geomath.Vec3
	Absorption []float64 // per band, 1-r^2 of the nearest wall hit along Direction; zero if none
}

const reverbRayLength = 1000.0

// searchReverbFeed ray-casts from the listener along n fixed directions
// and records the absorption of the nearest wall hit along each,
// whichever way that wall faces.
func searchReverbFeed(snap room.Snapshot, listener geomath.Vec3, n, numBands int) []ReverbFeed {
	dirs := geomath.Polyhedron(n)
	out := make([]ReverbFeed, len(dirs))

	for i, dir := range dirs {
		out[i] = ReverbFeed{Direction: dir, Absorption: make([]float64, numBands)}
		far := listener.Add(dir.Scale(reverbRayLength))

		bestT := math.Inf(1)
		var bestWall *room.Wall
		for _, p := range snap.Planes {
			point, onSeg, ok := planeLineIntersect(p.Normal, p.Offset, listener, far)
			if !ok || !onSeg {
				continue
			}
			t := listener.Distance(point)
			if t >= bestT || t < 1e-6 {
				continue
			}
			w := wallInPlaneContaining(snap, p, point)
			if w == nil {
				continue
			}
			bestT = t
			bestWall = w
		}
		if bestWall == nil {
			continue
		}
		for b, r := range bestWall.Reflectance {
			if b < numBands {
				out[i].Absorption[b] = 1 - r*r
			}
		}
	}
	return out
}
