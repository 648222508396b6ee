package room

import "github.com/rtacoustics/raengine/internal/geomath"

// Plane groups coplanar walls sharing (normal, offset).
type Plane struct {
	ID             PlaneID
	Normal         geomath.Vec3
	Offset         float64
	WallIDs        []WallID
	ListenerSide   bool // cached: listener lies in the n-positive half-space
}

func newPlane(id PlaneID, n geomath.Vec3, d float64) *Plane {
	return &Plane{ID: id, Normal: n, Offset: d}
}

func (p *Plane) addWall(id WallID) {
	for _, w := range p.WallIDs {
		if w == id {
			return
		}
	}
	p.WallIDs = append(p.WallIDs, id)
}

func (p *Plane) removeWall(id WallID) {
	for i, w := range p.WallIDs {
		if w == id {
			p.WallIDs = append(p.WallIDs[:i], p.WallIDs[i+1:]...)
			return
		}
	}
}

func (p *Plane) empty() bool { return len(p.WallIDs) == 0 }

// UpdateListenerSide recomputes the cached listener-side flag.
func (p *Plane) UpdateListenerSide(listener geomath.Vec3) {
	p.ListenerSide = geomath.SignedDistanceToPlane(listener, p.Normal, p.Offset) > 0
}
