package room

import (
	"math"
	"sync"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/internal/idpool"
)

// ReverbFormula selects the predicted-T60 model.
type ReverbFormula int

const (
	FormulaSabine ReverbFormula = iota
	FormulaEyring
	FormulaCustom
)

const speedOfSound = 343.0

// Room owns the wall/plane/edge tables and the lock hierarchy that
// protects them: wall -> plane -> edge, plane and edge never held
// simultaneously.
type Room struct {
	mu sync.RWMutex // guards walls map and wall->plane/edge bookkeeping

	planeMu sync.RWMutex
	edgeMu  sync.RWMutex

	walls  map[WallID]*Wall
	planes map[PlaneID]*Plane
	edges  map[EdgeID]*Edge

	wallIDs  *idpool.Pool
	planeIDs *idpool.Pool
	edgeIDs  *idpool.Pool

	numBands int

	volume     float64
	dimensions geomath.Vec3
	formula    ReverbFormula
	customT60  []float64

	changed bool // set on any topology-affecting mutation; consulted by the IEM tick
}

// New creates an empty room configured for numBands absorption bands.
func New(numBands int) *Room {
	return &Room{
		walls:    make(map[WallID]*Wall),
		planes:   make(map[PlaneID]*Plane),
		edges:    make(map[EdgeID]*Edge),
		wallIDs:  idpool.New(),
		planeIDs: idpool.New(),
		edgeIDs:  idpool.New(),
		numBands: numBands,
	}
}

// HasChanged reports and clears the "scene changed since last check" flag
// the IEM thread polls to avoid ticking more often than necessary.
func (r *Room) HasChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.changed
	r.changed = false
	return c
}

func (r *Room) markChanged() { r.changed = true }

// AddWall validates and inserts a new wall, assigning it to an existing
// plane with matching (normal, offset) or creating a new one.
func (r *Room) AddWall(vertices [3]geomath.Vec3, absorption []float64) (WallID, error) {
	if len(absorption) != r.numBands {
		return 0, ErrBandMismatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := WallID(r.wallIDs.Acquire())
	w, err := NewWall(id, vertices, absorption)
	if err != nil {
		r.wallIDs.Release(uint32(id))
		return 0, err
	}
	r.walls[id] = w
	r.attachToPlane(w)
	r.markChanged()
	return id, nil
}

// attachToPlane must be called with r.mu held.
func (r *Room) attachToPlane(w *Wall) {
	r.planeMu.Lock()
	defer r.planeMu.Unlock()

	for _, p := range r.planes {
		if SamePlane(w.Normal, w.Offset, p.Normal, p.Offset) {
			p.addWall(w.ID)
			w.PlaneID = p.ID
			return
		}
	}
	id := PlaneID(r.planeIDs.Acquire())
	p := newPlane(id, w.Normal, w.Offset)
	p.addWall(w.ID)
	r.planes[id] = p
	w.PlaneID = id
}

// detachFromPlane must be called with r.mu held. Retires the plane id
// (with cooldown, via the pool) if it becomes empty.
func (r *Room) detachFromPlane(w *Wall) {
	r.planeMu.Lock()
	defer r.planeMu.Unlock()

	p, ok := r.planes[w.PlaneID]
	if !ok {
		return
	}
	p.removeWall(w.ID)
	if p.empty() {
		delete(r.planes, p.ID)
		r.planeIDs.Release(uint32(p.ID))
	}
}

// UpdateWall replaces a wall's vertices, re-attaching it to a new plane
// if (normal, offset) changed.
func (r *Room) UpdateWall(id WallID, vertices [3]geomath.Vec3) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.walls[id]
	if !ok {
		return nil // unknown id: ignored silently
	}
	oldN, oldD := w.Normal, w.Offset
	if err := w.SetVertices(vertices); err != nil {
		return err
	}
	if !SamePlane(oldN, oldD, w.Normal, w.Offset) {
		r.detachFromPlane(w)
		r.attachToPlane(w)
		r.retireWallEdges(w)
	}
	r.markChanged()
	return nil
}

// UpdateWallAbsorption replaces a wall's per-band absorption.
func (r *Room) UpdateWallAbsorption(id WallID, absorption []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.walls[id]
	if !ok {
		return nil
	}
	if err := w.SetAbsorption(absorption); err != nil {
		return err
	}
	r.markChanged()
	return nil
}

// RemoveWall retires a wall's edges, detaches it from its plane, and
// frees its id.
func (r *Room) RemoveWall(id WallID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.walls[id]
	if !ok {
		return
	}
	r.retireWallEdges(w)
	r.detachFromPlane(w)
	delete(r.walls, id)
	r.wallIDs.Release(uint32(id))
	r.markChanged()
}

// retireWallEdges must be called with r.mu held.
func (r *Room) retireWallEdges(w *Wall) {
	r.edgeMu.Lock()
	defer r.edgeMu.Unlock()
	for _, eid := range w.EdgeIDs {
		delete(r.edges, eid)
		r.edgeIDs.Release(uint32(eid))
	}
	w.EdgeIDs = nil
}

// RecomputeTopology re-derives every edge in the room: it drops all
// existing edges and runs edge discovery over every pair of walls.
func (r *Room) RecomputeTopology() {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*Wall, 0, len(r.walls))
	for _, w := range r.walls {
		all = append(all, w)
	}

	r.edgeMu.Lock()
	r.edges = make(map[EdgeID]*Edge)
	r.edgeMu.Unlock()
	for _, w := range all {
		w.EdgeIDs = nil
	}

	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			edge, ok := discoverEdge(0, a, b)
			if !ok {
				continue
			}
			if edge.CoplanarOccluded(all, r.lineObstructed) {
				continue
			}
			id := EdgeID(r.edgeIDs.Acquire())
			edge.ID = id
			r.edgeMu.Lock()
			r.edges[id] = edge
			r.edgeMu.Unlock()
			a.EdgeIDs = append(a.EdgeIDs, id)
			b.EdgeIDs = append(b.EdgeIDs, id)
		}
	}
	r.markChanged()
}

// lineObstructed is the room-local obstruction primitive edge discovery
// uses to test coplanar occlusion; it intentionally excludes the segment
// endpoints' own walls by virtue of being called only against "other"
// walls in CoplanarOccluded.
func (r *Room) lineObstructed(a, b geomath.Vec3, exclude []PlaneID) bool {
	excluded := func(id PlaneID) bool {
		for _, e := range exclude {
			if e == id {
				return true
			}
		}
		return false
	}
	for _, p := range r.planes {
		if excluded(p.ID) {
			continue
		}
		for _, wid := range p.WallIDs {
			w := r.walls[wid]
			if w == nil {
				continue
			}
			point, onSeg, ok := w.IntersectPlane(a, b)
			if !ok || !onSeg {
				continue
			}
			if w.ContainsPoint(point) {
				return true
			}
		}
	}
	return false
}

// LineObstructed exposes the line-room obstruction primitive to the IEM,
// holding the appropriate read locks.
func (r *Room) LineObstructed(a, b geomath.Vec3, exclude []PlaneID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lineObstructed(a, b, exclude)
}

// Snapshot returns copies of the current planes, walls, and edges for the
// IEM to search against without holding the room locks.
type Snapshot struct {
	Walls  map[WallID]*Wall
	Planes map[PlaneID]*Plane
	Edges  map[EdgeID]*Edge
}

func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	r.planeMu.RLock()
	r.edgeMu.RLock()
	defer r.edgeMu.RUnlock()
	defer r.planeMu.RUnlock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Walls:  make(map[WallID]*Wall, len(r.walls)),
		Planes: make(map[PlaneID]*Plane, len(r.planes)),
		Edges:  make(map[EdgeID]*Edge, len(r.edges)),
	}
	for k, v := range r.walls {
		cp := *v
		snap.Walls[k] = &cp
	}
	for k, v := range r.planes {
		cp := *v
		snap.Planes[k] = &cp
	}
	for k, v := range r.edges {
		cp := *v
		snap.Edges[k] = &cp
	}
	return snap
}

// SetReverbFormula selects Sabine, Eyring, or Custom.
func (r *Room) SetReverbFormula(f ReverbFormula) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formula = f
}

// SetReverbTime sets the per-band T60 used when formula == Custom.
func (r *Room) SetReverbTime(t60 []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customT60 = append([]float64(nil), t60...)
}

// UpdateRoom sets the volume and dimensions used by T60 prediction and by
// the FDN's delay-length derivation.
func (r *Room) UpdateRoom(volume float64, dimensions geomath.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = volume
	r.dimensions = dimensions
}

// Dimensions returns the current room dimensions.
func (r *Room) Dimensions() geomath.Vec3 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimensions
}

// PredictedT60 computes the per-band predicted reverberation time. Returns a zero vector if volume <= 0 or the
// formula is Custom (callers wanting custom T60 should read it directly
// via CustomT60).
func (r *Room) PredictedT60() []float64 {
	r.mu.RLock()
	volume := r.volume
	formula := r.formula
	r.mu.RUnlock()

	out := make([]float64, r.numBands)
	if volume <= 0 || formula == FormulaCustom {
		return out
	}

	snap := r.Snapshot()
	totalSurface := 0.0
	absorptionByBand := make([]float64, r.numBands)
	for _, w := range snap.Walls {
		totalSurface += w.Area
		for b, r_ := range w.Reflectance {
			absorptionByBand[b] += w.Area * (1 - r_*r_)
		}
	}

	for b := 0; b < r.numBands; b++ {
		a := absorptionByBand[b]
		if a <= 0 {
			continue
		}
		switch formula {
		case FormulaSabine:
			out[b] = (24 * math.Ln10 / speedOfSound) * volume / a
		case FormulaEyring:
			if totalSurface <= 0 {
				continue
			}
			avgAbs := a / totalSurface
			if avgAbs >= 1 {
				continue
			}
			denom := totalSurface * math.Log(1-avgAbs)
			if denom >= 0 {
				continue
			}
			out[b] = -(24 * math.Ln10 / speedOfSound) * volume / denom
		}
		if out[b] < 0 || math.IsNaN(out[b]) || math.IsInf(out[b], 0) {
			out[b] = 0
		}
	}
	return out
}

// CustomT60 returns the user-set T60 vector for FormulaCustom.
func (r *Room) CustomT60() []float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]float64(nil), r.customT60...)
}

// NumBands returns the configured absorption-band count.
func (r *Room) NumBands() int { return r.numBands }
