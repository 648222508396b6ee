// Package vsource defines the virtual-source descriptor the IEM emits for
// every enumerated source→(reflection|diffraction)*→listener path, and
// the per-source map that tracks their lifecycle across IEM ticks.
package vsource

import (
	"fmt"
	"strings"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/room"
)

// PathPart is one leg of a virtual-source path: a reflection off a wall
// or a diffraction around an edge.
type PathPart struct {
	Kind room.PathPartKind
	ID   uint32 // plane id for reflection, edge id for diffraction
}

// Key returns the part's contribution to a VS key: "{id}r" or "{id}d".
func (p PathPart) Key() string {
	if p.Kind == room.PathDiffraction {
		return fmt.Sprintf("%dd", p.ID)
	}
	return fmt.Sprintf("%dr", p.ID)
}

// DiffractionGeometry carries the path geometry computed for a
// diffraction leg.
type DiffractionGeometry struct {
	EdgeID                   uint32
	ThetaWedge               float64 // theta_w
	ZWidth                   float64 // z_w, the edge's finite length
	RS, RL                   float64 // radial distances to the edge line
	ZS, ZL                   float64 // axial positions along the edge
	ThetaS, ThetaL           float64 // wedge angles, corrected to [0, theta_w]
	DS, DL                   float64 // straight-line distances to the apex
	ZApex                    float64
	PhiApex                  float64
	Bisector                 float64 // mA
	Deviation                float64 // bA
	Shadow                   bool    // bA > pi
	ValidApex, ValidThetaS, ValidThetaL bool
}

// Valid reports whether all three validity flags hold.
func (g DiffractionGeometry) Valid() bool {
	return g.ValidApex && g.ValidThetaS && g.ValidThetaL
}

// Descriptor is one enumerated path's audible-chain recipe.
type Descriptor struct {
	Key           string
	Parts         []PathPart
	Image         geomath.Vec3
	Absorption    []float64 // per-band accumulated reflectance product, reflections only
	Diffraction   *DiffractionGeometry
	Distance      float64
	FeedsFDN      bool
	FDNChannel    int // valid only when FeedsFDN
	Visible       bool
}

// KeyOf derives the stable string key for a path-part sequence.
func KeyOf(parts []PathPart) string {
	if len(parts) == 0 {
		return "direct"
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Key())
	}
	return b.String()
}

// entryState tracks one VS's gain envelope across the audio thread's diff
// against fresh IEM snapshots.
type entryState int

const (
	stateActive entryState = iota
	stateFadingOut
)

// Entry pairs a descriptor with its audio-thread-owned fade state.
type Entry struct {
	Descriptor Descriptor
	Gain       float64 // current smoothed gain, 0..1
	Target     float64
	state      entryState
}

// FadeEpsilon is the gain threshold below which a fading-out entry is
// eligible for reclamation.
const FadeEpsilon = 1e-4

// Map is the per-source set of live virtual sources, keyed by path
// string. Owned by the audio thread; the IEM never
// mutates it directly, only publishes new Snapshots for the audio thread
// to diff against.
type Map struct {
	entries map[string]*Entry
}

// NewMap creates an empty VS map.
func NewMap() *Map {
	return &Map{entries: make(map[string]*Entry)}
}

// Diff reconciles the map against a freshly published set of descriptors:
// entries absent from fresh start fading out (target 0); entries present
// update geometry in place, retargeting gain to 1; new entries are
// created at gain 0 targeting 1.
func (m *Map) Diff(fresh map[string]Descriptor) {
	for key, e := range m.entries {
		if _, ok := fresh[key]; !ok && e.state != stateFadingOut {
			e.state = stateFadingOut
			e.Target = 0
		}
	}
	for key, d := range fresh {
		if e, ok := m.entries[key]; ok {
			e.Descriptor = d
			e.state = stateActive
			e.Target = 1
		} else {
			m.entries[key] = &Entry{Descriptor: d, Gain: 0, Target: 1, state: stateActive}
		}
	}
}

// AdvanceGains applies one block's worth of linear gain movement (rate is
// the per-block step) and reports which keys are now eligible for
// reclamation.
func (m *Map) AdvanceGains(rate float64) (reclaim []string) {
	for key, e := range m.entries {
		if e.Gain < e.Target {
			e.Gain += rate
			if e.Gain > e.Target {
				e.Gain = e.Target
			}
		} else if e.Gain > e.Target {
			e.Gain -= rate
			if e.Gain < e.Target {
				e.Gain = e.Target
			}
		}
		if e.state == stateFadingOut && e.Gain <= FadeEpsilon {
			reclaim = append(reclaim, key)
		}
	}
	return reclaim
}

// Reclaim removes the given keys from the map (called after the caller
// has released any associated FDN channel).
func (m *Map) Reclaim(keys []string) {
	for _, k := range keys {
		delete(m.entries, k)
	}
}

// Entries returns the live entry set. Callers must not retain the
// returned map across a Diff call.
func (m *Map) Entries() map[string]*Entry {
	return m.entries
}

// Len reports the number of tracked entries, live or fading.
func (m *Map) Len() int { return len(m.entries) }
