// Package iem implements the Image-Edge Model: a background path-search
// engine that enumerates source to listener reflection and diffraction
// paths and publishes per-source virtual-source maps for the audio
// thread to consume.
package iem

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/directivity"
	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// DirectSoundMode selects whether and how the direct source->listener
// path is evaluated.
type DirectSoundMode int

const (
	DirectSoundOff DirectSoundMode = iota
	DirectSoundOn
	DirectSoundForce
)

// Config is the IEM's immutable-except-by-atomic-switch configuration.
type Config struct {
	DirectSoundMode          DirectSoundMode
	ReflectionOrder          int
	SpecularDiffractionOrder int
	LateReverb               bool
	MinEdgeLength            float64
	NumReverbDirections      int
	DiffractionModel         diffmodel.Model
}

// coerced returns cfg with SpecularDiffractionOrder clamped to zero when
// the active diffraction model does not support combined chains.
func (c Config) coerced() Config {
	if !diffmodel.SupportsCombinedOrder(c.DiffractionModel) {
		c.SpecularDiffractionOrder = 0
	}
	return c
}

// SourcePose is one source's snapshot-time state. Directivity does not
// affect path search; it rides along so callers can recover a source's
// current pattern from the published state without keeping a separate
// side table.
type SourcePose struct {
	ID          uint32
	Position    geomath.Vec3
	Orientation geomath.Quat
	Directivity directivity.Pattern
}

// Publication is what one IEM tick hands the audio thread for a single
// source: its fresh VS descriptor set plus the shared late-reverb feed.
type Publication struct {
	SourceID uint32
	VSources map[string]vsource.Descriptor
	Reverb   []ReverbFeed
}

// Engine owns the background search loop. It reads room topology via
// Snapshot and a caller-maintained source list, and publishes results
// through a callback rather than owning the audio-side VS maps directly.
type Engine struct {
	room *room.Room

	cfgMu sync.RWMutex
	cfg   Config

	stateMu  sync.RWMutex
	listener geomath.Vec3
	sources  map[uint32]SourcePose

	publish func(Publication)

	logger *log.Logger

	tickPeriod time.Duration
}

// NewEngine creates an IEM bound to a room, with the given initial
// configuration. publish is called once per source per tick, each call
// also carrying the shared reverb feed batch in Publication.Reverb, from
// the background goroutine; it must not block.
func NewEngine(r *room.Room, cfg Config, publish func(Publication)) *Engine {
	return &Engine{
		room:       r,
		cfg:        cfg,
		sources:    make(map[uint32]SourcePose),
		publish:    publish,
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "iem"}),
		tickPeriod: 5 * time.Millisecond,
	}
}

// SetConfig atomically swaps the IEM configuration.
func (e *Engine) SetConfig(cfg Config) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	e.cfg = cfg
}

// Config returns the currently configured (uncoerced) search parameters,
// for callers that need to read-modify-write a single field.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg.coerced()
}

// SetListenerPose updates the listener position consulted by the next
// tick; that tick refreshes every plane's cached listener-side flag.
func (e *Engine) SetListenerPose(pos geomath.Vec3, orient geomath.Quat) {
	e.stateMu.Lock()
	e.listener = pos
	e.stateMu.Unlock()
}

// UpsertSource adds or updates a source's pose.
func (e *Engine) UpsertSource(s SourcePose) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.sources[s.ID] = s
}

// RemoveSource drops a source from the search set. The caller (source
// manager) is responsible for fading out and reclaiming any VS the
// source still owns.
func (e *Engine) RemoveSource(id uint32) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	delete(e.sources, id)
}

func (e *Engine) snapshotSources() (geomath.Vec3, []SourcePose) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	out := make([]SourcePose, 0, len(e.sources))
	for _, s := range e.sources {
		out = append(out, s)
	}
	return e.listener, out
}

// Run polls the room's change flag, the listener position and the source
// poses, and ticks the search whenever any of them has changed since the
// last tick, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tickPeriod)
	defer ticker.Stop()
	var lastListener geomath.Vec3
	lastSources := map[uint32]SourcePose{}
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("iem thread stopping")
			return
		case <-ticker.C:
			listener, sources := e.snapshotSources()
			moved := listener != lastListener || len(sources) != len(lastSources)
			for _, s := range sources {
				if prev, ok := lastSources[s.ID]; !ok || prev != s {
					moved = true
				}
			}
			if e.room.HasChanged() || moved {
				lastListener = listener
				lastSources = make(map[uint32]SourcePose, len(sources))
				for _, s := range sources {
					lastSources[s.ID] = s
				}
				e.Tick()
			}
		}
	}
}

// Tick runs one full search pass over every tracked source and the
// late-reverb feed, publishing a result per source.
func (e *Engine) Tick() {
	cfg := e.config()
	snap := e.room.Snapshot()
	listener, sources := e.snapshotSources()

	for _, p := range snap.Planes {
		p.UpdateListenerSide(listener)
	}

	var reverb []ReverbFeed
	if cfg.LateReverb {
		reverb = searchReverbFeed(snap, listener, cfg.NumReverbDirections, snapNumBands(snap))
	}

	for _, src := range sources {
		descs := e.searchSource(snap, cfg, src, listener)
		m := make(map[string]vsource.Descriptor, len(descs))
		for _, d := range descs {
			m[d.Key] = d
		}
		e.publish(Publication{SourceID: src.ID, VSources: m, Reverb: reverb})
	}
}

func (e *Engine) searchSource(snap room.Snapshot, cfg Config, src SourcePose, listener geomath.Vec3) []vsource.Descriptor {
	numBands := snapNumBands(snap)
	out := searchReflections(snap, cfg, src.Position, listener, numBands)
	out = append(out, searchDiffraction(snap, cfg, src.Position, listener, numBands)...)
	return out
}

// snapNumBands recovers the absorption band count from any wall in the
// snapshot (0 if the room currently has none, in which case there is
// nothing to search anyway).
func snapNumBands(snap room.Snapshot) int {
	for _, w := range snap.Walls {
		return len(w.Reflectance)
	}
	return 0
}
