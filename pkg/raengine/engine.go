// Package raengine is the top-level context: it owns the room, the
// background image-edge search thread, the per-source audio graphs, and
// the shared late-reverb network, and exposes the scene-mutation and
// mode-switch surface a host calls from its own threads while the audio
// thread drives SubmitAudio/Advance/GetOutput.
package raengine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/internal/idpool"
	"github.com/rtacoustics/raengine/pkg/audiograph"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/directivity"
	"github.com/rtacoustics/raengine/pkg/dsp/reverb"
	"github.com/rtacoustics/raengine/pkg/iem"
	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/rtacoustics/raengine/pkg/spatial"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// reverbSourceSizes are the channel counts New snaps
// Config.NumReverbSources to.
var reverbSourceSizes = []int{1, 2, 4, 6, 8, 12, 16, 20, 24, 32}

func snapReverbSources(n int) int {
	best := reverbSourceSizes[0]
	for _, c := range reverbSourceSizes {
		if c <= n {
			best = c
		}
	}
	return best
}

// Config is the immutable construction-time configuration.
type Config struct {
	SampleRate       float64
	BlockSize        int
	NumReverbSources int
	BandCenters      []float64
	NumBands         int
	RoomDimensions   [3]float64
}

// modeState is the block-boundary-effective set of atomic switches.
// It is swapped as a whole via atomic.Pointer rather than mutated field
// by field, so readers on the audio thread never observe a torn update.
type modeState struct {
	diffractionModel diffmodel.Model
	spatialMode      spatial.Mode
	lateReverb       bool
	impulseResponse  bool
}

// pendingPublication is one IEM tick's result for a single source,
// handed across the IEM/audio thread boundary through an atomic.Pointer
// swap rather than a lock. The audio thread nils the pointer back out
// once consumed; the Publication it read stays reachable as a normal Go
// value for the remainder of that block, so the audio thread never
// observes a partially-written map.
type pendingPublication struct {
	vsources map[string]vsource.Descriptor
}

type sourceState struct {
	id      uint32
	graph   *audiograph.SourceGraph
	input   []float32
	irInput []float32
	pose    geomath.Vec3
	orient  geomath.Quat
	removed bool
	pooled  bool

	pending atomic.Pointer[pendingPublication]
}

// Engine is the top-level acoustic context.
type Engine struct {
	cfg Config

	room *room.Room
	iem  *iem.Engine

	spatializer spatial.Spatializer
	mode        atomic.Pointer[modeState]

	sourcesMu sync.RWMutex
	sources   map[uint32]*sourceState
	sourceIDs *idpool.Pool

	fdnMu      sync.Mutex
	fdn        *reverb.FDN
	fdnAcc     *reverb.InputAccumulator
	fdnOut     [][]float32
	fdnMatrix  reverb.MatrixKind
	fdnSeed    int64
	reverbDirs []geomath.Vec3
	reverbFeed atomic.Pointer[[]iem.ReverbFeed]

	listenerMu     sync.RWMutex
	listenerPos    geomath.Vec3
	listenerOrient geomath.Quat

	outL, outR []float32
	irArmed    bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

// New constructs the context.
func New(cfg Config) *Engine {
	cfg.NumReverbSources = snapReverbSources(cfg.NumReverbSources)

	e := &Engine{
		cfg:         cfg,
		spatializer: spatial.NewConstantPowerPan(),
		sources:     make(map[uint32]*sourceState),
		sourceIDs:   idpool.New(),
		outL:        make([]float32, cfg.BlockSize),
		outR:        make([]float32, cfg.BlockSize),
		logger:      log.NewWithOptions(os.Stderr, log.Options{Prefix: "raengine"}),
	}
	e.mode.Store(&modeState{diffractionModel: diffmodel.Attenuate, spatialMode: spatial.ModeQuality, lateReverb: true})

	e.room = room.New(cfg.NumBands)
	e.room.UpdateRoom(0, geomath.Vec3{X: cfg.RoomDimensions[0], Y: cfg.RoomDimensions[1], Z: cfg.RoomDimensions[2]})

	e.iem = iem.NewEngine(e.room, iem.Config{
		DirectSoundMode:     iem.DirectSoundOn,
		ReflectionOrder:     2,
		MinEdgeLength:       0.05,
		NumReverbDirections: cfg.NumReverbSources,
		LateReverb:          true,
		DiffractionModel:    diffmodel.Attenuate,
	}, e.onPublication)

	e.fdnMatrix = reverb.Householder
	e.buildFDN()

	return e
}

// Init starts the IEM background thread.
func (e *Engine) Init() error {
	if e.cancel != nil {
		return fmt.Errorf("raengine: already initialised")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.iem.Run(ctx)
	}()
	return nil
}

// Exit stops the IEM thread, retargets every source's live virtual
// sources to silence, and clears the reverb network's delay state. It
// does not render the resulting fade-outs: voices stay mid-fade until
// later Advance calls run them down, and no DSP state is released.
func (e *Engine) Exit() {
	if e.cancel != nil {
		e.cancel()
		e.wg.Wait()
		e.cancel = nil
	}

	e.sourcesMu.Lock()
	for _, ss := range e.sources {
		ss.graph.Publish(nil)
	}
	e.sourcesMu.Unlock()

	e.fdnMu.Lock()
	if e.fdn != nil {
		e.fdn.Reset()
	}
	e.fdnMu.Unlock()
}

// LoadSpatialisationFiles forwards opaque HRTF file paths to the
// binaural collaborator; a failure leaves the previous HRTF active.
func (e *Engine) LoadSpatialisationFiles(resamplingStep int, paths []string) bool {
	return e.spatializer.LoadFiles(resamplingStep, paths)
}

// --- Mode switches ---

func (e *Engine) currentMode() *modeState {
	return e.mode.Load()
}

func (e *Engine) swapMode(f func(modeState) modeState) {
	for {
		old := e.mode.Load()
		next := f(*old)
		if e.mode.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetSpatialisationMode switches the binaural rendering quality tier.
func (e *Engine) SetSpatialisationMode(m spatial.Mode) {
	e.swapMode(func(s modeState) modeState { s.spatialMode = m; return s })
	e.spatializer.SetMode(m)
}

// SetDiffractionModel switches the DSP diffraction model. Existing
// voices rebuild their diffraction stage lazily, so switching resets
// per-VS filter state safely rather than leaving a stale filter type
// running.
func (e *Engine) SetDiffractionModel(m diffmodel.Model) {
	e.swapMode(func(s modeState) modeState { s.diffractionModel = m; return s })

	cfg := e.iem.Config()
	cfg.DiffractionModel = m
	e.iem.SetConfig(cfg)

	e.sourcesMu.RLock()
	defer e.sourcesMu.RUnlock()
	for _, ss := range e.sources {
		ss.graph.SetDiffractionModel(m)
	}
}

// SetIEMConfig swaps the path-search configuration.
func (e *Engine) SetIEMConfig(cfg iem.Config) { e.iem.SetConfig(cfg) }

// SetLateReverbModel enables or disables the FDN tail.
func (e *Engine) SetLateReverbModel(enabled bool) {
	e.swapMode(func(s modeState) modeState { s.lateReverb = enabled; return s })
	cfg := e.iem.Config()
	cfg.LateReverb = enabled
	e.iem.SetConfig(cfg)
}

// SetImpulseResponseMode arms impulse-response capture: the next block
// replaces every live source's submitted audio with a single unit
// impulse, and every block after that treats submitted audio as silent,
// so GetOutput traces out the system's impulse response rather than
// normal playback.
func (e *Engine) SetImpulseResponseMode(enabled bool) {
	e.swapMode(func(s modeState) modeState { s.impulseResponse = enabled; return s })
	if enabled {
		e.irArmed = true
	}
}

// SetReverbFormula selects the predicted-T60 model.
func (e *Engine) SetReverbFormula(f room.ReverbFormula) { e.room.SetReverbFormula(f) }

// SetReverbTime sets the custom per-band T60 used when the formula is
// Custom, and when a caller wants InitFDNMatrix to target it directly.
func (e *Engine) SetReverbTime(t60 []float64) { e.room.SetReverbTime(t60) }

// UpdateRoom sets the volume and dimensions feeding T60 prediction and
// the FDN's delay-length derivation.
func (e *Engine) UpdateRoom(volume float64, dims geomath.Vec3) {
	e.room.UpdateRoom(volume, dims)
}

// InitFDNMatrix rebuilds the late-reverb network with a fresh mixing
// matrix of the requested kind.
func (e *Engine) InitFDNMatrix(kind reverb.MatrixKind, seed int64) {
	e.fdnMu.Lock()
	e.fdnMatrix = kind
	e.fdnSeed = seed
	e.fdnMu.Unlock()
	e.buildFDN()
}

// ResetFDN clears all delay-line state without changing the mixing
// matrix or per-channel decay targets.
func (e *Engine) ResetFDN() {
	e.fdnMu.Lock()
	defer e.fdnMu.Unlock()
	if e.fdn != nil {
		e.fdn.Reset()
	}
	e.fdnAcc.Reset()
}

// buildFDN (re)builds the FDN from the room's current dimensions and
// predicted T60, falling back to the custom T60 vector when the formula
// is Custom.
func (e *Engine) buildFDN() {
	dims := e.room.Dimensions()
	t60 := e.room.PredictedT60()
	if custom := e.room.CustomT60(); len(custom) == len(e.cfg.BandCenters) {
		t60 = custom
	}
	allZero := true
	for _, t := range t60 {
		if t > 0 {
			allZero = false
			break
		}
	}
	if allZero {
		for i := range t60 {
			t60[i] = 0.3
		}
	}

	e.fdnMu.Lock()
	defer e.fdnMu.Unlock()
	e.fdn = reverb.New(reverb.Config{
		Channels:    e.cfg.NumReverbSources,
		SampleRate:  e.cfg.SampleRate,
		RoomDims:    [3]float64{dims.X, dims.Y, dims.Z},
		BandCenters: e.cfg.BandCenters,
		T60:         t60,
		Matrix:      e.fdnMatrix,
		Seed:        e.fdnSeed,
	})
	e.fdnAcc = reverb.NewInputAccumulator(e.cfg.NumReverbSources, e.cfg.BlockSize)
	e.fdnOut = make([][]float32, e.cfg.NumReverbSources)
	for i := range e.fdnOut {
		e.fdnOut[i] = make([]float32, e.cfg.BlockSize)
	}
	e.reverbDirs = reverb.ReverbSourceDirections(e.cfg.NumReverbSources)
}

// --- Scene API ---

func (e *Engine) AddWall(vertices [3]geomath.Vec3, absorption []float64) (room.WallID, error) {
	return e.room.AddWall(vertices, absorption)
}

func (e *Engine) UpdateWall(id room.WallID, vertices [3]geomath.Vec3) error {
	return e.room.UpdateWall(id, vertices)
}

func (e *Engine) UpdateWallAbsorption(id room.WallID, absorption []float64) error {
	return e.room.UpdateWallAbsorption(id, absorption)
}

func (e *Engine) RemoveWall(id room.WallID) { e.room.RemoveWall(id) }

// SetListenerPose updates the listener used by both the IEM search and
// the audio-thread spatialisation pass.
func (e *Engine) SetListenerPose(pos geomath.Vec3, orient geomath.Quat) {
	e.listenerMu.Lock()
	e.listenerPos = pos
	e.listenerOrient = orient
	e.listenerMu.Unlock()
	e.iem.SetListenerPose(pos, orient)
}

// newSourceState builds an empty audio graph and per-block scratch space
// for id. Callers must hold sourcesMu.
func (e *Engine) newSourceState(id uint32) *sourceState {
	return &sourceState{
		id:      id,
		graph:   audiograph.NewSourceGraph(id, e.cfg.BandCenters, e.cfg.SampleRate, e.cfg.NumReverbSources, e.currentMode().diffractionModel, e.cfg.BlockSize),
		input:   make([]float32, e.cfg.BlockSize),
		irInput: make([]float32, e.cfg.BlockSize),
	}
}

// InitSource mints a fresh, pool-issued source id and constructs its
// audio graph, mirroring AddWall's mint-and-construct shape. This is the
// preferred way to bring a source into the scene; UpsertSource also
// accepts caller-chosen ids for hosts that already manage their own, but
// only ids drawn here ever get recycled through the id pool's cooldown.
func (e *Engine) InitSource() uint32 {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	id := e.sourceIDs.Acquire()
	ss := e.newSourceState(id)
	ss.pooled = true
	e.sources[id] = ss
	return id
}

// UpsertSource adds or updates a source's pose, creating its audio graph
// the first time it's seen.
func (e *Engine) UpsertSource(id uint32, pos geomath.Vec3, orient geomath.Quat, d directivity.Pattern) {
	e.sourcesMu.Lock()
	ss, ok := e.sources[id]
	if !ok {
		ss = e.newSourceState(id)
		e.sources[id] = ss
	}
	ss.pose = pos
	ss.orient = orient
	ss.removed = false
	ss.graph.SetReverbEnergy(d.ReverbEnergy())
	e.sourcesMu.Unlock()

	e.iem.UpsertSource(iem.SourcePose{ID: id, Position: pos, Orientation: orient, Directivity: d})
}

// UpdateSourceDirectivity changes a source's radiation pattern without
// touching its pose.
func (e *Engine) UpdateSourceDirectivity(id uint32, d directivity.Pattern) {
	e.sourcesMu.RLock()
	ss, ok := e.sources[id]
	var pose geomath.Vec3
	var orient geomath.Quat
	if ok {
		pose, orient = ss.pose, ss.orient
	}
	e.sourcesMu.RUnlock()
	if !ok {
		return
	}
	ss.graph.SetReverbEnergy(d.ReverbEnergy())
	e.iem.UpsertSource(iem.SourcePose{ID: id, Position: pose, Orientation: orient, Directivity: d})
}

// RemoveSource drops a source from the search set and marks it for
// reclamation; its voices fade out over subsequent Advance calls rather
// than cutting off, and its id is only returned to the pool once the
// graph has fully drained, so a recycled id can never collide with a
// still-fading source.
func (e *Engine) RemoveSource(id uint32) {
	e.iem.RemoveSource(id)
	e.sourcesMu.Lock()
	if ss, ok := e.sources[id]; ok {
		ss.graph.Publish(nil)
		ss.removed = true
	}
	e.sourcesMu.Unlock()
}

// onPublication is the IEM callback; it runs on the IEM goroutine and must not block.
func (e *Engine) onPublication(p iem.Publication) {
	e.sourcesMu.RLock()
	ss, ok := e.sources[p.SourceID]
	e.sourcesMu.RUnlock()
	if ok {
		ss.pending.Store(&pendingPublication{vsources: p.VSources})
	}
	if p.Reverb != nil {
		feed := p.Reverb
		e.reverbFeed.Store(&feed)
	}
}

// --- Audio thread ---

// SubmitAudio copies one block of mono input for the given source ahead
// of the next Advance call. Audio for an id that is not (or no longer)
// in the scene is ignored.
func (e *Engine) SubmitAudio(sourceID uint32, mono []float32) error {
	e.sourcesMu.RLock()
	ss, ok := e.sources[sourceID]
	e.sourcesMu.RUnlock()
	if !ok {
		return nil
	}
	n := copy(ss.input, mono)
	for i := n; i < len(ss.input); i++ {
		ss.input[i] = 0
	}
	return nil
}

// Advance renders exactly one block: it consumes any pending IEM
// publication for each source, runs every source's audio graph,
// processes the shared FDN tail, and leaves the result for GetOutput
// to read back.
func (e *Engine) Advance() {
	mode := e.currentMode()

	for i := range e.outL {
		e.outL[i] = 0
		e.outR[i] = 0
	}

	listenerPos, listenerFwd, listenerRight := e.listenerFrame()

	e.sourcesMu.RLock()
	states := make([]*sourceState, 0, len(e.sources))
	for _, ss := range e.sources {
		states = append(states, ss)
	}
	e.sourcesMu.RUnlock()

	var drained []*sourceState
	for _, ss := range states {
		if pend := ss.pending.Swap(nil); pend != nil {
			ss.graph.Publish(pend.vsources)
		}

		input := ss.input
		if mode.impulseResponse {
			input = ss.armImpulse(e.irArmed)
		}

		var fdnTarget audiograph.FDNFeed
		if mode.lateReverb {
			e.fdnMu.Lock()
			fdnTarget = e.fdnAcc
			e.fdnMu.Unlock()
		}
		ss.graph.Render(input, e.spatializer, listenerPos, listenerFwd, listenerRight, fdnTarget, e.outL, e.outR)

		if ss.removed && ss.graph.Idle() {
			drained = append(drained, ss)
		}
	}

	if len(drained) > 0 {
		e.sourcesMu.Lock()
		for _, ss := range drained {
			delete(e.sources, ss.id)
			if ss.pooled {
				e.sourceIDs.Release(ss.id)
			}
		}
		e.sourcesMu.Unlock()
	}

	if mode.lateReverb {
		e.processReverb(listenerPos, listenerFwd, listenerRight)
	}
	if mode.impulseResponse {
		e.irArmed = false
	}
}

// armImpulse returns this source's effective input when impulse-response
// mode is active: a unit impulse on the first block after arming, then
// silence, regardless of what was submitted.
func (ss *sourceState) armImpulse(armed bool) []float32 {
	for i := range ss.irInput {
		ss.irInput[i] = 0
	}
	if armed && len(ss.irInput) > 0 {
		ss.irInput[0] = 1
	}
	return ss.irInput
}

func (e *Engine) listenerFrame() (pos, forward, right geomath.Vec3) {
	e.listenerMu.RLock()
	defer e.listenerMu.RUnlock()
	orient := e.listenerOrient
	if orient == (geomath.Quat{}) {
		orient = geomath.IdentityQuat
	}
	return e.listenerPos, orient.Forward(), orient.Rotate(geomath.Vec3{X: 1})
}

// processReverb runs the FDN on this block's accumulated per-channel
// input, spatialises each channel's output at its fixed polyhedron
// direction scaled by one minus that direction's average absorption, and mixes the
// result into the shared stereo output.
func (e *Engine) processReverb(listenerPos, listenerFwd, listenerRight geomath.Vec3) {
	e.fdnMu.Lock()
	fdn, acc, out := e.fdn, e.fdnAcc, e.fdnOut
	e.fdnMu.Unlock()
	if fdn == nil {
		return
	}

	fdn.ProcessBlock(acc.Rows(), out)
	acc.Reset()

	feed := e.reverbFeed.Load()

	l := make([]float32, len(out[0]))
	r := make([]float32, len(out[0]))
	for k, dir := range e.reverbDirs {
		if k >= len(out) {
			break
		}
		scale := float32(1)
		if feed != nil && k < len(*feed) {
			scale = 1 - float32(average((*feed)[k].Absorption))
			if scale < 0 {
				scale = 0
			}
		}
		chBuf := out[k]
		if scale != 1 {
			for i, s := range chBuf {
				l[i] = s * scale
			}
			chBuf = l
		}

		pose := spatial.Pose{
			SourcePosition:   listenerPos.Add(dir.Scale(1.0)),
			ListenerPosition: listenerPos,
			ListenerForward:  listenerFwd,
			ListenerRight:    listenerRight,
		}
		e.spatializer.Spatialize(chBuf, pose, l, r)
		for i := range e.outL {
			e.outL[i] += l[i]
			e.outR[i] += r[i]
		}
	}
}

func average(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// GetOutput copies the block rendered by the last Advance call into the
// caller's stereo buffers.
func (e *Engine) GetOutput(outL, outR []float32) {
	copy(outL, e.outL)
	copy(outR, e.outR)
}
