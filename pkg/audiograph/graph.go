package audiograph

import (
	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/spatial"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// FDNFeed is the per-channel accumulation target the graph writes
// scaled reverb-bound signal into for one block.
type FDNFeed interface {
	AccumulateChannel(channel int, buf []float32)
}

// SourceGraph owns one source's virtual-source map, per-VS DSP chains,
// and FDN channel allocation, and renders one block of stereo output
// for it.
type SourceGraph struct {
	id          uint32
	vsMap       *vsource.Map
	voices      map[string]*Voice
	channels    *vsource.ChannelAllocator
	bandCenters []float64
	fs          float64
	model       diffmodel.Model

	reverbEnergy float64

	rawScratch []float32
	voiceL     []float32
	voiceR     []float32
}

func NewSourceGraph(id uint32, bandCenters []float64, fs float64, fdnChannels int, model diffmodel.Model, blockSize int) *SourceGraph {
	return &SourceGraph{
		id:           id,
		vsMap:        vsource.NewMap(),
		voices:       make(map[string]*Voice),
		channels:     vsource.NewChannelAllocator(fdnChannels),
		bandCenters:  bandCenters,
		fs:           fs,
		model:        model,
		reverbEnergy: 1.0,
		rawScratch:   make([]float32, blockSize),
		voiceL:       make([]float32, blockSize),
		voiceR:       make([]float32, blockSize),
	}
}

// SetDiffractionModel switches the model for all future ApplyDescriptor
// calls; existing voices rebuild their diffraction stage with the new
// model the next time a descriptor is applied to them.
func (g *SourceGraph) SetDiffractionModel(m diffmodel.Model) { g.model = m }

// SetReverbEnergy sets the fraction of this source's direct energy
// that feeds the late reverberation, as derived from its directivity
// pattern.
func (g *SourceGraph) SetReverbEnergy(e float64) { g.reverbEnergy = e }

// Idle reports whether this source's audio graph has fully drained: no
// voices remain, fading or otherwise. A removed source becomes
// reclaimable once this is true.
func (g *SourceGraph) Idle() bool { return len(g.voices) == 0 }

// Publish reconciles the graph's VS map against a fresh set of
// descriptors from the IEM.
func (g *SourceGraph) Publish(fresh map[string]vsource.Descriptor) {
	g.vsMap.Diff(fresh)
}

// Render runs one block: for every live entry it advances gain, runs
// the per-VS chain on a copy of the source's raw input, spatialises it,
// accumulates into the stereo output and optionally into the FDN feed,
// then reclaims any entries that finished fading out.
func (g *SourceGraph) Render(rawInput []float32, spatializer spatial.Spatializer, listenerPos, listenerFwd, listenerRight geomath.Vec3, fdn FDNFeed, outL, outR []float32) {
	g.vsMap.AdvanceGains(gainLerpPerSample * float64(len(rawInput)))

	for key, entry := range g.vsMap.Entries() {
		voice, ok := g.voices[key]
		if !ok {
			voice = NewVoice(g.bandCenters, g.fs, g.model)
			if entry.Descriptor.FeedsFDN {
				ch, assigned := g.channels.Acquire()
				if assigned {
					entry.Descriptor.FDNChannel = ch
				}
			}
			g.voices[key] = voice
		}
		if entry.Target > 0 {
			shadow := entry.Descriptor.Diffraction != nil && entry.Descriptor.Diffraction.Shadow
			voice.ApplyDescriptor(entry.Descriptor, g.bandCenters, g.fs, g.model, shadow)
		} else {
			voice.FadeOut()
		}

		copy(g.rawScratch, rawInput)
		buf := g.rawScratch[:len(rawInput)]
		voice.Process(buf)

		pose := spatial.Pose{
			SourcePosition:   entry.Descriptor.Image,
			ListenerPosition: listenerPos,
			ListenerForward:  listenerFwd,
			ListenerRight:    listenerRight,
		}
		vl := g.voiceL[:len(buf)]
		vr := g.voiceR[:len(buf)]
		spatializer.Spatialize(buf, pose, vl, vr)
		for i := range buf {
			outL[i] += vl[i]
			outR[i] += vr[i]
		}

		if entry.Descriptor.FeedsFDN && fdn != nil {
			scale := fdnFeedScale(entry.Descriptor.Distance, voice.Gain(), g.channels.N(), g.reverbEnergy)
			feedBuf := make([]float32, len(buf))
			for i, s := range buf {
				feedBuf[i] = s * scale
			}
			fdn.AccumulateChannel(entry.Descriptor.FDNChannel, feedBuf)
		}
	}

	reclaim := g.vsMap.Reclaim
	var toReclaim []string
	for key, entry := range g.vsMap.Entries() {
		if entry.Target == 0 && entry.Gain <= vsource.FadeEpsilon {
			toReclaim = append(toReclaim, key)
		}
	}
	for _, key := range toReclaim {
		if v, ok := g.voices[key]; ok {
			if v.feedsFDN {
				g.channels.Release(v.fdnChannel)
			}
			delete(g.voices, key)
		}
	}
	reclaim(toReclaim)
}

// fdnFeedScale computes the channel/directivity-normalised reverb feed
// scale.
func fdnFeedScale(distance float64, gain float32, channels int, reverbEnergy float64) float32 {
	if channels == 0 {
		channels = 1
	}
	g := gain
	if g < 1e-4 {
		g = 1e-4
	}
	return float32(1.1*distance*reverbEnergy) / g / float32(channels)
}
