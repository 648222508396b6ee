// Package spatial defines the binaural spatialisation contract the
// audio graph renders virtual sources through, and ships a constant-
// power-pan fallback implementation for environments without an HRTF
// convolution engine.
package spatial

import (
	"math"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/dsp/pan"
)

// Mode is the spatialisation quality switch.
type Mode int

const (
	ModeQuality Mode = iota
	ModePerformance
	ModeNone
)

// Pose is the minimal placement information a spatialiser needs: a
// source position and the listener's position/orientation to resolve
// it against.
type Pose struct {
	SourcePosition    geomath.Vec3
	ListenerPosition  geomath.Vec3
	ListenerForward   geomath.Vec3
	ListenerRight     geomath.Vec3
}

// Spatializer renders one mono buffer at a pose into a stereo pair.
type Spatializer interface {
	LoadFiles(resamplingStep int, paths []string) bool
	SetMode(m Mode)
	Spatialize(mono []float32, pose Pose, outL, outR []float32)
	Reset()
}

// ConstantPowerPan is the fallback implementation: it has no HRTF, so
// it only resolves azimuth (via the listener's right vector) into a
// constant-power pan law from the teacher's pan package, plus a
// basic inverse-distance-consistent gain left to the caller.
type ConstantPowerPan struct {
	mode Mode
}

func NewConstantPowerPan() *ConstantPowerPan {
	return &ConstantPowerPan{}
}

func (c *ConstantPowerPan) LoadFiles(resamplingStep int, paths []string) bool {
	return false // no HRTF files to load; always reports no-op failure
}

func (c *ConstantPowerPan) SetMode(m Mode) { c.mode = m }

func (c *ConstantPowerPan) Spatialize(mono []float32, pose Pose, outL, outR []float32) {
	if c.mode == ModeNone {
		for i := range mono {
			outL[i] = mono[i]
			outR[i] = mono[i]
		}
		return
	}
	rel := pose.SourcePosition.Sub(pose.ListenerPosition)
	right := pose.ListenerRight
	forward := pose.ListenerForward
	x := rel.Dot(right)
	z := rel.Dot(forward)
	azimuth := math.Atan2(x, math.Max(z, 1e-6))
	panPos := float32(math.Max(-1, math.Min(1, azimuth/(math.Pi/2))))

	law := pan.ConstantPower
	if c.mode == ModePerformance {
		law = pan.Linear
	}
	pan.Process(mono, panPos, law, outL, outR)
}

func (c *ConstantPowerPan) Reset() {}
