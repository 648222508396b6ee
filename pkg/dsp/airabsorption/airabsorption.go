// Package airabsorption applies the frequency-dependent attenuation a
// sound undergoes travelling through air, as a single one-pole filter
// driven by the virtual source's current distance.
package airabsorption

import "math"

const speedOfSound = 343.0

// Filter is a one-pole lowpass whose coefficient tracks distance: b =
// exp(-d*fs/(c*7782)), a = 1-b. State update is y <- y*a + x, output =
// y*b.
type Filter struct {
	state   float32
	b       float32
	targetB float32
	fs      float64
}

func New(sampleRate float64) *Filter {
	f := &Filter{fs: sampleRate, b: 1, targetB: 1}
	return f
}

// SetDistance updates the target coefficient for a new interpolated
// distance in meters.
func (f *Filter) SetDistance(distanceMeters float64) {
	f.targetB = float32(math.Exp(-distanceMeters * f.fs / (speedOfSound * 7782)))
}

const coeffLerpPerSample = 0.001

// Process runs the filter over buf in place, interpolating the
// coefficient per sample towards its target.
func (f *Filter) Process(buf []float32) {
	for i, x := range buf {
		if f.b != f.targetB {
			f.b = lerpStep(f.b, f.targetB, coeffLerpPerSample)
		}
		a := 1 - f.b
		f.state = f.state*a + x
		buf[i] = f.state * f.b
	}
}

func lerpStep(cur, target, rate float32) float32 {
	if cur < target {
		cur += rate
		if cur > target {
			cur = target
		}
	} else if cur > target {
		cur -= rate
		if cur < target {
			cur = target
		}
	}
	return cur
}

func (f *Filter) Reset() {
	f.state = 0
}
