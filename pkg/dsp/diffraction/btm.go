package diffraction

import (
	"math"

	"github.com/rtacoustics/raengine/pkg/dsp/btmfir"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

const btmTapCount = 48

// BTM builds its FIR kernel by numerically integrating the Biot-Tolstoy-
// Medwin line source formula along the edge's finite length for every
// tap delay, then hands the kernel to a cross-fading FIR runtime. The wavefront from each point on the edge arrives
// at a slightly different time, so the kernel's shape is a windowed,
// smeared version of the direct diffraction impulse rather than a
// single delta.
type BTM struct {
	fir *btmfir.Runtime
	fs  float64
}

func NewBTM() *BTM {
	return &BTM{fir: btmfir.New()}
}

func (b *BTM) SetTarget(geom vsource.DiffractionGeometry, shadow bool, fs float64) {
	b.fs = fs
	if !shadow {
		b.fir.SetTargetIR([]float32{1})
		return
	}
	ir := buildBTMKernel(geom, fs)
	b.fir.SetTargetIR(ir)
}

func (b *BTM) Process(buf []float32) {
	b.fir.Process(buf)
}

func (b *BTM) Reset() {
	b.fir.Reset()
}

// btmIntegrand evaluates the BTM line-source weighting at edge position
// z for the given tap delay time t (relative to the earliest possible
// arrival), combining the two sign terms from the wedge angle geometry.
func btmIntegrand(geom vsource.DiffractionGeometry, z, t float64) float64 {
	ds := math.Hypot(geom.RS, z-geom.ZS)
	dl := math.Hypot(geom.RL, z-geom.ZL)
	arrival := (ds + dl) / speedOfSound
	dt := t - arrival
	if dt < 0 {
		return 0
	}
	n := geom.ThetaWedge / math.Pi
	betaPlus := (geom.ThetaS + geom.ThetaL) / (2 * n)
	betaMinus := (geom.ThetaS - geom.ThetaL) / (2 * n)
	weight := 1/math.Max(math.Abs(math.Cos(betaPlus)-1), 1e-3) +
		1/math.Max(math.Abs(math.Cos(betaMinus)-1), 1e-3)

	denom := math.Sqrt(dt*speedOfSound*(dt*speedOfSound+2*ds)) * math.Sqrt(dt*speedOfSound*(dt*speedOfSound+2*dl))
	if denom < 1e-6 {
		denom = 1e-6
	}
	return weight / (4 * math.Pi * n * denom)
}

// simpson integrates f over [a,b] using a fixed-subdivision composite
// Simpson's rule, refining until successive estimates agree within tol
// or a depth cap is reached.
func simpson(f func(float64) float64, a, b float64, tol float64) float64 {
	prev := simpsonFixed(f, a, b, 8)
	for n := 16; n <= 256; n *= 2 {
		cur := simpsonFixed(f, a, b, n)
		if math.Abs(cur-prev) < tol {
			return cur
		}
		prev = cur
	}
	return prev
}

func simpsonFixed(f func(float64) float64, a, b float64, n int) float64 {
	if n%2 != 0 {
		n++
	}
	h := (b - a) / float64(n)
	sum := f(a) + f(b)
	for i := 1; i < n; i++ {
		x := a + float64(i)*h
		if i%2 == 0 {
			sum += 2 * f(x)
		} else {
			sum += 4 * f(x)
		}
	}
	return sum * h / 3
}

func buildBTMKernel(geom vsource.DiffractionGeometry, fs float64) []float32 {
	ir := make([]float32, btmTapCount)
	minArrival := math.Min(
		math.Hypot(geom.RS, 0-geom.ZS)+math.Hypot(geom.RL, 0-geom.ZL),
		math.Hypot(geom.RS, geom.ZWidth-geom.ZS)+math.Hypot(geom.RL, geom.ZWidth-geom.ZL),
	) / speedOfSound

	var total float64
	for i := 0; i < btmTapCount; i++ {
		t := minArrival + float64(i)/fs
		v := simpson(func(z float64) float64 {
			return btmIntegrand(geom, z, t)
		}, 0, geom.ZWidth, 1e-6)
		ir[i] = float32(v)
		total += v
	}
	if total > 1e-9 {
		for i := range ir {
			ir[i] = float32(float64(ir[i]) / total)
		}
	}
	return ir
}
