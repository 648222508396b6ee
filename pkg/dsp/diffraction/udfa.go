package diffraction

import (
	"math"
	"math/cmplx"

	"github.com/rtacoustics/raengine/pkg/dsp/filter"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

const (
	udfaNumFilters  = 4
	udfaMinBreakHz  = 10.0
	speedOfSound    = 343.0
	udfaLerpPerBlk  = 0.05
)

// UDFA is a cascade of four high-shelf filters whose per-band gains and
// breakpoint frequencies are derived from the wedge geometry. The
// improved field selects the UDFA-I variant's scaled front factor and
// simplified per-angle term.
type UDFA struct {
	improved bool

	shelves [udfaNumFilters]*filter.Biquad
	fs      float64

	ft, fi     [udfaNumFilters + 1]float64
	targetFc   [udfaNumFilters]float64
	targetG    [udfaNumFilters]float64
	targetGain float64

	curFc   [udfaNumFilters]float64
	curG    [udfaNumFilters]float64
	curGain float64
}

func NewUDFA(improved bool) *UDFA {
	u := &UDFA{improved: improved}
	for i := range u.shelves {
		u.shelves[i] = filter.NewBiquad(1)
		u.curG[i] = 1
		u.curFc[i] = 1000
	}
	return u
}

func (u *UDFA) SetTarget(geom vsource.DiffractionGeometry, shadow bool, fs float64) {
	if u.improved && !shadow {
		for i := range u.targetFc {
			u.targetFc[i] = 1000
			u.targetG[i] = 1
		}
		u.targetGain = 0
		return
	}
	if u.fs != fs {
		u.fs = fs
		u.calcBreakpoints(fs)
	}

	v := math.Pi / geom.ThetaWedge
	t0 := (geom.DS + geom.DL) / speedOfSound
	sinPhi := math.Sin(geom.PhiApex)
	front := 2 * speedOfSound / (math.Pi * math.Pi * udfaD(geom) * sinPhi * sinPhi)

	if u.improved {
		front = speedOfSound / (math.Pi * math.Pi * udfaD(geom) * sinPhi * sinPhi)
		thetas := [2]float64{geom.ThetaS + geom.ThetaL, geom.ThetaL - geom.ThetaS}
		scale := 0.0
		for _, th := range thetas {
			denom := math.Abs(math.Cos(v*math.Pi) - math.Cos(v*th))
			if denom < 1e-9 {
				denom = 1e-9
			}
			scale += math.Copysign(1, th-math.Pi) / denom
		}
		scale *= scale
		vSin := v * math.Sin(v*math.Pi)
		front = scale * front * vSin * vSin / 2
	}

	calcH := func(z, theta, f float64) complex128 {
		fc := front
		if !u.improved {
			nv := udfaNv(v, theta)
			fc = front * nv * nv
		}
		t1 := udfaGetD(geom, z) / speedOfSound
		g := (2 / math.Pi) * math.Atan(math.Pi*math.Sqrt(math.Max(0, 2*fc*(t1-t0))))
		if g == 0 {
			return 0
		}
		fc *= 1 / (g * g)
		return complex(g, 0) * calcUDFAResponse(f, fc, g)
	}
	calcHpm := func(z, f float64) complex128 {
		return calcH(z, geom.ThetaS+geom.ThetaL, f) + calcH(z, geom.ThetaL-geom.ThetaS, f)
	}
	calcG := func(f float64) float64 {
		return cmplx.Abs(calcHpm(0, f)+calcHpm(geom.ZWidth, f)) / 4
	}

	var gt [udfaNumFilters + 1]float64
	for i := range gt {
		gt[i] = calcG(u.ft[i])
	}
	for i := 0; i < udfaNumFilters; i++ {
		denomG := gt[i]
		if denomG < 1e-12 {
			denomG = 1e-12
		}
		g := gt[i+1] / denomG
		gi := calcG(u.fi[i]) / denomG
		giSq := gi * gi
		gSq := g * g
		num := giSq - gSq
		den := g * (1 - giSq)
		ratio := 0.0
		if den > 1e-12 && num > 0 {
			ratio = num / den
		}
		u.targetFc[i] = u.fi[i] * math.Sqrt(ratio) * (1 + gSq/12)
		if math.IsNaN(u.targetFc[i]) || u.targetFc[i] <= 0 {
			u.targetFc[i] = u.fi[i]
		}
		u.targetG[i] = g
	}
	u.targetGain = gt[0]
}

func (u *UDFA) calcBreakpoints(fs float64) {
	fMin := math.Log10(udfaMinBreakHz)
	fMax := math.Log10(fs)
	delta := (fMax - fMin) / udfaNumFilters
	for i := 0; i <= udfaNumFilters; i++ {
		u.ft[i] = math.Pow(10, fMin+delta*float64(i))
	}
	for i := 0; i < udfaNumFilters; i++ {
		u.fi[i] = u.ft[i] * math.Sqrt(u.ft[i+1]/u.ft[i])
	}
}

func (u *UDFA) Process(buf []float32) {
	u.curGain = lerpF64(u.curGain, u.targetGain, udfaLerpPerBlk)
	for i := range u.curFc {
		u.curFc[i] = lerpF64(u.curFc[i], u.targetFc[i], udfaLerpPerBlk)
		u.curG[i] = lerpF64(u.curG[i], u.targetG[i], udfaLerpPerBlk)
		gainDB := 20 * math.Log10(math.Max(u.curG[i], 1e-6))
		u.shelves[i].SetHighShelf(u.fs, u.curFc[i], 0.707, gainDB)
	}
	for i := range buf {
		buf[i] *= float32(u.curGain)
	}
	for _, s := range u.shelves {
		s.Process(buf, 0)
	}
}

func (u *UDFA) Reset() {
	for _, s := range u.shelves {
		s.Reset()
	}
	u.curGain = 0
}

func udfaNv(v, theta float64) float64 {
	return v * math.Sqrt(1-math.Cos(v*math.Pi)*math.Cos(v*theta)) / (math.Cos(v*math.Pi) - math.Cos(v*theta))
}

func udfaD(geom vsource.DiffractionGeometry) float64 {
	return 2 * geom.DS * geom.DL / (geom.DS + geom.DL)
}

// udfaGetD returns d_S(z)+d_L(z), the combined propagation distance via
// axial position z rather than the apex.
func udfaGetD(geom vsource.DiffractionGeometry, z float64) float64 {
	ds := math.Hypot(geom.RS, z-geom.ZS)
	dl := math.Hypot(geom.RL, z-geom.ZL)
	return ds + dl
}

func calcUDFAResponse(f, fc, g float64) complex128 {
	const (
		alpha = 0.5
		bBase = 1.44
		qBase = 0.2
		r     = 1.6
	)
	gSq := g * g
	b := 1 + (bBase-1)*gSq
	q := 0.5 + (qBase-0.5)*gSq
	if fc < 1e-6 {
		fc = 1e-6
	}
	term1 := cmplx.Pow(complex(0, f/fc), complex(2/b, 0))
	term2 := cmplx.Pow(complex(0, f/(q*fc)), complex(1/math.Pow(b, r), 0))
	return cmplx.Pow(term1+term2+complex(1, 0), complex(-alpha*b/2, 0))
}

func lerpF64(cur, target, rate float64) float64 {
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
