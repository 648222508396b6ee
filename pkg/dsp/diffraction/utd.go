package diffraction

import (
	"math"
	"math/cmplx"

	"github.com/rtacoustics/raengine/pkg/dsp/filter"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

var utdBandHz = [4]float64{100, 800, 3000, 8000}

// UTD shapes the spectrum with four peaking bands whose gains track the
// magnitude of the Kouyoumjian-Pathak wedge diffraction coefficient at
// each band centre. A true per-sample UTD filter would
// need the coefficient evaluated continuously across frequency; sampling
// it at four points and interpolating with peaking EQs is the practical
// real-time approximation.
type UTD struct {
	bands      [4]*filter.Biquad
	fs         float64
	curGain    [4]float64
	targetGain [4]float64
}

func NewUTD() *UTD {
	u := &UTD{}
	for i := range u.bands {
		u.bands[i] = filter.NewBiquad(1)
	}
	return u
}

func (u *UTD) SetTarget(geom vsource.DiffractionGeometry, shadow bool, fs float64) {
	u.fs = fs
	if !shadow {
		for i := range u.targetGain {
			u.targetGain[i] = 0
		}
		return
	}
	n := geom.ThetaWedge / math.Pi
	l := geom.DS * geom.DL * math.Sin(geom.PhiApex) * math.Sin(geom.PhiApex) / (geom.DS + geom.DL)
	for i, hz := range utdBandHz {
		k := 2 * math.Pi * hz / speedOfSound
		d := utdCoefficient(n, geom.ThetaS, geom.ThetaL, l, k)
		mag := cmplx.Abs(d)
		if mag < 1e-6 {
			mag = 1e-6
		}
		u.targetGain[i] = 20 * math.Log10(mag)
	}
}

func utdCoefficient(n, phi, phiPrime, l, k float64) complex128 {
	beta0 := math.Max(0.2, math.Min(math.Pi-0.2, (phi+phiPrime)/2))
	pre := cmplx.Exp(complex(0, -math.Pi/4)) / complex(2*n*math.Sqrt(2*math.Pi*k)*math.Sin(beta0), 0)

	cot := func(x float64) float64 {
		s := math.Sin(x)
		if math.Abs(s) < 1e-3 {
			s = math.Copysign(1e-3, s)
		}
		return math.Cos(x) / s
	}
	transition := func(x float64) complex128 {
		if x < 0 {
			x = 0
		}
		sq := math.Sqrt(x)
		mag := sq / (1 + sq)
		return complex(mag, 0) * cmplx.Exp(complex(0, math.Pi/4+x))
	}

	twoN := 2 * n
	diffMinus := phi - phiPrime
	diffPlus := phi + phiPrime

	term1 := complex(cot((math.Pi+diffMinus)/twoN), 0) * transition(k*l*(1-math.Cos(diffMinus)))
	term2 := complex(cot((math.Pi-diffMinus)/twoN), 0) * transition(k*l*(1+math.Cos(diffMinus)))
	term3 := complex(cot((math.Pi+diffPlus)/twoN), 0) * transition(k*l*(1-math.Cos(diffPlus)))
	term4 := complex(cot((math.Pi-diffPlus)/twoN), 0) * transition(k*l*(1+math.Cos(diffPlus)))

	return pre * (term1 + term2 + term3 + term4)
}

func (u *UTD) Process(buf []float32) {
	for i, b := range u.bands {
		u.curGain[i] = lerpF64(u.curGain[i], u.targetGain[i], 0.5)
		b.SetPeakingEQ(u.fs, utdBandHz[i], 1.0, u.curGain[i])
		b.Process(buf, 0)
	}
}

func (u *UTD) Reset() {
	for _, b := range u.bands {
		b.Reset()
	}
	u.curGain = [4]float64{}
}
