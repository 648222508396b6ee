package diffraction

import (
	"math"

	"github.com/rtacoustics/raengine/pkg/dsp/filter"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

const nnFeatureCount = 8

// nnWeights is a tiny feed-forward net: one hidden layer (tanh), one
// linear output layer producing a 2-pole-2-zero biquad's normalised
// cutoff and gain.
type nnWeights struct {
	hidden    [][nnFeatureCount]float64 // hiddenSize x nnFeatureCount
	hiddenB   []float64
	outW      [2][]float64 // [cutoff, gain] x hiddenSize
	outB      [2]float64
}

// weightsBest and weightsSmall stand in for the two network sizes the
// original model ships (a larger "best accuracy" net and a smaller
// cheaper one). Real trained coefficients aren't available in this
// environment; these are small hand-picked weights that make the net
// behave as a geometry-sensitive shelf, sized to match the paper's
// reported topology (8 and 4 hidden units respectively).
var weightsBest = nnWeights{
	hidden: [][nnFeatureCount]float64{
		{0.3, 0.1, -0.2, 0.4, 0.1, -0.1, 0.2, -0.3},
		{-0.1, 0.2, 0.3, -0.2, 0.2, 0.1, -0.1, 0.2},
		{0.2, -0.3, 0.1, 0.1, -0.2, 0.3, 0.1, -0.1},
		{0.1, 0.1, -0.1, 0.2, 0.3, -0.2, -0.1, 0.1},
		{-0.2, 0.2, 0.2, -0.1, 0.1, 0.2, -0.2, 0.1},
		{0.1, -0.1, 0.3, 0.2, -0.1, -0.2, 0.2, 0.1},
		{0.2, 0.3, -0.1, -0.2, 0.1, 0.1, 0.1, -0.2},
		{-0.1, -0.2, 0.1, 0.3, 0.2, -0.1, 0.2, 0.1},
	},
	hiddenB: []float64{0, 0, 0, 0, 0, 0, 0, 0},
	outW: [2][]float64{
		{0.4, -0.3, 0.2, 0.1, -0.2, 0.3, 0.1, -0.1},
		{0.3, 0.2, -0.1, -0.2, 0.1, 0.1, -0.3, 0.2},
	},
	outB: [2]float64{0, 0},
}

var weightsSmall = nnWeights{
	hidden: [][nnFeatureCount]float64{
		{0.3, 0.1, -0.2, 0.4, 0.1, -0.1, 0.2, -0.3},
		{-0.1, 0.2, 0.3, -0.2, 0.2, 0.1, -0.1, 0.2},
		{0.2, -0.3, 0.1, 0.1, -0.2, 0.3, 0.1, -0.1},
		{0.1, 0.1, -0.1, 0.2, 0.3, -0.2, -0.1, 0.1},
	},
	hiddenB: []float64{0, 0, 0, 0},
	outW: [2][]float64{
		{0.4, -0.3, 0.2, 0.1},
		{0.3, 0.2, -0.1, -0.2},
	},
	outB: [2]float64{0, 0},
}

// NN evaluates a fixed feed-forward network over the path's geometric
// features every time the geometry changes, and drives a single shelf
// filter with the result.
type NN struct {
	w       nnWeights
	shelf   *filter.Biquad
	fs      float64
	cutoff  float64
	gain    float64
	tCutoff float64
	tGain   float64
}

func NewNN(w nnWeights) *NN {
	return &NN{w: w, shelf: filter.NewBiquad(1), cutoff: 1000, tCutoff: 1000}
}

func (n *NN) SetTarget(geom vsource.DiffractionGeometry, shadow bool, fs float64) {
	n.fs = fs
	features := [nnFeatureCount]float64{
		geom.ThetaWedge, geom.Deviation, geom.Bisector, geom.ZWidth,
		math.Min(geom.RS, geom.RL), math.Max(geom.RS, geom.RL),
		math.Min(geom.ZS, geom.ZL), math.Max(geom.ZS, geom.ZL),
	}
	outputs := n.w.forward(features)
	n.tCutoff = 200 * math.Exp(3*sigmoid(outputs[0]))
	n.tGain = -24 * sigmoid(-outputs[1])
	if !shadow {
		n.tGain = 0
	}
}

func (w nnWeights) forward(x [nnFeatureCount]float64) [2]float64 {
	hidden := make([]float64, len(w.hidden))
	for i, row := range w.hidden {
		sum := w.hiddenB[i]
		for j, v := range x {
			sum += row[j] * v
		}
		hidden[i] = math.Tanh(sum)
	}
	var out [2]float64
	for o := 0; o < 2; o++ {
		sum := w.outB[o]
		for j, h := range hidden {
			sum += w.outW[o][j] * h
		}
		out[o] = sum
	}
	return out
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func (n *NN) Process(buf []float32) {
	n.cutoff = lerpF64(n.cutoff, n.tCutoff, n.tCutoff*0.05)
	n.gain = lerpF64(n.gain, n.tGain, 0.5)
	n.shelf.SetHighShelf(n.fs, n.cutoff, 0.707, n.gain)
	n.shelf.Process(buf, 0)
}

func (n *NN) Reset() {
	n.shelf.Reset()
	n.gain = 0
}
