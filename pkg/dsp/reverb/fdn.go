// Package reverb implements the late-reverberation Feedback Delay
// Network: N delay lines coupled through an orthogonal mixing matrix,
// each with a per-band decay filter tuned to match a target T60.
package reverb

import (
	"math"
	"math/rand"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/dsp/eq"
)

const speedOfSound = 343.0

// MatrixKind selects the orthogonal mixing matrix construction, fixed
// at FDN construction.
type MatrixKind int

const (
	Householder MatrixKind = iota
	RandomOrthogonal
)

// Config parameterizes an FDN instance.
type Config struct {
	Channels     int
	SampleRate   float64
	RoomDims     [3]float64
	BandCenters  []float64 // len == numBands
	T60          []float64 // len == numBands, seconds
	Matrix       MatrixKind
	Seed         int64
}

// FDN is N delay lines, a fixed orthogonal mixing matrix, and one
// per-channel decay EQ shaping the feedback path so every band decays
// at its own T60 independent of which channels a path through the
// matrix visits.
type FDN struct {
	channels int
	fs       float64

	delays     []int
	history    [][]float32
	writePos   []int
	decay      []*eq.Cascade
	matrix     [][]float64

	input  []float32
	output []float32
}

// New builds an FDN whose delay lengths are drawn from the room's
// dimensions and whose per-channel decay filter gains are solved for
// the requested T60 per band.
func New(cfg Config) *FDN {
	n := cfg.Channels
	f := &FDN{
		channels: n,
		fs:       cfg.SampleRate,
		delays:   make([]int, n),
		history:  make([][]float32, n),
		writePos: make([]int, n),
		decay:    make([]*eq.Cascade, n),
		input:    make([]float32, n),
		output:   make([]float32, n),
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	meanDim := (cfg.RoomDims[0] + cfg.RoomDims[1] + cfg.RoomDims[2]) / 3

	for k := 0; k < n; k++ {
		dim := cfg.RoomDims[k%3]
		jitter := (rng.Float64()*2 - 1) * 0.1 * meanDim
		samples := int(math.Round(cfg.SampleRate * (dim + jitter) / speedOfSound))
		if samples < 1 {
			samples = 1
		}
		f.delays[k] = samples
		f.history[k] = make([]float32, samples)

		f.decay[k] = eq.NewCascade(cfg.BandCenters, cfg.SampleRate)
		gains := make([]float64, len(cfg.T60))
		for b, t60 := range cfg.T60 {
			if t60 <= 0 {
				t60 = 0.3
			}
			linGain := math.Pow(10, -3*float64(samples)/(cfg.SampleRate*t60))
			gains[b] = 20 * math.Log10(math.Max(linGain, 1e-6))
		}
		f.decay[k].SetTargetBandGainsDB(gains)
	}

	switch cfg.Matrix {
	case RandomOrthogonal:
		f.matrix = randomOrthogonal(n, rng)
	default:
		f.matrix = householder(n, rng)
	}

	return f
}

func householder(n int, rng *rand.Rand) [][]float64 {
	v := make([]float64, n)
	var sum float64
	for i := range v {
		v[i] = rng.Float64()*2 - 1
		sum += v[i] * v[i]
	}
	norm := math.Sqrt(sum)
	if norm < 1e-12 {
		norm = 1
	}
	for i := range v {
		v[i] /= norm
	}
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i == j {
				m[i][j] = 1 - 2*v[i]*v[j]
			} else {
				m[i][j] = -2 * v[i] * v[j]
			}
		}
	}
	return m
}

// randomOrthogonal produces an orthogonal matrix via Gram-Schmidt over
// random columns (a practical substitute for a full QR decomposition).
func randomOrthogonal(n int, rng *rand.Rand) [][]float64 {
	cols := make([][]float64, n)
	for j := range cols {
		col := make([]float64, n)
		for i := range col {
			col[i] = rng.NormFloat64()
		}
		for k := 0; k < j; k++ {
			dot := dotProduct(col, cols[k])
			for i := range col {
				col[i] -= dot * cols[k][i]
			}
		}
		normalize(col)
		cols[j] = col
	}
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = cols[j][i]
		}
	}
	return m
}

func dotProduct(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float64) {
	n := math.Sqrt(dotProduct(v, v))
	if n < 1e-12 {
		n = 1
	}
	for i := range v {
		v[i] /= n
	}
}

// ProcessBlock runs the network over one block of per-channel input
// rows and writes per-channel output rows, overwriting their previous
// contents. inputs[k] and
// outputs[k] must be the same length.
func (f *FDN) ProcessBlock(inputs, outputs [][]float32) {
	n := len(inputs[0])
	readBuf := make([]float32, 1)
	for s := 0; s < n; s++ {
		for k := 0; k < f.channels; k++ {
			idx := f.writePos[k]
			readBuf[0] = f.history[k][idx]
			f.decay[k].Process(readBuf)
			f.output[k] = readBuf[0]
		}

		for k := 0; k < f.channels; k++ {
			var mixed float32
			for j := 0; j < f.channels; j++ {
				mixed += float32(f.matrix[k][j]) * f.output[j]
			}
			write := mixed + inputs[k][s]
			f.history[k][f.writePos[k]] = write
			outputs[k][s] = f.output[k]
		}

		for k := 0; k < f.channels; k++ {
			f.writePos[k]++
			if f.writePos[k] >= len(f.history[k]) {
				f.writePos[k] = 0
			}
		}
	}
}

func (f *FDN) Reset() {
	for k := range f.history {
		for i := range f.history[k] {
			f.history[k][i] = 0
		}
		f.writePos[k] = 0
		f.decay[k].Reset()
	}
}

func (f *FDN) Channels() int { return f.channels }

// InputAccumulator collects per-channel contributions from many voices
// over one block before a single FDN.ProcessBlock call.
type InputAccumulator struct {
	rows [][]float32
}

func NewInputAccumulator(channels, blockSize int) *InputAccumulator {
	a := &InputAccumulator{rows: make([][]float32, channels)}
	for i := range a.rows {
		a.rows[i] = make([]float32, blockSize)
	}
	return a
}

// AccumulateChannel adds buf into the given channel's input row,
// wrapping if more channels feed than were configured.
func (a *InputAccumulator) AccumulateChannel(channel int, buf []float32) {
	if len(a.rows) == 0 {
		return
	}
	row := a.rows[channel%len(a.rows)]
	n := len(buf)
	if n > len(row) {
		n = len(row)
	}
	for i := 0; i < n; i++ {
		row[i] += buf[i]
	}
}

func (a *InputAccumulator) Rows() [][]float32 { return a.rows }

func (a *InputAccumulator) Reset() {
	for _, row := range a.rows {
		for i := range row {
			row[i] = 0
		}
	}
}

// ReverbSourceDirections returns N outward directions from a polyhedron
// matching N, used to place spatialised reverb-tail voices around the
// listener.
func ReverbSourceDirections(n int) []geomath.Vec3 {
	return geomath.Polyhedron(n)
}
