// Command raengine-render is an offline demonstration harness: it
// builds a pkg/raengine.Engine from a YAML config, places a single
// source and a shoebox room from flags, feeds a mono WAV file through
// the engine block by block, and writes the resulting binaural stereo
// signal to a WAV file.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/directivity"
	"github.com/rtacoustics/raengine/pkg/dsp/reverb"
	"github.com/rtacoustics/raengine/pkg/raengine"
	"github.com/rtacoustics/raengine/pkg/room"
)

func main() {
	configPath := flag.String("config", "", "YAML engine config path (optional; built-in defaults otherwise)")
	input := flag.String("input", "", "mono input WAV path")
	output := flag.String("output", "output.wav", "stereo output WAV path")
	roomWidth := flag.Float64("room-width", 6, "shoebox room width in metres")
	roomHeight := flag.Float64("room-height", 3, "shoebox room height in metres")
	roomDepth := flag.Float64("room-depth", 5, "shoebox room depth in metres")
	absorption := flag.Float64("absorption", 0.3, "uniform wall absorption coefficient in [0,1]")
	sourceX := flag.Float64("source-x", 1, "source X position in metres, room-centred")
	sourceY := flag.Float64("source-y", 0, "source Y position in metres, room-centred")
	sourceZ := flag.Float64("source-z", 1, "source Z position in metres, room-centred")
	captureIR := flag.Bool("impulse-response", false, "render the system's impulse response instead of the input file")
	irSeconds := flag.Float64("ir-duration", 2.0, "impulse-response render length in seconds, when -impulse-response is set")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "raengine-render"})

	cfg, err := loadRenderConfig(*configPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	engine := raengine.New(raengine.Config{
		SampleRate:       cfg.SampleRate,
		BlockSize:        cfg.BlockSize,
		NumReverbSources: cfg.NumReverbSources,
		BandCenters:      cfg.BandCenters,
		NumBands:         len(cfg.BandCenters),
		RoomDimensions:   [3]float64{*roomWidth, *roomHeight, *roomDepth},
	})
	if err := engine.Init(); err != nil {
		logger.Fatal("initialising engine", "err", err)
	}
	defer engine.Exit()

	engine.SetDiffractionModel(parseDiffractionModel(cfg.DiffractionModel))
	engine.SetReverbFormula(parseReverbFormula(cfg.ReverbFormula))
	if len(cfg.T60) > 0 {
		engine.SetReverbTime(cfg.T60)
	}
	engine.InitFDNMatrix(parseMatrixKind(cfg.ReverbMatrix), 1)
	engine.UpdateRoom(*roomWidth**roomHeight**roomDepth, geomath.Vec3{X: *roomWidth, Y: *roomHeight, Z: *roomDepth})

	buildShoeboxRoom(engine, *roomWidth, *roomHeight, *roomDepth, *absorption, len(cfg.BandCenters), logger)

	sourceID := engine.InitSource()
	engine.SetListenerPose(geomath.Vec3{}, geomath.IdentityQuat)
	engine.UpsertSource(sourceID, geomath.Vec3{X: *sourceX, Y: *sourceY, Z: *sourceZ}, geomath.IdentityQuat, directivity.Omni)

	var mono []float32
	if *captureIR {
		engine.SetImpulseResponseMode(true)
		mono = make([]float32, int(*irSeconds*cfg.SampleRate))
	} else {
		if *input == "" {
			logger.Fatal("either -input or -impulse-response is required")
		}
		var err error
		mono, err = readMonoWAV(*input)
		if err != nil {
			logger.Fatal("reading input WAV", "err", err)
		}
	}

	outL, outR := renderBlocks(engine, sourceID, mono, cfg.BlockSize)

	if err := writeStereoWAV(*output, outL, outR, int(cfg.SampleRate)); err != nil {
		logger.Fatal("writing output WAV", "err", err)
	}
	logger.Info("wrote output", "path", *output, "frames", len(outL))
}

// renderBlocks drives the engine block by block over the given mono
// input, zero-padding the final partial block, and returns the full
// interleaved-free stereo result.
func renderBlocks(engine *raengine.Engine, sourceID uint32, mono []float32, blockSize int) (left, right []float32) {
	left = make([]float32, len(mono))
	right = make([]float32, len(mono))

	block := make([]float32, blockSize)
	blockL := make([]float32, blockSize)
	blockR := make([]float32, blockSize)

	for start := 0; start < len(mono); start += blockSize {
		n := copy(block, mono[start:])
		for i := n; i < blockSize; i++ {
			block[i] = 0
		}
		if err := engine.SubmitAudio(sourceID, block); err != nil {
			continue
		}
		engine.Advance()
		engine.GetOutput(blockL, blockR)
		copy(left[start:], blockL)
		copy(right[start:], blockR)
	}
	return left, right
}

func buildShoeboxRoom(engine *raengine.Engine, w, h, d, absorptionCoef float64, numBands int, logger *log.Logger) {
	if numBands < 1 {
		numBands = 1
	}
	abs := make([]float64, numBands)
	for i := range abs {
		abs[i] = absorptionCoef
	}
	hx, hy, hz := w/2, h/2, d/2
	corners := [8]geomath.Vec3{
		{X: -hx, Y: -hy, Z: -hz}, {X: hx, Y: -hy, Z: -hz}, {X: hx, Y: hy, Z: -hz}, {X: -hx, Y: hy, Z: -hz},
		{X: -hx, Y: -hy, Z: hz}, {X: hx, Y: -hy, Z: hz}, {X: hx, Y: hy, Z: hz}, {X: -hx, Y: hy, Z: hz},
	}
	// Two triangles per face, wound so normals point into the room, six faces.
	faces := [6][2][3]int{
		{{0, 1, 2}, {0, 2, 3}}, // front
		{{4, 6, 5}, {4, 7, 6}}, // back
		{{0, 4, 5}, {0, 5, 1}}, // floor
		{{2, 6, 7}, {2, 7, 3}}, // ceiling
		{{0, 3, 7}, {0, 7, 4}}, // left
		{{1, 5, 6}, {1, 6, 2}}, // right
	}
	for _, f := range faces {
		for _, tri := range f {
			v := [3]geomath.Vec3{corners[tri[0]], corners[tri[1]], corners[tri[2]]}
			if _, err := engine.AddWall(v, abs); err != nil {
				logger.Warn("skipping degenerate wall", "err", err)
			}
		}
	}
}

func parseDiffractionModel(s string) diffmodel.Model {
	switch s {
	case "attenuate":
		return diffmodel.Attenuate
	case "lpf":
		return diffmodel.LPF
	case "udfa":
		return diffmodel.UDFA
	case "udfa-i":
		return diffmodel.UDFAI
	case "nn-best":
		return diffmodel.NNBest
	case "nn-small":
		return diffmodel.NNSmall
	case "utd":
		return diffmodel.UTD
	case "btm":
		return diffmodel.BTM
	default:
		return diffmodel.Attenuate
	}
}

func parseReverbFormula(s string) room.ReverbFormula {
	switch s {
	case "eyring":
		return room.FormulaEyring
	case "custom":
		return room.FormulaCustom
	default:
		return room.FormulaSabine
	}
}

func parseMatrixKind(s string) reverb.MatrixKind {
	if s == "random-orthogonal" {
		return reverb.RandomOrthogonal
	}
	return reverb.Householder
}
