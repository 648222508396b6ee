package audiograph

import (
	"testing"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/diffmodel"
	"github.com/rtacoustics/raengine/pkg/dsp/reverb"
	"github.com/rtacoustics/raengine/pkg/spatial"
	"github.com/rtacoustics/raengine/pkg/vsource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceGraph_DirectVoiceProducesOutput(t *testing.T) {
	g := NewSourceGraph(1, []float64{250, 1000, 4000}, 48000, 4, diffmodel.Attenuate, 64)
	g.Publish(map[string]vsource.Descriptor{
		"direct": {Key: "direct", Image: geomath.Vec3{Z: 3}, Distance: 3, Visible: true},
	})

	input := make([]float32, 64)
	input[0] = 1
	outL := make([]float32, 64)
	outR := make([]float32, 64)
	sp := spatial.NewConstantPowerPan()

	for i := 0; i < 600; i++ {
		g.Render(input, sp, geomath.Vec3{}, geomath.Vec3{Z: 1}, geomath.Vec3{X: 1}, nil, outL, outR)
		for j := range input {
			input[j] = 0
		}
	}

	var energy float64
	for _, v := range outL {
		energy += float64(v) * float64(v)
	}
	assert.Greater(t, energy, 0.0)
	require.NotNil(t, g.voices["direct"])
}

func TestSourceGraph_RemovedVSFadesOutAndReleasesChannel(t *testing.T) {
	g := NewSourceGraph(1, []float64{250, 1000, 4000}, 48000, 2, diffmodel.Attenuate, 32)
	g.Publish(map[string]vsource.Descriptor{
		"1r": {Key: "1r", Image: geomath.Vec3{Z: 3}, Distance: 3, FeedsFDN: true, Absorption: []float64{0.5, 0.5, 0.5}},
	})

	input := make([]float32, 32)
	outL := make([]float32, 32)
	outR := make([]float32, 32)
	sp := spatial.NewConstantPowerPan()
	acc := reverb.NewInputAccumulator(2, 32)

	for i := 0; i < 5; i++ {
		g.Render(input, sp, geomath.Vec3{}, geomath.Vec3{Z: 1}, geomath.Vec3{X: 1}, acc, outL, outR)
	}
	assert.Len(t, g.voices, 1)

	g.Publish(map[string]vsource.Descriptor{})
	for i := 0; i < 2000; i++ {
		g.Render(input, sp, geomath.Vec3{}, geomath.Vec3{Z: 1}, geomath.Vec3{X: 1}, acc, outL, outR)
	}
	assert.Len(t, g.voices, 0)
}
