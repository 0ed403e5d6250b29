package ndvi

import (
	"math"
	"testing"

	"github.com/project-spencer/orbit/pkg/model"
	"github.com/project-spencer/orbit/pkg/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixel(t *testing.T) {
	assert.Equal(t, 0.0, Pixel(0, 0))
	assert.Equal(t, 1.0, Pixel(0, 1))
	assert.Equal(t, -1.0, Pixel(1, 0))
	assert.InDelta(t, 0.4, Pixel(60.0/255, 140.0/255), 1e-9)
}

func TestCompute_Bounds(t *testing.T) {
	img := &model.Image{X: 256, Y: 1}
	for r := 0; r < 256; r++ {
		img.Pix = append(img.Pix, uint8(r), 0, uint8(255-r))
	}

	g := Compute(img)
	require.Len(t, g.Values, 256)

	for _, v := range g.Values {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestCompute_BlackIsZero(t *testing.T) {
	g := Compute(modeltest.Solid(3, 3, 0, 0, 0))
	for _, v := range g.Values {
		assert.Equal(t, 0.0, v)
	}
}

func TestMean(t *testing.T) {
	g := Grid{X: 3, Y: 1, Values: []float64{-0.5, 0.2, 0.4}}

	m, err := Mean(g, true)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, m, 1e-9)

	m, err = Mean(g, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.1/3, m, 1e-9)
}

func TestMean_Empty(t *testing.T) {
	_, err := Mean(Grid{Values: []float64{-0.1, -0.9}}, true)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Mean(Grid{}, false)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRangeCoverage_HalfOpen(t *testing.T) {
	g := Grid{X: 4, Y: 1, Values: []float64{-1, 0, 0.1, 0.5}}

	assert.Equal(t, 50.0, RangeCoverage(g, -1, 0.1))
}

func TestStretch(t *testing.T) {
	g := Grid{X: 11, Y: 1}
	for i := 0; i <= 10; i++ {
		g.Values = append(g.Values, float64(i))
	}

	s := Stretch(g, 0, 100)

	for i, v := range s.Values {
		assert.InDelta(t, float64(i)/10, v, 1e-9)
	}
	assert.Equal(t, 10.0, g.Values[10], "input left untouched")
}

func TestStretch_Flat(t *testing.T) {
	g := Grid{X: 3, Y: 1, Values: []float64{0.2, 0.2, 0.2}}

	assert.Equal(t, g.Values, Stretch(g, 5, 95).Values)
}

func TestPercentile(t *testing.T) {
	v := []float64{4, 1, 3, 2}

	assert.Equal(t, 2.5, Percentile(v, 50))
	assert.Equal(t, 1.0, Percentile(v, 0))
	assert.Equal(t, 4.0, Percentile(v, 100))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}
