package classifier

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/project-spencer/orbit/pkg/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	land = color.RGBA{R: 60, G: 100, B: 140}
	sea  = color.RGBA{R: 140, G: 100, B: 60}
)

func TestDark_Boundary(t *testing.T) {
	d := Dark{Threshold: 30}

	m := d.Measure(modeltest.Solid(4, 4, 30, 30, 30))
	assert.Equal(t, 30.0, m)
	assert.False(t, d.Keep(m))

	m = d.Measure(modeltest.Solid(4, 4, 31, 31, 31))
	assert.True(t, d.Keep(m))
}

func TestThreshold_StrictlyBelow(t *testing.T) {
	c := Threshold{Pixel: 0.76, Percentage: 26}

	m := c.Measure(modeltest.Split(10, 10, 26, color.RGBA{G: 255}, land))
	assert.Equal(t, 26.0, m)
	assert.False(t, c.Keep(m))

	m = c.Measure(modeltest.Split(10, 10, 25, color.RGBA{G: 255}, land))
	assert.True(t, c.Keep(m))
}

func TestNDVI_SeaShare(t *testing.T) {
	c := NDVI{Low: -1, High: 0.1, Percentage: 32.2}

	m := c.Measure(modeltest.Split(100, 10, 322, sea, land))
	assert.Equal(t, 32.2, m)
	assert.False(t, c.Keep(m))

	m = c.Measure(modeltest.Split(100, 10, 321, sea, land))
	assert.Equal(t, 32.1, m)
	assert.True(t, c.Keep(m))
}

func TestOtsu_Keep(t *testing.T) {
	c := Otsu{Percentage: 40}

	assert.True(t, c.Keep(c.Measure(modeltest.Split(10, 10, 30, color.RGBA{R: 220, G: 220, B: 220}, land))))
	assert.False(t, c.Keep(40))
}

func TestEvaluate_DecodeError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(p, []byte("nope"), 0644))

	d := Evaluate(Dark{Threshold: 30}, p, 0)

	var decodeErr *DecodeError
	require.ErrorAs(t, d.Err, &decodeErr)
	assert.Equal(t, p, decodeErr.Path)
	assert.False(t, d.Keep)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "dark", Dark{}.Name())
	assert.Equal(t, "otsu", Otsu{}.Name())
	assert.Equal(t, "threshold", Threshold{}.Name())
	assert.Equal(t, "ndvi", NDVI{}.Name())
}
