// Package ndvi computes the Normalized Difference Vegetation Index from frames
// taken with a NoIR camera behind a blue filter: the blue channel carries the
// near-infrared signal and the red channel carries visible red.
package ndvi

import (
	"errors"
	"math"
	"sort"

	"github.com/project-spencer/orbit/pkg/clouds"
	"github.com/project-spencer/orbit/pkg/model"
)

// ZeroFloor replaces a zero denominator.
const ZeroFloor = 0.01

var ErrEmpty = errors.New("ndvi: no values to average")

// Grid holds one NDVI value per pixel, row-major.
type Grid struct {
	X      int
	Y      int
	Values []float64
}

// Compute returns (blue-red)/(red+blue) for every pixel, on channels
// normalized to [0,1].
func Compute(img *model.Image) Grid {
	g := Grid{
		X:      img.X,
		Y:      img.Y,
		Values: make([]float64, img.Len()),
	}

	for p := range g.Values {
		red := float64(img.Pix[p*3+int(model.Red)]) / 255
		blue := float64(img.Pix[p*3+int(model.Blue)]) / 255
		g.Values[p] = Pixel(red, blue)
	}

	return g
}

// Pixel is the NDVI of one (red, blue) pair.
func Pixel(red, blue float64) float64 {
	bottom := red + blue
	if bottom == 0 {
		bottom = ZeroFloor
	}
	return (blue - red) / bottom
}

// Mean averages the grid. With removeNegatives, values below zero (mostly
// water and cloud) are dropped first.
func Mean(g Grid, removeNegatives bool) (float64, error) {
	var sum float64
	n := 0

	for _, v := range g.Values {
		if removeNegatives && v < 0 {
			continue
		}
		sum += v
		n++
	}

	if n == 0 {
		return 0, ErrEmpty
	}

	return sum / float64(n), nil
}

// RangeCoverage is the percentage of pixels with low <= v < high, rounded
// to one decimal.
func RangeCoverage(g Grid, low, high float64) float64 {
	count := 0
	for _, v := range g.Values {
		if v >= low && v < high {
			count++
		}
	}
	return clouds.Percentage(count, len(g.Values))
}

// Stretch linearly maps the lowPct..highPct percentile band of the grid onto
// [0,1]. Values outside the band land outside [0,1]. A flat grid is returned
// unchanged.
func Stretch(g Grid, lowPct, highPct float64) Grid {
	out := Grid{X: g.X, Y: g.Y, Values: make([]float64, len(g.Values))}
	copy(out.Values, g.Values)

	if len(g.Values) == 0 {
		return out
	}

	lo := Percentile(g.Values, lowPct)
	hi := Percentile(g.Values, highPct)

	if hi == lo {
		return out
	}

	for i, v := range out.Values {
		out.Values[i] = (v - lo) / (hi - lo)
	}

	return out
}

// Percentile uses linear interpolation between closest ranks.
func Percentile(values []float64, pct float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)

	pos := pct / 100 * float64(len(s)-1)
	i := int(math.Floor(pos))
	if i >= len(s)-1 {
		return s[len(s)-1]
	}
	if i < 0 {
		return s[0]
	}

	frac := pos - float64(i)
	return s[i] + (s[i+1]-s[i])*frac
}
