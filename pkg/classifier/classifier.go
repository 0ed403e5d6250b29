package classifier

import (
	"fmt"

	"github.com/project-spencer/orbit/pkg/clouds"
	"github.com/project-spencer/orbit/pkg/model"
	"github.com/project-spencer/orbit/pkg/ndvi"
)

// Classifier measures one scalar per frame and decides from it whether the
// frame moves on to the next stage.
type Classifier interface {
	Name() string
	Measure(img *model.Image) float64
	Keep(metric float64) bool
}

// Dark drops frames with a mean gray level at or below Threshold.
type Dark struct {
	Threshold float64
}

func (Dark) Name() string { return "dark" }

func (d Dark) Measure(img *model.Image) float64 {
	return clouds.MeanIntensity(img)
}

func (d Dark) Keep(metric float64) bool {
	return metric > d.Threshold
}

// Otsu drops frames where the share of pixels above the frame's own Otsu
// level reaches Percentage.
type Otsu struct {
	Percentage float64
}

func (Otsu) Name() string { return "otsu" }

func (o Otsu) Measure(img *model.Image) float64 {
	return clouds.OtsuCoverage(img)
}

func (o Otsu) Keep(metric float64) bool {
	return metric < o.Percentage
}

// Threshold drops frames where the share of green values at or above
// Pixel*255 reaches Percentage.
type Threshold struct {
	Pixel      float64
	Percentage float64
}

func (Threshold) Name() string { return "threshold" }

func (t Threshold) Measure(img *model.Image) float64 {
	return clouds.Coverage(img, t.Pixel)
}

func (t Threshold) Keep(metric float64) bool {
	return metric < t.Percentage
}

// NDVI drops frames where the share of pixels with Low <= ndvi < High
// reaches Percentage. With the default band this is the sea.
type NDVI struct {
	Low        float64
	High       float64
	Percentage float64
}

func (NDVI) Name() string { return "ndvi" }

func (n NDVI) Measure(img *model.Image) float64 {
	return ndvi.RangeCoverage(ndvi.Compute(img), n.Low, n.High)
}

func (n NDVI) Keep(metric float64) bool {
	return metric < n.Percentage
}

// DecodeError scopes a load failure to a single frame.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode %s: %s", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decision is the outcome for one frame.
type Decision struct {
	Path   string
	Metric float64
	Keep   bool
	Err    error
}

// Evaluate loads and classifies one frame. A frame that cannot be loaded is
// not kept and carries a *DecodeError.
func Evaluate(c Classifier, path string, maxDim int) Decision {
	img, err := model.Load(path, maxDim)

	if err != nil {
		return Decision{Path: path, Err: &DecodeError{Path: path, Err: err}}
	}

	m := c.Measure(img)

	return Decision{
		Path:   path,
		Metric: m,
		Keep:   c.Keep(m),
	}
}
