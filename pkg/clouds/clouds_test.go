package clouds

import (
	"image/color"
	"testing"

	"github.com/project-spencer/orbit/pkg/model"
	"github.com/project-spencer/orbit/pkg/model/modeltest"
	"github.com/stretchr/testify/assert"
)

func TestMeanIntensity(t *testing.T) {
	assert.Equal(t, 0.0, MeanIntensity(modeltest.Solid(4, 4, 0, 0, 0)))
	assert.Equal(t, 255.0, MeanIntensity(modeltest.Solid(4, 4, 255, 255, 255)))

	half := modeltest.Split(4, 1, 2, color.RGBA{R: 100, G: 100, B: 100}, color.RGBA{R: 0, G: 0, B: 0})
	assert.Equal(t, 50.0, MeanIntensity(half))
}

func TestMeanIntensity_Empty(t *testing.T) {
	assert.Equal(t, 0.0, MeanIntensity(&model.Image{}))
}

func TestCoverage(t *testing.T) {
	img := modeltest.Split(10, 10, 26, color.RGBA{G: 255}, color.RGBA{G: 0})

	assert.Equal(t, 26.0, Coverage(img, 0.76))
}

func TestCoverage_PixelBoundary(t *testing.T) {
	// 0.76*255 = 193.8
	assert.Equal(t, 100.0, Coverage(modeltest.Solid(2, 2, 0, 194, 0), 0.76))
	assert.Equal(t, 0.0, Coverage(modeltest.Solid(2, 2, 0, 193, 0), 0.76))
}

func TestCoverage_OnlyGreen(t *testing.T) {
	assert.Equal(t, 0.0, Coverage(modeltest.Solid(2, 2, 255, 0, 255), 0.76))
}

func TestOtsuThreshold_Bimodal(t *testing.T) {
	gray := make([]uint8, 100)
	for i := range gray {
		gray[i] = 20
		if i >= 50 {
			gray[i] = 200
		}
	}

	assert.Equal(t, uint8(20), OtsuThreshold(gray))
}

func TestOtsuThreshold_Flat(t *testing.T) {
	assert.Equal(t, uint8(0), OtsuThreshold([]uint8{7, 7, 7}))
	assert.Equal(t, uint8(0), OtsuThreshold(nil))
}

func TestOtsuCoverage(t *testing.T) {
	img := modeltest.Split(10, 10, 30, color.RGBA{R: 200, G: 200, B: 200}, color.RGBA{R: 20, G: 20, B: 20})

	assert.Equal(t, 30.0, OtsuCoverage(img))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 33.3, Percentage(1, 3))
	assert.Equal(t, 66.7, Percentage(2, 3))
	assert.Equal(t, 100.0, Percentage(5, 5))
	assert.Equal(t, 0.0, Percentage(0, 0))
}

func TestOtsuCoverage_Flat(t *testing.T) {
	assert.Equal(t, 0.0, OtsuCoverage(modeltest.Solid(4, 4, 90, 90, 90)))
}
