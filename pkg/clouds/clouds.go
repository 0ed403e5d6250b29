package clouds

import (
	"math"

	"github.com/project-spencer/orbit/pkg/model"
)

// MeanIntensity is the average gray level of the frame, 0-255.
func MeanIntensity(img *model.Image) float64 {
	gray := img.Gray()

	if len(gray) == 0 {
		return 0
	}

	var sum uint64
	for _, v := range gray {
		sum += uint64(v)
	}

	return float64(sum) / float64(len(gray))
}

// Coverage is the share of pixels whose green value reaches
// pixelThreshold*255, as a percentage rounded to one decimal.
// With the NoIR camera the green channel is dominated by reflected
// near-infrared, which saturates over cloud tops.
func Coverage(img *model.Image, pixelThreshold float64) float64 {
	n := img.Len()

	if n == 0 {
		return 0
	}

	cut := pixelThreshold * 255

	count := 0
	for p := 0; p < n; p++ {
		if float64(img.Pix[p*3+int(model.Green)]) >= cut {
			count++
		}
	}

	return Percentage(count, n)
}

// OtsuThreshold finds the gray level t that maximizes the between-class
// variance of the split {<= t} / {> t}. Ties keep the lowest level.
func OtsuThreshold(gray []uint8) uint8 {
	var hist [256]float64
	for _, v := range gray {
		hist[v]++
	}

	total := float64(len(gray))
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, h := range hist {
		sumAll += float64(i) * h
	}

	var (
		w0, sum0 float64
		best     float64 = -1
		bestT    int
	)

	for t := 0; t < 256; t++ {
		w0 += hist[t]
		sum0 += float64(t) * hist[t]

		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}

		mu0 := sum0 / w0
		mu1 := (sumAll - sum0) / w1
		between := (w0 / total) * (w1 / total) * (mu0 - mu1) * (mu0 - mu1)

		if between > best {
			best = between
			bestT = t
		}
	}

	return uint8(bestT)
}

// OtsuCoverage binarizes the gray frame at its Otsu level and returns the
// percentage of pixels above it, rounded to one decimal. A frame of a single
// gray level has no foreground.
func OtsuCoverage(img *model.Image) float64 {
	gray := img.Gray()

	if len(gray) == 0 || flat(gray) {
		return 0
	}

	t := OtsuThreshold(gray)

	count := 0
	for _, v := range gray {
		if v > t {
			count++
		}
	}

	return Percentage(count, len(gray))
}

func flat(gray []uint8) bool {
	for _, v := range gray[1:] {
		if v != gray[0] {
			return false
		}
	}
	return true
}

// Percentage is count/total*100 rounded to one decimal place.
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
