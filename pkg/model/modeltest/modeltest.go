// Package modeltest writes small synthetic frames for tests.
package modeltest

import (
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/project-spencer/orbit/pkg/model"
	"github.com/stretchr/testify/require"
)

// Solid returns a w x h frame of one color.
func Solid(w, h int, r, g, b uint8) *model.Image {
	img := &model.Image{X: w, Y: h, Pix: make([]uint8, w*h*3)}
	for p := 0; p < w*h; p++ {
		img.Pix[p*3] = r
		img.Pix[p*3+1] = g
		img.Pix[p*3+2] = b
	}
	return img
}

// Split returns a frame whose first n pixels are c1 and the rest c2.
func Split(w, h, n int, c1, c2 color.RGBA) *model.Image {
	img := &model.Image{X: w, Y: h, Pix: make([]uint8, w*h*3)}
	for p := 0; p < w*h; p++ {
		c := c2
		if p < n {
			c = c1
		}
		img.Pix[p*3] = c.R
		img.Pix[p*3+1] = c.G
		img.Pix[p*3+2] = c.B
	}
	return img
}

// WritePNG stores img as dir/name and returns the path.
func WritePNG(t testing.TB, dir, name string, img *model.Image) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, png.Encode(f, model.ToImage(img)))
	return p
}

// WriteSolid is WritePNG of a Solid frame.
func WriteSolid(t testing.TB, dir, name string, w, h int, r, g, b uint8) string {
	t.Helper()
	return WritePNG(t, dir, name, Solid(w, h, r, g, b))
}
