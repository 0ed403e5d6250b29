package model

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// Extensions lists the file extensions treated as images when scanning a directory.
var Extensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".webp"}

// Metadata is the location and time attached to a frame at capture.
type Metadata struct {
	Lat     float64
	Lon     float64
	Time    time.Time
	HasGPS  bool
	HasTime bool
}

// Image is a decoded frame. Pix holds 3 bytes per pixel (R, G, B), row-major.
type Image struct {
	Path string
	X    int
	Y    int
	Pix  []uint8
	Meta Metadata
}

func (i *Image) At(x, y int) (r, g, b uint8) {
	p := (y*i.X + x) * 3
	return i.Pix[p], i.Pix[p+1], i.Pix[p+2]
}

func (i *Image) Len() int {
	return i.X * i.Y
}

// Channel returns a copy of a single channel.
func (i *Image) Channel(c Channel) []uint8 {
	out := make([]uint8, i.Len())
	for p := 0; p < len(out); p++ {
		out[p] = i.Pix[p*3+int(c)]
	}
	return out
}

// Gray converts to 8-bit luma with the same weights as color.GrayModel.
func (i *Image) Gray() []uint8 {
	out := make([]uint8, i.Len())
	for p := 0; p < len(out); p++ {
		r := uint32(i.Pix[p*3]) * 0x101
		g := uint32(i.Pix[p*3+1]) * 0x101
		b := uint32(i.Pix[p*3+2]) * 0x101
		out[p] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 24)
	}
	return out
}

func FromImage(src image.Image) *Image {
	b := src.Bounds()
	img := Image{
		X:   b.Dx(),
		Y:   b.Dy(),
		Pix: make([]uint8, b.Dx()*b.Dy()*3),
	}

	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < img.Y; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+img.X*4]
			for x := 0; x < img.X; x++ {
				p := (y*img.X + x) * 3
				img.Pix[p] = row[x*4]
				img.Pix[p+1] = row[x*4+1]
				img.Pix[p+2] = row[x*4+2]
			}
		}
		return &img
	}

	for y := 0; y < img.Y; y++ {
		for x := 0; x < img.X; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			p := (y*img.X + x) * 3
			img.Pix[p] = c.R
			img.Pix[p+1] = c.G
			img.Pix[p+2] = c.B
		}
	}

	return &img
}

func ToImage(i *Image) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, i.X, i.Y))

	for p := 0; p < i.Len(); p++ {
		img.Pix[p*4] = i.Pix[p*3]
		img.Pix[p*4+1] = i.Pix[p*3+1]
		img.Pix[p*4+2] = i.Pix[p*3+2]
		img.Pix[p*4+3] = 0xff
	}

	return img
}

// Decode reads any registered raster format. A positive maxDim downsamples
// the frame so its longer side is at most maxDim pixels.
func Decode(r io.Reader, maxDim int) (*Image, error) {
	src, _, err := image.Decode(r)

	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}

	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		w, h := maxDim, b.Dy()*maxDim/b.Dx()
		if b.Dy() > b.Dx() {
			w, h = b.Dx()*maxDim/b.Dy(), maxDim
		}
		dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		src = dst
	}

	return FromImage(src), nil
}

func Load(path string, maxDim int) (*Image, error) {
	f, err := os.Open(path)

	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f, maxDim)

	if err != nil {
		return nil, err
	}

	img.Path = path
	return img, nil
}

func IsImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
