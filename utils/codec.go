package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

// ErrRange is returned by VerifyMatrix when an entry leaves [0,1].
var ErrRange = errors.New("utils: matrix entry outside [0,1]")

// Luminance weights applied to normalised RGB.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// ImageToMatrix converts img to a height×width luminance matrix in [0,1].
func ImageToMatrix(img image.Image) *mat.Dense {
	bounds := img.Bounds()
	h := bounds.Dy()
	w := bounds.Dx()
	out := mat.NewDense(h, w, nil)
	raw := out.RawMatrix()
	for y := range h {
		for x := range w {
			// Fully transparent pixels come back as black.
			c, _ := colorful.MakeColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			if c.R > 1 || c.G > 1 || c.B > 1 {
				panic(fmt.Sprintf("utils: channel above 1 at (%d,%d): %v", x, y, c))
			}
			raw.Data[y*raw.Stride+x] = lumaR*c.R + lumaG*c.G + lumaB*c.B
		}
	}
	return out
}

func toByte(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v*255))))
}

// MatrixToImage renders m as an opaque gray RGBA image, one pixel per entry.
func MatrixToImage(m mat.Matrix) *image.RGBA {
	h, w := m.Dims()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := toByte(m.At(y, x))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// VectorToImage renders a panel vector as a height×width image. Pixel (x,y)
// reads index x+y*height: ray vectors are laid out with the height as stride
// upstream. Pixels whose index falls past the end of v stay black.
func VectorToImage(v mat.Vector, height, width int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := v.Len()
	for y := range height {
		for x := range width {
			i := x + y*height
			if i >= n {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
				continue
			}
			b := toByte(v.AtVec(i))
			img.SetRGBA(x, y, color.RGBA{b, b, b, 255})
		}
	}
	return img
}

// VerifyMatrix checks that every entry of m lies in [0,1].
func VerifyMatrix(m mat.Matrix) error {
	r, c := m.Dims()
	for i := range r {
		for j := range c {
			v := m.At(i, j)
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("%w: (%d,%d) = %v", ErrRange, i, j, v)
			}
		}
	}
	return nil
}
