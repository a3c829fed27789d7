// Package rastertest builds synthetic images and masks for tests.
package rastertest

import (
	"image"
	"image/color"

	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.RGBA) *raster.Image {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0), h, w, gocv.MatTypeCV8UC3)
	img, err := raster.NewImage(mat)
	if err != nil {
		panic(err)
	}
	return img
}

// Paint fills r on img in place. Only for building fixtures.
func Paint(img *raster.Image, r image.Rectangle, c color.RGBA) {
	mat := img.Mat()
	gocv.Rectangle(&mat, image.Rect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1), c, -1)
}

// Mask returns a mask of the given size with every rectangle set.
func Mask(size image.Point, rects ...image.Rectangle) *raster.Mask {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC1)
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				mat.SetUCharAt(y, x, raster.Foreground)
			}
		}
	}
	mask, err := raster.NewMask(mat)
	if err != nil {
		panic(err)
	}
	return mask
}

// PixelBGR returns the channel values at (x, y).
func PixelBGR(img *raster.Image, x, y int) [3]uint8 {
	mat := img.Mat()
	return [3]uint8{mat.GetUCharAt3(y, x, 0), mat.GetUCharAt3(y, x, 1), mat.GetUCharAt3(y, x, 2)}
}

// Equal reports whether two images have identical pixels.
func Equal(a, b *raster.Image) bool {
	if a.Size() != b.Size() {
		return false
	}
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a.Mat(), b.Mat(), &diff)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	return gocv.CountNonZero(gray) == 0
}
