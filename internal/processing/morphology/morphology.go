package morphology

import (
	"fmt"
	"image"

	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// Fill removes connected components smaller than minArea pixels.
func Fill(mask *raster.Mask, minArea int) (*raster.Mask, error) {
	labels, err := Label(mask)
	if err != nil {
		return nil, fmt.Errorf("fill: %w", err)
	}
	defer labels.Close()

	return labels.Select(func(c Component) bool { return c.Area >= minArea })
}

// FillHoles sets every background region that does not reach the image
// border.
func FillHoles(mask *raster.Mask) (*raster.Mask, error) {
	inverted := gocv.NewMat()
	gocv.BitwiseNot(mask.Mat(), &inverted)
	background, err := raster.NewMask(inverted)
	if err != nil {
		inverted.Close()
		return nil, fmt.Errorf("fill holes: %w", err)
	}
	defer background.Close()

	labels, err := Label(background)
	if err != nil {
		return nil, fmt.Errorf("fill holes: %w", err)
	}
	defer labels.Close()

	frame := mask.Bounds()
	holes, err := labels.Select(func(c Component) bool { return !touchesBorder(c.Box, frame) })
	if err != nil {
		return nil, fmt.Errorf("fill holes: %w", err)
	}
	defer holes.Close()

	return Or(mask, holes)
}

func touchesBorder(box, frame image.Rectangle) bool {
	return box.Min.X <= frame.Min.X || box.Min.Y <= frame.Min.Y ||
		box.Max.X >= frame.Max.X || box.Max.Y >= frame.Max.Y
}

// Erode shrinks the mask with a square kernel of the given side.
func Erode(mask *raster.Mask, kernelSize, iterations int) (*raster.Mask, error) {
	if kernelSize < 1 || iterations < 1 {
		return mask.Clone(), nil
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	src := mask.Mat()
	dst := src.Clone()
	for i := 0; i < iterations; i++ {
		gocv.Erode(dst, &dst, kernel)
	}
	return raster.NewMask(dst)
}

// Blur applies a gaussian blur to the mask and returns it as a gray BGR
// image, since the result is no longer binary.
func Blur(mask *raster.Mask, kernelSize int) (*raster.Image, error) {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(mask.Mat(), &blurred, image.Point{X: kernelSize, Y: kernelSize}, 0, 0, gocv.BorderDefault)

	bgr := gocv.NewMat()
	gocv.CvtColor(blurred, &bgr, gocv.ColorGrayToBGR)
	return raster.NewImage(bgr)
}

// Threshold marks pixels of a single channel plane strictly above cutoff.
func Threshold(plane gocv.Mat, cutoff float32) (*raster.Mask, error) {
	dst := gocv.NewMat()
	gocv.Threshold(plane, &dst, cutoff, raster.Foreground, gocv.ThresholdBinary)
	return raster.NewMask(dst)
}

// And returns a ∧ b.
func And(a, b *raster.Mask) (*raster.Mask, error) {
	return combine(a, b, "and", func(x, y gocv.Mat, dst *gocv.Mat) { gocv.BitwiseAnd(x, y, dst) })
}

// Or returns a ∨ b.
func Or(a, b *raster.Mask) (*raster.Mask, error) {
	return combine(a, b, "or", func(x, y gocv.Mat, dst *gocv.Mat) { gocv.BitwiseOr(x, y, dst) })
}

// Xor returns a ⊕ b: set where exactly one input is set.
func Xor(a, b *raster.Mask) (*raster.Mask, error) {
	return combine(a, b, "xor", func(x, y gocv.Mat, dst *gocv.Mat) { gocv.BitwiseXor(x, y, dst) })
}

func combine(a, b *raster.Mask, name string, op func(gocv.Mat, gocv.Mat, *gocv.Mat)) (*raster.Mask, error) {
	if a.Size() != b.Size() {
		return nil, fmt.Errorf("%s: mask sizes differ: %v vs %v", name, a.Size(), b.Size())
	}

	dst := gocv.NewMat()
	op(a.Mat(), b.Mat(), &dst)
	if dst.Empty() {
		dst.Close()
		return nil, fmt.Errorf("%s produced no output", name)
	}
	return raster.NewMask(dst)
}
