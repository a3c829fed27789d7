// Package region restricts a mask to the objects touching a region of
// interest and draws the ROI overlay.
package region

import (
	"fmt"
	"image"
	"image/color"

	"leaffliction/internal/opencv/safe"
	"leaffliction/internal/processing/morphology"
	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

type Options struct {
	// ROI is the region of interest. The zero rectangle selects the full
	// frame.
	ROI         image.Rectangle
	BorderWidth int
	BorderColor color.RGBA
	Highlight   color.RGBA
}

func DefaultOptions() Options {
	return Options{
		BorderWidth: 5,
		BorderColor: color.RGBA{B: 255, A: 255},
		Highlight:   color.RGBA{G: 255, A: 255},
	}
}

type Extractor struct {
	opts Options
}

func NewExtractor(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Region returns the effective ROI for an image of the given bounds.
func (e *Extractor) Region(bounds image.Rectangle) (image.Rectangle, error) {
	if e.opts.ROI == (image.Rectangle{}) {
		return bounds, nil
	}
	if err := safe.ValidateRect(e.opts.ROI, bounds, "region of interest"); err != nil {
		return image.Rectangle{}, err
	}
	return e.opts.ROI, nil
}

// Extract keeps every connected component of mask with at least one pixel
// inside the ROI, in full, and returns it with the annotated image.
func (e *Extractor) Extract(img *raster.Image, mask *raster.Mask) (*raster.Mask, *raster.Image, error) {
	if err := raster.MatchSize(img, mask, "region extraction"); err != nil {
		return nil, nil, err
	}

	roi, err := e.Region(img.Bounds())
	if err != nil {
		return nil, nil, err
	}

	kept, err := Partial(mask, roi)
	if err != nil {
		return nil, nil, err
	}

	annotated, err := e.Annotate(img, kept)
	if err != nil {
		kept.Close()
		return nil, nil, err
	}
	return kept, annotated, nil
}

// Partial returns the components of mask that overlap roi.
func Partial(mask *raster.Mask, roi image.Rectangle) (*raster.Mask, error) {
	labels, err := morphology.Label(mask)
	if err != nil {
		return nil, fmt.Errorf("component labelling failed: %w", err)
	}
	defer labels.Close()

	hit := make(map[int]bool, len(labels.Components))
	for _, c := range labels.Components {
		if !c.Box.Overlaps(roi) {
			continue
		}
		area := c.Box.Intersect(roi)
		for y := area.Min.Y; y < area.Max.Y && !hit[c.Label]; y++ {
			for x := area.Min.X; x < area.Max.X; x++ {
				if labels.At(x, y) == c.Label {
					hit[c.Label] = true
					break
				}
			}
		}
	}

	return labels.Select(func(c morphology.Component) bool { return hit[c.Label] })
}

// Annotate tints the kept pixels and frames the image. A ROI smaller than
// the frame is outlined as well.
func (e *Extractor) Annotate(img *raster.Image, kept *raster.Mask) (*raster.Image, error) {
	roi, err := e.Region(img.Bounds())
	if err != nil {
		return nil, err
	}

	out, err := raster.Paint(img, kept, e.opts.Highlight)
	if err != nil {
		return nil, err
	}
	DrawBorder(out, e.opts.BorderWidth, e.opts.BorderColor)

	if roi != img.Bounds() {
		mat := out.Mat()
		gocv.Rectangle(&mat, image.Rect(roi.Min.X, roi.Min.Y, roi.Max.X-1, roi.Max.Y-1), e.opts.BorderColor, 2)
	}
	return out, nil
}

// DrawBorder paints a band of the given width along the image perimeter.
func DrawBorder(img *raster.Image, width int, c color.RGBA) {
	size := img.Size()
	width = min(width, size.X, size.Y)
	if width <= 0 {
		return
	}

	mat := img.Mat()
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, size.X, width),
		image.Rect(0, size.Y-width, size.X, size.Y),
		image.Rect(0, 0, width, size.Y),
		image.Rect(size.X-width, 0, size.X, size.Y),
	} {
		gocv.Rectangle(&mat, image.Rect(r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1), c, -1)
	}
}
