// Package landmark samples pseudolandmarks along the x axis of the largest
// object of a mask.
package landmark

import (
	"fmt"
	"image"
	"image/color"

	"leaffliction/internal/processing/morphology"
	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// Landmarks are the boundary crossings of evenly spaced columns. The three
// slices always have the same length.
type Landmarks struct {
	Top    []image.Point `json:"top"`
	Bottom []image.Point `json:"bottom"`
	Center []image.Point `json:"center"`
}

func (l Landmarks) Len() int { return len(l.Top) }

// Points returns top, bottom and center landmarks in that order.
func (l Landmarks) Points() []image.Point {
	pts := make([]image.Point, 0, 3*l.Len())
	pts = append(pts, l.Top...)
	pts = append(pts, l.Bottom...)
	return append(pts, l.Center...)
}

type Options struct {
	Count       int
	Radius      int
	TopColor    color.RGBA
	BottomColor color.RGBA
	CenterColor color.RGBA
}

func DefaultOptions() Options {
	return Options{
		Count:       20,
		Radius:      3,
		TopColor:    color.RGBA{B: 255, A: 255},
		BottomColor: color.RGBA{R: 255, B: 255, A: 255},
		CenterColor: color.RGBA{R: 255, G: 94, A: 255},
	}
}

type Extractor struct {
	opts Options
}

func NewExtractor(opts Options) *Extractor {
	if opts.Count < 1 {
		opts.Count = 1
	}
	return &Extractor{opts: opts}
}

// Extract computes the landmarks of the largest component of mask. An empty
// mask yields no landmarks and an unmodified copy of img.
func (e *Extractor) Extract(img *raster.Image, mask *raster.Mask) (Landmarks, *raster.Image, error) {
	if err := raster.MatchSize(img, mask, "pseudolandmarks"); err != nil {
		return Landmarks{}, nil, err
	}

	labels, err := morphology.Label(mask)
	if err != nil {
		return Landmarks{}, nil, fmt.Errorf("component labelling failed: %w", err)
	}
	defer labels.Close()

	annotated := img.Clone()
	largest, ok := labels.Largest()
	if !ok {
		return Landmarks{}, annotated, nil
	}

	lm := e.sample(labels, largest)
	e.draw(annotated, lm)
	return lm, annotated, nil
}

func (e *Extractor) sample(labels *morphology.Labels, c morphology.Component) Landmarks {
	n := e.opts.Count
	lm := Landmarks{
		Top:    make([]image.Point, 0, n),
		Bottom: make([]image.Point, 0, n),
		Center: make([]image.Point, 0, n),
	}

	for _, x := range columns(c.Box.Min.X, c.Box.Max.X-1, n) {
		top, bottom := -1, -1
		for y := c.Box.Min.Y; y < c.Box.Max.Y; y++ {
			if labels.At(x, y) != c.Label {
				continue
			}
			if top < 0 {
				top = y
			}
			bottom = y
		}
		lm.Top = append(lm.Top, image.Pt(x, top))
		lm.Bottom = append(lm.Bottom, image.Pt(x, bottom))
		lm.Center = append(lm.Center, image.Pt(x, (top+bottom)/2))
	}
	return lm
}

// columns returns n x positions evenly spaced over [lo, hi].
func columns(lo, hi, n int) []int {
	xs := make([]int, n)
	if n == 1 {
		xs[0] = (lo + hi) / 2
		return xs
	}
	span := float64(hi - lo)
	for i := range xs {
		xs[i] = lo + int(float64(i)*span/float64(n-1)+0.5)
	}
	return xs
}

func (e *Extractor) draw(img *raster.Image, lm Landmarks) {
	mat := img.Mat()
	for _, set := range []struct {
		pts []image.Point
		c   color.RGBA
	}{
		{lm.Top, e.opts.TopColor},
		{lm.Bottom, e.opts.BottomColor},
		{lm.Center, e.opts.CenterColor},
	} {
		for _, p := range set.pts {
			gocv.Circle(&mat, p, e.opts.Radius, set.c, -1)
		}
	}
}
