// Package shape measures the objects of a mask and draws the analysis
// overlay.
package shape

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"

	"leaffliction/internal/processing/morphology"
	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// Ellipse is the least-squares ellipse fitted to an object outline.
type Ellipse struct {
	Center       image.Point `json:"center"`
	MajorAxis    float64     `json:"major_axis"`
	MinorAxis    float64     `json:"minor_axis"`
	Angle        float64     `json:"angle"`
	Eccentricity float64     `json:"eccentricity"`
}

// Object holds the measurements of one external contour.
type Object struct {
	Index     int             `json:"index"`
	Area      float64         `json:"area"`
	PixelArea int             `json:"pixel_area"`
	Perimeter float64         `json:"perimeter"`
	HullArea  float64         `json:"hull_area"`
	Solidity  float64         `json:"solidity"`
	Box       image.Rectangle `json:"box"`
	Center    [2]float64      `json:"center"`
	Ellipse   *Ellipse        `json:"ellipse,omitempty"`
}

func (o Object) Width() int  { return o.Box.Dx() }
func (o Object) Height() int { return o.Box.Dy() }

type Options struct {
	Thickness    int
	ContourColor color.RGBA
	HullColor    color.RGBA
	BoxColor     color.RGBA
	LabelColor   color.RGBA
}

func DefaultOptions() Options {
	return Options{
		Thickness:    2,
		ContourColor: color.RGBA{R: 255, B: 255, A: 255},
		HullColor:    color.RGBA{R: 255, G: 255, A: 255},
		BoxColor:     color.RGBA{B: 255, A: 255},
		LabelColor:   color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

type Analyzer struct {
	opts Options
}

func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{opts: opts}
}

// Analyze measures every object of mask. With no objects the annotated
// image is an unmodified copy of img.
func (a *Analyzer) Analyze(img *raster.Image, mask *raster.Mask) (*raster.Image, []Object, error) {
	if err := raster.MatchSize(img, mask, "shape analysis"); err != nil {
		return nil, nil, err
	}

	annotated := img.Clone()
	if mask.Empty() {
		return annotated, nil, nil
	}

	labels, err := morphology.Label(mask)
	if err != nil {
		annotated.Close()
		return nil, nil, fmt.Errorf("component labelling failed: %w", err)
	}
	defer labels.Close()

	contours := gocv.FindContours(mask.Mat(), gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	outlines := make([]outline, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		o, ok := measure(contours.At(i), labels)
		if ok {
			outlines = append(outlines, o)
		}
	}
	sort.Slice(outlines, func(i, j int) bool {
		bi, bj := outlines[i].obj.Box.Min, outlines[j].obj.Box.Min
		if bi.Y != bj.Y {
			return bi.Y < bj.Y
		}
		return bi.X < bj.X
	})

	objects := make([]Object, len(outlines))
	mat := annotated.Mat()
	for i := range outlines {
		outlines[i].obj.Index = i + 1
		objects[i] = outlines[i].obj
		a.draw(&mat, outlines[i])
	}

	return annotated, objects, nil
}

type outline struct {
	obj     Object
	contour []image.Point
	hull    []image.Point
}

func measure(contour gocv.PointVector, labels *morphology.Labels) (outline, bool) {
	if contour.Size() == 0 {
		return outline{}, false
	}

	hullMat := gocv.NewMat()
	defer hullMat.Close()
	gocv.ConvexHull(contour, &hullMat, true, true)
	hull := gocv.NewPointVectorFromMat(hullMat)
	defer hull.Close()

	o := outline{contour: contour.ToPoints(), hull: hull.ToPoints()}
	o.obj.Area = gocv.ContourArea(contour)
	o.obj.Perimeter = gocv.ArcLength(contour, true)
	o.obj.HullArea = gocv.ContourArea(hull)
	if o.obj.HullArea > 0 {
		o.obj.Solidity = o.obj.Area / o.obj.HullArea
	}
	o.obj.Box = gocv.BoundingRect(contour)

	first := o.contour[0]
	if label := labels.At(first.X, first.Y); label > 0 {
		c := labels.Components[label-1]
		o.obj.PixelArea = c.Area
		o.obj.Center = c.Centroid
	}

	if contour.Size() >= 5 {
		o.obj.Ellipse = fitEllipse(contour)
	}
	return o, true
}

func fitEllipse(contour gocv.PointVector) *Ellipse {
	rr := gocv.FitEllipse(contour)
	major, minor := float64(rr.Width), float64(rr.Height)
	if minor > major {
		major, minor = minor, major
	}

	e := &Ellipse{Center: rr.Center, MajorAxis: major, MinorAxis: minor, Angle: rr.Angle}
	if major > 0 {
		e.Eccentricity = math.Sqrt(1 - (minor*minor)/(major*major))
	}
	return e
}

func (a *Analyzer) draw(mat *gocv.Mat, o outline) {
	outlines := gocv.NewPointsVectorFromPoints([][]image.Point{o.contour, o.hull})
	defer outlines.Close()

	gocv.DrawContours(mat, outlines, 1, a.opts.HullColor, a.opts.Thickness)
	gocv.DrawContours(mat, outlines, 0, a.opts.ContourColor, a.opts.Thickness)
	gocv.Rectangle(mat, o.obj.Box, a.opts.BoxColor, a.opts.Thickness)

	org := image.Pt(o.obj.Box.Min.X, max(o.obj.Box.Min.Y-4, 12))
	gocv.PutText(mat, strconv.Itoa(o.obj.Index), org, gocv.FontHersheySimplex, 0.5, a.opts.LabelColor, 1)
}
