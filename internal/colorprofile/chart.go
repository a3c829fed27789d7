package colorprofile

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/raster"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

const (
	title  = "Color histogram"
	xLabel = "Pixel intensity"
	yLabel = "Proportion of pixels (%)"
	xTick  = 25
	xMax   = 255
)

var palette = map[conversion.Channel]string{
	conversion.Blue:         "#0000ff",
	conversion.Green:        "#008000",
	conversion.GreenMagenta: "#ff00ff",
	conversion.BlueYellow:   "#ffff00",
	conversion.Red:          "#ff0000",
	conversion.Hue:          "#00ffff",
	conversion.Lightness:    "#ffa500",
	conversion.Saturation:   "#808080",
	conversion.Value:        "#800080",
}

// SeriesColor returns the line color of channel c.
func SeriesColor(c conversion.Channel) color.RGBA {
	hex, ok := palette[c]
	if !ok {
		hex = "#000000"
	}
	cc, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return toRGBA(cc)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

var (
	white     = colorful.Color{R: 1, G: 1, B: 1}
	black     = colorful.Color{}
	gridColor = toRGBA(white.BlendLab(black, 0.2))
	inkColor  = toRGBA(black)
)

type Options struct {
	Width  int
	Height int
}

func DefaultOptions() Options {
	return Options{Width: 1600, Height: 900}
}

// Profiler computes profiles and renders charts of a fixed size.
type Profiler struct {
	opts Options
}

func NewProfiler(opts Options) *Profiler {
	return &Profiler{opts: opts}
}

func (p *Profiler) Profile(img *raster.Image, mask *raster.Mask) (*Profile, error) {
	return Compute(img, mask)
}

// frame maps data coordinates onto the plot area.
type frame struct {
	area image.Rectangle
	yMax float64
}

func (f frame) point(x, y float64) image.Point {
	px := float64(f.area.Min.X) + x/xMax*float64(f.area.Dx())
	py := float64(f.area.Max.Y) - y/f.yMax*float64(f.area.Dy())
	return image.Pt(int(math.Round(px)), int(math.Round(py)))
}

// Render draws every series of profile as overlaid lines with a legend,
// axis labels and a dashed grid.
func (p *Profiler) Render(profile *Profile) (*raster.Image, error) {
	if p.opts.Width < 400 || p.opts.Height < 300 {
		return nil, fmt.Errorf("chart size %dx%d is too small", p.opts.Width, p.opts.Height)
	}

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), p.opts.Height, p.opts.Width, gocv.MatTypeCV8UC3)
	series := make([]Series, 0, len(profile.Histograms))
	yMax := 0.0
	for _, h := range profile.Histograms {
		s := Plot(h)
		if len(s.Y) > 0 {
			yMax = math.Max(yMax, floats.Max(s.Y))
		}
		series = append(series, s)
	}
	f := frame{
		area: image.Rect(110, 80, p.opts.Width-40, p.opts.Height-90),
		yMax: niceCeil(yMax * 1.05),
	}

	drawGrid(&canvas, f)
	for i, h := range profile.Histograms {
		drawSeries(&canvas, f, series[i], SeriesColor(h.Channel))
	}
	gocv.Rectangle(&canvas, f.area, inkColor, 1)
	drawLabels(&canvas, f)
	drawLegend(&canvas, f, profile.Histograms)

	img, err := raster.NewImage(canvas)
	if err != nil {
		canvas.Close()
		return nil, err
	}
	return img, nil
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*exp >= v {
			return m * exp
		}
	}
	return 10 * exp
}

func yTicks(yMax float64) []float64 {
	step := yMax / 5
	ticks := make([]float64, 0, 6)
	for i := 0; i <= 5; i++ {
		ticks = append(ticks, float64(i)*step)
	}
	return ticks
}

func dashedLine(mat *gocv.Mat, from, to image.Point, c color.RGBA) {
	const dash, gap = 6, 4
	dx, dy := float64(to.X-from.X), float64(to.Y-from.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	for s := 0.0; s < length; s += dash + gap {
		e := math.Min(s+dash, length)
		a := image.Pt(from.X+int(dx*s/length), from.Y+int(dy*s/length))
		b := image.Pt(from.X+int(dx*e/length), from.Y+int(dy*e/length))
		gocv.Line(mat, a, b, c, 1)
	}
}

func drawGrid(mat *gocv.Mat, f frame) {
	for x := 0; x <= xMax; x += xTick {
		top, bottom := f.point(float64(x), f.yMax), f.point(float64(x), 0)
		dashedLine(mat, top, bottom, gridColor)
		gocv.Line(mat, bottom, bottom.Add(image.Pt(0, 6)), inkColor, 1)
		putCentered(mat, fmt.Sprint(x), bottom.Add(image.Pt(0, 26)), 0.5)
	}
	for _, y := range yTicks(f.yMax) {
		left, right := f.point(0, y), f.point(xMax, y)
		dashedLine(mat, left, right, gridColor)
		gocv.Line(mat, left, left.Sub(image.Pt(6, 0)), inkColor, 1)
		label := fmt.Sprintf("%.3g", y)
		size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
		gocv.PutText(mat, label, image.Pt(left.X-size.X-10, left.Y+size.Y/2), gocv.FontHersheySimplex, 0.5, inkColor, 1)
	}
}

func drawSeries(mat *gocv.Mat, f frame, s Series, c color.RGBA) {
	if len(s.X) < 2 {
		return
	}
	pts := make([]image.Point, len(s.X))
	for i := range s.X {
		pts[i] = f.point(s.X[i], s.Y[i])
	}
	line := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer line.Close()
	gocv.Polylines(mat, line, false, c, 2)
}

func putCentered(mat *gocv.Mat, text string, center image.Point, scale float64) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, scale, 1)
	gocv.PutText(mat, text, image.Pt(center.X-size.X/2, center.Y), gocv.FontHersheySimplex, scale, inkColor, 1)
}

func drawLabels(mat *gocv.Mat, f frame) {
	putCentered(mat, title, image.Pt(mat.Cols()/2, 50), 1.0)
	putCentered(mat, xLabel, image.Pt(f.area.Min.X+f.area.Dx()/2, mat.Rows()-25), 0.7)

	// The y label is drawn horizontally on a strip that is then rotated.
	size := gocv.GetTextSize(yLabel, gocv.FontHersheySimplex, 0.7, 1)
	strip := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), size.Y+10, size.X+10, gocv.MatTypeCV8UC3)
	defer strip.Close()
	gocv.PutText(&strip, yLabel, image.Pt(5, size.Y+3), gocv.FontHersheySimplex, 0.7, inkColor, 1)

	rotated := gocv.NewMat()
	defer rotated.Close()
	gocv.Rotate(strip, &rotated, gocv.Rotate90CounterClockwise)

	top := f.area.Min.Y + (f.area.Dy()-rotated.Rows())/2
	dst := image.Rect(15, top, 15+rotated.Cols(), top+rotated.Rows())
	if dst.In(image.Rect(0, 0, mat.Cols(), mat.Rows())) {
		region := mat.Region(dst)
		defer region.Close()
		rotated.CopyTo(&region)
	}
}

func drawLegend(mat *gocv.Mat, f frame, hs []Histogram) {
	const row, swatch = 24, 30
	width := 0
	for _, h := range hs {
		width = max(width, gocv.GetTextSize(h.Channel.String(), gocv.FontHersheySimplex, 0.5, 1).X)
	}
	box := image.Rect(f.area.Max.X-width-swatch-40, f.area.Min.Y+10, f.area.Max.X-10, f.area.Min.Y+20+row*len(hs))
	gocv.Rectangle(mat, box, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	gocv.Rectangle(mat, box, gridColor, 1)

	for i, h := range hs {
		y := box.Min.Y + 10 + row*i + row/2
		x := box.Min.X + 10
		gocv.Line(mat, image.Pt(x, y), image.Pt(x+swatch, y), SeriesColor(h.Channel), 2)
		gocv.PutText(mat, h.Channel.String(), image.Pt(x+swatch+10, y+5), gocv.FontHersheySimplex, 0.5, inkColor, 1)
	}
}
