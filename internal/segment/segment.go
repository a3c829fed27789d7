// Package segment separates the leaf from its background and derives the
// disease mask.
package segment

import (
	"fmt"

	"leaffliction/internal/debug"
	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/processing/chain"
	"leaffliction/internal/processing/morphology"
	"leaffliction/internal/raster"
	"leaffliction/internal/rembg"

	"gocv.io/x/gocv"
)

// Method selects the foreground algorithm.
type Method string

const (
	// MethodShadowAware intersects a lightness silhouette with the output of
	// a background removal model.
	MethodShadowAware Method = "shadow"
	// MethodSaturation thresholds the HSV saturation plane. It needs no
	// model and suits images shot on a neutral background.
	MethodSaturation Method = "saturation"
)

// ChromaPoint is a point in the 8-bit (a*, b*) plane, where 128 is neutral.
type ChromaPoint struct {
	A uint8 `yaml:"a"`
	B uint8 `yaml:"b"`
}

type Options struct {
	Method Method
	// ShadowThreshold is the lightness cutoff of the shadow-inclusive
	// silhouette; RemovedThreshold the cutoff applied to the model output.
	ShadowThreshold  float32
	RemovedThreshold float32
	// SaturationThreshold is used by MethodSaturation only.
	SaturationThreshold float32
	FillSize            int
	ErodeKernel         int
	ErodeIterations     int
	// DiseaseLow and DiseaseHigh are opposite corners of the inclusive
	// chrominance rectangle of the color test.
	DiseaseLow  ChromaPoint
	DiseaseHigh ChromaPoint
}

func DefaultOptions() Options {
	return Options{
		Method:              MethodShadowAware,
		ShadowThreshold:     30,
		RemovedThreshold:    40,
		SaturationThreshold: 70,
		FillSize:            500,
		ErodeKernel:         3,
		ErodeIterations:     1,
		DiseaseLow:          ChromaPoint{A: 80, B: 80},
		DiseaseHigh:         ChromaPoint{A: 125, B: 140},
	}
}

func (o Options) Validate() error {
	switch o.Method {
	case MethodShadowAware, MethodSaturation:
	default:
		return fmt.Errorf("unknown segmentation method %q", o.Method)
	}
	if o.FillSize < 0 {
		return fmt.Errorf("fill size must not be negative, got %d", o.FillSize)
	}
	if o.ErodeKernel < 0 || o.ErodeIterations < 0 {
		return fmt.Errorf("erode kernel and iterations must not be negative")
	}
	if o.DiseaseLow.A > o.DiseaseHigh.A || o.DiseaseLow.B > o.DiseaseHigh.B {
		return fmt.Errorf("disease anchors %v and %v do not span a rectangle", o.DiseaseLow, o.DiseaseHigh)
	}
	return nil
}

type Segmenter struct {
	opts    Options
	remover rembg.BackgroundRemover
}

func New(opts Options, remover rembg.BackgroundRemover) *Segmenter {
	if remover == nil {
		remover = rembg.Passthrough{}
	}
	return &Segmenter{opts: opts, remover: remover}
}

// Segment returns the foreground mask and the disease mask.
func (s *Segmenter) Segment(img *raster.Image, sink debug.Sink) (*raster.Mask, *raster.Mask, error) {
	fg, err := s.Foreground(img, sink)
	if err != nil {
		return nil, nil, err
	}

	disease, err := s.Disease(img, fg, sink)
	if err != nil {
		fg.Close()
		return nil, nil, err
	}
	return fg, disease, nil
}

// Foreground computes the leaf silhouette. An image with nothing detected
// yields an all-zero mask.
func (s *Segmenter) Foreground(img *raster.Image, sink debug.Sink) (*raster.Mask, error) {
	sink = debug.OrDiscard(sink)

	switch s.opts.Method {
	case MethodSaturation:
		return s.saturationForeground(img, sink)
	default:
		return s.shadowAwareForeground(img, sink)
	}
}

func (s *Segmenter) shadowAwareForeground(img *raster.Image, sink debug.Sink) (*raster.Mask, error) {
	silhouette, err := s.silhouette(img, conversion.Lightness, s.opts.ShadowThreshold, sink)
	if err != nil {
		return nil, err
	}
	defer silhouette.Close()

	removed, err := s.remover.Remove(img)
	if err != nil {
		return nil, fmt.Errorf("background removal failed: %w", err)
	}
	defer removed.Close()
	sink.Emit("removed", removed.Mat())

	subject, err := thresholdChannel(removed, conversion.Lightness, s.opts.RemovedThreshold)
	if err != nil {
		return nil, err
	}
	defer subject.Close()
	sink.Emit("subject", subject.Mat())

	both, err := morphology.And(silhouette, subject)
	if err != nil {
		return nil, err
	}
	defer both.Close()
	sink.Emit("intersection", both.Mat())

	fg, err := morphology.FillHoles(both)
	if err != nil {
		return nil, err
	}
	sink.Emit("foreground", fg.Mat())
	return fg, nil
}

func (s *Segmenter) saturationForeground(img *raster.Image, sink debug.Sink) (*raster.Mask, error) {
	fg, err := s.silhouette(img, conversion.Saturation, s.opts.SaturationThreshold, sink)
	if err != nil {
		return nil, err
	}
	sink.Emit("foreground", fg.Mat())
	return fg, nil
}

// silhouette thresholds one plane, drops small components and erodes.
func (s *Segmenter) silhouette(img *raster.Image, c conversion.Channel, cutoff float32, sink debug.Sink) (*raster.Mask, error) {
	raw, err := thresholdChannel(img, c, cutoff)
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	sink.Emit("threshold", raw.Mat())

	pc := chain.NewProcessingChain(
		chain.ProcessingStep{Name: "fill", Apply: func(m *raster.Mask) (*raster.Mask, error) {
			return morphology.Fill(m, s.opts.FillSize)
		}},
		chain.ProcessingStep{Name: "erode", Apply: func(m *raster.Mask) (*raster.Mask, error) {
			return morphology.Erode(m, s.opts.ErodeKernel, s.opts.ErodeIterations)
		}},
	)
	return pc.Execute(raw, sink)
}

func thresholdChannel(img *raster.Image, c conversion.Channel, cutoff float32) (*raster.Mask, error) {
	plane, err := conversion.ExtractChannel(img.Mat(), c)
	if err != nil {
		return nil, fmt.Errorf("%s extraction failed: %w", c, err)
	}
	defer plane.Close()

	return morphology.Threshold(plane, cutoff)
}

// DiseaseColor flags pixels whose (a*, b*) lie inside the configured
// rectangle, regardless of the foreground.
func (s *Segmenter) DiseaseColor(img *raster.Image) (*raster.Mask, error) {
	lab, err := conversion.ConvertColorSpace(img.Mat(), conversion.ColorSpaceLab)
	if err != nil {
		return nil, fmt.Errorf("lab conversion failed: %w", err)
	}
	defer lab.Close()

	lo, hi := s.opts.DiseaseLow, s.opts.DiseaseHigh
	dst := gocv.NewMat()
	gocv.InRangeWithScalar(lab,
		gocv.NewScalar(0, float64(lo.A), float64(lo.B), 0),
		gocv.NewScalar(255, float64(hi.A), float64(hi.B), 0),
		&dst)
	return raster.NewMask(dst)
}

// Disease returns fg XOR the color test: set where exactly one of the two
// is set.
func (s *Segmenter) Disease(img *raster.Image, fg *raster.Mask, sink debug.Sink) (*raster.Mask, error) {
	sink = debug.OrDiscard(sink)

	if err := raster.MatchSize(img, fg, "disease mask"); err != nil {
		return nil, err
	}

	colorTest, err := s.DiseaseColor(img)
	if err != nil {
		return nil, err
	}
	defer colorTest.Close()
	sink.Emit("color_test", colorTest.Mat())

	disease, err := Difference(fg, colorTest)
	if err != nil {
		return nil, err
	}
	sink.Emit("disease", disease.Mat())
	return disease, nil
}

// Difference is the combination operator of the disease mask.
func Difference(fg, colorTest *raster.Mask) (*raster.Mask, error) {
	return morphology.Xor(fg, colorTest)
}
