// Package colorprofile computes per-channel color distributions of the
// masked pixels and renders them as a line chart.
package colorprofile

import (
	"fmt"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/raster"

	"gonum.org/v1/gonum/floats"
)

// Bins is the number of bins of every raw frequency table.
const Bins = 256

// Channels lists the profiled channels in chart order.
var Channels = []conversion.Channel{
	conversion.Blue,
	conversion.Green,
	conversion.GreenMagenta,
	conversion.BlueYellow,
	conversion.Red,
	conversion.Hue,
	conversion.Lightness,
	conversion.Saturation,
	conversion.Value,
}

// Histogram is the raw frequency table of one channel. Labels are in the
// channel's native unit and Frequencies are percentages of masked pixels.
type Histogram struct {
	Channel     conversion.Channel
	Labels      []float64
	Frequencies []float64
}

type Profile struct {
	Histograms []Histogram
	// Pixels is the number of masked pixels the frequencies are relative to.
	Pixels int
}

// Histogram returns the table of channel c.
func (p *Profile) Histogram(c conversion.Channel) (Histogram, bool) {
	for _, h := range p.Histograms {
		if h.Channel == c {
			return h, true
		}
	}
	return Histogram{}, false
}

// Labels returns the native bin labels of channel c: intensity for BGR,
// OpenCV half-degree units for hue, percent for lightness, saturation and
// value, and signed offsets from neutral for the chrominance axes.
func Labels(c conversion.Channel) []float64 {
	labels := make([]float64, Bins)
	for i := range labels {
		switch c {
		case conversion.Lightness, conversion.Saturation, conversion.Value:
			labels[i] = float64(i) / 2.55
		case conversion.GreenMagenta, conversion.BlueYellow:
			labels[i] = float64(i - 128)
		default:
			labels[i] = float64(i)
		}
	}
	return labels
}

// Compute builds the profile of the pixels of img selected by mask. An
// empty mask gives all-zero frequencies.
func Compute(img *raster.Image, mask *raster.Mask) (*Profile, error) {
	if err := raster.MatchSize(img, mask, "color profile"); err != nil {
		return nil, err
	}

	planes, err := conversion.ExtractChannels(img.Mat(), Channels...)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, p := range planes {
			p.Close()
		}
	}()

	maskMat := mask.Mat()
	sel, err := maskMat.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("mask buffer unavailable: %w", err)
	}

	profile := &Profile{Histograms: make([]Histogram, 0, len(Channels)), Pixels: mask.Count()}
	for _, c := range Channels {
		plane := planes[c]
		pix, err := plane.DataPtrUint8()
		if err != nil {
			return nil, fmt.Errorf("%s buffer unavailable: %w", c, err)
		}

		freq := make([]float64, Bins)
		for i, v := range sel {
			if v != 0 {
				freq[pix[i]]++
			}
		}
		if profile.Pixels > 0 {
			floats.Scale(100/float64(profile.Pixels), freq)
		}

		profile.Histograms = append(profile.Histograms, Histogram{
			Channel:     c,
			Labels:      Labels(c),
			Frequencies: freq,
		})
	}

	return profile, nil
}

// Series is one plotted line.
type Series struct {
	Name string
	X    []float64
	Y    []float64
}

// Plot maps a histogram onto the shared 0-255 chart axis. Percent channels
// are scaled back by 2.55, hue keeps its first half of samples and the
// chrominance axes are shifted by 128.
func Plot(h Histogram) Series {
	x := append([]float64(nil), h.Labels...)
	y := append([]float64(nil), h.Frequencies...)

	switch h.Channel {
	case conversion.Lightness, conversion.Saturation, conversion.Value:
		floats.Scale(2.55, x)
	case conversion.Hue:
		x, y = x[:len(x)/2], y[:len(y)/2]
	case conversion.GreenMagenta, conversion.BlueYellow:
		floats.AddConst(128, x)
	}

	return Series{Name: h.Channel.String(), X: x, Y: y}
}
