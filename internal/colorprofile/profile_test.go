package colorprofile

import (
	"image"
	"image/color"
	"testing"

	"leaffliction/internal/opencv/conversion"
	"leaffliction/internal/raster"
	"leaffliction/internal/raster/rastertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSolidColor(t *testing.T) {
	img := rastertest.Solid(20, 20, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	defer img.Close()
	mask := rastertest.Mask(img.Size(), image.Rect(0, 0, 10, 20))
	defer mask.Close()

	profile, err := Compute(img, mask)
	require.NoError(t, err)

	assert.Equal(t, 200, profile.Pixels)
	require.Len(t, profile.Histograms, 9)

	blue, ok := profile.Histogram(conversion.Blue)
	require.True(t, ok)
	assert.Len(t, blue.Frequencies, Bins)
	assert.InDelta(t, 100, blue.Frequencies[50], 1e-9)
	assert.Zero(t, blue.Frequencies[51])

	red, _ := profile.Histogram(conversion.Red)
	assert.InDelta(t, 100, red.Frequencies[200], 1e-9)
}

func TestComputeSplitsFrequencies(t *testing.T) {
	img := rastertest.Solid(10, 10, color.RGBA{G: 40, A: 255})
	defer img.Close()
	rastertest.Paint(img, image.Rect(0, 0, 10, 5), color.RGBA{G: 240, A: 255})
	mask := rastertest.Mask(img.Size(), image.Rect(0, 0, 10, 10))
	defer mask.Close()

	profile, err := Compute(img, mask)
	require.NoError(t, err)

	green, _ := profile.Histogram(conversion.Green)
	assert.InDelta(t, 50, green.Frequencies[40], 1e-9)
	assert.InDelta(t, 50, green.Frequencies[240], 1e-9)

	total := 0.0
	for _, f := range green.Frequencies {
		total += f
	}
	assert.InDelta(t, 100, total, 1e-9)
}

func TestComputeEmptyMask(t *testing.T) {
	img := rastertest.Solid(10, 10, color.RGBA{G: 200, A: 255})
	defer img.Close()
	mask := raster.Zeros(img.Size())
	defer mask.Close()

	profile, err := Compute(img, mask)
	require.NoError(t, err)

	assert.Zero(t, profile.Pixels)
	for _, h := range profile.Histograms {
		for _, f := range h.Frequencies {
			require.Zero(t, f, h.Channel.String())
		}
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, 255.0, Labels(conversion.Red)[255])
	assert.Equal(t, 90.0, Labels(conversion.Hue)[90])
	assert.InDelta(t, 100, Labels(conversion.Value)[255], 1e-9)
	assert.Equal(t, -128.0, Labels(conversion.BlueYellow)[0])
	assert.Equal(t, 127.0, Labels(conversion.GreenMagenta)[255])
}

func TestPlotAxisTransforms(t *testing.T) {
	hist := func(c conversion.Channel) Histogram {
		return Histogram{Channel: c, Labels: Labels(c), Frequencies: make([]float64, Bins)}
	}

	hue := Plot(hist(conversion.Hue))
	assert.Len(t, hue.X, Bins/2)
	assert.Len(t, hue.Y, Bins/2)
	assert.Equal(t, 127.0, hue.X[127])

	by := Plot(hist(conversion.BlueYellow))
	assert.Len(t, by.X, Bins)
	assert.Equal(t, 0.0, by.X[0])
	assert.Equal(t, 255.0, by.X[255])

	gm := Plot(hist(conversion.GreenMagenta))
	assert.Equal(t, 128.0, gm.X[128])

	for _, c := range []conversion.Channel{conversion.GreenMagenta, conversion.BlueYellow} {
		p := Plot(hist(c))
		labels := Labels(c)
		require.Len(t, p.X, Bins, c.String())
		for i := range labels {
			assert.Equal(t, labels[i]+128, p.X[i], "%s bin %d", c, i)
		}
	}

	for _, c := range []conversion.Channel{conversion.Lightness, conversion.Saturation, conversion.Value} {
		s := Plot(hist(c))
		assert.InDelta(t, 255, s.X[255], 1e-9, c.String())
		assert.InDelta(t, 100, s.X[100], 1e-9, c.String())
	}

	red := Plot(hist(conversion.Red))
	assert.Equal(t, Labels(conversion.Red), red.X)
	assert.Equal(t, "red", red.Name)
}

func TestPlotDoesNotAliasHistogram(t *testing.T) {
	h := Histogram{Channel: conversion.BlueYellow, Labels: Labels(conversion.BlueYellow), Frequencies: make([]float64, Bins)}
	Plot(h)
	assert.Equal(t, -128.0, h.Labels[0])
}

func TestRender(t *testing.T) {
	img := rastertest.Solid(32, 32, color.RGBA{R: 40, G: 160, B: 60, A: 255})
	defer img.Close()
	mask := rastertest.Mask(img.Size(), image.Rect(4, 4, 28, 28))
	defer mask.Close()

	p := NewProfiler(DefaultOptions())
	profile, err := p.Profile(img, mask)
	require.NoError(t, err)

	chart, err := p.Render(profile)
	require.NoError(t, err)
	defer chart.Close()

	assert.Equal(t, image.Pt(1600, 900), chart.Size())
	assert.Equal(t, [3]uint8{255, 255, 255}, rastertest.PixelBGR(chart, 2, 2))
}

func TestRenderRejectsTinyCanvas(t *testing.T) {
	_, err := NewProfiler(Options{Width: 10, Height: 10}).Render(&Profile{})
	assert.Error(t, err)
}

func TestNiceCeil(t *testing.T) {
	assert.Equal(t, 1.0, niceCeil(0))
	assert.Equal(t, 2.0, niceCeil(1.5))
	assert.Equal(t, 50.0, niceCeil(42))
	assert.Equal(t, 100.0, niceCeil(100))
}

func TestSeriesColor(t *testing.T) {
	assert.Equal(t, color.RGBA{B: 255, A: 255}, SeriesColor(conversion.Blue))
	assert.Equal(t, color.RGBA{R: 255, G: 165, A: 255}, SeriesColor(conversion.Lightness))
}
