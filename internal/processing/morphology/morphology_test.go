package morphology

import (
	"image"
	"testing"

	"leaffliction/internal/raster"
	"leaffliction/internal/raster/rastertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelComponents(t *testing.T) {
	mask := rastertest.Mask(image.Pt(40, 30), image.Rect(2, 2, 12, 7), image.Rect(20, 10, 25, 30))
	defer mask.Close()

	labels, err := Label(mask)
	require.NoError(t, err)
	defer labels.Close()

	require.Len(t, labels.Components, 2)
	largest, ok := labels.Largest()
	require.True(t, ok)
	assert.Equal(t, 100, largest.Area)
	assert.Equal(t, image.Rect(20, 10, 25, 30), largest.Box)
	assert.Equal(t, 0, labels.At(0, 0))
	assert.NotEqual(t, 0, labels.At(3, 3))
}

func TestLargestOnEmptyMask(t *testing.T) {
	mask := raster.Zeros(image.Pt(10, 10))
	defer mask.Close()

	labels, err := Label(mask)
	require.NoError(t, err)
	defer labels.Close()

	_, ok := labels.Largest()
	assert.False(t, ok)
}

func TestFillDropsSmallComponents(t *testing.T) {
	mask := rastertest.Mask(image.Pt(64, 64), image.Rect(0, 0, 30, 30), image.Rect(50, 50, 53, 53))
	defer mask.Close()

	filled, err := Fill(mask, 500)
	require.NoError(t, err)
	defer filled.Close()

	assert.Equal(t, 900, filled.Count())
	assert.False(t, filled.At(51, 51))
}

func TestFillHoles(t *testing.T) {
	// A 10x10 ring around a 6x6 hole.
	ring := rastertest.Mask(image.Pt(30, 30),
		image.Rect(5, 5, 15, 7), image.Rect(5, 13, 15, 15),
		image.Rect(5, 7, 7, 13), image.Rect(13, 7, 15, 13))
	defer ring.Close()

	filled, err := FillHoles(ring)
	require.NoError(t, err)
	defer filled.Close()

	assert.Equal(t, 100, filled.Count())
	assert.True(t, filled.At(10, 10))
	assert.False(t, filled.At(20, 20))
}

func TestErodeShrinksInterior(t *testing.T) {
	mask := rastertest.Mask(image.Pt(20, 20), image.Rect(5, 5, 15, 15))
	defer mask.Close()

	eroded, err := Erode(mask, 3, 1)
	require.NoError(t, err)
	defer eroded.Close()

	assert.Equal(t, 64, eroded.Count())
	assert.False(t, eroded.At(5, 5))
	assert.True(t, eroded.At(6, 6))
}

func TestXorTruthTable(t *testing.T) {
	size := image.Pt(4, 1)
	a := rastertest.Mask(size, image.Rect(0, 0, 2, 1))
	defer a.Close()
	b := rastertest.Mask(size, image.Rect(1, 0, 3, 1))
	defer b.Close()

	x, err := Xor(a, b)
	require.NoError(t, err)
	defer x.Close()

	assert.Equal(t, []bool{true, false, true, false},
		[]bool{x.At(0, 0), x.At(1, 0), x.At(2, 0), x.At(3, 0)})
}

func TestCombineRejectsSizeMismatch(t *testing.T) {
	a := raster.Zeros(image.Pt(4, 4))
	defer a.Close()
	b := raster.Zeros(image.Pt(5, 4))
	defer b.Close()

	_, err := And(a, b)
	assert.Error(t, err)
}

func TestBlurReturnsImage(t *testing.T) {
	mask := rastertest.Mask(image.Pt(16, 16), image.Rect(4, 4, 12, 12))
	defer mask.Close()

	blurred, err := Blur(mask, 3)
	require.NoError(t, err)
	defer blurred.Close()

	assert.Equal(t, mask.Size(), blurred.Size())
	edge := rastertest.PixelBGR(blurred, 4, 8)
	assert.Greater(t, edge[0], uint8(0))
	assert.Less(t, edge[0], uint8(255))
}
