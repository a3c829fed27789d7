package region

import (
	"image"
	"image/color"
	"testing"

	"leaffliction/internal/raster"
	"leaffliction/internal/raster/rastertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leafGreen = color.RGBA{R: 30, G: 120, B: 40, A: 255}

func TestFullFrameKeepsEveryObject(t *testing.T) {
	img := rastertest.Solid(64, 64, leafGreen)
	defer img.Close()
	mask := rastertest.Mask(img.Size(), image.Rect(10, 10, 20, 20), image.Rect(40, 40, 50, 45))
	defer mask.Close()

	kept, annotated, err := NewExtractor(DefaultOptions()).Extract(img, mask)
	require.NoError(t, err)
	defer kept.Close()
	defer annotated.Close()

	assert.Equal(t, mask.Count(), kept.Count())
	assert.Equal(t, [3]uint8{0, 255, 0}, rastertest.PixelBGR(annotated, 15, 15))
	assert.Equal(t, [3]uint8{40, 120, 30}, rastertest.PixelBGR(annotated, 30, 30))
}

func TestBorderBand(t *testing.T) {
	img := rastertest.Solid(64, 64, leafGreen)
	defer img.Close()
	mask := raster.Zeros(img.Size())
	defer mask.Close()

	_, annotated, err := NewExtractor(DefaultOptions()).Extract(img, mask)
	require.NoError(t, err)
	defer annotated.Close()

	blue := [3]uint8{255, 0, 0}
	for i := 0; i < 5; i++ {
		assert.Equal(t, blue, rastertest.PixelBGR(annotated, i, 32), "left column %d", i)
		assert.Equal(t, blue, rastertest.PixelBGR(annotated, 63-i, 32), "right column %d", i)
		assert.Equal(t, blue, rastertest.PixelBGR(annotated, 32, i), "top row %d", i)
		assert.Equal(t, blue, rastertest.PixelBGR(annotated, 32, 63-i), "bottom row %d", i)
	}
	assert.NotEqual(t, blue, rastertest.PixelBGR(annotated, 5, 32))
	assert.NotEqual(t, blue, rastertest.PixelBGR(annotated, 58, 32))
}

func TestPartialKeepsOverlappingObjectsWhole(t *testing.T) {
	mask := rastertest.Mask(image.Pt(60, 60),
		image.Rect(5, 5, 25, 25),   // straddles the ROI edge
		image.Rect(40, 40, 50, 50), // outside
		image.Rect(12, 30, 16, 34), // left of the ROI
	)
	defer mask.Close()

	kept, err := Partial(mask, image.Rect(20, 0, 60, 35))
	require.NoError(t, err)
	defer kept.Close()

	// The straddling square is kept unclipped.
	assert.Equal(t, 400, kept.Count())
	assert.True(t, kept.At(6, 6))
	assert.False(t, kept.At(45, 45))
	assert.False(t, kept.At(13, 31))
}

func TestPartialRequiresPixelOverlap(t *testing.T) {
	// An L shape whose bounding box overlaps the ROI while none of its
	// pixels do.
	mask := rastertest.Mask(image.Pt(40, 40), image.Rect(0, 0, 20, 2), image.Rect(0, 0, 2, 20))
	defer mask.Close()

	kept, err := Partial(mask, image.Rect(10, 10, 30, 30))
	require.NoError(t, err)
	defer kept.Close()

	assert.True(t, kept.Empty())
}

func TestCustomROIValidation(t *testing.T) {
	img := rastertest.Solid(32, 32, leafGreen)
	defer img.Close()
	mask := raster.Zeros(img.Size())
	defer mask.Close()

	opts := DefaultOptions()
	opts.ROI = image.Rect(20, 20, 80, 80)
	_, _, err := NewExtractor(opts).Extract(img, mask)
	assert.Error(t, err)
}

func TestExtractDoesNotMutateInput(t *testing.T) {
	img := rastertest.Solid(32, 32, leafGreen)
	defer img.Close()
	before := img.Clone()
	defer before.Close()
	mask := rastertest.Mask(img.Size(), image.Rect(8, 8, 16, 16))
	defer mask.Close()

	kept, annotated, err := NewExtractor(DefaultOptions()).Extract(img, mask)
	require.NoError(t, err)
	kept.Close()
	annotated.Close()

	assert.True(t, rastertest.Equal(before, img))
}

func TestCustomROIIsOutlined(t *testing.T) {
	img := rastertest.Solid(64, 64, leafGreen)
	defer img.Close()
	mask := raster.Zeros(img.Size())
	defer mask.Close()

	opts := DefaultOptions()
	opts.ROI = image.Rect(16, 16, 48, 48)
	_, annotated, err := NewExtractor(opts).Extract(img, mask)
	require.NoError(t, err)
	defer annotated.Close()

	blue := [3]uint8{255, 0, 0}
	assert.Equal(t, blue, rastertest.PixelBGR(annotated, 16, 30))
	assert.Equal(t, blue, rastertest.PixelBGR(annotated, 30, 47))
	assert.NotEqual(t, blue, rastertest.PixelBGR(annotated, 30, 30))
}
