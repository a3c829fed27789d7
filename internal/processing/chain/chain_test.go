package chain

import (
	"errors"
	"image"
	"testing"

	"leaffliction/internal/debug"
	"leaffliction/internal/processing/morphology"
	"leaffliction/internal/raster"
	"leaffliction/internal/raster/rastertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunsStepsInOrder(t *testing.T) {
	input := rastertest.Mask(image.Pt(32, 32), image.Rect(4, 4, 24, 24), image.Rect(28, 28, 30, 30))
	defer input.Close()

	pc := NewProcessingChain(
		ProcessingStep{Name: "fill", Apply: func(m *raster.Mask) (*raster.Mask, error) { return morphology.Fill(m, 10) }},
		ProcessingStep{Name: "erode", Apply: func(m *raster.Mask) (*raster.Mask, error) { return morphology.Erode(m, 3, 1) }},
	)
	rec := debug.NewRecorder()
	defer rec.Close()

	out, err := pc.Execute(input, rec)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 18*18, out.Count())
	assert.Equal(t, []string{"fill", "erode"}, rec.Steps)
	assert.Equal(t, 404, input.Count(), "input must be left untouched")
}

func TestExecuteStopsOnError(t *testing.T) {
	input := raster.Zeros(image.Pt(8, 8))
	defer input.Close()

	boom := errors.New("boom")
	ran := false
	pc := NewProcessingChain(
		ProcessingStep{Name: "fail", Apply: func(*raster.Mask) (*raster.Mask, error) { return nil, boom }},
		ProcessingStep{Name: "never", Apply: func(m *raster.Mask) (*raster.Mask, error) { ran = true; return m.Clone(), nil }},
	)

	_, err := pc.Execute(input, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestEmptyChainClones(t *testing.T) {
	input := rastertest.Mask(image.Pt(8, 8), image.Rect(0, 0, 2, 2))
	defer input.Close()

	pc := NewProcessingChain()
	out, err := pc.Execute(input, nil)
	require.NoError(t, err)
	defer out.Close()

	assert.NotSame(t, input, out)
	assert.Equal(t, 4, out.Count())
}
