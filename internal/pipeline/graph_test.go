package pipeline

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	apperrors "leaffliction/internal/errors"
	"leaffliction/internal/raster"
	"leaffliction/internal/raster/rastertest"
	"leaffliction/internal/rembg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	green    = color.RGBA{G: 255, A: 255}
	red      = color.RGBA{R: 255, A: 255}
	leafRect = image.Rect(54, 54, 74, 74)
)

var keepRed = rembg.Func(func(img *raster.Image) (*raster.Image, error) {
	alpha := gocv.NewMat()
	defer alpha.Close()
	gocv.InRangeWithScalar(img.Mat(), gocv.NewScalar(0, 0, 255, 0), gocv.NewScalar(0, 0, 255, 0), &alpha)
	return rembg.Composite(img, alpha)
})

func leafImage() *raster.Image {
	img := rastertest.Solid(128, 128, green)
	rastertest.Paint(img, leafRect, red)
	return img
}

func newGraph(t *testing.T, img *raster.Image, configure func(*Config)) *Graph {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Remover = keepRed
	if configure != nil {
		configure(&cfg)
	}
	g, err := New(img, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

type recordingDisplay struct {
	titles []string
}

func (r *recordingDisplay) show(title string, _ image.Image) error {
	r.titles = append(r.titles, title)
	return nil
}

func TestGetReturnsIdenticalArtifacts(t *testing.T) {
	g := newGraph(t, leafImage(), nil)

	first, err := g.Get(Analyze, ROI)
	require.NoError(t, err)
	second, err := g.Get(ROI, Analyze)
	require.NoError(t, err)

	for _, s := range []Stage{Analyze, ROI} {
		a, _ := first.Get(s)
		b, _ := second.Get(s)
		assert.Same(t, a, b, s.String())
	}
	assert.Equal(t, []Stage{Analyze, ROI}, first.Stages())
	assert.Equal(t, []Stage{ROI, Analyze}, second.Stages())

	fg1, err := g.Foreground()
	require.NoError(t, err)
	fg2, err := g.Foreground()
	require.NoError(t, err)
	assert.Same(t, fg1, fg2)

	original, err := g.Get(Original)
	require.NoError(t, err)
	img, _ := original.Get(Original)
	assert.Same(t, g.Source(), img)
}

func TestDependencyForcingPersistsOnlyRequestedStage(t *testing.T) {
	dir := t.TempDir()
	g := newGraph(t, leafImage(), func(c *Config) {
		c.Output = Persist{Destination: filepath.Join(dir, "leaf")}
	})

	arts, err := g.Get(Analyze)
	require.NoError(t, err)
	assert.Equal(t, 1, arts.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "leaf_analyze.JPG", entries[0].Name())

	assert.Contains(t, g.cache, Foreground)
	assert.Contains(t, g.cache, Kept)
	assert.NotContains(t, g.cache, ROI)
	assert.NotContains(t, g.cache, Disease)
}

func TestPersistWritesOncePerStage(t *testing.T) {
	dir := t.TempDir()
	g := newGraph(t, leafImage(), func(c *Config) {
		c.Output = Persist{Destination: filepath.Join(dir, "leaf"), Ext: "PNG"}
	})

	_, err := g.Get(ROI)
	require.NoError(t, err)
	path := filepath.Join(dir, "leaf_roi.PNG")
	require.FileExists(t, path)
	require.NoError(t, os.Remove(path))

	_, err = g.Get(ROI)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestRenderDefaultStageSet(t *testing.T) {
	display := &recordingDisplay{}
	g := newGraph(t, leafImage(), func(c *Config) {
		c.Output = Render{Display: display.show}
	})

	arts, err := g.Get()
	require.NoError(t, err)

	want := make([]string, 0)
	for _, s := range DefaultStages() {
		want = append(want, s.String())
	}
	assert.Equal(t, want, display.titles)
	assert.Contains(t, display.titles, "color_histogram")
	assert.NotContains(t, display.titles, "pseudolandmarks")
	assert.Equal(t, DefaultStages(), arts.Stages())

	_, err = g.Get()
	require.NoError(t, err)
	assert.Len(t, display.titles, len(want))
}

func TestRenderDebugIntermediates(t *testing.T) {
	display := &recordingDisplay{}
	g := newGraph(t, leafImage(), func(c *Config) {
		c.Output = Render{Display: display.show}
		c.Debug = true
	})

	_, err := g.Get(NoBackground)
	require.NoError(t, err)

	assert.Contains(t, display.titles, "foreground/threshold")
	assert.Contains(t, display.titles, "foreground/foreground")
	assert.Equal(t, "no_bg", display.titles[len(display.titles)-1])
}

func TestCollect(t *testing.T) {
	g := newGraph(t, leafImage(), nil)

	arts, err := g.Get(Stages()...)
	require.NoError(t, err)
	assert.Equal(t, len(Stages()), arts.Len())

	var seen []Stage
	require.NoError(t, arts.Each(func(s Stage, img *raster.Image) error {
		seen = append(seen, s)
		assert.NotNil(t, img)
		return nil
	}))
	assert.Equal(t, Stages(), seen)

	chart, ok := arts.Get(ColorHistogram)
	require.True(t, ok)
	assert.Equal(t, image.Pt(1600, 900), chart.Size())
}

func TestEndToEndLeaf(t *testing.T) {
	tests := []struct {
		name string
		leaf image.Rectangle
	}{
		{"centered", leafRect},
		{"near corner", image.Rect(10, 10, 30, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := rastertest.Solid(128, 128, green)
			rastertest.Paint(img, tt.leaf, red)
			g := newGraph(t, img, nil)

			fg, err := g.Foreground()
			require.NoError(t, err)
			assert.InDelta(t, 400, fg.Count(), 4)

			arts, err := g.Get(NoBackground, ROI, Blur)
			require.NoError(t, err)

			center := image.Pt((tt.leaf.Min.X+tt.leaf.Max.X)/2, (tt.leaf.Min.Y+tt.leaf.Max.Y)/2)
			noBg, _ := arts.Get(NoBackground)
			assert.Equal(t, [3]uint8{255, 255, 255}, rastertest.PixelBGR(noBg, 100, 100))
			assert.Equal(t, [3]uint8{0, 0, 255}, rastertest.PixelBGR(noBg, center.X, center.Y))

			roi, _ := arts.Get(ROI)
			blue := [3]uint8{255, 0, 0}
			for i := 0; i < 5; i++ {
				assert.Equal(t, blue, rastertest.PixelBGR(roi, i, 64))
				assert.Equal(t, blue, rastertest.PixelBGR(roi, 127-i, 64))
				assert.Equal(t, blue, rastertest.PixelBGR(roi, 64, i))
				assert.Equal(t, blue, rastertest.PixelBGR(roi, 64, 127-i))
			}
			assert.Equal(t, [3]uint8{0, 255, 0}, rastertest.PixelBGR(roi, center.X, center.Y))

			blur, _ := arts.Get(Blur)
			assert.Equal(t, image.Pt(128, 128), blur.Size())

			objects, err := g.Objects()
			require.NoError(t, err)
			require.Len(t, objects, 1)
			assert.Equal(t, tt.leaf, objects[0].Box)

			landmarks, err := g.Landmarks()
			require.NoError(t, err)
			assert.Equal(t, 20, landmarks.Len())

			profile, err := g.ColorProfile()
			require.NoError(t, err)
			assert.Equal(t, fg.Count(), profile.Pixels)
		})
	}
}

func TestDegenerateMask(t *testing.T) {
	src := rastertest.Solid(64, 64, color.RGBA{A: 255})
	g := newGraph(t, src, func(c *Config) { c.Remover = nil })

	arts, err := g.Get(Stages()...)
	require.NoError(t, err)

	kept, err := g.Kept()
	require.NoError(t, err)
	assert.True(t, kept.Empty())

	landmarks, err := g.Landmarks()
	require.NoError(t, err)
	assert.Empty(t, landmarks.Points())

	objects, err := g.Objects()
	require.NoError(t, err)
	assert.Empty(t, objects)

	analyze, _ := arts.Get(Analyze)
	assert.True(t, rastertest.Equal(g.Source(), analyze))
	assert.NotSame(t, g.Source(), analyze)
}

func TestRemoverFailureIsStageError(t *testing.T) {
	boom := errors.New("model crashed")
	g := newGraph(t, leafImage(), func(c *Config) {
		c.Remover = rembg.Func(func(*raster.Image) (*raster.Image, error) { return nil, boom })
	})

	_, err := g.Get(ROI)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStage))
	assert.ErrorIs(t, err, boom)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "foreground", appErr.Stage)
}

func TestGetRejectsInternalAndUnknownStages(t *testing.T) {
	g := newGraph(t, leafImage(), nil)

	_, err := g.Get(Foreground)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInput))

	_, err = g.Get("leaf")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInput))
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*Config)
	}{
		{name: "render without display", configure: func(c *Config) { c.Output = Render{} }},
		{name: "persist without destination", configure: func(c *Config) { c.Output = Persist{} }},
		{name: "even blur kernel", configure: func(c *Config) { c.BlurKernel = 4 }},
		{name: "unknown stage", configure: func(c *Config) { c.Stages = []Stage{"leaf"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := leafImage()
			defer img.Close()
			cfg := DefaultConfig()
			tt.configure(&cfg)

			_, err := New(img, cfg)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInput))
		})
	}
}

func TestClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Remover = keepRed
	g, err := New(leafImage(), cfg)
	require.NoError(t, err)

	_, err = g.Get(ROI)
	require.NoError(t, err)

	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	_, err = g.Get(ROI)
	assert.Error(t, err)
	_, err = g.Foreground()
	assert.Error(t, err)
}
