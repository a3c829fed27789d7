// Package rembg provides the background removal models used by the
// segmenter. A remover returns a copy of the image whose background pixels
// are dark, so that thresholding its lightness yields the subject.
package rembg

import (
	"fmt"
	"sync"

	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// BackgroundRemover removes the background from an image. Implementations
// must not modify img.
type BackgroundRemover interface {
	Remove(img *raster.Image) (*raster.Image, error)
}

// Passthrough returns the image unchanged. The segmenter then relies on the
// shadow silhouette alone.
type Passthrough struct{}

func (Passthrough) Remove(img *raster.Image) (*raster.Image, error) {
	return img.Clone(), nil
}

// Func adapts a function to BackgroundRemover.
type Func func(img *raster.Image) (*raster.Image, error)

func (f Func) Remove(img *raster.Image) (*raster.Image, error) { return f(img) }

// Composite scales every pixel of img by alpha/255. alpha must be a single
// channel 8-bit Mat of the same size.
func Composite(img *raster.Image, alpha gocv.Mat) (*raster.Image, error) {
	size := img.Size()
	if alpha.Cols() != size.X || alpha.Rows() != size.Y || alpha.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("alpha matte %dx%d does not match image %dx%d", alpha.Cols(), alpha.Rows(), size.X, size.Y)
	}

	out := img.Clone()
	outMat := out.Mat()
	pix, err := outMat.DataPtrUint8()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("image buffer unavailable: %w", err)
	}
	a, err := alpha.DataPtrUint8()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("alpha buffer unavailable: %w", err)
	}

	for i, v := range a {
		for c := 0; c < 3; c++ {
			pix[i*3+c] = uint8(uint16(pix[i*3+c]) * uint16(v) / 255)
		}
	}
	return out, nil
}

// Synchronized serialises calls to r so one remover can serve concurrent
// requests.
func Synchronized(r BackgroundRemover) BackgroundRemover {
	return &synchronized{remover: r}
}

type synchronized struct {
	mu      sync.Mutex
	remover BackgroundRemover
}

func (s *synchronized) Remove(img *raster.Image) (*raster.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remover.Remove(img)
}
