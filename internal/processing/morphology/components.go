// Package morphology implements the binary mask operations shared by the
// segmentation and region stages.
package morphology

import (
	"fmt"
	"image"

	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// Component is one 8-connected foreground region.
type Component struct {
	Label    int
	Box      image.Rectangle
	Area     int
	Centroid [2]float64
}

// Labels is a labelled view of a mask. Label 0 is the background.
type Labels struct {
	size       image.Point
	labels     []int32
	mat        gocv.Mat
	Components []Component
}

// Label runs connected component analysis on mask.
func Label(mask *raster.Mask) (*Labels, error) {
	labels := gocv.NewMat()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask.Mat(), &labels, &stats, &centroids)

	data, err := labels.DataPtrInt32()
	if err != nil {
		labels.Close()
		return nil, fmt.Errorf("label buffer unavailable: %w", err)
	}

	l := &Labels{
		size:       mask.Size(),
		labels:     data,
		mat:        labels,
		Components: make([]Component, 0, max(n-1, 0)),
	}

	for i := 1; i < n; i++ {
		left := int(stats.GetIntAt(i, int(gocv.CC_STAT_LEFT)))
		top := int(stats.GetIntAt(i, int(gocv.CC_STAT_TOP)))
		width := int(stats.GetIntAt(i, int(gocv.CC_STAT_WIDTH)))
		height := int(stats.GetIntAt(i, int(gocv.CC_STAT_HEIGHT)))
		l.Components = append(l.Components, Component{
			Label:    i,
			Box:      image.Rect(left, top, left+width, top+height),
			Area:     int(stats.GetIntAt(i, int(gocv.CC_STAT_AREA))),
			Centroid: [2]float64{centroids.GetDoubleAt(i, 0), centroids.GetDoubleAt(i, 1)},
		})
	}

	return l, nil
}

// At returns the label of pixel (x, y).
func (l *Labels) At(x, y int) int {
	return int(l.labels[y*l.size.X+x])
}

// Select builds a mask containing only the pixels whose label satisfies keep.
func (l *Labels) Select(keep func(Component) bool) (*raster.Mask, error) {
	wanted := make([]bool, len(l.Components)+1)
	for _, c := range l.Components {
		wanted[c.Label] = keep(c)
	}

	out := raster.Zeros(l.size)
	outMat := out.Mat()
	pix, err := outMat.DataPtrUint8()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("mask buffer unavailable: %w", err)
	}

	for i, label := range l.labels {
		if label > 0 && wanted[label] {
			pix[i] = raster.Foreground
		}
	}

	return out, nil
}

// Largest returns the component with the greatest area, or false when there
// is none.
func (l *Labels) Largest() (Component, bool) {
	var best Component
	found := false
	for _, c := range l.Components {
		if !found || c.Area > best.Area {
			best = c
			found = true
		}
	}
	return best, found
}

func (l *Labels) Close() error {
	l.labels = nil
	return l.mat.Close()
}
