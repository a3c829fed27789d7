package pipeline

import (
	"leaffliction/internal/raster"
)

// Artifacts is the ordered result of Get. The artifacts are owned by the
// Graph and stay valid until it is closed.
type Artifacts struct {
	stages []Stage
	items  map[Stage]*raster.Image
}

func newArtifacts() *Artifacts {
	return &Artifacts{items: make(map[Stage]*raster.Image)}
}

func (a *Artifacts) add(s Stage, img *raster.Image) {
	if _, ok := a.items[s]; ok {
		return
	}
	a.stages = append(a.stages, s)
	a.items[s] = img
}

// Stages returns the stages in the order they were produced.
func (a *Artifacts) Stages() []Stage {
	return append([]Stage(nil), a.stages...)
}

func (a *Artifacts) Get(s Stage) (*raster.Image, bool) {
	img, ok := a.items[s]
	return img, ok
}

func (a *Artifacts) Len() int { return len(a.stages) }

// Each calls fn for every artifact in order and stops at the first error.
func (a *Artifacts) Each(fn func(Stage, *raster.Image) error) error {
	for _, s := range a.stages {
		if err := fn(s, a.items[s]); err != nil {
			return err
		}
	}
	return nil
}
