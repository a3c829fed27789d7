package pipeline

import (
	"image"
	"path/filepath"
	"strings"
	"time"

	"leaffliction/internal/debug"
	apperrors "leaffliction/internal/errors"
	"leaffliction/internal/raster"
	"leaffliction/internal/scratch"

	"gocv.io/x/gocv"
)

// scoped runs fn and then releases the scratch space it may have opened,
// so no scratch file outlives a call.
func (g *Graph) scoped(fn func() error) error {
	if g.closed {
		return apperrors.NewInputError("graph is closed", nil)
	}
	defer g.releaseScratch()
	return fn()
}

func (g *Graph) releaseScratch() {
	if g.scratch == nil {
		return
	}
	for _, e := range g.scratch.Pending() {
		g.log.Debug(component, "discarding scratch file", map[string]interface{}{
			"name": e.Name,
			"age":  time.Since(e.CreatedAt).Round(time.Millisecond).String(),
		})
	}
	if err := g.scratch.Close(); err != nil {
		g.log.Warning(component, "scratch cleanup failed", map[string]interface{}{"error": err.Error()})
	}
	g.scratch = nil
}

func (g *Graph) space(dst string) (*scratch.Space, error) {
	if g.scratch != nil {
		return g.scratch, nil
	}
	space, err := scratch.New(filepath.Dir(dst))
	if err != nil {
		return nil, err
	}
	g.scratch = space
	return space, nil
}

// emit applies the output policy to a requested stage, once.
func (g *Graph) emit(s Stage, img *raster.Image) error {
	if g.emitted[s] {
		return nil
	}

	switch p := g.cfg.Output.(type) {
	case Render:
		if err := g.render(p, string(s), img); err != nil {
			return err
		}
	case Persist:
		if err := g.persist(p, string(s), img); err != nil {
			return err
		}
	}

	g.emitted[s] = true
	return nil
}

func (g *Graph) render(p Render, title string, art raster.Artifact) error {
	goImg, err := art.ToImage()
	if err != nil {
		return apperrors.NewIOError(title, "cannot convert artifact for display", err)
	}
	if err := p.Display(title, goImg); err != nil {
		return apperrors.NewIOError(title, "display failed", err)
	}
	return nil
}

// persist writes art to a scratch file and renames it to its final path.
func (g *Graph) persist(p Persist, name string, art raster.Artifact) error {
	final := p.Path(name)
	space, err := g.space(final)
	if err != nil {
		return apperrors.NewIOError(name, "cannot open scratch space", err)
	}

	tmp, err := space.Write(name, p.ext(), art)
	if err != nil {
		return apperrors.NewIOError(name, "cannot write artifact", err)
	}
	if err := space.Promote(tmp, final); err != nil {
		space.Discard(tmp)
		return apperrors.NewIOError(name, "cannot persist artifact", err)
	}

	g.log.Info(component, "artifact saved", map[string]interface{}{"stage": name, "path": final})
	return nil
}

// stageSink scopes the debug sink to one stage.
func (g *Graph) stageSink(s Stage) debug.Sink {
	return debug.Prefixed(string(s), g.sink)
}

// debugSink returns the sink matching the output policy: intermediates are
// displayed when rendering, written next to the artifacts when persisting
// and logged otherwise.
func (g *Graph) debugSink() debug.Sink {
	switch p := g.cfg.Output.(type) {
	case Render:
		return debug.SinkFunc(func(step string, mat gocv.Mat) {
			img, err := mat.ToImage()
			if err == nil {
				err = p.Display(step, img)
			}
			if err != nil {
				g.log.Warning(component, "debug display failed", map[string]interface{}{"step": step, "error": err.Error()})
			}
		})
	case Persist:
		return debug.SinkFunc(func(step string, mat gocv.Mat) {
			name := strings.ReplaceAll(step, "/", "_")
			if err := g.persist(p, name, matArtifact{mat}); err != nil {
				g.log.Warning(component, "debug write failed", map[string]interface{}{"step": step, "error": err.Error()})
			}
		})
	default:
		return debug.SinkFunc(func(step string, mat gocv.Mat) {
			fields := map[string]interface{}{
				"step":     step,
				"width":    mat.Cols(),
				"height":   mat.Rows(),
				"channels": mat.Channels(),
			}
			if mat.Channels() == 1 {
				fields["nonzero"] = gocv.CountNonZero(mat)
			}
			g.log.Debug(component, "intermediate", fields)
		})
	}
}

// matArtifact lends a Mat to the persistence path without taking ownership.
type matArtifact struct {
	mat gocv.Mat
}

func (m matArtifact) Mat() gocv.Mat { return m.mat }

func (m matArtifact) Size() image.Point { return image.Pt(m.mat.Cols(), m.mat.Rows()) }

func (m matArtifact) ToImage() (image.Image, error) { return m.mat.ToImage() }

func (m matArtifact) Close() error { return nil }

var _ raster.Artifact = matArtifact{}
