// Package debug carries the explicit debug parameter threaded through every
// stage call. Algorithms emit intermediate rasters to a Sink; what happens to
// them is decided by the caller, never by package-level state.
package debug

import (
	"gocv.io/x/gocv"
)

// Sink receives intermediate rasters produced inside a stage. Emit must not
// retain mat after returning.
type Sink interface {
	Emit(step string, mat gocv.Mat)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(step string, mat gocv.Mat)

func (f SinkFunc) Emit(step string, mat gocv.Mat) { f(step, mat) }

type discard struct{}

func (discard) Emit(string, gocv.Mat) {}

// Discard drops every emitted raster.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Prefixed namespaces step names, e.g. "foreground/shadow".
func Prefixed(prefix string, s Sink) Sink {
	s = OrDiscard(s)
	if s == Discard {
		return s
	}
	return SinkFunc(func(step string, mat gocv.Mat) {
		s.Emit(prefix+"/"+step, mat)
	})
}

// Recorder keeps clones of everything emitted. Used by tests and by callers
// that want to inspect intermediates after a stage returns.
type Recorder struct {
	Steps []string
	Mats  map[string]gocv.Mat
}

func NewRecorder() *Recorder {
	return &Recorder{Mats: make(map[string]gocv.Mat)}
}

func (r *Recorder) Emit(step string, mat gocv.Mat) {
	if old, ok := r.Mats[step]; ok {
		old.Close()
	} else {
		r.Steps = append(r.Steps, step)
	}
	r.Mats[step] = mat.Clone()
}

func (r *Recorder) Close() {
	for _, m := range r.Mats {
		m.Close()
	}
	r.Mats = make(map[string]gocv.Mat)
	r.Steps = nil
}
