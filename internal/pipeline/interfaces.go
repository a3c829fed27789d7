package pipeline

import (
	"image"
	"strings"
)

// Display shows one rendered artifact. It is the display callback of the
// Render policy.
type Display func(title string, img image.Image) error

// OutputPolicy decides what happens to a stage artifact once it is
// computed. It is one of Render, Persist or Collect.
type OutputPolicy interface {
	policy()
}

// Render hands every emitted artifact to a display callback.
type Render struct {
	Display Display
}

// Persist writes every emitted artifact to a file.
type Persist struct {
	// Destination is the path prefix of the written files.
	Destination string
	// Template builds the file name from {dst}, {stage} and {ext}.
	Template string
	Ext      string
}

// Collect keeps the artifacts in memory only.
type Collect struct{}

func (Render) policy()  {}
func (Persist) policy() {}
func (Collect) policy() {}

const (
	DefaultTemplate = "{dst}_{stage}.{ext}"
	DefaultExt      = "JPG"
)

// Path returns the final file name of stage.
func (p Persist) Path(stage string) string {
	tmpl := p.Template
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	ext := p.Ext
	if ext == "" {
		ext = DefaultExt
	}
	return strings.NewReplacer("{dst}", p.Destination, "{stage}", stage, "{ext}", ext).Replace(tmpl)
}

func (p Persist) ext() string {
	if p.Ext == "" {
		return DefaultExt
	}
	return p.Ext
}
