// Package scratch manages the temporary files a pipeline writes before they
// are either renamed to their final name or removed.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"leaffliction/internal/raster"

	"gocv.io/x/gocv"
)

// Space is a private scratch directory. Every file written through it is
// removed by Close unless it was promoted first.
type Space struct {
	dir     string
	tracker *tracker
	closed  bool
}

// New creates a scratch directory inside parent, so that promotion is a
// rename on the same filesystem.
func New(parent string) (*Space, error) {
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", parent, err)
	}

	dir, err := os.MkdirTemp(parent, ".leaffliction-scratch-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create scratch directory: %w", err)
	}
	return &Space{dir: dir, tracker: newTracker()}, nil
}

func (s *Space) Dir() string { return s.dir }

// Write encodes art into a scratch file named name.ext and returns its path.
// The encoder is chosen from ext.
func (s *Space) Write(name, ext string, art raster.Artifact) (string, error) {
	if s.closed {
		return "", fmt.Errorf("scratch space %s is closed", s.dir)
	}

	path := filepath.Join(s.dir, name+"."+ext)
	if !gocv.IMWrite(path, art.Mat()) {
		os.Remove(path)
		return "", fmt.Errorf("cannot encode %s", path)
	}
	s.tracker.trackCreate(path, name)
	return path, nil
}

// Promote renames a scratch file to its final destination.
func (s *Space) Promote(path, final string) error {
	if err := os.Rename(path, final); err != nil {
		return fmt.Errorf("cannot move %s to %s: %w", path, final, err)
	}
	s.tracker.trackRelease(path)
	return nil
}

// Discard removes a scratch file.
func (s *Space) Discard(path string) error {
	s.tracker.trackRelease(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove %s: %w", path, err)
	}
	return nil
}

// Pending lists the files that are still in the scratch directory.
func (s *Space) Pending() []Entry {
	return s.tracker.pending()
}

// Close removes the scratch directory and everything left in it. It is
// safe to call more than once.
func (s *Space) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, e := range s.tracker.pending() {
		s.tracker.trackRelease(e.Path)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("cannot remove scratch directory %s: %w", s.dir, err)
	}
	return nil
}
