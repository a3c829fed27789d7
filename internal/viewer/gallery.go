// Package viewer shows rendered artifacts in a desktop window. It backs the
// render output policy of the command line tool.
package viewer

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailSize   = 160
	ImageAreaWidth  = 800
	ImageAreaHeight = 600
)

// Item is one displayed artifact.
type Item struct {
	Title     string
	Image     image.Image
	Thumbnail image.Image
}

// Gallery accumulates artifacts in display order.
type Gallery struct {
	mu    sync.Mutex
	items []Item
}

func NewGallery() *Gallery {
	return &Gallery{}
}

// Add records img under title. Its signature matches pipeline.Display.
func (g *Gallery) Add(title string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("no image for %s", title)
	}

	item := Item{
		Title:     title,
		Image:     imaging.Clone(img),
		Thumbnail: imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos),
	}

	g.mu.Lock()
	g.items = append(g.items, item)
	g.mu.Unlock()
	return nil
}

func (g *Gallery) Items() []Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Item(nil), g.items...)
}

func (g *Gallery) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}
