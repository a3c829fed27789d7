package pipeline

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"leaffliction/internal/raster"
)

// Encode writes art to w as "jpeg" or "png". Unknown formats fall back to
// PNG.
func Encode(w io.Writer, art raster.Artifact, format string) error {
	if art == nil {
		return fmt.Errorf("no artifact to encode")
	}

	img, err := art.ToImage()
	if err != nil {
		return fmt.Errorf("artifact conversion failed: %w", err)
	}

	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}
	return nil
}
