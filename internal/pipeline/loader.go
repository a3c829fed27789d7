package pipeline

import (
	"fmt"
	"io"

	apperrors "leaffliction/internal/errors"
	"leaffliction/internal/logger"
	"leaffliction/internal/raster"
)

// MaxUploadBytes bounds the size of an encoded image read from a stream.
const MaxUploadBytes = 64 << 20

// Loader decodes source images for the graph.
type Loader struct {
	log logger.Logger
}

func NewLoader(log logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{log: log}
}

// LoadFromPath reads a JPEG or PNG file.
func (l *Loader) LoadFromPath(path string) (*raster.Image, error) {
	img, err := raster.Load(path)
	if err != nil {
		l.log.Error("ImageLoader", err, map[string]interface{}{"path": path})
		return nil, err
	}

	size := img.Size()
	l.log.Debug("ImageLoader", "image loaded", map[string]interface{}{
		"path":   path,
		"width":  size.X,
		"height": size.Y,
	})
	return img, nil
}

// LoadFromReader reads an encoded image from r.
func (l *Loader) LoadFromReader(r io.Reader) (*raster.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, apperrors.NewInputError("failed to read image data", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, apperrors.NewInputError(fmt.Sprintf("image exceeds %d bytes", MaxUploadBytes), nil)
	}

	l.log.Debug("ImageLoader", "image data read", map[string]interface{}{
		"size_bytes": len(data),
	})

	return raster.Decode(data)
}
