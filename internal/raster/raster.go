// Package raster holds the in-memory pixel buffers passed between stages:
// a 3-channel BGR Image and single channel binary Masks of the same size.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"os"

	apperrors "leaffliction/internal/errors"
	"leaffliction/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Foreground is the value of a set pixel in every Mask.
const Foreground = 255

// Artifact is any stage output: an Image or a Mask.
type Artifact interface {
	Mat() gocv.Mat
	Size() image.Point
	ToImage() (image.Image, error)
	Close() error
}

// Image is an 8-bit BGR raster. Stages never mutate an Image they did not
// create.
type Image struct {
	mat gocv.Mat
}

// NewImage takes ownership of mat.
func NewImage(mat gocv.Mat) (*Image, error) {
	if err := safe.ValidateColor(mat, "NewImage"); err != nil {
		return nil, err
	}
	return &Image{mat: mat}, nil
}

// Load reads a JPEG or PNG file.
func Load(path string) (*Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("cannot open %s", path), err)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, apperrors.NewInputError(fmt.Sprintf("cannot decode %s", path), nil)
	}

	img, err := NewImage(mat)
	if err != nil {
		mat.Close()
		return nil, apperrors.NewInputError(fmt.Sprintf("unsupported image %s", path), err)
	}
	return img, nil
}

// Decode reads an encoded JPEG or PNG buffer.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, apperrors.NewInputError("image data is empty", nil)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, apperrors.NewInputError("cannot decode image data", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, apperrors.NewInputError("cannot decode image data", nil)
	}

	img, err := NewImage(mat)
	if err != nil {
		mat.Close()
		return nil, apperrors.NewInputError("unsupported image data", err)
	}
	return img, nil
}

// FromImage converts a decoded Go image.
func FromImage(src image.Image) (*Image, error) {
	if src == nil {
		return nil, apperrors.NewInputError("input image is nil", nil)
	}

	mat, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, apperrors.NewInputError("image conversion failed", err)
	}

	img, err := NewImage(mat)
	if err != nil {
		mat.Close()
		return nil, apperrors.NewInputError("image conversion failed", err)
	}
	return img, nil
}

func (i *Image) Mat() gocv.Mat { return i.mat }

func (i *Image) Size() image.Point { return image.Pt(i.mat.Cols(), i.mat.Rows()) }

func (i *Image) Bounds() image.Rectangle { return image.Rectangle{Max: i.Size()} }

// Clone returns an independent deep copy.
func (i *Image) Clone() *Image {
	return &Image{mat: i.mat.Clone()}
}

func (i *Image) ToImage() (image.Image, error) {
	return i.mat.ToImage()
}

func (i *Image) Close() error {
	return i.mat.Close()
}

// Mask is a single channel 8-bit raster whose pixels are 0 or Foreground.
type Mask struct {
	mat gocv.Mat
}

// NewMask takes ownership of mat. Nonzero pixels are normalised to
// Foreground.
func NewMask(mat gocv.Mat) (*Mask, error) {
	if err := safe.ValidateMask(mat, image.Pt(mat.Cols(), mat.Rows()), "NewMask"); err != nil {
		return nil, err
	}
	gocv.Threshold(mat, &mat, 0, Foreground, gocv.ThresholdBinary)
	return &Mask{mat: mat}, nil
}

// Zeros returns an empty mask of the given size.
func Zeros(size image.Point) *Mask {
	return &Mask{mat: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC1)}
}

func (m *Mask) Mat() gocv.Mat { return m.mat }

func (m *Mask) Size() image.Point { return image.Pt(m.mat.Cols(), m.mat.Rows()) }

func (m *Mask) Bounds() image.Rectangle { return image.Rectangle{Max: m.Size()} }

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	return gocv.CountNonZero(m.mat)
}

// Empty reports whether no pixel is set.
func (m *Mask) Empty() bool {
	return m.Count() == 0
}

// At reports whether the pixel at (x, y) is set.
func (m *Mask) At(x, y int) bool {
	return m.mat.GetUCharAt(y, x) != 0
}

func (m *Mask) Clone() *Mask {
	return &Mask{mat: m.mat.Clone()}
}

func (m *Mask) ToImage() (image.Image, error) {
	return m.mat.ToImage()
}

func (m *Mask) Close() error {
	return m.mat.Close()
}

// Invert returns the complement of the mask.
func (m *Mask) Invert() *Mask {
	dst := gocv.NewMat()
	gocv.BitwiseNot(m.mat, &dst)
	return &Mask{mat: dst}
}

// Paint returns a copy of img with every pixel set in mask replaced by c.
func Paint(img *Image, mask *Mask, c color.RGBA) (*Image, error) {
	if err := MatchSize(img, mask, "paint"); err != nil {
		return nil, err
	}

	out := img.Clone()
	pix, err := out.mat.DataPtrUint8()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("image buffer unavailable: %w", err)
	}
	sel, err := mask.mat.DataPtrUint8()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("mask buffer unavailable: %w", err)
	}

	for i, v := range sel {
		if v != 0 {
			pix[i*3], pix[i*3+1], pix[i*3+2] = c.B, c.G, c.R
		}
	}
	return out, nil
}

// MatchSize returns an error when mask and image dimensions differ.
func MatchSize(img *Image, mask *Mask, operation string) error {
	return safe.ValidateMask(mask.Mat(), img.Size(), operation)
}
