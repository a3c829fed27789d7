package safe

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MaxDimension bounds accepted image sides.
const MaxDimension = 32768

func ValidateMatForOperation(mat gocv.Mat, operation string) error {
	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	return ValidateDimensions(mat.Cols(), mat.Rows(), operation)
}

// ValidateColor checks for an 8-bit, 3-channel BGR Mat.
func ValidateColor(mat gocv.Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if mat.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("%s requires an 8-bit 3-channel image, got type %d with %d channels",
			operation, int(mat.Type()), mat.Channels())
	}

	return nil
}

// ValidateMask checks for an 8-bit single channel Mat of the expected size.
func ValidateMask(mat gocv.Mat, size image.Point, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if mat.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%s requires a single channel 8-bit mask, got type %d", operation, int(mat.Type()))
	}

	if mat.Cols() != size.X || mat.Rows() != size.Y {
		return fmt.Errorf("%s: mask size %dx%d does not match image size %dx%d",
			operation, mat.Cols(), mat.Rows(), size.X, size.Y)
	}

	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}

// ValidateRect checks that r is a non-empty rectangle inside bounds.
func ValidateRect(r, bounds image.Rectangle, operation string) error {
	if r.Empty() {
		return fmt.Errorf("empty rectangle %v for operation: %s", r, operation)
	}

	if !r.In(bounds) {
		return fmt.Errorf("rectangle %v outside %v for operation: %s", r, bounds, operation)
	}

	return nil
}
