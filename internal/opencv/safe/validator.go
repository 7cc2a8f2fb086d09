package safe

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func ValidateMatForOperation(mat gocv.Mat, operation string) error {
	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidateGray checks the Mat is a non-empty 8-bit single-channel image.
func ValidateGray(mat gocv.Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if mat.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("operation %s requires 8-bit grayscale, got MatType %d", operation, int(mat.Type()))
	}

	return nil
}

func ValidateColorConversion(src gocv.Mat, code gocv.ColorConversionCode) error {
	if err := ValidateMatForOperation(src, "CvtColor"); err != nil {
		return err
	}

	channels := src.Channels()

	switch code {
	case gocv.ColorBGRToGray, gocv.ColorRGBToGray:
		if channels != 3 {
			return fmt.Errorf("BGR/RGB to Gray conversion requires 3 channels, got %d", channels)
		}
	case gocv.ColorBGRAToGray:
		if channels != 4 {
			return fmt.Errorf("BGRA to Gray conversion requires 4 channels, got %d", channels)
		}
	case gocv.ColorGrayToBGR: // gocv.ColorGrayToRGB is an alias of the same value
		if channels != 1 {
			return fmt.Errorf("Gray to BGR/RGB conversion requires 1 channel, got %d", channels)
		}
	}

	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > 32768 || height > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}

// ValidateRegion checks rect is non-empty and lies inside mat.
func ValidateRegion(mat gocv.Mat, rect image.Rectangle, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if rect.Empty() {
		return fmt.Errorf("empty region %v for operation: %s", rect, operation)
	}

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	if !rect.In(bounds) {
		return fmt.Errorf("region %v outside %v for operation: %s", rect, bounds, operation)
	}

	return nil
}

// CropClone returns an owned copy of rect. The caller closes it.
func CropClone(mat gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	if err := ValidateRegion(mat, rect, "crop"); err != nil {
		return gocv.NewMat(), err
	}

	region := mat.Region(rect)
	defer region.Close()

	return region.Clone(), nil
}
