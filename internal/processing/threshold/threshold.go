// Package threshold turns a grayscale patch into the numbers the
// classifiers decide on: a bright-pixel ratio and an automatic threshold.
package threshold

import (
	"errors"
	"fmt"

	"applimon/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	// Fixed is the intensity a pixel must exceed to count as lit.
	Fixed = 128.0
	// Floor is the lowest automatic threshold accepted. Otsu on a dark,
	// nearly uniform patch collapses towards the noise level otherwise.
	Floor = 50.0
)

var ErrEmpty = errors.New("patch has no pixels")

// BrightRatio returns the fraction of pixels strictly above t.
func BrightRatio(gray gocv.Mat, t float64) (float64, error) {
	if gray.Empty() || gray.Total() == 0 {
		return 0, ErrEmpty
	}
	if err := safe.ValidateGray(gray, "bright ratio"); err != nil {
		return 0, err
	}

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(gray, &bin, float32(t), 255, gocv.ThresholdBinary)

	return float64(gocv.CountNonZero(bin)) / float64(gray.Total()), nil
}

// Otsu returns the between-class variance maximising threshold of gray.
func Otsu(gray gocv.Mat) (float64, error) {
	if err := safe.ValidateGray(gray, "otsu"); err != nil {
		return 0, err
	}

	bin := gocv.NewMat()
	defer bin.Close()
	t := gocv.Threshold(gray, &bin, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return float64(t), nil
}

// OtsuWithFloor is Otsu clamped from below to floor.
func OtsuWithFloor(gray gocv.Mat, floor float64) (float64, error) {
	t, err := Otsu(gray)
	if err != nil {
		return 0, err
	}
	if t < floor {
		t = floor
	}
	return t, nil
}

// OtsuMask binarises gray with Otsu's threshold. With invert set the pixels
// at or below the threshold become 255. The caller closes the mask.
func OtsuMask(gray gocv.Mat, invert bool) (gocv.Mat, float64, error) {
	if err := safe.ValidateGray(gray, "otsu mask"); err != nil {
		return gocv.NewMat(), 0, err
	}

	typ := gocv.ThresholdBinary
	if invert {
		typ = gocv.ThresholdBinaryInv
	}

	mask := gocv.NewMat()
	t := gocv.Threshold(gray, &mask, 0, 255, typ+gocv.ThresholdOtsu)
	if mask.Empty() {
		mask.Close()
		return gocv.NewMat(), 0, fmt.Errorf("otsu produced no mask")
	}
	return mask, float64(t), nil
}
