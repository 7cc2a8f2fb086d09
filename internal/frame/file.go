package frame

import (
	"context"
	"fmt"

	"applimon/internal/opencv/conversion"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// File loads the frame from an image on disk instead of a camera. Phone
// photos carry EXIF orientation, so decoding honours it before the marker
// detector sees the pixels.
type File struct {
	Path string
}

func (f File) Acquire(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}

	img, err := imaging.Open(f.Path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to load image %s: %w", f.Path, err)
	}

	mat, err := conversion.ImageToMat(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image %s: %w", f.Path, err)
	}
	return mat, nil
}

// Grayscale returns the 8-bit single-channel view the marker detector and
// classifiers work on.
func Grayscale(bgr gocv.Mat) (gocv.Mat, error) {
	gray, err := conversion.ConvertToGrayscale(bgr)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("grayscale conversion: %w", err)
	}
	return gray, nil
}
