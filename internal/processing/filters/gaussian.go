package filters

import (
	"context"
	"image"

	"applimon/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// DefaultKernel is the blur kernel used on patches before thresholding.
const DefaultKernel = 5

type GaussianFilter struct {
	kernel int
}

// NewGaussianFilter returns a blur with a square kernel. Even sizes are
// bumped to the next odd value and the result is clamped to [3, 15].
func NewGaussianFilter(kernel int) *GaussianFilter {
	if kernel%2 == 0 {
		kernel++
	}
	kernel = max(3, min(kernel, 15))
	return &GaussianFilter{kernel: kernel}
}

func (g *GaussianFilter) Name() string {
	return "gaussian_filter"
}

func (g *GaussianFilter) Kernel() int { return g.kernel }

func (g *GaussianFilter) Apply(ctx context.Context, input gocv.Mat) (gocv.Mat, error) {
	select {
	case <-ctx.Done():
		return gocv.NewMat(), ctx.Err()
	default:
	}

	if err := safe.ValidateMatForOperation(input, g.Name()); err != nil {
		return gocv.NewMat(), err
	}

	dst := gocv.NewMat()
	gocv.GaussianBlur(input, &dst, image.Point{X: g.kernel, Y: g.kernel}, 0, 0, gocv.BorderDefault)
	return dst, nil
}
