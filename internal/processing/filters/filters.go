package filters

import (
	"context"

	"applimon/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// MeanClipFilter caps every sample at the image mean, so a few hot pixels
// cannot drag a global threshold upward.
type MeanClipFilter struct{}

func NewMeanClipFilter() *MeanClipFilter {
	return &MeanClipFilter{}
}

func (m *MeanClipFilter) Name() string {
	return "mean_clip_filter"
}

func (m *MeanClipFilter) Apply(ctx context.Context, input gocv.Mat) (gocv.Mat, error) {
	select {
	case <-ctx.Done():
		return gocv.NewMat(), ctx.Err()
	default:
	}

	if err := safe.ValidateGray(input, m.Name()); err != nil {
		return gocv.NewMat(), err
	}

	mean := input.Mean().Val1
	dst := gocv.NewMat()
	gocv.Threshold(input, &dst, float32(mean), 255, gocv.ThresholdTrunc)
	return dst, nil
}
