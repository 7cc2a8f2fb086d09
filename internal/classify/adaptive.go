package classify

import (
	"context"
	"errors"
	"fmt"
	"image"

	"applimon/internal/opencv/safe"
	"applimon/internal/patch"
	"applimon/internal/processing/chain"
	"applimon/internal/processing/filters"
	"applimon/internal/processing/threshold"

	"gocv.io/x/gocv"
)

// ErrNoContours is returned when boundary detection finds nothing to
// measure. The result is Unknown.
var ErrNoContours = errors.New("boundary detection found no contours")

// Adaptive locates the region of interest inside the patch before
// measuring it, for displays whose lit area moves around the patch.
type Adaptive struct {
	Floor float64

	blur     *filters.GaussianFilter
	boundary *chain.ProcessingChain
}

func NewAdaptive() *Adaptive {
	blur := filters.NewGaussianFilter(filters.DefaultKernel)
	return &Adaptive{
		Floor:    threshold.Floor,
		blur:     blur,
		boundary: chain.NewProcessingChain(blur, filters.NewMeanClipFilter()),
	}
}

func (a *Adaptive) Name() string { return "adaptive" }

func (a *Adaptive) Classify(p *patch.Patch) (Result, error) {
	if p == nil {
		return unknown(), nil
	}
	if err := safe.ValidateGray(p.Image, "adaptive classifier"); err != nil {
		return unknown(), err
	}

	ctx := context.Background()

	box, err := a.findBoundary(ctx, p.Image)
	if err != nil {
		return unknown(), err
	}

	blurred, err := a.blur.Apply(ctx, p.Image)
	if err != nil {
		return unknown(), err
	}
	defer blurred.Close()

	roi, err := safe.CropClone(blurred, box)
	if err != nil {
		return unknown(), fmt.Errorf("adaptive classifier: %w", err)
	}
	defer roi.Close()

	t, err := threshold.OtsuWithFloor(roi, a.Floor)
	if err != nil {
		return unknown(), err
	}
	ratio, err := threshold.BrightRatio(roi, t)
	if err != nil {
		return unknown(), err
	}

	res := Result{
		Status:    statusFor(ratio),
		Ratio:     ratio,
		Threshold: t,
		Box:       box,
	}
	res.Overlay, err = annotate(p.Image, ratio, &box)
	if err != nil {
		return unknown(), err
	}
	return res, nil
}

// findBoundary returns the bounding box of the largest dark region after
// blurring and clipping the patch at its mean. A featureless patch has no
// boundary to find, so the whole patch is used.
func (a *Adaptive) findBoundary(ctx context.Context, gray gocv.Mat) (image.Rectangle, error) {
	full := image.Rect(0, 0, gray.Cols(), gray.Rows())

	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	if minVal == maxVal {
		return full, nil
	}

	clipped, err := a.boundary.Execute(ctx, gray)
	if err != nil {
		return image.Rectangle{}, err
	}
	defer clipped.Close()

	mask, _, err := threshold.OtsuMask(clipped, true)
	if err != nil {
		return image.Rectangle{}, err
	}
	defer mask.Close()

	return largestBox(mask)
}

// largestBox picks the external contour with the largest bounding box
// area. Ties keep the contour the finder returned first.
func largestBox(mask gocv.Mat) (image.Rectangle, error) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return image.Rectangle{}, ErrNoContours
	}

	var best image.Rectangle
	bestArea := -1
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		if area := r.Dx() * r.Dy(); area > bestArea {
			best, bestArea = r, area
		}
	}
	if best.Empty() {
		return image.Rectangle{}, ErrNoContours
	}
	return best, nil
}
