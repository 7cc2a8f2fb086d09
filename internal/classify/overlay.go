package classify

import (
	"fmt"
	"image"
	"image/color"

	"applimon/internal/opencv/conversion"

	"gocv.io/x/gocv"
)

var (
	textColor = color.RGBA{255, 0, 0, 0}
	boxColor  = color.RGBA{0, 255, 0, 0}
)

// annotate renders the patch in colour with the ratio printed along the
// bottom edge, and box outlined when given.
func annotate(gray gocv.Mat, ratio float64, box *image.Rectangle) (gocv.Mat, error) {
	bgr, err := conversion.GrayToBGR(gray)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("overlay: %w", err)
	}

	if box != nil {
		gocv.Rectangle(&bgr, *box, boxColor, 1)
	}
	gocv.PutText(&bgr, fmt.Sprintf("%2.2f", ratio), image.Pt(1, bgr.Rows()-1), gocv.FontHersheyPlain, 1.0, textColor, 1)
	return bgr, nil
}
