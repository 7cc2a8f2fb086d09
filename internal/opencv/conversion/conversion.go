package conversion

import (
	"fmt"
	"image"

	"applimon/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ConvertToGrayscale converts multi-channel images to single-channel 8-bit grayscale.
// The caller owns the returned Mat.
func ConvertToGrayscale(src gocv.Mat) (gocv.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "grayscale conversion"); err != nil {
		return gocv.NewMat(), fmt.Errorf("validation failed: %w", err)
	}

	src8 := src
	if src.Type() != gocv.MatTypeCV8UC1 && src.Type() != gocv.MatTypeCV8UC3 && src.Type() != gocv.MatTypeCV8UC4 {
		src8 = gocv.NewMat()
		defer src8.Close()
		src.ConvertTo(&src8, eightBitType(src.Channels()))
	}

	dst := gocv.NewMat()

	switch src8.Channels() {
	case 1:
		src8.CopyTo(&dst)
	case 3:
		gocv.CvtColor(src8, &dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src8, &dst, gocv.ColorBGRAToGray)
	default:
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("unsupported channel count: %d", src8.Channels())
	}

	return dst, nil
}

// GrayToBGR expands a grayscale Mat to three channels for colored annotation.
func GrayToBGR(src gocv.Mat) (gocv.Mat, error) {
	if err := safe.ValidateColorConversion(src, gocv.ColorGrayToBGR); err != nil {
		return gocv.NewMat(), err
	}

	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	return dst, nil
}

// ImageToMat converts a standard Go image to an 8-bit BGR Mat.
func ImageToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if err := safe.ValidateDimensions(width, height, "image to Mat"); err != nil {
		return gocv.NewMat(), err
	}

	buf := make([]byte, 0, width*height*3)

	switch typed := img.(type) {
	case *image.Gray:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				v := typed.GrayAt(x, y).Y
				buf = append(buf, v, v, v)
			}
		}
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				p := typed.NRGBAAt(x, y)
				buf = append(buf, p.B, p.G, p.R)
			}
		}
	case *image.RGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				p := typed.RGBAAt(x, y)
				buf = append(buf, p.B, p.G, p.R)
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				buf = append(buf, uint8(b>>8), uint8(g>>8), uint8(r>>8))
			}
		}
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("Mat creation failed: %w", err)
	}
	defer mat.Close()

	// NewMatFromBytes may alias buf; clone so the Mat owns its pixels.
	return mat.Clone(), nil
}

func eightBitType(channels int) gocv.MatType {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1
	case 4:
		return gocv.MatTypeCV8UC4
	default:
		return gocv.MatTypeCV8UC3
	}
}
