// Package marker finds printed ArUco fiducials in a grayscale frame.
package marker

import (
	"fmt"
	"image/color"
	"strings"

	"applimon/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Observation is one detected marker: its identifier and its four corners
// in the order the detector returns them (top-left, top-right,
// bottom-right, bottom-left of the printed pattern).
type Observation struct {
	ID      int
	Corners [4]gocv.Point2f
}

// Locator finds markers in an 8-bit grayscale frame.
type Locator interface {
	Detect(gray gocv.Mat) ([]Observation, error)
}

var dictionaries = map[string]gocv.ArucoDictionaryCode{
	"4x4_50":  gocv.ArucoDict4x4_50,
	"4x4_100": gocv.ArucoDict4x4_100,
	"5x5_50":  gocv.ArucoDict5x5_50,
	"5x5_100": gocv.ArucoDict5x5_100,
	"6x6_50":  gocv.ArucoDict6x6_50,
	"6x6_100": gocv.ArucoDict6x6_100,
}

// ParseDictionary maps a config name such as "4x4_50" to the OpenCV code.
func ParseDictionary(name string) (gocv.ArucoDictionaryCode, error) {
	code, ok := dictionaries[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown marker dictionary %q", name)
	}
	return code, nil
}

// ArucoLocator wraps OpenCV's ArUco detector.
type ArucoLocator struct {
	detector gocv.ArucoDetector
}

func NewArucoLocator(dict gocv.ArucoDictionaryCode) *ArucoLocator {
	params := gocv.NewArucoDetectorParameters()
	return &ArucoLocator{
		detector: gocv.NewArucoDetectorWithParams(gocv.GetPredefinedDictionary(dict), params),
	}
}

func (a *ArucoLocator) Detect(gray gocv.Mat) ([]Observation, error) {
	if err := safe.ValidateGray(gray, "marker detection"); err != nil {
		return nil, err
	}

	corners, ids, _ := a.detector.DetectMarkers(gray)
	if len(corners) != len(ids) {
		return nil, fmt.Errorf("detector returned %d corner sets for %d ids", len(corners), len(ids))
	}

	obs := make([]Observation, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		o := Observation{ID: id}
		copy(o.Corners[:], corners[i])
		obs = append(obs, o)
	}
	return obs, nil
}

func (a *ArucoLocator) Close() error {
	a.detector.Close()
	return nil
}

// Draw outlines the observations on a BGR image for the debug artifact.
func Draw(bgr *gocv.Mat, obs []Observation) {
	if len(obs) == 0 {
		return
	}
	corners := make([][]gocv.Point2f, len(obs))
	ids := make([]int, len(obs))
	for i, o := range obs {
		corners[i] = o.Corners[:]
		ids[i] = o.ID
	}
	gocv.ArucoDrawDetectedMarkers(*bgr, corners, ids, gocv.NewScalar(0, 255, 0, 0))
}

// Generate renders a printable marker of side pixels for identifier id.
func Generate(dict gocv.ArucoDictionaryCode, id, side int) (gocv.Mat, error) {
	if err := safe.ValidateDimensions(side, side, "marker generation"); err != nil {
		return gocv.NewMat(), err
	}
	if id < 0 {
		return gocv.NewMat(), fmt.Errorf("marker id must not be negative, got %d", id)
	}

	img := gocv.NewMat()
	gocv.ArucoGenerateImageMarker(dict, id, side, img, 1)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("marker %d could not be generated", id)
	}
	return img, nil
}

// Quiet pads a marker with a white quiet zone of pad pixels, which the
// detector needs to find the outer black border.
func Quiet(m gocv.Mat, pad int) gocv.Mat {
	out := gocv.NewMat()
	gocv.CopyMakeBorder(m, &out, pad, pad, pad, pad, gocv.BorderConstant, color.RGBA{255, 255, 255, 0})
	return out
}
