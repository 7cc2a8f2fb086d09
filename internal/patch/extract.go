package patch

import (
	"fmt"
	"image"

	"applimon/internal/marker"
	"applimon/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Destination is the canonical quad the marker corners are mapped onto,
// in the detector's corner order.
func (g Geometry) Destination() [4]gocv.Point2f {
	f := float32(g.Margin())
	m := float32(g.Marker())
	return [4]gocv.Point2f{
		{X: f, Y: f},
		{X: f + m, Y: f},
		{X: f + m, Y: f + m},
		{X: f, Y: f + m},
	}
}

// Rectify warps the whole frame so the marker seen at corners lands on the
// canonical quad, producing a Side() x Side() view. The caller closes it.
func Rectify(gray gocv.Mat, corners [4]gocv.Point2f, g Geometry) (gocv.Mat, error) {
	if err := safe.ValidateMatForOperation(gray, "rectify"); err != nil {
		return gocv.NewMat(), err
	}
	if err := g.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	dst := g.Destination()
	srcVec := gocv.NewPoint2fVectorFromPoints(corners[:])
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(dst[:])
	defer dstVec.Close()

	m := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer m.Close()
	if m.Empty() {
		return gocv.NewMat(), fmt.Errorf("degenerate marker corners %v", corners)
	}

	out := gocv.NewMat()
	side := g.Side()
	gocv.WarpPerspective(gray, &out, m, image.Pt(side, side))
	return out, nil
}

// Crop returns an owned copy of rect from the rectified view.
func Crop(warped gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	if !rect.In(image.Rect(0, 0, warped.Cols(), warped.Rows())) {
		return gocv.NewMat(), fmt.Errorf("%v in %dx%d view: %w", rect, warped.Cols(), warped.Rows(), ErrOutOfBounds)
	}
	return safe.CropClone(warped, rect)
}

// Patch is a cropped grayscale region keyed by the marker it was found with.
type Patch struct {
	MarkerID int
	Name     string
	Rect     image.Rectangle
	Image    gocv.Mat
}

func (p *Patch) Close() {
	if p != nil {
		p.Image.Close()
	}
}

// Set holds the patches extracted from one frame.
type Set map[int]*Patch

// Get returns the patch for id, or nil when that marker was not seen.
func (s Set) Get(id int) *Patch {
	return s[id]
}

func (s Set) Close() {
	for _, p := range s {
		p.Close()
	}
}

// Extractor crops the configured patch for every recognised marker.
type Extractor struct {
	geom  Geometry
	specs map[int]Spec
}

func NewExtractor(g Geometry, specs map[int]Spec) (*Extractor, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	for id, s := range specs {
		if err := s.CheckBounds(g); err != nil {
			return nil, fmt.Errorf("marker %d: %w", id, err)
		}
	}
	return &Extractor{geom: g, specs: specs}, nil
}

// Extract rectifies around each observation whose identifier has a patch
// configured and crops it. Unknown identifiers are ignored; when an
// identifier appears twice the first observation wins.
func (e *Extractor) Extract(gray gocv.Mat, obs []marker.Observation) (Set, error) {
	set := Set{}
	for _, o := range obs {
		spec, ok := e.specs[o.ID]
		if !ok {
			continue
		}
		if _, seen := set[o.ID]; seen {
			continue
		}

		p, err := e.extractOne(gray, o, spec)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("marker %d: %w", o.ID, err)
		}
		set[o.ID] = p
	}
	return set, nil
}

func (e *Extractor) extractOne(gray gocv.Mat, o marker.Observation, spec Spec) (*Patch, error) {
	warped, err := Rectify(gray, o.Corners, e.geom)
	if err != nil {
		return nil, err
	}
	defer warped.Close()

	rect := spec.Rect(e.geom)
	img, err := Crop(warped, rect)
	if err != nil {
		return nil, err
	}

	return &Patch{
		MarkerID: o.ID,
		Name:     spec.Name,
		Rect:     rect,
		Image:    img,
	}, nil
}
