// Package patch rectifies a frame around a detected marker and crops the
// configured sub-region out of the rectified view.
//
// The rectified view is a square of side sOut = 2*sFrm + sMkr pixels in
// which the marker always occupies [sFrm, sFrm+sMkr) on both axes, so a
// fixed-offset rectangle isolates the same physical region regardless of
// where and how the camera saw the marker.
package patch

import (
	"errors"
	"fmt"
	"image"
)

// ErrOutOfBounds is returned when a patch rectangle does not fit in the
// rectified frame.
var ErrOutOfBounds = errors.New("patch rectangle outside rectified frame")

// Geometry describes the canonical rectified frame.
type Geometry struct {
	MarkerSize      int // sMkr
	FrameMultiplier int // nFrame
}

// Marker returns sMkr.
func (g Geometry) Marker() int { return g.MarkerSize }

// Margin returns sFrm, the border kept around the marker on every side.
func (g Geometry) Margin() int { return g.MarkerSize * g.FrameMultiplier }

// Side returns sOut.
func (g Geometry) Side() int { return 2*g.Margin() + g.MarkerSize }

// Validate rejects geometries that cannot produce a warp target.
func (g Geometry) Validate() error {
	if g.MarkerSize <= 0 {
		return fmt.Errorf("marker size must be positive, got %d", g.MarkerSize)
	}
	if g.FrameMultiplier < 0 {
		return fmt.Errorf("frame multiplier must not be negative, got %d", g.FrameMultiplier)
	}
	return nil
}

// Anchor selects which marker corner patch offsets are measured from.
type Anchor string

const (
	// AnchorOrigin measures offsets from the marker's top-left corner (sFrm, sFrm).
	AnchorOrigin Anchor = "origin"
	// AnchorFarCorner measures offsets from the bottom-right corner (sFrm+sMkr, sFrm+sMkr).
	AnchorFarCorner Anchor = "far_corner"
)

// Spec is the per-identifier patch placement.
type Spec struct {
	Name    string
	OffsetX int
	OffsetY int
	Width   int
	Height  int
	Anchor  Anchor
}

// Rect returns the crop rectangle inside the rectified frame.
func (s Spec) Rect(g Geometry) image.Rectangle {
	base := g.Margin()
	if s.Anchor == AnchorFarCorner {
		base += g.Marker()
	}
	x := base + s.OffsetX
	y := base + s.OffsetY
	return image.Rect(x, y, x+s.Width, y+s.Height)
}

// CheckBounds verifies the patch rectangle lies inside the rectified frame.
func (s Spec) CheckBounds(g Geometry) error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("patch %q: size %dx%d must be positive", s.Name, s.Width, s.Height)
	}
	switch s.Anchor {
	case "", AnchorOrigin, AnchorFarCorner:
	default:
		return fmt.Errorf("patch %q: unknown anchor %q", s.Name, s.Anchor)
	}

	r := s.Rect(g)
	frame := image.Rect(0, 0, g.Side(), g.Side())
	if !r.In(frame) {
		return fmt.Errorf("patch %q: %v not inside %v: %w", s.Name, r, frame, ErrOutOfBounds)
	}
	return nil
}
