// Package classify decides whether a patch shows an appliance as active.
package classify

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Status is the tri-state outcome of one classification.
type Status int

const (
	Unknown  Status = -1
	Inactive Status = 0
	Active   Status = 1
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unknown":
		*s = Unknown
	case "inactive":
		*s = Inactive
	case "active":
		*s = Active
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// FromLegacy maps the -1/0/1 integers older log files carry.
func FromLegacy(v int) Status {
	switch v {
	case 0:
		return Inactive
	case 1:
		return Active
	default:
		return Unknown
	}
}

// ActiveRatio is the bright-pixel fraction a patch must exceed to be Active.
const ActiveRatio = 0.2

func statusFor(ratio float64) Status {
	if ratio > ActiveRatio {
		return Active
	}
	return Inactive
}

// Result is a classification with the numbers that produced it. Overlay is
// a BGR rendering of the patch for the debug artifact and may be empty.
type Result struct {
	Status    Status
	Ratio     float64
	Threshold float64
	Box       image.Rectangle
	Overlay   gocv.Mat
}

func unknown() Result {
	return Result{Status: Unknown, Overlay: gocv.NewMat()}
}

func (r *Result) Close() {
	r.Overlay.Close()
}
