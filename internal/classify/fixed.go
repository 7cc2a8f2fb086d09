package classify

import (
	"fmt"

	"applimon/internal/patch"
	"applimon/internal/processing/threshold"
)

// Classifier turns a patch into a Result. A nil patch means the marker was
// not found and always yields Unknown.
type Classifier interface {
	Classify(p *patch.Patch) (Result, error)
	Name() string
}

// Fixed counts pixels above a fixed intensity.
type Fixed struct {
	Threshold float64
}

func NewFixed() *Fixed {
	return &Fixed{Threshold: threshold.Fixed}
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Classify(p *patch.Patch) (Result, error) {
	if p == nil {
		return unknown(), nil
	}

	ratio, err := threshold.BrightRatio(p.Image, f.Threshold)
	if err != nil {
		return unknown(), fmt.Errorf("fixed classifier: %w", err)
	}

	res := Result{
		Status:    statusFor(ratio),
		Ratio:     ratio,
		Threshold: f.Threshold,
	}
	res.Overlay, err = annotate(p.Image, ratio, nil)
	if err != nil {
		return unknown(), err
	}
	return res, nil
}
