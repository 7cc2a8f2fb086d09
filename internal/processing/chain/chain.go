package chain

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
)

// Step is one image operation. Apply must not modify input and returns a
// Mat the caller owns.
type Step interface {
	Apply(ctx context.Context, input gocv.Mat) (gocv.Mat, error)
	Name() string
}

type ProcessingChain struct {
	steps []Step
}

func NewProcessingChain(steps ...Step) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

// Execute runs the steps in order. Intermediate results are released as
// soon as the next step has consumed them; input is never closed.
func (pc *ProcessingChain) Execute(ctx context.Context, input gocv.Mat) (gocv.Mat, error) {
	current := input
	owned := false

	release := func() {
		if owned {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return gocv.NewMat(), ctx.Err()
		default:
		}

		result, err := step.Apply(ctx, current)
		if err != nil {
			release()
			return gocv.NewMat(), fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		release()
		current = result
		owned = true
	}

	if !owned {
		return input.Clone(), nil
	}
	return current, nil
}

func (pc *ProcessingChain) StepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
