package chain

import (
	"context"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

// addStep adds a constant to every pixel.
type addStep struct {
	name  string
	value float64
	err   error
}

func (a addStep) Name() string { return a.name }

func (a addStep) Apply(_ context.Context, input gocv.Mat) (gocv.Mat, error) {
	if a.err != nil {
		return gocv.NewMat(), a.err
	}
	dst := gocv.NewMat()
	input.ConvertToWithParams(&dst, input.Type(), 1, float32(a.value))
	return dst, nil
}

func TestProcessingChain_Execute(t *testing.T) {
	in := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC1)
	defer in.Close()

	pc := NewProcessingChain(addStep{name: "a", value: 5}, addStep{name: "b", value: 7})
	out, err := pc.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer out.Close()

	if got := out.GetUCharAt(0, 0); got != 22 {
		t.Errorf("pixel = %d, want 22", got)
	}
	if got := in.GetUCharAt(0, 0); got != 10 {
		t.Errorf("input modified: %d", got)
	}
	if names := pc.StepNames(); len(names) != 2 || names[1] != "b" {
		t.Errorf("StepNames = %v", names)
	}
}

func TestProcessingChain_Empty(t *testing.T) {
	in := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(3, 0, 0, 0), 2, 2, gocv.MatTypeCV8UC1)
	defer in.Close()

	out, err := NewProcessingChain().Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer out.Close()

	if out.GetUCharAt(1, 1) != 3 {
		t.Error("empty chain should return a copy of the input")
	}
}

func TestProcessingChain_StepError(t *testing.T) {
	in := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(3, 0, 0, 0), 2, 2, gocv.MatTypeCV8UC1)
	defer in.Close()

	boom := errors.New("boom")
	_, err := NewProcessingChain(addStep{name: "ok", value: 1}, addStep{name: "bad", err: boom}).Execute(context.Background(), in)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped step error, got %v", err)
	}
}
