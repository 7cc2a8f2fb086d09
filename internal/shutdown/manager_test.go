package shutdown

import (
	"testing"
	"time"

	"applimon/internal/logger"
)

func TestManager_ReverseOrderOnce(t *testing.T) {
	m := NewManager(logger.Nop())

	var order []string
	m.Register("camera", func() { order = append(order, "camera") })
	m.Register("detector", func() { order = append(order, "detector") })
	m.Register("history", func() { order = append(order, "history") })

	m.Shutdown()
	m.Shutdown()

	want := []string{"history", "detector", "camera"}
	if len(order) != len(want) {
		t.Fatalf("released %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("released %v, want %v", order, want)
		}
	}
}

func TestManager_Timeout(t *testing.T) {
	m := NewManager(logger.Nop())
	m.timeout = 10 * time.Millisecond

	block := make(chan struct{})
	defer close(block)

	released := false
	m.Register("stuck", func() { <-block })
	m.Register("fine", func() { released = true })

	start := time.Now()
	m.Shutdown()
	if time.Since(start) > time.Second {
		t.Errorf("Shutdown waited %v on a stuck component", time.Since(start))
	}
	if !released {
		t.Error("component registered after the stuck one was not released")
	}
}
