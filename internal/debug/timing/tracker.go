// Package timing records how long each pipeline stage takes.
package timing

import (
	"sync"
	"time"

	"applimon/internal/logger"
)

// Stage is one measured step of a run.
type Stage struct {
	Name     string
	Duration time.Duration
}

type Tracker struct {
	mu     sync.Mutex
	stages []Stage
	log    logger.Logger
	now    func() time.Time
}

func NewTracker(log logger.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{log: log, now: time.Now}
}

// Start begins timing name. Calling the returned func records the stage;
// further calls are ignored.
func (tt *Tracker) Start(name string) func() {
	start := tt.now()
	var once sync.Once
	return func() {
		once.Do(func() {
			d := tt.now().Sub(start)
			tt.mu.Lock()
			tt.stages = append(tt.stages, Stage{Name: name, Duration: d})
			tt.mu.Unlock()

			tt.log.Debug("timing", "stage completed", map[string]interface{}{
				"stage":       name,
				"duration_ms": d.Milliseconds(),
			})
		})
	}
}

// Stages returns the recorded stages in completion order.
func (tt *Tracker) Stages() []Stage {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	out := make([]Stage, len(tt.stages))
	copy(out, tt.stages)
	return out
}

// Total sums every recorded stage.
func (tt *Tracker) Total() time.Duration {
	var total time.Duration
	for _, s := range tt.Stages() {
		total += s.Duration
	}
	return total
}

// Fields renders the stages as log fields keyed by stage name.
func (tt *Tracker) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	for _, s := range tt.Stages() {
		fields[s.Name+"_ms"] = s.Duration.Milliseconds()
	}
	return fields
}
