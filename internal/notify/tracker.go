package notify

import (
	"fmt"
	"time"

	"applimon/internal/classify"
	"applimon/internal/statelog"
)

// Policy names.
const (
	PolicyTransition = "transition"
	PolicyDebounce   = "debounce"
)

// Tracker is the run-to-run state machine. It is a pure function of the
// previous log entry, the new observation and the clock.
type Tracker struct {
	Policy   string
	Interval time.Duration
	MaxCount int
}

// Step returns the entry to persist and the events to send for one
// observation.
//
// Active -> Inactive always emits one finished event. Under the debounce
// policy the first Active observation notifies and starts the count at 1;
// later ones notify again once the time since the last notification
// exceeds count*interval, until max_count notifications were sent. An
// Unknown observation only moves the timestamp.
func (t Tracker) Step(prev statelog.Entry, status classify.Status, ratio float64, now time.Time) (statelog.Entry, []Event) {
	next := prev
	next.Stamp(now)

	switch status {
	case classify.Unknown:
		return next, nil

	case classify.Inactive:
		var events []Event
		if prev.Status == classify.Active {
			events = append(events, Event{
				Kind:    KindFinished,
				Summary: fmt.Sprintf("%.2f -> %.2f", prev.Ratio, ratio),
				Status:  classify.Inactive,
				Ratio:   ratio,
				At:      now,
			})
			next.NotifiedUnix = now.Unix()
		}
		next.Status = classify.Inactive
		next.Ratio = ratio
		next.Count = 0
		return next, events

	case classify.Active:
		next.Status = classify.Active
		next.Ratio = ratio
		if t.Policy != PolicyDebounce {
			return next, nil
		}
		return t.debounce(prev, next, ratio, now)
	}

	return next, nil
}

func (t Tracker) debounce(prev, next statelog.Entry, ratio float64, now time.Time) (statelog.Entry, []Event) {
	interval := int64(t.Interval / time.Second)

	if prev.Status != classify.Active || prev.Count == 0 {
		next.Count = 1
		next.NotifiedUnix = now.Unix()
		return next, []Event{t.event(KindStarted, ratio, 1, now)}
	}

	if interval <= 0 || prev.Count >= t.MaxCount {
		return next, nil
	}

	elapsed := now.Unix() - prev.NotifiedUnix
	if elapsed <= int64(prev.Count)*interval {
		return next, nil
	}

	next.Count = prev.Count + int(elapsed/interval)
	next.NotifiedUnix = now.Unix()
	return next, []Event{t.event(KindRepeat, ratio, prev.Count+1, now)}
}

func (t Tracker) event(kind string, ratio float64, n int, now time.Time) Event {
	return Event{
		Kind:    kind,
		Summary: fmt.Sprintf("active %.2f (%d/%d)", ratio, n, t.MaxCount),
		Status:  classify.Active,
		Ratio:   ratio,
		Count:   n,
		At:      now,
	}
}
