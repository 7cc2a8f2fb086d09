package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"applimon/internal/classify"
	"applimon/internal/statelog"
)

var epoch = time.Unix(1_700_000_000, 0)

func at(sec int) time.Time { return epoch.Add(time.Duration(sec) * time.Second) }

func TestTracker_DebounceTimeline(t *testing.T) {
	tr := Tracker{Policy: PolicyDebounce, Interval: 60 * time.Second, MaxCount: 3}
	entry := statelog.Fresh(at(-10))

	var fired []int
	for _, sec := range []int{0, 50, 70, 130, 190, 250} {
		var events []Event
		entry, events = tr.Step(entry, classify.Active, 0.6, at(sec))
		if len(events) > 1 {
			t.Fatalf("t=%d: %d events, want at most one", sec, len(events))
		}
		if len(events) == 1 {
			fired = append(fired, sec)
		}
	}

	want := []int{0, 70, 250}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	}
}

func TestTracker_DebounceStopsAtMaxCount(t *testing.T) {
	tr := Tracker{Policy: PolicyDebounce, Interval: 60 * time.Second, MaxCount: 2}
	entry := statelog.Fresh(at(0))

	count := 0
	for sec := 0; sec <= 3600; sec += 60 {
		var events []Event
		entry, events = tr.Step(entry, classify.Active, 0.6, at(sec))
		count += len(events)
	}
	if count != 2 {
		t.Errorf("sent %d notifications over an hour, want max_count 2", count)
	}
}

func TestTracker_FinishedExactlyOnce(t *testing.T) {
	for _, policy := range []string{PolicyTransition, PolicyDebounce} {
		t.Run(policy, func(t *testing.T) {
			tr := Tracker{Policy: policy, Interval: 60 * time.Second, MaxCount: 3}
			entry := statelog.Fresh(at(0))

			for sec := 0; sec < 36000; sec += 600 {
				entry, _ = tr.Step(entry, classify.Active, 0.75, at(sec))
			}

			var events []Event
			entry, events = tr.Step(entry, classify.Inactive, 0.05, at(36000))
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Kind != KindFinished || ev.Summary != "0.75 -> 0.05" {
				t.Errorf("event = %+v", ev)
			}
			if entry.Status != classify.Inactive || entry.Count != 0 {
				t.Errorf("entry after finish = %+v", entry)
			}

			_, events = tr.Step(entry, classify.Inactive, 0.04, at(36060))
			if len(events) != 0 {
				t.Errorf("inactive -> inactive sent %d events", len(events))
			}
		})
	}
}

func TestTracker_TransitionPolicyIgnoresActive(t *testing.T) {
	tr := Tracker{Policy: PolicyTransition}
	entry := statelog.Fresh(at(0))

	next, events := tr.Step(entry, classify.Active, 0.5, at(10))
	if len(events) != 0 {
		t.Errorf("got %d events on becoming active", len(events))
	}
	if next.Status != classify.Active || next.Ratio != 0.5 {
		t.Errorf("entry = %+v", next)
	}
}

func TestTracker_UnknownOnlyMovesTimestamp(t *testing.T) {
	tr := Tracker{Policy: PolicyDebounce, Interval: time.Minute, MaxCount: 3}
	prev := statelog.Entry{Status: classify.Active, Ratio: 0.4, Count: 2, NotifiedUnix: at(0).Unix()}
	prev.Stamp(at(100))

	next, events := tr.Step(prev, classify.Unknown, 0, at(400))
	if len(events) != 0 {
		t.Errorf("unknown sent %d events", len(events))
	}

	want := prev
	want.Stamp(at(400))
	if next != want {
		t.Errorf("entry = %+v, want %+v", next, want)
	}
}

func TestWebhook_Send(t *testing.T) {
	var got map[string]string
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Send(context.Background(), Event{
		Kind:    KindFinished,
		Summary: "0.45 -> 0.03",
		Status:  classify.Inactive,
		Ratio:   0.03,
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	want := map[string]string{"value1": "0.45 -> 0.03", "value2": "inactive", "value3": "0.03"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestWebhook_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, time.Second).Send(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestWebhook_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewWebhook(srv.URL, 50*time.Millisecond).Send(context.Background(), Event{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout not honoured, took %v", time.Since(start))
	}
}
