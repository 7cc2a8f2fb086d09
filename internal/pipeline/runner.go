package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"applimon/internal/classify"
	"applimon/internal/debug/timing"
	"applimon/internal/frame"
	"applimon/internal/history"
	"applimon/internal/logger"
	"applimon/internal/marker"
	"applimon/internal/notify"
	"applimon/internal/opencv/conversion"
	"applimon/internal/patch"
	"applimon/internal/statelog"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Runner wires the stages of one run. History and Artifacts are optional.
type Runner struct {
	Source     frame.Source
	Locator    marker.Locator
	Extractor  *patch.Extractor
	Classifier classify.Classifier
	Tracker    notify.Tracker
	Sender     notify.Sender
	History    history.Recorder
	Artifacts  *ArtifactSaver
	MarkerID   int
	Logger     logger.Logger
	Now        func() time.Time
}

// Report describes what one run saw and did.
type Report struct {
	RunID     uuid.UUID
	Entry     statelog.Entry
	Status    classify.Status
	Ratio     float64
	Threshold float64
	Markers   []int
	Events    []notify.Event
	Delivered int
	Stages    []timing.Stage
	Artifacts []string
}

// Run performs one pass and returns the entry to persist. When no frame
// could be acquired the error wraps frame.ErrNoFrame and the previous
// entry must be kept.
func (r *Runner) Run(ctx context.Context, prev statelog.Entry) (Report, error) {
	log := r.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	rep := Report{RunID: uuid.New()}
	base := map[string]interface{}{"run_id": rep.RunID.String()}
	timer := timing.NewTracker(log)

	stop := timer.Start("acquire")
	bgr, err := r.Source.Acquire(ctx)
	stop()
	if err != nil {
		if errors.Is(err, frame.ErrNoFrame) {
			log.Warning(component, "no frame available, skipping run", with(base, "error", err.Error()))
		}
		return rep, fmt.Errorf("acquire: %w", err)
	}
	defer bgr.Close()
	r.Artifacts.Save(ArtifactFrame, bgr)

	gray, err := frame.Grayscale(bgr)
	if err != nil {
		return rep, err
	}
	defer gray.Close()

	stop = timer.Start("detect")
	obs, err := r.Locator.Detect(gray)
	stop()
	if err != nil {
		return rep, fmt.Errorf("marker detection: %w", err)
	}
	rep.Markers = observedIDs(obs)
	r.saveMarkers(gray, obs)

	log.Debug(component, "markers detected", with(base, "markers", rep.Markers))

	stop = timer.Start("extract")
	patches, err := r.Extractor.Extract(gray, obs)
	stop()
	if err != nil {
		return rep, fmt.Errorf("patch extraction: %w", err)
	}
	defer patches.Close()
	for _, p := range patches {
		r.Artifacts.Save(patchArtifact(label(p)), p.Image)
	}

	stop = timer.Start("classify")
	target := patches.Get(r.MarkerID)
	res, err := r.Classifier.Classify(target)
	stop()
	defer res.Close()
	if err != nil {
		log.Warning(component, "classification failed, treating as unknown", with(base,
			"marker_id", r.MarkerID,
			"error", err.Error(),
		))
	}
	if target != nil {
		r.Artifacts.Save(overlayArtifact(label(target)), res.Overlay)
	} else {
		log.Info(component, "monitored marker not found", with(base, "marker_id", r.MarkerID))
	}

	rep.Status = res.Status
	rep.Ratio = res.Ratio
	rep.Threshold = res.Threshold

	ts := now()
	rep.Entry, rep.Events = r.Tracker.Step(prev, res.Status, res.Ratio, ts)

	stop = timer.Start("notify")
	rep.Delivered = r.deliver(ctx, rep.Events, log, base)
	stop()

	r.record(ctx, rep, ts, log, base)

	rep.Stages = timer.Stages()
	rep.Artifacts = r.Artifacts.Written()
	log.Info(component, "run completed", with(base,
		"status", rep.Status.String(),
		"previous_status", prev.Status.String(),
		"ratio", rep.Ratio,
		"classifier", r.Classifier.Name(),
		"events", len(rep.Events),
		"delivered", rep.Delivered,
		"duration_ms", timer.Total().Milliseconds(),
	))
	return rep, nil
}

func (r *Runner) deliver(ctx context.Context, events []notify.Event, log logger.Logger, base map[string]interface{}) int {
	sender := r.Sender
	if sender == nil {
		sender = notify.Discard{}
	}

	delivered := 0
	for _, ev := range events {
		if err := sender.Send(ctx, ev); err != nil {
			log.Error(component, fmt.Errorf("notification not delivered: %w", err), with(base,
				"kind", ev.Kind,
				"summary", ev.Summary,
			))
			continue
		}
		delivered++
		log.Info(component, "notification sent", with(base,
			"kind", ev.Kind,
			"summary", ev.Summary,
		))
	}
	return delivered
}

func (r *Runner) record(ctx context.Context, rep Report, ts time.Time, log logger.Logger, base map[string]interface{}) {
	if r.History == nil {
		return
	}

	err := r.History.Record(ctx, history.Observation{
		RunID:      rep.RunID,
		ObservedAt: ts,
		MarkerID:   r.MarkerID,
		Status:     rep.Status,
		Ratio:      rep.Ratio,
		Notified:   rep.Delivered > 0,
	})
	if err != nil {
		log.Error(component, fmt.Errorf("history not recorded: %w", err), base)
	}
}

func (r *Runner) saveMarkers(gray gocv.Mat, obs []marker.Observation) {
	if r.Artifacts == nil {
		return
	}
	bgr, err := conversion.GrayToBGR(gray)
	if err != nil {
		return
	}
	defer bgr.Close()

	marker.Draw(&bgr, obs)
	r.Artifacts.Save(ArtifactMarkers, bgr)
}

func observedIDs(obs []marker.Observation) []int {
	ids := make([]int, 0, len(obs))
	for _, o := range obs {
		ids = append(ids, o.ID)
	}
	sort.Ints(ids)
	return ids
}
