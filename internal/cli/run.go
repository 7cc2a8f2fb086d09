package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"applimon/internal/classify"
	"applimon/internal/config"
	"applimon/internal/frame"
	"applimon/internal/history"
	"applimon/internal/logger"
	"applimon/internal/marker"
	"applimon/internal/notify"
	"applimon/internal/patch"
	"applimon/internal/pipeline"
	"applimon/internal/shutdown"
	"applimon/internal/statelog"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run [image]",
		Short: "Capture (or load image) once, classify and notify on transitions",
		Long: `Run performs a single observation. Without an argument the frame is
averaged from the configured camera; with one it is loaded from that file.
The persisted log is rewritten at the end of every run that produced a frame.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), opts, args)
		},
	}
}

func runOnce(ctx context.Context, opts *options, args []string) error {
	log, err := opts.logger()
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	runner, sd, err := buildRunner(ctx, cfg, opts, args, log)
	if err != nil {
		return err
	}
	defer sd.Shutdown()

	prev, err := statelog.Load(cfg.Log.Path, time.Now())
	if err != nil {
		return err
	}

	rep, err := runner.Run(ctx, prev)
	if errors.Is(err, frame.ErrNoFrame) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := statelog.Save(cfg.Log.Path, rep.Entry); err != nil {
		return err
	}

	log.Debug("cli", "log saved", map[string]interface{}{
		"path":   cfg.Log.Path,
		"run_id": rep.RunID.String(),
		"status": rep.Entry.Status.String(),
	})
	return nil
}

// buildRunner turns the configuration into a wired pipeline. Everything
// that holds a native or network resource is registered with the returned
// shutdown manager.
func buildRunner(ctx context.Context, cfg *config.Config, opts *options, args []string, log *logger.ZerologAdapter) (*pipeline.Runner, *shutdown.Manager, error) {
	dict, err := marker.ParseDictionary(cfg.Marker.Dictionary)
	if err != nil {
		return nil, nil, err
	}
	extractor, err := patch.NewExtractor(cfg.Marker.Geometry(), cfg.PatchSpecs())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	sd := shutdown.NewManager(log)

	locator := marker.NewArucoLocator(dict)
	sd.Register("marker detector", func() { locator.Close() })

	r := &pipeline.Runner{
		Source:     newSource(cfg, opts, args, log),
		Locator:    locator,
		Extractor:  extractor,
		Classifier: newClassifier(cfg.Monitor.Strategy),
		Tracker: notify.Tracker{
			Policy:   cfg.Monitor.Policy,
			Interval: cfg.Debounce.Interval(),
			MaxCount: cfg.Debounce.MaxCount,
		},
		Sender:   newSender(cfg, opts, log),
		MarkerID: cfg.Monitor.MarkerID,
		Logger:   log,
	}

	if cfg.Debug.Enabled() {
		saver, err := pipeline.NewArtifactSaver(cfg.Debug.Dir, log)
		if err != nil {
			log.Warning("cli", "debug images disabled", map[string]interface{}{"error": err.Error()})
		} else {
			r.Artifacts = saver
		}
	}

	if cfg.History.DSN != "" {
		store, err := history.New(ctx, cfg.History.DSN)
		if err != nil {
			log.Error("cli", fmt.Errorf("history disabled: %w", err), nil)
		} else {
			r.History = store
			sd.Register("history store", func() { store.Close(context.Background()) })
		}
	}

	return r, sd, nil
}

func newSource(cfg *config.Config, opts *options, args []string, log logger.Logger) frame.Source {
	if len(args) == 1 {
		return frame.File{Path: args[0]}
	}

	capOpts := frame.CaptureOptions{
		Port:        cfg.Capture.CamPort,
		Width:       cfg.Capture.CamWidth,
		Height:      cfg.Capture.CamHeight,
		Skip:        cfg.Capture.FramesSkip,
		Frames:      cfg.Capture.FramesCapture,
		ReadTimeout: cfg.Capture.ReadTimeout(),
	}
	if opts.progress {
		capOpts.Progress = opts.stderr
	}
	return frame.NewCapturer(capOpts, frame.OpenDevice, log)
}

func newClassifier(strategy string) classify.Classifier {
	if strategy == config.StrategyAdaptive {
		return classify.NewAdaptive()
	}
	return classify.NewFixed()
}

func newSender(cfg *config.Config, opts *options, log logger.Logger) notify.Sender {
	switch {
	case opts.dryRun:
		log.Info("cli", "dry run, notifications are discarded", nil)
		return notify.Discard{}
	case !cfg.IFTTT.Enabled():
		log.Debug("cli", "no webhook configured", nil)
		return notify.Discard{}
	default:
		return notify.NewWebhook(cfg.IFTTT.URL, cfg.IFTTT.Timeout())
	}
}
