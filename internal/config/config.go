// Package config loads the monitor's JSON configuration (init.json).
//
// The file layout keeps the key names of the original monitor so existing
// configuration files load unchanged; newer sections are optional and get
// defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"time"

	"applimon/internal/marker"
	"applimon/internal/patch"
)

var (
	// ErrNotFound means the configuration file does not exist.
	ErrNotFound = errors.New("configuration file not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

const (
	DefaultPath = "init.json"

	StrategyFixed    = "fixed"
	StrategyAdaptive = "adaptive"

	PolicyTransition = "transition"
	PolicyDebounce   = "debounce"
)

type Config struct {
	Capture  CaptureConfig       `json:"capture"`
	Marker   MarkerConfig        `json:"marker"`
	MarkerPC *PatchConfig        `json:"marker_pc,omitempty"`
	Patches  map[int]PatchConfig `json:"patches,omitempty"`
	Monitor  MonitorConfig       `json:"monitor"`
	IFTTT    NotifyConfig        `json:"ifttt"`
	Debounce DebounceConfig      `json:"debounce"`
	Log      LogConfig           `json:"log"`
	Debug    DebugConfig         `json:"debug"`
	History  HistoryConfig       `json:"history"`
}

type CaptureConfig struct {
	CamPort       int `json:"cam_port"`
	CamWidth      int `json:"cam_width"`
	CamHeight     int `json:"cam_height"`
	FramesSkip    int `json:"frames_skip"`
	FramesCapture int `json:"frames_capture"`
	ReadTimeoutMS int `json:"read_timeout_ms"`
}

// ReadTimeout bounds a single device read.
func (c CaptureConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

type MarkerConfig struct {
	Size       int    `json:"size"`
	NFrame     int    `json:"nFrame"`
	Dictionary string `json:"dictionary"`
}

// Geometry returns the rectification geometry for this marker setup.
func (m MarkerConfig) Geometry() patch.Geometry {
	return patch.Geometry{MarkerSize: m.Size, FrameMultiplier: m.NFrame}
}

type PatchConfig struct {
	Name    string `json:"name,omitempty"`
	OffsetX int    `json:"offset_x"`
	OffsetY int    `json:"offset_y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Anchor  string `json:"anchor,omitempty"`
}

// Spec converts the JSON form into the extractor's placement type.
func (p PatchConfig) Spec() patch.Spec {
	anchor := patch.Anchor(p.Anchor)
	if anchor == "" {
		anchor = patch.AnchorOrigin
	}
	return patch.Spec{
		Name:    p.Name,
		OffsetX: p.OffsetX,
		OffsetY: p.OffsetY,
		Width:   p.Width,
		Height:  p.Height,
		Anchor:  anchor,
	}
}

type MonitorConfig struct {
	MarkerID int    `json:"marker_id"`
	Strategy string `json:"strategy"`
	Policy   string `json:"policy"`
}

type NotifyConfig struct {
	URL       string `json:"url"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Timeout bounds the outbound webhook call.
func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutMS) * time.Millisecond
}

// Enabled reports whether a webhook endpoint is configured.
func (n NotifyConfig) Enabled() bool { return n.URL != "" }

type DebounceConfig struct {
	IntervalSeconds int `json:"interval_seconds"`
	MaxCount        int `json:"max_count"`
}

// Interval is the debounce base interval.
func (d DebounceConfig) Interval() time.Duration {
	return time.Duration(d.IntervalSeconds) * time.Second
}

type LogConfig struct {
	Path string `json:"path"`
}

type DebugConfig struct {
	Dir        string `json:"dir"`
	SaveImages *bool  `json:"save_images,omitempty"`
}

// Enabled reports whether debug images should be written.
func (d DebugConfig) Enabled() bool {
	return d.SaveImages == nil || *d.SaveImages
}

type HistoryConfig struct {
	DSN string `json:"dsn"`
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			CamPort:       0,
			CamWidth:      1280,
			CamHeight:     720,
			FramesSkip:    10,
			FramesCapture: 10,
			ReadTimeoutMS: 2000,
		},
		Marker: MarkerConfig{
			Size:       20,
			NFrame:     2,
			Dictionary: "4x4_50",
		},
		Patches: map[int]PatchConfig{},
		Monitor: MonitorConfig{
			MarkerID: 0,
			Strategy: StrategyFixed,
			Policy:   PolicyTransition,
		},
		IFTTT: NotifyConfig{TimeoutMS: 10000},
		Debounce: DebounceConfig{
			IntervalSeconds: 600,
			MaxCount:        3,
		},
		Log:   LogConfig{Path: "log.json"},
		Debug: DebugConfig{Dir: "."},
	}
}

// Load reads and validates the configuration at path. A missing file is
// reported as ErrNotFound so callers can abort before doing any work.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize folds the legacy marker_pc block into the patch table and fills
// zero values that JSON left empty.
func (c *Config) normalize() {
	if c.Patches == nil {
		c.Patches = map[int]PatchConfig{}
	}
	if c.MarkerPC != nil {
		if _, ok := c.Patches[0]; !ok {
			pc := *c.MarkerPC
			if pc.Name == "" {
				pc.Name = "pc"
			}
			c.Patches[0] = pc
		}
	}
	if c.Monitor.Strategy == "" {
		c.Monitor.Strategy = StrategyFixed
	}
	if c.Monitor.Policy == "" {
		c.Monitor.Policy = PolicyTransition
	}
	if c.Marker.Dictionary == "" {
		c.Marker.Dictionary = "4x4_50"
	}
	if c.Log.Path == "" {
		c.Log.Path = "log.json"
	}
	if c.Debug.Dir == "" {
		c.Debug.Dir = "."
	}
	if c.Capture.ReadTimeoutMS <= 0 {
		c.Capture.ReadTimeoutMS = 2000
	}
	if c.IFTTT.TimeoutMS <= 0 {
		c.IFTTT.TimeoutMS = 10000
	}
}

// Validate reports every problem found, joined, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []string

	if c.Capture.FramesCapture <= 0 {
		problems = append(problems, "capture.frames_capture must be positive")
	}
	if c.Capture.FramesSkip < 0 {
		problems = append(problems, "capture.frames_skip must not be negative")
	}
	if c.Capture.CamWidth <= 0 || c.Capture.CamHeight <= 0 {
		problems = append(problems, "capture.cam_width and capture.cam_height must be positive")
	}

	geom := c.Marker.Geometry()
	if err := geom.Validate(); err != nil {
		problems = append(problems, "marker: "+err.Error())
	} else {
		for _, id := range c.PatchIDs() {
			if err := c.Patches[id].Spec().CheckBounds(geom); err != nil {
				problems = append(problems, fmt.Sprintf("patches[%d]: %v", id, err))
			}
		}
	}

	if _, err := marker.ParseDictionary(c.Marker.Dictionary); err != nil {
		problems = append(problems, "marker: "+err.Error())
	}

	if _, ok := c.Patches[c.Monitor.MarkerID]; !ok {
		problems = append(problems, fmt.Sprintf("monitor.marker_id %d has no patch configured", c.Monitor.MarkerID))
	}

	switch c.Monitor.Strategy {
	case StrategyFixed, StrategyAdaptive:
	default:
		problems = append(problems, fmt.Sprintf("monitor.strategy %q is not fixed or adaptive", c.Monitor.Strategy))
	}

	switch c.Monitor.Policy {
	case PolicyTransition:
	case PolicyDebounce:
		if c.Debounce.IntervalSeconds <= 0 {
			problems = append(problems, "debounce.interval_seconds must be positive")
		}
		if c.Debounce.MaxCount <= 0 {
			problems = append(problems, "debounce.max_count must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("monitor.policy %q is not transition or debounce", c.Monitor.Policy))
	}

	if c.IFTTT.Enabled() {
		u, err := url.Parse(c.IFTTT.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("ifttt.url %q is not an http(s) URL", c.IFTTT.URL))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalid, problems)
}

// PatchIDs returns the configured marker identifiers in ascending order.
func (c *Config) PatchIDs() []int {
	ids := make([]int, 0, len(c.Patches))
	for id := range c.Patches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PatchSpecs returns the extractor table keyed by marker identifier.
func (c *Config) PatchSpecs() map[int]patch.Spec {
	specs := make(map[int]patch.Spec, len(c.Patches))
	for id, p := range c.Patches {
		specs[id] = p.Spec()
	}
	return specs
}
