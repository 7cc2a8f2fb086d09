package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"applimon/internal/classify"
	"applimon/internal/config"
	"applimon/internal/marker"
	"applimon/internal/statelog"

	"gocv.io/x/gocv"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

// writeScene saves a frame with marker 0 at (160,160)-(240,240) and the
// status patch area filled at led intensity.
func writeScene(t *testing.T, dir string, led uint8) string {
	t.Helper()

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 0, 0, 0), 400, 400, gocv.MatTypeCV8UC1)
	defer gray.Close()

	m, err := marker.Generate(gocv.ArucoDict4x4_50, 0, 80)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	defer m.Close()
	quiet := marker.Quiet(m, 10)
	defer quiet.Close()

	roi := gray.Region(image.Rect(150, 150, 250, 250))
	quiet.CopyTo(&roi)
	roi.Close()
	gocv.Rectangle(&gray, image.Rect(32, 200, 148, 296), color.RGBA{led, led, led, 0}, -1)

	path := filepath.Join(dir, fmt.Sprintf("scene_%d.png", led))
	if !gocv.IMWrite(path, gray) {
		t.Fatalf("failed to write %s", path)
	}
	return path
}

func writeConfig(t *testing.T, dir, webhook string) string {
	t.Helper()

	body := fmt.Sprintf(`{
  "capture": {"cam_port": 0, "cam_width": 640, "cam_height": 480, "frames_skip": 0, "frames_capture": 1},
  "marker": {"size": 20, "nFrame": 2},
  "marker_pc": {"offset_x": -32, "offset_y": 10, "width": 30, "height": 24},
  "ifttt": {"url": %q, "timeout_ms": 2000},
  "log": {"path": %q},
  "debug": {"dir": %q}
}`, webhook, filepath.Join(dir, "log.json"), filepath.Join(dir, "debug"))

	path := filepath.Join(dir, "init.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type hookRecorder struct {
	mu     sync.Mutex
	bodies []map[string]string
}

func (h *hookRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		h.mu.Lock()
		h.bodies = append(h.bodies, body)
		h.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (h *hookRecorder) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bodies)
}

func TestRun_MissingConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "run", "--config", filepath.Join(dir, "init.json"), filepath.Join(dir, "frame.png"))
	if !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("a failed start left %d files behind", len(entries))
	}
}

func TestRun_FinishedCycle(t *testing.T) {
	dir := t.TempDir()
	hooks := &hookRecorder{}
	cfgPath := writeConfig(t, dir, hooks.server(t).URL)

	legacy := `{"datetime": "2024/01/01 00:00:00", "unixtime": 1704067200, "ratio": 0.55, "powerOn": 1}`
	if err := os.WriteFile(filepath.Join(dir, "log.json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "run", "--config", cfgPath, writeScene(t, dir, 20)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if hooks.count() != 1 {
		t.Fatalf("webhook called %d times, want 1", hooks.count())
	}
	if got := hooks.bodies[0]["value1"]; !strings.HasPrefix(got, "0.55 -> ") {
		t.Errorf("value1 = %q", got)
	}

	entry, err := statelog.Load(filepath.Join(dir, "log.json"), time.Now())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if entry.Status != classify.Inactive {
		t.Errorf("logged status = %v, want inactive", entry.Status)
	}

	for _, name := range []string{"log_image.jpg", "log_patch_pc.jpg", "log_patch_pc_b.jpg", "debug_marker.jpg"} {
		if _, err := os.Stat(filepath.Join(dir, "debug", name)); err != nil {
			t.Errorf("artifact %s missing", name)
		}
	}

	// A second dark frame is not a new transition.
	if _, err := execute(t, "--config", cfgPath, writeScene(t, dir, 20)); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if hooks.count() != 1 {
		t.Errorf("webhook called %d times after a repeat inactive run, want 1", hooks.count())
	}
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	hooks := &hookRecorder{}
	cfgPath := writeConfig(t, dir, hooks.server(t).URL)

	if err := statelog.Save(filepath.Join(dir, "log.json"), statelog.Entry{Status: classify.Active, Ratio: 0.7}); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "run", "--dry-run", "--config", cfgPath, writeScene(t, dir, 20)); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if hooks.count() != 0 {
		t.Errorf("dry run called the webhook %d times", hooks.count())
	}
}

func TestStatus(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	if err := statelog.Save(filepath.Join(dir, "log.json"), statelog.Entry{Status: classify.Active, Ratio: 0.25, Count: 2}); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "status", "--config", cfgPath)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	var got statelog.Entry
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, out)
	}
	if got.Status != classify.Active || got.Count != 2 {
		t.Errorf("status = %+v", got)
	}
}

func TestMarkerCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "m7.png")

	if _, err := execute(t, "marker", "7", "--size", "100", "--pad", "10", "--out", out); err != nil {
		t.Fatalf("marker failed: %v", err)
	}

	img := gocv.IMRead(out, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Cols() != 120 || img.Rows() != 120 {
		t.Fatalf("marker image is %dx%d, want 120x120", img.Cols(), img.Rows())
	}

	loc := marker.NewArucoLocator(gocv.ArucoDict4x4_50)
	defer loc.Close()
	obs, err := loc.Detect(img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(obs) != 1 || obs[0].ID != 7 {
		t.Errorf("detected %+v, want marker 7", obs)
	}
}

func TestMarkerCommand_BadID(t *testing.T) {
	if _, err := execute(t, "marker", "seven"); err == nil {
		t.Fatal("expected error for a non-numeric id")
	}
}
