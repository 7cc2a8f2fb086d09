package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"applimon/internal/logger"

	"gocv.io/x/gocv"
)

// Artifact file names. Patch crops are log_patch_<label>.jpg and their
// annotated classification log_patch_<label>_b.jpg.
const (
	ArtifactFrame   = "log_image.jpg"
	ArtifactMarkers = "debug_marker.jpg"
)

// ArtifactSaver writes the debug images of a run. Failures are logged and
// never abort the run.
type ArtifactSaver struct {
	dir     string
	logger  logger.Logger
	written []string
}

func NewArtifactSaver(dir string, log logger.Logger) (*ArtifactSaver, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug dir %s: %w", dir, err)
	}
	return &ArtifactSaver{dir: dir, logger: log}, nil
}

// Written lists the artifact paths saved so far.
func (s *ArtifactSaver) Written() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.written...)
}

func (s *ArtifactSaver) Save(name string, img gocv.Mat) {
	if s == nil || img.Empty() {
		return
	}

	path := filepath.Join(s.dir, name)
	if !gocv.IMWrite(path, img) {
		s.logger.Warning("ArtifactSaver", "failed to write artifact", map[string]interface{}{
			"path": path,
		})
		return
	}
	s.written = append(s.written, path)

	s.logger.Debug("ArtifactSaver", "artifact written", map[string]interface{}{
		"path":   path,
		"width":  img.Cols(),
		"height": img.Rows(),
	})
}

func patchArtifact(label string) string {
	return "log_patch_" + label + ".jpg"
}

func overlayArtifact(label string) string {
	return "log_patch_" + label + "_b.jpg"
}
