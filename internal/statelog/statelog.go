// Package statelog persists the outcome of the most recent run.
package statelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"applimon/internal/classify"
)

// DatetimeLayout is the human-readable timestamp written next to unixtime.
const DatetimeLayout = "2006/01/02 15:04:05"

// Entry is the whole persisted log.
type Entry struct {
	Datetime     string          `json:"datetime"`
	Unixtime     int64           `json:"unixtime"`
	Ratio        float64         `json:"ratio"`
	Status       classify.Status `json:"status"`
	Count        int             `json:"count"`
	NotifiedUnix int64           `json:"notified_unixtime"`
}

// Fresh is the entry used when no log exists yet.
func Fresh(now time.Time) Entry {
	e := Entry{Status: classify.Unknown}
	e.Stamp(now)
	return e
}

// Stamp sets both timestamp fields from now.
func (e *Entry) Stamp(now time.Time) {
	e.Datetime = now.Format(DatetimeLayout)
	e.Unixtime = now.Unix()
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var aux struct {
		plain
		Status  *classify.Status `json:"status"`
		PowerOn *int             `json:"powerOn"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*e = Entry(aux.plain)
	switch {
	case aux.Status != nil:
		e.Status = *aux.Status
	case aux.PowerOn != nil:
		e.Status = classify.FromLegacy(*aux.PowerOn)
	default:
		e.Status = classify.Unknown
	}
	return nil
}

// Load reads the log at path. A missing file yields Fresh(now).
func Load(path string, now time.Time) (Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Fresh(now), nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read log %s: %w", path, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to parse log %s: %w", path, err)
	}
	return e, nil
}

// Save rewrites the log at path. The entry goes to a temporary file in the
// same directory which is then renamed over path, so readers see either
// the previous log or the new one.
func Save(path string, e Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode log: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace log %s: %w", path, err)
	}
	return nil
}
