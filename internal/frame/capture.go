// Package frame produces the single image a monitor run works on, either
// averaged from a capture device or decoded from a file.
package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"applimon/internal/logger"

	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
)

var (
	// ErrNoFrame means not a single usable frame could be read.
	ErrNoFrame = errors.New("no frame available")

	errReadTimeout = errors.New("frame read timed out")
)

// Source yields one BGR frame per call. The caller closes the Mat.
type Source interface {
	Acquire(ctx context.Context) (gocv.Mat, error)
}

// Device is the subset of *gocv.VideoCapture the capturer drives.
type Device interface {
	Set(prop gocv.VideoCaptureProperties, param float64)
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens the capture device with the given index.
type Opener func(port int) (Device, error)

// OpenDevice opens a local camera through OpenCV.
func OpenDevice(port int) (Device, error) {
	vc, err := gocv.OpenVideoCapture(port)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", port, err)
	}
	return vc, nil
}

type CaptureOptions struct {
	Port        int
	Width       int
	Height      int
	Skip        int
	Frames      int
	ReadTimeout time.Duration
	// Progress, when non-nil, receives a progress bar while frames are read.
	Progress io.Writer
}

// Capturer averages several device frames into one to suppress sensor noise
// and LED flicker.
type Capturer struct {
	opts   CaptureOptions
	open   Opener
	logger logger.Logger
}

func NewCapturer(opts CaptureOptions, open Opener, log logger.Logger) *Capturer {
	if open == nil {
		open = OpenDevice
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	return &Capturer{opts: opts, open: open, logger: log}
}

type readResult struct {
	mat gocv.Mat
	ok  bool
}

// Acquire discards the warm-up frames, then averages up to Frames successful
// reads. Failed or timed-out reads are left out of the average; when none
// succeed ErrNoFrame is returned.
func (c *Capturer) Acquire(ctx context.Context) (gocv.Mat, error) {
	dev, err := c.open(c.opts.Port)
	if err != nil {
		return gocv.NewMat(), err
	}

	dev.Set(gocv.VideoCaptureFrameWidth, float64(c.opts.Width))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(c.opts.Height))

	var pending chan readResult
	defer func() {
		if pending == nil {
			dev.Close()
			return
		}
		// A read is still blocked inside the driver; release once it returns.
		go func(ch chan readResult) {
			r := <-ch
			r.mat.Close()
			dev.Close()
		}(pending)
	}()

	bar := c.progressBar()

	read := func() (gocv.Mat, bool, error) {
		ch := make(chan readResult, 1)
		go func() {
			m := gocv.NewMat()
			ok := dev.Read(&m)
			ch <- readResult{mat: m, ok: ok}
		}()

		timer := time.NewTimer(c.opts.ReadTimeout)
		defer timer.Stop()

		select {
		case r := <-ch:
			if !r.ok || r.mat.Empty() {
				r.mat.Close()
				return gocv.NewMat(), false, nil
			}
			return r.mat, true, nil
		case <-timer.C:
			pending = ch
			return gocv.NewMat(), false, errReadTimeout
		case <-ctx.Done():
			pending = ch
			return gocv.NewMat(), false, ctx.Err()
		}
	}

	for i := 0; i < c.opts.Skip; i++ {
		m, _, err := read()
		m.Close()
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			return gocv.NewMat(), c.stalled(err)
		}
	}

	acc := gocv.NewMat()
	defer acc.Close()
	count := 0

	for i := 0; i < c.opts.Frames; i++ {
		m, ok, err := read()
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			c.logger.Warning("Capture", "stopping capture early", map[string]interface{}{
				"reason": err.Error(),
				"frames": count,
			})
			break
		}
		if !ok {
			c.logger.Debug("Capture", "frame read failed, skipping", map[string]interface{}{"index": i})
			continue
		}

		if acc.Empty() {
			acc.Close()
			acc = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), m.Rows(), m.Cols(), gocv.MatTypeCV32FC3)
		}
		if c.accumulate(&acc, m) {
			count++
		}
		m.Close()
	}

	if bar != nil {
		bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}
	if count == 0 {
		return gocv.NewMat(), fmt.Errorf("capture device %d: %w", c.opts.Port, ErrNoFrame)
	}

	acc.DivideFloat(float32(count))
	avg := gocv.NewMat()
	acc.ConvertTo(&avg, gocv.MatTypeCV8UC3)

	c.logger.Debug("Capture", "frames averaged", map[string]interface{}{
		"frames": count,
		"width":  avg.Cols(),
		"height": avg.Rows(),
	})

	return avg, nil
}

// accumulate adds m into acc, reporting whether m was usable.
func (c *Capturer) accumulate(acc *gocv.Mat, m gocv.Mat) bool {
	if m.Rows() != acc.Rows() || m.Cols() != acc.Cols() {
		c.logger.Warning("Capture", "frame size changed mid-capture, skipping", map[string]interface{}{
			"want": fmt.Sprintf("%dx%d", acc.Cols(), acc.Rows()),
			"got":  fmt.Sprintf("%dx%d", m.Cols(), m.Rows()),
		})
		return false
	}

	bgr := m
	if m.Channels() == 1 {
		bgr = gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(m, &bgr, gocv.ColorGrayToBGR)
	}

	f32 := gocv.NewMat()
	defer f32.Close()
	bgr.ConvertTo(&f32, gocv.MatTypeCV32FC3)
	gocv.Add(*acc, f32, acc)
	return true
}

func (c *Capturer) stalled(err error) error {
	return fmt.Errorf("capture device %d stalled during warm-up (%v): %w", c.opts.Port, err, ErrNoFrame)
}

func (c *Capturer) progressBar() *progressbar.ProgressBar {
	if c.opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(c.opts.Skip+c.opts.Frames,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionSetWriter(c.opts.Progress),
		progressbar.OptionShowCount(),
	)
}
