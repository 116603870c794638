package validator

import (
	"errors"
	"sync/atomic"
	"time"

	apperrors "github.com/zsiec/framegate/internal/errors"
	"github.com/zsiec/framegate/internal/metrics"
	"github.com/zsiec/framegate/internal/sensor"
)

// DefaultInvalidPixelsThreshold is the share of zero-valued pixels at which a
// validation frame is considered corrupted
const DefaultInvalidPixelsThreshold = 0.10

var (
	ErrNonVideoFrame = errors.New("non video stream arrived to frame validator")
	ErrEmptyFrame    = errors.New("video frame has zero area")
	ErrShortBuffer   = errors.New("video frame buffer smaller than width*height")
)

// InvalidPixelRatio scans every pixel of a video frame (one byte per pixel,
// row-major) and returns the share of pixels equal to zero. Non-video frames
// and malformed buffers are precondition violations.
func InvalidPixelRatio(frame *sensor.Frame) (float64, error) {
	vf, ok := frame.AsVideo()
	if !ok {
		return 0, precondition(ErrNonVideoFrame, frame)
	}

	area := vf.Width * vf.Height
	if area <= 0 {
		return 0, precondition(ErrEmptyFrame, frame)
	}
	if len(vf.Data) < area {
		return 0, precondition(ErrShortBuffer, frame)
	}

	invalid := 0
	for _, px := range vf.Data[:area] {
		if px == 0 {
			invalid++
		}
	}

	return float64(invalid) / float64(area), nil
}

// Trusted reports whether ratio is strictly below threshold
func Trusted(ratio, threshold float64) bool {
	return ratio < threshold
}

func precondition(cause error, frame *sensor.Frame) error {
	return apperrors.WrapPrecondition(cause, "frame cannot be scanned").
		WithDetails(map[string]interface{}{
			"profile":      frame.Profile().String(),
			"frame_number": frame.Number(),
			"buffer_size":  len(frame.Data()),
		})
}

// Detector applies InvalidPixelRatio against a fixed threshold and counts
// how many scans it has performed
type Detector struct {
	threshold float64
	scans     atomic.Uint64
}

// NewDetector creates a detector; a non-positive threshold selects the default
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultInvalidPixelsThreshold
	}
	return &Detector{threshold: threshold}
}

// Evaluate scans the frame and returns its invalid pixel ratio and whether
// the frame can be trusted
func (d *Detector) Evaluate(frame *sensor.Frame) (float64, bool, error) {
	start := time.Now()
	ratio, err := InvalidPixelRatio(frame)
	if err != nil {
		return 0, false, err
	}
	d.scans.Add(1)
	metrics.ObserveScanDuration(time.Since(start).Seconds())

	return ratio, Trusted(ratio, d.threshold), nil
}

// Scans returns how many frames have been scanned
func (d *Detector) Scans() uint64 {
	return d.scans.Load()
}

// Threshold returns the corruption threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}
