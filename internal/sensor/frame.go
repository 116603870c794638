package sensor

import (
	"sync/atomic"
	"time"
)

// VideoFrame is the pixel view of a video-kind Frame
type VideoFrame struct {
	Width  int
	Height int
	Data   []byte // One byte per pixel, row-major
}

// Frame is a reference-counted sensor buffer. A frame is created with one
// reference owned by whoever holds it; handing the frame to a FrameSink
// transfers that reference.
type Frame struct {
	profile   StreamProfile
	data      []byte
	number    uint64
	timestamp time.Time

	refs      atomic.Int32
	onRelease func(*Frame)
}

// FrameOption customizes a new Frame
type FrameOption func(*Frame)

// WithFrameNumber sets the sequence number of the frame within its stream
func WithFrameNumber(n uint64) FrameOption {
	return func(f *Frame) {
		f.number = n
	}
}

// WithTimestamp sets the capture timestamp
func WithTimestamp(ts time.Time) FrameOption {
	return func(f *Frame) {
		f.timestamp = ts
	}
}

// WithReleaseHook registers a callback invoked once the last reference is released
func WithReleaseHook(hook func(*Frame)) FrameOption {
	return func(f *Frame) {
		f.onRelease = hook
	}
}

// NewFrame creates a frame holding a single reference
func NewFrame(profile StreamProfile, data []byte, opts ...FrameOption) *Frame {
	f := &Frame{
		profile:   profile,
		data:      data,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.refs.Store(1)
	return f
}

// Profile returns the stream profile that produced this frame
func (f *Frame) Profile() StreamProfile {
	return f.profile
}

// Number returns the frame sequence number
func (f *Frame) Number() uint64 {
	return f.number
}

// Timestamp returns the capture time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Data returns the raw buffer
func (f *Frame) Data() []byte {
	return f.data
}

// AsVideo returns the pixel view of the frame, or false for non-video kinds
func (f *Frame) AsVideo() (VideoFrame, bool) {
	v, ok := f.profile.AsVideo()
	if !ok {
		return VideoFrame{}, false
	}
	return VideoFrame{Width: v.Width, Height: v.Height, Data: f.data}, true
}

// Acquire adds a reference
func (f *Frame) Acquire() {
	f.refs.Add(1)
}

// Release drops a reference. The caller must not touch the frame afterwards.
func (f *Frame) Release() {
	n := f.refs.Add(-1)
	switch {
	case n == 0:
		if f.onRelease != nil {
			f.onRelease(f)
		}
	case n < 0:
		panic("sensor: frame released more times than acquired")
	}
}

// RefCount returns the current number of references
func (f *Frame) RefCount() int32 {
	return f.refs.Load()
}

// Released reports whether the last reference has been dropped
func (f *Frame) Released() bool {
	return f.refs.Load() <= 0
}
