// Package sensor defines the frame and stream-profile object model shared by
// the validator, the notification processors and sensor implementations.
//
// Real sensor I/O is not part of this package: a Sensor is anything that can
// be stopped, closed, reopened with a profile list and started against a
// FrameSink.
package sensor

// FrameSink receives frames. Passing a frame to OnFrame transfers ownership of
// one reference; the sink is responsible for releasing it.
type FrameSink interface {
	OnFrame(frame *Frame) error
}

// FrameSinkFunc adapts a function to the FrameSink interface
type FrameSinkFunc func(frame *Frame) error

// OnFrame implements FrameSink
func (fn FrameSinkFunc) OnFrame(frame *Frame) error {
	return fn(frame)
}

// Sensor is the handle the validator and its recovery task drive
type Sensor interface {
	// Name identifies the sensor in logs and metrics
	Name() string
	Open(profiles []StreamProfile) error
	Start(sink FrameSink) error
	Stop() error
	Close() error
	// Notifications returns the sink observers are notified through
	Notifications() NotificationSink
}
