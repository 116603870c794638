package validator

import (
	"errors"
	"sync"
	"time"

	"github.com/zsiec/framegate/internal/sensor"
)

var errSensor = errors.New("sensor failure")

// fakeSensor records the calls a recovery makes against it
type fakeSensor struct {
	mu            sync.Mutex
	calls         []string
	callTimes     []time.Time
	openProfiles  []sensor.StreamProfile
	startSink     sensor.FrameSink
	notifications []sensor.Notification
	failOn        string
	panicOn       string
}

func (s *fakeSensor) Name() string { return "fake" }

func (s *fakeSensor) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	s.callTimes = append(s.callTimes, time.Now())
	if s.panicOn == call {
		panic("sensor exploded")
	}
	if s.failOn == call {
		return errSensor
	}
	return nil
}

func (s *fakeSensor) Open(profiles []sensor.StreamProfile) error {
	if err := s.record("open"); err != nil {
		return err
	}
	s.mu.Lock()
	s.openProfiles = profiles
	s.mu.Unlock()
	return nil
}

func (s *fakeSensor) Start(sink sensor.FrameSink) error {
	if err := s.record("start"); err != nil {
		return err
	}
	s.mu.Lock()
	s.startSink = sink
	s.mu.Unlock()
	return nil
}

func (s *fakeSensor) Stop() error  { return s.record("stop") }
func (s *fakeSensor) Close() error { return s.record("close") }

func (s *fakeSensor) Notifications() sensor.NotificationSink {
	return sensor.NotificationSinkFunc(func(n sensor.Notification) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.notifications = append(s.notifications, n)
	})
}

func (s *fakeSensor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallTimes returns when each recorded call happened
func (s *fakeSensor) CallTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.callTimes...)
}

func (s *fakeSensor) Notified() []sensor.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sensor.Notification(nil), s.notifications...)
}

// queueExecutor holds submitted tasks until the test runs them
type queueExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *queueExecutor) Submit(task func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
}

func (e *queueExecutor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

func (e *queueExecutor) RunAll() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

// recordingSink keeps delivered frames and releases them
type recordingSink struct {
	mu     sync.Mutex
	frames []*sensor.Frame
	err    error
}

func (s *recordingSink) OnFrame(f *sensor.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	f.Release()
	return s.err
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

var (
	irProfile    = sensor.NewVideoProfile(sensor.StreamInfrared, 100, 100, 30)
	depthProfile = sensor.NewVideoProfile(sensor.StreamDepth, 100, 100, 30)
	gyroProfile  = sensor.NewMotionProfile(sensor.StreamGyro, 200)
)

// videoFrame builds a frame whose first `zeros` pixels are invalid
func videoFrame(profile sensor.StreamProfile, zeros int) *sensor.Frame {
	vp, _ := profile.AsVideo()
	data := make([]byte, vp.Width*vp.Height)
	for i := range data {
		if i >= zeros {
			data[i] = 0x7f
		}
	}
	return sensor.NewFrame(profile, data)
}
