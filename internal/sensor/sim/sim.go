// Package sim provides a software sensor that produces synthetic frames. It
// drives the demo binary and integration tests in place of real hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/metrics"
	"github.com/zsiec/framegate/internal/sensor"
	"golang.org/x/time/rate"
)

// ErrInvalidState is returned for a lifecycle call made in the wrong state
var ErrInvalidState = errors.New("invalid sensor state")

const motionSampleSize = 12 // three float32 axes

// State is the sensor lifecycle state
type State int32

const (
	StateClosed State = iota
	StateOpened
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateStarted:
		return "started"
	default:
		return "unknown"
	}
}

// Sensor is a simulated multi-stream sensor
type Sensor struct {
	name    string
	pool    *sensor.FramePool
	logger  logger.Logger
	sampled *logger.SampledLogger

	// notifyMu is separate from mu: producers reach Notifications through
	// the sink while Stop holds mu
	notifyMu      sync.RWMutex
	notifications sensor.NotificationSink

	mu            sync.Mutex
	state         State
	profiles      []sensor.StreamProfile
	corruption    map[sensor.StreamType]float64
	corruptStarts int // remaining starts that inject corruption, -1 for all
	starts        int
	cancel        context.CancelFunc
	wg            sync.WaitGroup

	produced   atomic.Uint64
	sinkErrors atomic.Uint64
}

// Stats is a snapshot of sensor activity
type Stats struct {
	Name       string           `json:"name"`
	State      string           `json:"state"`
	Starts     int              `json:"starts"`
	Produced   uint64           `json:"frames_produced"`
	SinkErrors uint64           `json:"sink_errors"`
	Pool       sensor.PoolStats `json:"pool"`
}

// Option configures a simulated sensor
type Option func(*Sensor)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(s *Sensor) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithPool sets the frame pool
func WithPool(pool *sensor.FramePool) Option {
	return func(s *Sensor) {
		if pool != nil {
			s.pool = pool
		}
	}
}

// WithNotifications sets where the sensor's notifications go
func WithNotifications(sink sensor.NotificationSink) Option {
	return func(s *Sensor) {
		s.notifications = sink
	}
}

// New creates a closed simulated sensor
func New(name string, opts ...Option) *Sensor {
	s := &Sensor{
		name:          name,
		logger:        logger.NewNullLogger(),
		corruption:    make(map[sensor.StreamType]float64),
		corruptStarts: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.WithSensor(s.logger, name).WithField("component", "sim")
	s.sampled = logger.NewFrameLogger(s.logger)
	if s.pool == nil {
		s.pool = sensor.NewFramePool(8, s.logger)
	}
	return s
}

func (s *Sensor) Name() string { return s.name }

// Notifications returns the configured sink, or nil
func (s *Sensor) Notifications() sensor.NotificationSink {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	return s.notifications
}

// SetNotifications replaces the notification sink
func (s *Sensor) SetNotifications(sink sensor.NotificationSink) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifications = sink
}

// SetCorruption makes frames of stream carry the given share of zero bytes
func (s *Sensor) SetCorruption(stream sensor.StreamType, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruption[stream] = fraction
}

// CorruptNextStarts limits corruption to the next n starts. A negative n
// corrupts every start.
func (s *Sensor) CorruptNextStarts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptStarts = n
}

// State returns the lifecycle state
func (s *Sensor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Starts returns how many times the sensor has been started
func (s *Sensor) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Profiles returns the profiles the sensor is opened with
func (s *Sensor) Profiles() []sensor.StreamProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sensor.StreamProfile(nil), s.profiles...)
}

// Open selects the streams to produce
func (s *Sensor) Open(profiles []sensor.StreamProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateClosed {
		return fmt.Errorf("open in state %s: %w", s.state, ErrInvalidState)
	}
	if len(profiles) == 0 {
		return errors.New("open requires at least one profile")
	}

	s.profiles = append([]sensor.StreamProfile(nil), profiles...)
	s.state = StateOpened
	s.logger.WithField("profiles", len(profiles)).Info("Sensor opened")
	return nil
}

// Start launches one producer per opened profile, delivering into sink
func (s *Sensor) Start(sink sensor.FrameSink) error {
	if sink == nil {
		return errors.New("start requires a frame sink")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpened {
		return fmt.Errorf("start in state %s: %w", s.state, ErrInvalidState)
	}

	corrupt := s.corruptStarts != 0
	if s.corruptStarts > 0 {
		s.corruptStarts--
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.starts++

	for _, p := range s.profiles {
		fraction := 0.0
		if corrupt {
			fraction = s.corruption[p.StreamType()]
		}
		s.wg.Add(1)
		go s.produce(ctx, p, sink, fraction)
	}

	s.state = StateStarted
	s.logger.WithFields(logger.Fields{
		"start":     s.starts,
		"corrupted": corrupt,
	}).Info("Sensor started")
	return nil
}

// Stop cancels the producers and waits for them. It must not be called from
// inside a FrameSink invoked by this sensor.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarted {
		return fmt.Errorf("stop in state %s: %w", s.state, ErrInvalidState)
	}

	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.state = StateOpened
	s.logger.Info("Sensor stopped")
	return nil
}

// Close releases the opened profiles
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpened {
		return fmt.Errorf("close in state %s: %w", s.state, ErrInvalidState)
	}

	s.profiles = nil
	s.state = StateClosed
	s.logger.Info("Sensor closed")
	return nil
}

// Stats returns a snapshot of sensor activity
func (s *Sensor) Stats() Stats {
	s.mu.Lock()
	state, starts := s.state, s.starts
	s.mu.Unlock()

	return Stats{
		Name:       s.name,
		State:      state.String(),
		Starts:     starts,
		Produced:   s.produced.Load(),
		SinkErrors: s.sinkErrors.Load(),
		Pool:       s.pool.Stats(),
	}
}

func (s *Sensor) produce(ctx context.Context, profile sensor.StreamProfile, sink sensor.FrameSink, corruption float64) {
	defer s.wg.Done()
	metrics.IncrementGoroutine("sim_producer")
	defer metrics.DecrementGoroutine("sim_producer")

	fps := profile.Framerate()
	if fps <= 0 {
		fps = 30
	}
	limiter := rate.NewLimiter(rate.Limit(fps), 1)
	stream := profile.StreamType().String()

	for number := uint64(0); ; number++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		frame := s.buildFrame(profile, number, corruption)
		s.produced.Add(1)
		metrics.IncrementFramesProduced(s.name, stream)

		if err := sink.OnFrame(frame); err != nil {
			s.sinkErrors.Add(1)
			metrics.IncrementSinkErrors(s.name, stream)
			s.sampled.Sample(logrus.WarnLevel, logger.CategoryFrameDrop, "Sink rejected frame", logger.Fields{
				"stream": stream,
				"frame":  number,
				"error":  err.Error(),
			})
		}
	}
}

func (s *Sensor) buildFrame(profile sensor.StreamProfile, number uint64, corruption float64) *sensor.Frame {
	size := motionSampleSize
	if v, ok := profile.AsVideo(); ok {
		size = v.Width * v.Height
	}

	frame := s.pool.Get(profile, size, sensor.WithFrameNumber(number))
	FillFrame(frame.Data(), number, corruption)
	return frame
}

// FillFrame writes a gradient with no zero bytes into data, then zeroes the
// first corruption share of it
func FillFrame(data []byte, seed uint64, corruption float64) {
	for i := range data {
		data[i] = byte(1 + (uint64(i)+seed)%255)
	}
	zeros := int(corruption * float64(len(data)))
	for i := 0; i < zeros && i < len(data); i++ {
		data[i] = 0
	}
}
