// Package pipeline wires a sensor, its frame validator and the user's sink
// together and owns the validator's lifecycle.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
	"github.com/zsiec/framegate/internal/validator"
)

// notificationSetter is implemented by sensors whose notification sink can
// be replaced after construction
type notificationSetter interface {
	SetNotifications(sink sensor.NotificationSink)
}

// Options configures a Pipeline
type Options struct {
	// Revalidate installs a fresh validator after every sensor reset
	Revalidate      bool
	RevalidateDelay time.Duration

	ValidatorOptions []validator.Option
	Registry         *validator.Registry
	// Notifications receives everything the sensor raises
	Notifications sensor.NotificationSink
	Logger        logger.Logger
}

// Pipeline sits between a sensor and its validators. It is the sensor's
// FrameSink and NotificationSink.
type Pipeline struct {
	sensor       sensor.Sensor
	userSink     sensor.FrameSink
	profiles     []sensor.StreamProfile
	userRequests []sensor.StreamProfile
	opts         Options
	logger       logger.Logger

	current   atomic.Pointer[validator.FrameValidator]
	corrupted chan sensor.Notification

	backoff *Backoff

	mu            sync.Mutex
	started       bool
	stopped       bool // sensor stopped by a revalidation that failed to restart it
	revalidations atomic.Uint64
}

// New creates a pipeline. profiles is what the sensor is opened and reopened
// with; userRequests selects what reaches userSink.
func New(s sensor.Sensor, userSink sensor.FrameSink, profiles, userRequests []sensor.StreamProfile, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logger.NewNullLogger()
	}
	if opts.Registry == nil {
		opts.Registry = validator.NewRegistry()
	}

	p := &Pipeline{
		sensor:       s,
		userSink:     userSink,
		profiles:     append([]sensor.StreamProfile(nil), profiles...),
		userRequests: append([]sensor.StreamProfile(nil), userRequests...),
		opts:         opts,
		logger:       logger.WithSensor(opts.Logger, s.Name()).WithField("component", "pipeline"),
		corrupted:    make(chan sensor.Notification, 1),
		backoff:      NewBackoff(100*time.Millisecond, 2*time.Second, 2, 5),
	}

	if setter, ok := s.(notificationSetter); ok {
		setter.SetNotifications(p)
	} else if opts.Revalidate {
		p.logger.Warn("Sensor notifications cannot be observed, revalidation disabled")
		p.opts.Revalidate = false
	}

	return p
}

// OnFrame hands the frame to the current validator
func (p *Pipeline) OnFrame(frame *sensor.Frame) error {
	v := p.current.Load()
	if v == nil {
		frame.Release()
		return nil
	}
	return v.OnFrame(frame)
}

// Raise forwards n downstream and wakes Run on corruption. It never blocks.
func (p *Pipeline) Raise(n sensor.Notification) {
	if p.opts.Notifications != nil {
		p.opts.Notifications.Raise(n)
	}
	if n.Category != sensor.CategoryFrameCorrupted {
		return
	}
	select {
	case p.corrupted <- n:
	default:
	}
}

// Start opens the sensor and starts it behind a new validator
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pipeline already started")
	}
	if err := p.sensor.Open(p.profiles); err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}

	p.install()
	if err := p.sensor.Start(p); err != nil {
		p.uninstall()
		_ = p.sensor.Close()
		return fmt.Errorf("start sensor: %w", err)
	}

	p.started = true
	p.logger.WithField("profiles", len(p.profiles)).Info("Pipeline started")
	return nil
}

// Run watches for corruption until ctx is done. With Revalidate set, each
// corruption is followed by a fresh validator once the reset has had
// RevalidateDelay to complete.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-p.corrupted:
			log := p.logger.WithFields(logger.Fields{
				"notification_id": n.ID,
				"invalid_ratio":   n.Data["invalid_ratio"],
			})
			if !p.opts.Revalidate {
				log.Info("Sensor reset in progress, frames now bypass validation")
				continue
			}

			log.WithField("delay", p.opts.RevalidateDelay).Info("Scheduling revalidation")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.opts.RevalidateDelay):
			}

			if err := retry(ctx, p.backoff, p.logger, p.Revalidate); err != nil && ctx.Err() == nil {
				p.logger.WithError(err).Error("Revalidation failed")
			}
		}
	}
}

// Revalidate restarts the sensor behind a new validator
func (p *Pipeline) Revalidate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return fmt.Errorf("pipeline not started")
	}
	if !p.stopped {
		if err := p.sensor.Stop(); err != nil {
			return fmt.Errorf("stop sensor: %w", err)
		}
		p.stopped = true
	}

	p.uninstall()
	p.install()
	if err := p.sensor.Start(p); err != nil {
		return fmt.Errorf("start sensor: %w", err)
	}
	p.stopped = false

	p.revalidations.Add(1)
	p.logger.WithField("validator_id", p.current.Load().ID()).Info("Sensor revalidating")
	return nil
}

// Stop stops and closes the sensor and unregisters the validator
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	if !p.stopped {
		if err := p.sensor.Stop(); err != nil {
			p.logger.WithError(err).Warn("Sensor was not streaming at shutdown")
		}
	}
	p.stopped = false
	p.uninstall()

	if err := p.sensor.Close(); err != nil {
		return fmt.Errorf("close sensor: %w", err)
	}
	p.logger.Info("Pipeline stopped")
	return nil
}

// Validator returns the validator currently gating the sensor
func (p *Pipeline) Validator() *validator.FrameValidator {
	return p.current.Load()
}

// Revalidations returns how many times a fresh validator was installed
func (p *Pipeline) Revalidations() uint64 {
	return p.revalidations.Load()
}

// install runs with mu held
func (p *Pipeline) install() {
	opts := append([]validator.Option{validator.WithLogger(p.opts.Logger)}, p.opts.ValidatorOptions...)
	v := validator.New(p.sensor, p.userSink, p.userRequests, p.profiles, opts...)
	p.opts.Registry.Add(v)
	p.current.Store(v)
}

// uninstall runs with mu held
func (p *Pipeline) uninstall() {
	if v := p.current.Swap(nil); v != nil {
		p.opts.Registry.Remove(v.ID())
	}
}
