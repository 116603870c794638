package validator

import (
	"fmt"
	"time"

	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/metrics"
	"github.com/zsiec/framegate/internal/sensor"
)

const (
	DefaultStopDelay   = 500 * time.Millisecond
	DefaultReopenDelay = 500 * time.Millisecond
)

// Executor runs recovery work off the frame-delivery path. Submit must not
// block on the task.
type Executor interface {
	Submit(task func())
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(task func())

// Submit implements Executor
func (fn ExecutorFunc) Submit(task func()) {
	fn(task)
}

// GoExecutor runs every task on its own detached goroutine
type GoExecutor struct{}

// Submit implements Executor
func (GoExecutor) Submit(task func()) {
	go func() {
		metrics.IncrementGoroutine("recovery")
		defer metrics.DecrementGoroutine("recovery")
		task()
	}()
}

// RecoveryTask resets a sensor. It waits stopDelay, stops and closes the
// sensor, waits reopenDelay, then opens it with the recovery profiles and
// starts it against the user's sink. It owns copies of
// everything it needs so it can outlive the validator that created it.
type RecoveryTask struct {
	sensor      sensor.Sensor
	profiles    []sensor.StreamProfile
	sink        sensor.FrameSink
	stopDelay   time.Duration
	reopenDelay time.Duration
	logger      logger.Logger
}

// NewRecoveryTask creates a recovery task. The profile list is copied.
func NewRecoveryTask(s sensor.Sensor, profiles []sensor.StreamProfile, sink sensor.FrameSink,
	stopDelay, reopenDelay time.Duration, log logger.Logger) *RecoveryTask {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RecoveryTask{
		sensor:      s,
		profiles:    append([]sensor.StreamProfile(nil), profiles...),
		sink:        sink,
		stopDelay:   stopDelay,
		reopenDelay: reopenDelay,
		logger:      log.WithField("component", "recovery"),
	}
}

// Run performs the reset sequence. The first failing step aborts the rest.
// Failures and panics are logged and returned, never propagated further.
func (t *RecoveryTask) Run() (err error) {
	start := time.Now()
	name := t.sensor.Name()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovery panicked: %v", r)
		}

		result := "success"
		if err != nil {
			result = "failure"
			t.logger.WithError(err).Error("Sensor recovery failed")
		} else {
			t.logger.WithField("duration", time.Since(start)).Info("Sensor recovered")
		}
		metrics.RecordRecovery(name, result, time.Since(start).Seconds())
	}()

	t.logger.WithField("profiles", len(t.profiles)).Info("Restarting sensor")

	time.Sleep(t.stopDelay)

	if err := t.sensor.Stop(); err != nil {
		return fmt.Errorf("stop sensor: %w", err)
	}
	if err := t.sensor.Close(); err != nil {
		return fmt.Errorf("close sensor: %w", err)
	}

	time.Sleep(t.reopenDelay)

	if err := t.sensor.Open(t.profiles); err != nil {
		return fmt.Errorf("open sensor: %w", err)
	}
	if err := t.sensor.Start(t.sink); err != nil {
		return fmt.Errorf("start sensor: %w", err)
	}
	return nil
}
