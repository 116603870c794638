package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zsiec/framegate/internal/sensor/sim"
	"github.com/zsiec/framegate/internal/validator"
)

// ValidatorLister lists the validators currently gating sensors
type ValidatorLister interface {
	List() []validator.Stats
}

// ValidatorChecker reports down when no validator is registered and degraded
// while a validator has stopped delivery for a sensor reset.
type ValidatorChecker struct {
	validators ValidatorLister

	mu      sync.Mutex
	details map[string]interface{}
}

// NewValidatorChecker creates a validator checker
func NewValidatorChecker(validators ValidatorLister) *ValidatorChecker {
	return &ValidatorChecker{validators: validators}
}

func (c *ValidatorChecker) Name() string { return "validator" }

func (c *ValidatorChecker) Check(_ context.Context) error {
	list := c.validators.List()

	phases := make(map[string]int)
	var stopped []string
	for _, st := range list {
		phases[st.Phase]++
		if st.Phase == validator.PhaseStopped.String() {
			stopped = append(stopped, st.Sensor)
		}
	}

	c.mu.Lock()
	c.details = map[string]interface{}{
		"validators": len(list),
		"phases":     phases,
	}
	c.mu.Unlock()

	if len(list) == 0 {
		return errors.New("no active validator")
	}
	if len(stopped) > 0 {
		return fmt.Errorf("corrupted frames detected on %v, sensor reset scheduled: %w", stopped, ErrDegraded)
	}
	return nil
}

// Details returns the phase breakdown from the last check
func (c *ValidatorChecker) Details() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.details
}

// SensorStats is implemented by the simulated sensor
type SensorStats interface {
	Stats() sim.Stats
}

// SensorChecker reports down unless the sensor is streaming
type SensorChecker struct {
	sensor SensorStats
	last   sim.Stats
	mu     sync.Mutex
}

// NewSensorChecker creates a sensor checker
func NewSensorChecker(s SensorStats) *SensorChecker {
	return &SensorChecker{sensor: s}
}

func (c *SensorChecker) Name() string { return "sensor" }

func (c *SensorChecker) Check(_ context.Context) error {
	st := c.sensor.Stats()
	c.mu.Lock()
	c.last = st
	c.mu.Unlock()

	if st.State != sim.StateStarted.String() {
		return fmt.Errorf("sensor %s is %s", st.Name, st.State)
	}
	return nil
}

// Details returns the sensor counters from the last check
func (c *SensorChecker) Details() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{
		"state":           c.last.State,
		"starts":          c.last.Starts,
		"frames_produced": c.last.Produced,
		"sink_errors":     c.last.SinkErrors,
	}
}
