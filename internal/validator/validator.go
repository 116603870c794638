// Package validator gates the frames of a freshly started sensor. It holds
// back every frame until one frame of the validation stream has been scanned
// and found clean. A corrupted validation frame stops delivery for good and
// triggers an asynchronous sensor reset.
package validator

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/metrics"
	"github.com/zsiec/framegate/internal/sensor"
)

// Phase is the validator lifecycle state
type Phase int32

const (
	// PhaseCollecting waits for a validation frame
	PhaseCollecting Phase = iota
	// PhaseValidated passes frames through to the user-request filter
	PhaseValidated
	// PhaseStopped drops everything; a recovery has been scheduled
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseValidated:
		return "validated"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// FrameValidator is a FrameSink that sits between a sensor and the user's sink
type FrameValidator struct {
	id               string
	sensor           sensor.Sensor
	userSink         sensor.FrameSink
	userRequests     []sensor.StreamProfile
	recoveryRequests []sensor.StreamProfile

	validationStream sensor.StreamType
	policy           OtherStreamPolicy
	threshold        float64
	stopDelay        time.Duration
	reopenDelay      time.Duration
	executor         Executor
	detector         *Detector

	logger   logger.Logger
	frameLog *logger.SampledLogger

	phase atomic.Int32
	// mu serializes the collecting path so only one validation frame is ever scanned
	mu           sync.Mutex
	transitioned time.Time

	delivered atomic.Uint64
	dropped   atomic.Uint64
	lastRatio atomic.Uint64
	createdAt time.Time
}

// Stats is a point-in-time view of a validator
type Stats struct {
	ID               string     `json:"id"`
	Sensor           string     `json:"sensor"`
	Phase            string     `json:"phase"`
	ValidationStream string     `json:"validation_stream"`
	Threshold        float64    `json:"threshold"`
	Scans            uint64     `json:"scans"`
	LastRatio        float64    `json:"last_ratio"`
	Delivered        uint64     `json:"frames_delivered"`
	Dropped          uint64     `json:"frames_dropped"`
	CreatedAt        time.Time  `json:"created_at"`
	TransitionedAt   *time.Time `json:"transitioned_at,omitempty"`
}

// New creates a validator in the collecting phase. userRequests selects which
// frames reach userSink once validated; recoveryRequests is the profile list
// the sensor is reopened with after corruption.
func New(s sensor.Sensor, userSink sensor.FrameSink, userRequests, recoveryRequests []sensor.StreamProfile, opts ...Option) *FrameValidator {
	v := &FrameValidator{
		id:               uuid.New().String(),
		sensor:           s,
		userSink:         userSink,
		userRequests:     append([]sensor.StreamProfile(nil), userRequests...),
		recoveryRequests: append([]sensor.StreamProfile(nil), recoveryRequests...),
		validationStream: sensor.StreamInfrared,
		policy:           DropOtherStreams,
		threshold:        DefaultInvalidPixelsThreshold,
		stopDelay:        DefaultStopDelay,
		reopenDelay:      DefaultReopenDelay,
		executor:         GoExecutor{},
		logger:           logger.NewNullLogger(),
		createdAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(v)
	}

	v.detector = NewDetector(v.threshold)
	v.threshold = v.detector.Threshold()
	v.logger = logger.WithSensor(v.logger, s.Name()).WithFields(logger.Fields{
		"component":    "validator",
		"validator_id": v.id,
	})
	v.frameLog = logger.NewFrameLogger(v.logger)
	metrics.SetValidatorPhase(s.Name(), int(PhaseCollecting))

	return v
}

// ID returns the validator's unique identifier
func (v *FrameValidator) ID() string {
	return v.id
}

// Phase returns the current phase
func (v *FrameValidator) Phase() Phase {
	return Phase(v.phase.Load())
}

// Scans returns how many validation frames have been scanned
func (v *FrameValidator) Scans() uint64 {
	return v.detector.Scans()
}

// OnFrame takes ownership of frame and either hands it to the user's sink or
// releases it. A precondition error is returned after the frame is released.
func (v *FrameValidator) OnFrame(frame *sensor.Frame) error {
	if v.Phase() == PhaseStopped {
		v.drop(frame, metrics.OutcomeDroppedStopped)
		return nil
	}

	trusted, err := v.propagate(frame)
	if err != nil {
		v.drop(frame, metrics.OutcomePrecondition)
		v.logger.WithError(err).Error("Frame failed validation precondition")
		return fmt.Errorf("validator %s: %w", v.id, err)
	}
	if !trusted {
		if v.Phase() == PhaseStopped {
			v.drop(frame, metrics.OutcomeDroppedStopped)
		} else {
			v.drop(frame, metrics.OutcomeDroppedUntrusted)
		}
		return nil
	}

	if !v.isUserRequested(frame) {
		v.drop(frame, metrics.OutcomeDroppedUnrequested)
		return nil
	}

	v.delivered.Add(1)
	metrics.RecordFrame(v.sensor.Name(), metrics.OutcomeDelivered)
	v.frameLog.Sample(logrus.DebugLevel, logger.CategoryFrameDelivery, "Delivering frame", logger.Fields{
		"profile": frame.Profile().String(),
		"frame":   frame.Number(),
	})
	return v.userSink.OnFrame(frame)
}

// propagate decides whether frame may continue past validation. It scans at
// most one validation frame over the validator's lifetime.
func (v *FrameValidator) propagate(frame *sensor.Frame) (bool, error) {
	if v.Phase() == PhaseValidated {
		return true, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.Phase() {
	case PhaseValidated:
		return true, nil
	case PhaseStopped:
		return false, nil
	}

	if frame.Profile().StreamType() != v.validationStream {
		return v.policy == ForwardOtherStreams, nil
	}

	ratio, trusted, err := v.detector.Evaluate(frame)
	if err != nil {
		return false, err
	}
	v.lastRatio.Store(math.Float64bits(ratio))
	metrics.RecordValidation(v.sensor.Name(), trusted, ratio)

	if trusted {
		v.setPhase(PhaseValidated)
		v.logger.WithFields(logger.Fields{
			"invalid_ratio": ratio,
			"profile":       frame.Profile().String(),
		}).Info("Validation frame trusted, delivering frames")
		return true, nil
	}

	v.onCorruption(frame, ratio)
	return false, nil
}

// onCorruption runs with mu held, exactly once per validator
func (v *FrameValidator) onCorruption(frame *sensor.Frame, ratio float64) {
	v.logger.WithFields(logger.Fields{
		"invalid_ratio": ratio,
		"threshold":     v.threshold,
		"frame":         frame.Number(),
	}).Error("Received corrupted frame, restarting the sensor")

	n := sensor.NewNotification(sensor.CategoryFrameCorrupted, 0, sensor.SeverityWarn, "Corrupted Frame Detected")
	n.Sensor = v.sensor.Name()
	n.Data = map[string]interface{}{
		"invalid_ratio": ratio,
		"threshold":     v.threshold,
		"validator_id":  v.id,
		"profile":       frame.Profile().String(),
	}
	if sink := v.sensor.Notifications(); sink != nil {
		sink.Raise(n)
	}

	v.setPhase(PhaseStopped)

	task := NewRecoveryTask(v.sensor, v.recoveryRequests, v.userSink, v.stopDelay, v.reopenDelay, v.logger)
	v.executor.Submit(func() {
		_ = task.Run()
	})
}

// setPhase runs with mu held
func (v *FrameValidator) setPhase(p Phase) {
	v.phase.Store(int32(p))
	v.transitioned = time.Now()
	metrics.SetValidatorPhase(v.sensor.Name(), int(p))
}

func (v *FrameValidator) isUserRequested(frame *sensor.Frame) bool {
	return matchesAny(frame.Profile(), v.userRequests)
}

func (v *FrameValidator) drop(frame *sensor.Frame, outcome string) {
	v.dropped.Add(1)
	metrics.RecordFrame(v.sensor.Name(), outcome)
	v.frameLog.Sample(logrus.DebugLevel, logger.CategoryFrameDrop, "Dropping frame", logger.Fields{
		"reason":  outcome,
		"profile": frame.Profile().String(),
		"frame":   frame.Number(),
	})
	frame.Release()
}

// Stats returns a snapshot of the validator's counters
func (v *FrameValidator) Stats() Stats {
	v.mu.Lock()
	transitioned := v.transitioned
	v.mu.Unlock()

	st := Stats{
		ID:               v.id,
		Sensor:           v.sensor.Name(),
		Phase:            v.Phase().String(),
		ValidationStream: v.validationStream.String(),
		Threshold:        v.threshold,
		Scans:            v.detector.Scans(),
		LastRatio:        math.Float64frombits(v.lastRatio.Load()),
		Delivered:        v.delivered.Load(),
		Dropped:          v.dropped.Load(),
		CreatedAt:        v.createdAt,
	}
	if !transitioned.IsZero() {
		st.TransitionedAt = &transitioned
	}
	return st
}
