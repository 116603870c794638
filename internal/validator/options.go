package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/zsiec/framegate/internal/config"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/sensor"
)

// OtherStreamPolicy decides what happens to frames of streams other than the
// validation stream while validation is still pending
type OtherStreamPolicy int

const (
	// DropOtherStreams releases them
	DropOtherStreams OtherStreamPolicy = iota
	// ForwardOtherStreams lets them continue to the user-request filter
	ForwardOtherStreams
)

func (p OtherStreamPolicy) String() string {
	if p == ForwardOtherStreams {
		return "forward"
	}
	return "drop"
}

// ParseOtherStreamPolicy parses "drop" or "forward"
func ParseOtherStreamPolicy(s string) (OtherStreamPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return DropOtherStreams, nil
	case "forward":
		return ForwardOtherStreams, nil
	default:
		return DropOtherStreams, fmt.Errorf("unknown other stream policy %q", s)
	}
}

// Option configures a FrameValidator
type Option func(*FrameValidator)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(v *FrameValidator) {
		if log != nil {
			v.logger = log
		}
	}
}

// WithExecutor sets where recovery tasks run
func WithExecutor(e Executor) Option {
	return func(v *FrameValidator) {
		if e != nil {
			v.executor = e
		}
	}
}

// WithThreshold overrides the invalid pixel threshold
func WithThreshold(threshold float64) Option {
	return func(v *FrameValidator) {
		v.threshold = threshold
	}
}

// WithValidationStream selects the stream whose frames are scanned
func WithValidationStream(stream sensor.StreamType) Option {
	return func(v *FrameValidator) {
		v.validationStream = stream
	}
}

// WithOtherStreamPolicy sets the policy for non-validation streams
func WithOtherStreamPolicy(p OtherStreamPolicy) Option {
	return func(v *FrameValidator) {
		v.policy = p
	}
}

// WithRecoveryDelays sets the pauses after stopping and after reopening the sensor
func WithRecoveryDelays(stop, reopen time.Duration) Option {
	return func(v *FrameValidator) {
		v.stopDelay = stop
		v.reopenDelay = reopen
	}
}

// OptionsFromConfig translates validator configuration into options
func OptionsFromConfig(cfg config.ValidatorConfig) ([]Option, error) {
	opts := []Option{
		WithThreshold(cfg.Threshold),
		WithRecoveryDelays(cfg.StopDelay, cfg.ReopenDelay),
	}

	if cfg.ValidationStream != "" {
		stream, err := sensor.ParseStreamType(cfg.ValidationStream)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithValidationStream(stream))
	}

	policy, err := ParseOtherStreamPolicy(cfg.OtherStreamPolicy)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithOtherStreamPolicy(policy))

	return opts, nil
}
