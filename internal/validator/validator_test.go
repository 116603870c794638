package validator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/framegate/internal/config"
	apperrors "github.com/zsiec/framegate/internal/errors"
	"github.com/zsiec/framegate/internal/sensor"
	"go.uber.org/goleak"
)

func newTestValidator(t *testing.T, userRequests []sensor.StreamProfile, opts ...Option) (*FrameValidator, *fakeSensor, *recordingSink, *queueExecutor) {
	t.Helper()
	s := &fakeSensor{}
	sink := &recordingSink{}
	exec := &queueExecutor{}
	recovery := []sensor.StreamProfile{irProfile, depthProfile}

	opts = append([]Option{WithExecutor(exec)}, opts...)
	return New(s, sink, userRequests, recovery, opts...), s, sink, exec
}

func TestFrameValidator_TrustedFrameDelivered(t *testing.T) {
	v, s, sink, exec := newTestValidator(t, []sensor.StreamProfile{irProfile})

	frame := videoFrame(irProfile, 500)
	require.NoError(t, v.OnFrame(frame))

	assert.Equal(t, PhaseValidated, v.Phase())
	assert.Equal(t, 1, sink.Count())
	assert.True(t, frame.Released(), "sink owns and releases the frame")
	assert.Empty(t, s.Notified())
	assert.Zero(t, exec.Len())
}

func TestFrameValidator_TrustedButNotRequested(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{depthProfile})

	frame := videoFrame(irProfile, 0)
	require.NoError(t, v.OnFrame(frame))

	assert.Equal(t, PhaseValidated, v.Phase())
	assert.Zero(t, sink.Count())
	assert.True(t, frame.Released())

	// Requested streams now flow without further scans
	depth := videoFrame(depthProfile, 9000)
	require.NoError(t, v.OnFrame(depth))
	assert.Equal(t, 1, sink.Count())
	assert.Equal(t, uint64(1), v.Scans())
}

func TestFrameValidator_CorruptedFrame(t *testing.T) {
	v, s, sink, exec := newTestValidator(t, []sensor.StreamProfile{irProfile, depthProfile})

	frame := videoFrame(irProfile, 2000)
	require.NoError(t, v.OnFrame(frame))

	assert.Equal(t, PhaseStopped, v.Phase())
	assert.Zero(t, sink.Count())
	assert.True(t, frame.Released())

	notified := s.Notified()
	require.Len(t, notified, 1)
	n := notified[0]
	assert.Equal(t, sensor.CategoryFrameCorrupted, n.Category)
	assert.Equal(t, 0, n.Code)
	assert.Equal(t, sensor.SeverityWarn, n.Severity)
	assert.Equal(t, "Corrupted Frame Detected", n.Description)
	assert.Equal(t, "fake", n.Sensor)
	assert.InDelta(t, 0.2, n.Data["invalid_ratio"], 1e-12)
	assert.Equal(t, 1, exec.Len())

	// Everything afterwards is dropped without scanning or notifying
	for i := 0; i < 10; i++ {
		f := videoFrame(irProfile, 0)
		require.NoError(t, v.OnFrame(f))
		assert.True(t, f.Released())
		d := videoFrame(depthProfile, 0)
		require.NoError(t, v.OnFrame(d))
		assert.True(t, d.Released())
	}
	assert.Zero(t, sink.Count())
	assert.Len(t, s.Notified(), 1)
	assert.Equal(t, 1, exec.Len())
	assert.Equal(t, uint64(1), v.Scans())
}

func TestFrameValidator_RatioAtThresholdIsCorrupted(t *testing.T) {
	v, s, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile})

	require.NoError(t, v.OnFrame(videoFrame(irProfile, 1000)))

	assert.Equal(t, PhaseStopped, v.Phase())
	assert.Zero(t, sink.Count())
	assert.Len(t, s.Notified(), 1)
}

func TestFrameValidator_JustBelowThresholdIsTrusted(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile})

	require.NoError(t, v.OnFrame(videoFrame(irProfile, 999)))

	assert.Equal(t, PhaseValidated, v.Phase())
	assert.Equal(t, 1, sink.Count())
}

func TestFrameValidator_OtherStreamsBeforeValidation(t *testing.T) {
	v, s, sink, _ := newTestValidator(t, []sensor.StreamProfile{depthProfile})

	depth := videoFrame(depthProfile, 0)
	require.NoError(t, v.OnFrame(depth))
	gyro := sensor.NewFrame(gyroProfile, make([]byte, 12))
	require.NoError(t, v.OnFrame(gyro))

	assert.Equal(t, PhaseCollecting, v.Phase())
	assert.True(t, depth.Released())
	assert.True(t, gyro.Released())
	assert.Zero(t, sink.Count())
	assert.Zero(t, v.Scans())
	assert.Empty(t, s.Notified())
}

func TestFrameValidator_ForwardOtherStreams(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{depthProfile},
		WithOtherStreamPolicy(ForwardOtherStreams))

	require.NoError(t, v.OnFrame(videoFrame(depthProfile, 0)))
	require.NoError(t, v.OnFrame(videoFrame(depthProfile, 0)))

	assert.Equal(t, PhaseCollecting, v.Phase())
	assert.Equal(t, 2, sink.Count())
	assert.Zero(t, v.Scans())
}

func TestFrameValidator_ScansExactlyOnce(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile})

	for i := 0; i < 100; i++ {
		// Later frames would fail the scan if it ran again
		zeros := 0
		if i > 0 {
			zeros = 10000
		}
		require.NoError(t, v.OnFrame(videoFrame(irProfile, zeros)))
	}

	assert.Equal(t, uint64(1), v.Scans())
	assert.Equal(t, 100, sink.Count())
	assert.Equal(t, PhaseValidated, v.Phase())
}

func TestFrameValidator_PreconditionViolation(t *testing.T) {
	v, s, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile})

	// A non-video frame claiming the validation stream
	bad := sensor.NewFrame(sensor.NewMotionProfile(sensor.StreamInfrared, 30), make([]byte, 12))
	err := v.OnFrame(bad)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonVideoFrame))
	assert.True(t, apperrors.IsPrecondition(err))
	assert.True(t, bad.Released())
	assert.Equal(t, PhaseCollecting, v.Phase())
	assert.Empty(t, s.Notified())

	// The validator keeps working afterwards
	require.NoError(t, v.OnFrame(videoFrame(irProfile, 0)))
	assert.Equal(t, 1, sink.Count())
}

func TestFrameValidator_SinkErrorPropagates(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile})
	sink.err = errors.New("sink full")

	err := v.OnFrame(videoFrame(irProfile, 0))
	assert.EqualError(t, err, "sink full")
}

func TestFrameValidator_EveryFrameHasOneOutcome(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile})

	var frames []*sensor.Frame
	for i := 0; i < 30; i++ {
		var f *sensor.Frame
		switch i % 3 {
		case 0:
			f = videoFrame(depthProfile, 0)
		case 1:
			f = sensor.NewFrame(gyroProfile, make([]byte, 12))
		default:
			f = videoFrame(irProfile, 10)
		}
		frames = append(frames, f)
		require.NoError(t, v.OnFrame(f))
	}

	st := v.Stats()
	assert.Equal(t, uint64(len(frames)), st.Delivered+st.Dropped)
	assert.Equal(t, uint64(sink.Count()), st.Delivered)
	for _, f := range frames {
		assert.True(t, f.Released())
	}
}

func TestFrameValidator_ConcurrentCorruption(t *testing.T) {
	v, s, sink, exec := newTestValidator(t, []sensor.StreamProfile{irProfile})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, v.OnFrame(videoFrame(irProfile, 5000)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, PhaseStopped, v.Phase())
	assert.Len(t, s.Notified(), 1)
	assert.Equal(t, 1, exec.Len())
	assert.Equal(t, uint64(1), v.Scans())
	assert.Zero(t, sink.Count())
}

func TestFrameValidator_ConcurrentValidation(t *testing.T) {
	v, _, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile, depthProfile})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, v.OnFrame(videoFrame(irProfile, 0)))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, v.OnFrame(videoFrame(depthProfile, 0)))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(1), v.Scans())
	st := v.Stats()
	assert.Equal(t, uint64(800), st.Delivered+st.Dropped)
	assert.Equal(t, uint64(sink.Count()), st.Delivered)
	assert.GreaterOrEqual(t, sink.Count(), 400)
}

func TestFrameValidator_RecoveryRestartsSensor(t *testing.T) {
	v, s, sink, exec := newTestValidator(t, []sensor.StreamProfile{irProfile},
		WithRecoveryDelays(time.Millisecond, time.Millisecond))

	require.NoError(t, v.OnFrame(videoFrame(irProfile, 9000)))
	require.Equal(t, 1, exec.Len())

	// The task does not depend on the validator being around
	v = nil
	exec.RunAll()

	assert.Equal(t, []string{"stop", "close", "open", "start"}, s.Calls())
	assert.Equal(t, []sensor.StreamProfile{irProfile, depthProfile}, s.openProfiles)
	assert.Same(t, sink, s.startSink)
}

func TestFrameValidator_RecoveryOnGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &fakeSensor{}
	v := New(s, &recordingSink{}, nil, []sensor.StreamProfile{irProfile},
		WithRecoveryDelays(time.Millisecond, time.Millisecond))

	start := time.Now()
	require.NoError(t, v.OnFrame(videoFrame(irProfile, 9000)))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "recovery must not block delivery")

	assert.Eventually(t, func() bool {
		return len(s.Calls()) == 4
	}, time.Second, 5*time.Millisecond)
}

func TestFrameValidator_RecoveryFailureContained(t *testing.T) {
	v, s, _, exec := newTestValidator(t, nil, WithRecoveryDelays(0, 0))
	s.failOn = "close"

	require.NoError(t, v.OnFrame(videoFrame(irProfile, 9000)))
	assert.NotPanics(t, exec.RunAll)
	assert.Equal(t, []string{"stop", "close"}, s.Calls())
	assert.Equal(t, PhaseStopped, v.Phase())
}

func TestFrameValidator_CustomValidationStream(t *testing.T) {
	v, s, sink, _ := newTestValidator(t, []sensor.StreamProfile{irProfile, depthProfile},
		WithValidationStream(sensor.StreamDepth))

	// Infrared frames wait for the depth verdict
	require.NoError(t, v.OnFrame(videoFrame(irProfile, 0)))
	assert.Equal(t, PhaseCollecting, v.Phase())

	require.NoError(t, v.OnFrame(videoFrame(depthProfile, 3000)))
	assert.Equal(t, PhaseStopped, v.Phase())
	assert.Zero(t, sink.Count())
	assert.Len(t, s.Notified(), 1)
}

func TestFrameValidator_Stats(t *testing.T) {
	v, _, _, _ := newTestValidator(t, []sensor.StreamProfile{irProfile}, WithThreshold(0.25))

	st := v.Stats()
	assert.Equal(t, v.ID(), st.ID)
	assert.Equal(t, "fake", st.Sensor)
	assert.Equal(t, "collecting", st.Phase)
	assert.Equal(t, "infrared", st.ValidationStream)
	assert.Equal(t, 0.25, st.Threshold)
	assert.Nil(t, st.TransitionedAt)

	require.NoError(t, v.OnFrame(videoFrame(irProfile, 2000)))

	st = v.Stats()
	assert.Equal(t, "validated", st.Phase)
	assert.InDelta(t, 0.2, st.LastRatio, 1e-12)
	assert.Equal(t, uint64(1), st.Delivered)
	assert.NotNil(t, st.TransitionedAt)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "collecting", PhaseCollecting.String())
	assert.Equal(t, "validated", PhaseValidated.String())
	assert.Equal(t, "stopped", PhaseStopped.String())
	assert.Equal(t, "phase(7)", Phase(7).String())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultValidatorConfig()
	cfg.ValidationStream = "depth"
	cfg.OtherStreamPolicy = "forward"
	cfg.Threshold = 0.3

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	v := New(&fakeSensor{}, &recordingSink{}, nil, nil, opts...)
	assert.Equal(t, sensor.StreamDepth, v.validationStream)
	assert.Equal(t, ForwardOtherStreams, v.policy)
	assert.Equal(t, 0.3, v.threshold)
	assert.Equal(t, 500*time.Millisecond, v.stopDelay)

	cfg.OtherStreamPolicy = "bounce"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)

	cfg = config.DefaultValidatorConfig()
	cfg.ValidationStream = "thermal"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
