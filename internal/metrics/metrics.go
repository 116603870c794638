package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcomes recorded by the validator
const (
	OutcomeDelivered          = "delivered"
	OutcomeDroppedStopped     = "dropped_stopped"
	OutcomeDroppedUntrusted   = "dropped_untrusted"
	OutcomeDroppedUnrequested = "dropped_unrequested"
	OutcomePrecondition       = "precondition"
)

var (
	// Validator metrics
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_frames_total",
		Help: "Frames seen by the validator, by outcome",
	}, []string{"sensor", "outcome"})

	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_validations_total",
		Help: "Validation scans by result (trusted or corrupted)",
	}, []string{"sensor", "result"})

	invalidPixelRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framegate_invalid_pixel_ratio",
		Help: "Invalid pixel ratio of the last scanned validation frame",
	}, []string{"sensor"})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framegate_scan_duration_seconds",
		Help:    "Time spent scanning a frame for invalid pixels",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8), // 10µs to ~160ms
	})

	validatorPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "framegate_validator_phase",
		Help: "Current validator phase (0 collecting, 1 validated, 2 stopped)",
	}, []string{"sensor"})

	// Recovery metrics
	recoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_recoveries_total",
		Help: "Sensor reset attempts by result",
	}, []string{"sensor", "result"})

	recoveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framegate_recovery_duration_seconds",
		Help:    "Duration of sensor reset attempts",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~13s
	}, []string{"sensor"})

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_notifications_total",
		Help: "Notifications dispatched per channel, by result",
	}, []string{"category", "channel", "result"})

	notificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full",
	}, []string{"category"})

	// Sensor metrics
	sensorFramesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_sensor_frames_produced_total",
		Help: "Frames produced by the sensor per stream",
	}, []string{"sensor", "stream"})

	sensorSinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framegate_sensor_sink_errors_total",
		Help: "Errors returned by the frame sink per stream",
	}, []string{"sensor", "stream"})

	// Debug metrics
	activeGoroutines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "debug_goroutines_active",
		Help: "Number of active goroutines",
	}, []string{"component"})
)

// RecordFrame counts a frame outcome for a sensor
func RecordFrame(sensor, outcome string) {
	framesTotal.WithLabelValues(sensor, outcome).Inc()
}

// RecordValidation records a scan result and its ratio
func RecordValidation(sensor string, trusted bool, ratio float64) {
	result := "corrupted"
	if trusted {
		result = "trusted"
	}
	validationsTotal.WithLabelValues(sensor, result).Inc()
	invalidPixelRatio.WithLabelValues(sensor).Set(ratio)
}

// ObserveScanDuration records how long a pixel scan took
func ObserveScanDuration(seconds float64) {
	scanDuration.Observe(seconds)
}

// SetValidatorPhase exports the validator phase as a number
func SetValidatorPhase(sensor string, phase int) {
	validatorPhase.WithLabelValues(sensor).Set(float64(phase))
}

// RecordRecovery records the result of a sensor reset attempt
func RecordRecovery(sensor, result string, seconds float64) {
	recoveriesTotal.WithLabelValues(sensor, result).Inc()
	recoveryDuration.WithLabelValues(sensor).Observe(seconds)
}

// RecordNotification records a notification dispatch on a channel
func RecordNotification(category, channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsTotal.WithLabelValues(category, channel, result).Inc()
}

// IncrementNotificationsDropped counts a notification dropped by a full queue
func IncrementNotificationsDropped(category string) {
	notificationsDropped.WithLabelValues(category).Inc()
}

// IncrementFramesProduced counts a frame emitted by a sensor
func IncrementFramesProduced(sensor, stream string) {
	sensorFramesProduced.WithLabelValues(sensor, stream).Inc()
}

// IncrementSinkErrors counts an error returned by a frame sink
func IncrementSinkErrors(sensor, stream string) {
	sensorSinkErrors.WithLabelValues(sensor, stream).Inc()
}

// IncrementGoroutine tracks a goroutine starting for a component
func IncrementGoroutine(component string) {
	activeGoroutines.WithLabelValues(component).Inc()
}

// DecrementGoroutine tracks a goroutine ending for a component
func DecrementGoroutine(component string) {
	activeGoroutines.WithLabelValues(component).Dec()
}
