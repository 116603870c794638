package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Frame-path log categories
const (
	CategoryFrameDrop        = "frame_drop"
	CategoryFrameDelivery    = "frame_delivery"
	CategoryNotificationDrop = "notification_drop"
	CategoryRecovery         = "recovery"
)

// SampledLogger rate-limits high-frequency log categories so that per-frame
// events do not flood the output. Categories without a sampler always log.
type SampledLogger struct {
	Logger
	samplers *samplerSet
}

type samplerSet struct {
	mu       sync.RWMutex
	samplers map[string]*LogSampler
}

// LogSampler decides which messages of one category get logged
type LogSampler struct {
	name      string
	sometimes *rate.Sometimes

	total  atomic.Int64
	logged atomic.Int64
}

// SamplerStats holds statistics for a log sampler
type SamplerStats struct {
	Name    string `json:"name"`
	Total   int64  `json:"total"`
	Logged  int64  `json:"logged"`
	Dropped int64  `json:"dropped"`
}

// NewSampledLogger creates a new sampled logger
func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		Logger:   base,
		samplers: &samplerSet{samplers: make(map[string]*LogSampler)},
	}
}

// WithSampler configures a category to log its first burst messages, then at
// most once per interval.
func (s *SampledLogger) WithSampler(category string, burst int, interval time.Duration) *SampledLogger {
	s.samplers.mu.Lock()
	defer s.samplers.mu.Unlock()

	s.samplers.samplers[category] = &LogSampler{
		name:      category,
		sometimes: &rate.Sometimes{First: burst, Interval: interval},
	}
	return s
}

// Sample logs msg at level if the category's sampler lets it through
func (s *SampledLogger) Sample(level logrus.Level, category, msg string, fields Fields) {
	s.samplers.mu.RLock()
	sampler, ok := s.samplers.samplers[category]
	s.samplers.mu.RUnlock()

	entry := s.Logger.WithField("category", category)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}

	if !ok {
		entry.Log(level, msg)
		return
	}

	total := sampler.total.Add(1)
	sampler.sometimes.Do(func() {
		logged := sampler.logged.Add(1)
		entry.WithField("_sampling_dropped", total-logged).Log(level, msg)
	})
}

// Stats returns statistics for all samplers
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.samplers.mu.RLock()
	defer s.samplers.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers.samplers))
	for name, sampler := range s.samplers.samplers {
		total := sampler.total.Load()
		logged := sampler.logged.Load()
		stats[name] = SamplerStats{
			Name:    name,
			Total:   total,
			Logged:  logged,
			Dropped: total - logged,
		}
	}
	return stats
}

// WithField keeps the sampler configuration shared with the parent
func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithField(key, value), samplers: s.samplers}
}

// WithFields keeps the sampler configuration shared with the parent
func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return &SampledLogger{Logger: s.Logger.WithFields(fields), samplers: s.samplers}
}

// WithError keeps the sampler configuration shared with the parent
func (s *SampledLogger) WithError(err error) Logger {
	return &SampledLogger{Logger: s.Logger.WithError(err), samplers: s.samplers}
}

// NewFrameLogger creates a sampled logger preconfigured for the frame path
func NewFrameLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryFrameDrop, 5, time.Second).
		WithSampler(CategoryFrameDelivery, 1, 5*time.Second).
		WithSampler(CategoryNotificationDrop, 3, time.Second)
	// CategoryRecovery is never sampled
}
