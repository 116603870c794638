package sensor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotificationCategory classifies a sensor notification
type NotificationCategory string

const (
	CategoryFrameCorrupted NotificationCategory = "frame-corrupted"
	CategoryHardwareError  NotificationCategory = "hardware-error"
	CategoryFramesTimeout  NotificationCategory = "frames-timeout"
	CategoryUnknownError   NotificationCategory = "unknown-error"
)

// Severity levels for notifications
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

// String returns the string representation of Severity
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// LogLevel maps the severity onto a logrus level. Fatal maps to error so that
// logging a notification never exits the process.
func (s Severity) LogLevel() logrus.Level {
	switch s {
	case SeverityDebug:
		return logrus.DebugLevel
	case SeverityInfo:
		return logrus.InfoLevel
	case SeverityWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

// MarshalText renders the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a severity name
func (s *Severity) UnmarshalText(text []byte) error {
	for sev := SeverityDebug; sev <= SeverityFatal; sev++ {
		if sev.String() == string(text) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Notification is a structured event raised by a sensor or a component attached to it
type Notification struct {
	ID          string                 `json:"id"`
	Sensor      string                 `json:"sensor,omitempty"`
	Category    NotificationCategory   `json:"category"`
	Code        int                    `json:"code"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NewNotification creates a notification stamped with a fresh ID and the current time
func NewNotification(category NotificationCategory, code int, severity Severity, description string) Notification {
	return Notification{
		ID:          uuid.New().String(),
		Category:    category,
		Code:        code,
		Severity:    severity,
		Description: description,
		Timestamp:   time.Now(),
	}
}

// NotificationSink accepts notifications. Raise must not block the caller.
type NotificationSink interface {
	Raise(n Notification)
}

// NotificationSinkFunc adapts a function to the NotificationSink interface
type NotificationSinkFunc func(n Notification)

// Raise implements NotificationSink
func (fn NotificationSinkFunc) Raise(n Notification) {
	fn(n)
}
