// Package notify delivers sensor notifications to observers. A Processor
// accepts notifications without blocking the raiser and fans them out to
// channels (log, redis, in-memory history) on its own goroutine.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zsiec/framegate/internal/logger"
	"github.com/zsiec/framegate/internal/metrics"
	"github.com/zsiec/framegate/internal/sensor"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 2 * time.Second
	drainTimeout       = 5 * time.Second
)

// Channel is one destination for notifications
type Channel interface {
	Name() string
	Send(ctx context.Context, n sensor.Notification) error
}

// Processor is a sensor.NotificationSink backed by a bounded queue
type Processor struct {
	queue       chan sensor.Notification
	channels    []Channel
	sendTimeout time.Duration
	logger      logger.Logger
	sampled     *logger.SampledLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	raised     atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
}

// ProcessorStats is a snapshot of processor activity
type ProcessorStats struct {
	Raised     uint64 `json:"raised"`
	Dispatched uint64 `json:"dispatched"`
	Dropped    uint64 `json:"dropped"`
	Queued     int    `json:"queued"`
}

// NewProcessor creates a processor. Channels are called in order.
func NewProcessor(queueSize int, log logger.Logger, channels ...Channel) *Processor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	log = log.WithField("component", "notify")

	return &Processor{
		queue:       make(chan sensor.Notification, queueSize),
		channels:    channels,
		sendTimeout: defaultSendTimeout,
		logger:      log,
		sampled:     logger.NewFrameLogger(log),
	}
}

// Raise enqueues n. When the queue is full the notification is dropped.
func (p *Processor) Raise(n sensor.Notification) {
	p.raised.Add(1)
	select {
	case p.queue <- n:
	default:
		p.dropped.Add(1)
		metrics.IncrementNotificationsDropped(string(n.Category))
		p.sampled.Sample(logrus.WarnLevel, logger.CategoryNotificationDrop, "Notification queue full, dropping", logger.Fields{
			"category": n.Category,
			"id":       n.ID,
		})
	}
}

// RaiseSync delivers n to every channel before returning
func (p *Processor) RaiseSync(ctx context.Context, n sensor.Notification) error {
	p.raised.Add(1)
	return p.dispatch(ctx, n)
}

// Start launches the dispatch goroutine. It is a no-op if already running.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop halts dispatching and delivers whatever is still queued
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case n := <-p.queue:
			_ = p.dispatch(ctx, n)
		default:
			return
		}
	}
}

// Stats returns processor counters
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		Raised:     p.raised.Load(),
		Dispatched: p.dispatched.Load(),
		Dropped:    p.dropped.Load(),
		Queued:     len(p.queue),
	}
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()
	metrics.IncrementGoroutine("notify")
	defer metrics.DecrementGoroutine("notify")

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-p.queue:
			_ = p.dispatch(ctx, n)
		}
	}
}

func (p *Processor) dispatch(ctx context.Context, n sensor.Notification) error {
	var errs []error
	for _, ch := range p.channels {
		sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
		err := ch.Send(sendCtx, n)
		cancel()

		metrics.RecordNotification(string(n.Category), ch.Name(), err)
		if err != nil {
			p.logger.WithError(err).WithFields(logger.Fields{
				"channel": ch.Name(),
				"id":      n.ID,
			}).Warn("Failed to deliver notification")
			errs = append(errs, err)
		}
	}
	p.dispatched.Add(1)
	return errors.Join(errs...)
}
