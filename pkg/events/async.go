package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the queue stayed full for MaxWaitTime.
	ErrQueueFull = errors.New("events: queue full, event dropped")

	// ErrPublisherClosed is returned after Close.
	ErrPublisherClosed = errors.New("events: publisher is closed")
)

// AsyncPublisher hands events to a Sink from a bounded queue drained by a
// worker pool, so callers never wait on the sink.
type AsyncPublisher struct {
	sink    Sink
	queue   chan Event
	config  AsyncConfig
	metrics metrics.MetricsCollector
	logger  *logging.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	reportStop chan struct{}

	enqueued  int64
	dropped   int64
	published int64
	failed    int64
}

// AsyncConfig configures an AsyncPublisher.
type AsyncConfig struct {
	// QueueSize bounds pending events. Default: 1000
	QueueSize int

	// Workers is the number of concurrent publishers. Default: 2
	Workers int

	// MaxWaitTime is how long Publish waits for queue space before dropping. Default: 10ms
	MaxWaitTime time.Duration

	// PublishTimeout bounds each sink call. Default: 5s
	PublishTimeout time.Duration

	// ReportInterval is how often queue depth is reported. Default: 5s
	ReportInterval time.Duration
}

// AsyncStats is a snapshot of publisher counters.
type AsyncStats struct {
	QueueDepth int
	Enqueued   int64
	Dropped    int64
	Published  int64
	Failed     int64
}

// NewAsyncPublisher starts the worker pool. Close must be called to drain it.
func NewAsyncPublisher(sink Sink, config AsyncConfig, collector metrics.MetricsCollector) *AsyncPublisher {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = 5 * time.Second
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	p := &AsyncPublisher{
		sink:       sink,
		queue:      make(chan Event, config.QueueSize),
		config:     config,
		metrics:    collector,
		logger:     logging.Global().Named("events.async").With(zap.String("sink", sink.Name())),
		reportStop: make(chan struct{}),
	}

	for i := 0; i < config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.reportDepth()

	return p
}

// Publish enqueues e. It waits at most MaxWaitTime for space and returns
// ErrQueueFull if none frees up.
func (p *AsyncPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.queue <- e:
		atomic.AddInt64(&p.enqueued, 1)
		return nil
	default:
	}

	timer := time.NewTimer(p.config.MaxWaitTime)
	defer timer.Stop()

	select {
	case p.queue <- e:
		atomic.AddInt64(&p.enqueued, 1)
		return nil
	case <-timer.C:
		atomic.AddInt64(&p.dropped, 1)
		p.metrics.RecordEventDropped(p.sink.Name())
		p.logger.Warn("event dropped, queue full",
			zap.String("event", e.Name()),
			zap.String("key", e.Key()),
		)
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle adapts Publish to a dispatcher Handler.
func (p *AsyncPublisher) Handle(ctx context.Context, e Event) error {
	return p.Publish(ctx, e)
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()
	for e := range p.queue {
		p.deliver(e)
	}
}

func (p *AsyncPublisher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	start := time.Now()
	err := p.sink.Publish(ctx, e)
	p.metrics.RecordEventPublished(p.sink.Name(), err == nil, time.Since(start))

	if err != nil {
		atomic.AddInt64(&p.failed, 1)
		p.logger.Error("event publish failed",
			zap.String("event", e.Name()),
			zap.String("key", e.Key()),
			zap.Error(err),
		)
		return
	}
	atomic.AddInt64(&p.published, 1)
}

func (p *AsyncPublisher) reportDepth() {
	ticker := time.NewTicker(p.config.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.metrics.RecordQueueDepth(p.sink.Name(), len(p.queue))
		case <-p.reportStop:
			return
		}
	}
}

// Close stops accepting events, delivers everything already queued and then
// closes the sink.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	close(p.reportStop)
	p.wg.Wait()
	p.metrics.RecordQueueDepth(p.sink.Name(), 0)

	return p.sink.Close()
}

func (p *AsyncPublisher) Stats() AsyncStats {
	return AsyncStats{
		QueueDepth: len(p.queue),
		Enqueued:   atomic.LoadInt64(&p.enqueued),
		Dropped:    atomic.LoadInt64(&p.dropped),
		Published:  atomic.LoadInt64(&p.published),
		Failed:     atomic.LoadInt64(&p.failed),
	}
}
