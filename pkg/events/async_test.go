package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	metricsmem "fund-transfer/pkg/metrics/memory"
)

type fakeSink struct {
	mu       sync.Mutex
	received []Event
	block    chan struct{}
	err      error
	closed   int32
}

func (s *fakeSink) Publish(ctx context.Context, e Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, e)
	return s.err
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Close() error {
	atomic.AddInt32(&s.closed, 1)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestAsyncPublisher_DeliversAndDrainsOnClose(t *testing.T) {
	sink := &fakeSink{}
	collector := metricsmem.NewMemoryCollector()
	p := NewAsyncPublisher(sink, AsyncConfig{QueueSize: 100, Workers: 2}, collector)

	for i := 0; i < 50; i++ {
		if err := p.Publish(context.Background(), sampleEvent()); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if sink.count() != 50 {
		t.Errorf("Expected 50 delivered events, got %d", sink.count())
	}
	if atomic.LoadInt32(&sink.closed) != 1 {
		t.Error("Close should close the sink")
	}
	if sm := collector.Sink("fake"); sm == nil || sm.Published != 50 {
		t.Errorf("Expected 50 published in metrics, got %+v", sm)
	}
	if s := p.Stats(); s.Enqueued != 50 || s.Published != 50 {
		t.Errorf("Unexpected stats %+v", s)
	}

	if err := p.Publish(context.Background(), sampleEvent()); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Expected ErrPublisherClosed, got %v", err)
	}
}

func TestAsyncPublisher_DropsWhenFull(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	collector := metricsmem.NewMemoryCollector()
	p := NewAsyncPublisher(sink, AsyncConfig{QueueSize: 1, Workers: 1, MaxWaitTime: 5 * time.Millisecond}, collector)

	// One event held by the worker, one in the queue, the rest have nowhere to go.
	var dropped int
	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), sampleEvent()); errors.Is(err, ErrQueueFull) {
			dropped++
		}
	}

	if dropped == 0 {
		t.Error("Expected at least one dropped event")
	}
	if sm := collector.Sink("fake"); sm == nil || sm.Dropped != int64(dropped) {
		t.Errorf("Expected %d drops recorded, got %+v", dropped, sm)
	}

	close(sink.block)
	p.Close()
}

func TestAsyncPublisher_SinkFailureIsCounted(t *testing.T) {
	sink := &fakeSink{err: errors.New("nack")}
	p := NewAsyncPublisher(sink, AsyncConfig{}, nil)

	_ = p.Publish(context.Background(), sampleEvent())
	p.Close()

	if s := p.Stats(); s.Failed != 1 || s.Published != 0 {
		t.Errorf("Expected one failure, got %+v", s)
	}
}

func TestAsyncPublisher_AsDispatcherSubscriber(t *testing.T) {
	sink := &fakeSink{}
	p := NewAsyncPublisher(sink, AsyncConfig{}, nil)

	d := NewDispatcher()
	d.Subscribe(TransferCompletedName, 5, p.Handle)

	if err := d.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	p.Close()

	if sink.count() != 1 {
		t.Errorf("Expected event forwarded to sink, got %d", sink.count())
	}
}
