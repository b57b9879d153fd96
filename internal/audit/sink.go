package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrSinkFull is returned when the async buffer has no room. The event is dropped.
var ErrSinkFull = errors.New("audit sink buffer full")

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("audit sink closed")

// Sink receives persisted auth events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

type closer interface {
	Close() error
}

// MultiSink fans an event out to every sink.
type MultiSink []Sink

// Write delivers ev to every sink and joins their errors.
func (m MultiSink) Write(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that supports it.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// AsyncSink decouples request handling from the durable sink with a bounded
// buffer. Writes never block; when the buffer is full the event is dropped.
type AsyncSink struct {
	next         Sink
	events       chan Event
	done         chan struct{}
	log          *logrus.Logger
	writeTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsyncSink starts the delivery goroutine. Close must be called to drain it.
func NewAsyncSink(next Sink, buffer int, log *logrus.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 1024
	}
	if log == nil {
		log = logrus.New()
	}
	s := &AsyncSink{
		next:         next,
		events:       make(chan Event, buffer),
		done:         make(chan struct{}),
		log:          log,
		writeTimeout: 5 * time.Second,
	}
	go s.run()
	return s
}

// Write enqueues ev. The request context is not used for delivery.
func (s *AsyncSink) Write(_ context.Context, ev Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.events <- ev:
		return nil
	default:
		s.dropped.Add(1)
		return ErrSinkFull
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events, delivers what is buffered and closes the
// wrapped sink. It gives up waiting when ctx ends.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c, ok := s.next.(closer); ok {
		return c.Close()
	}
	return nil
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for ev := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.next.Write(ctx, ev); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"event_type": ev.Type,
				"request_id": ev.RequestID,
			}).Error("failed to persist audit event")
		}
		cancel()
	}
}
