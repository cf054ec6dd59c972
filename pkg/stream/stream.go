// Package stream runs a producer in its own goroutine and hands its items to
// a consumer through a bounded channel with an explicit backpressure policy.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBuffer is the channel capacity used when none is configured.
const DefaultBuffer = 64

// Prometheus metrics for streams.
var (
	itemsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopping_stream_items_total",
		Help: "Total items handed to stream consumers by stream",
	}, []string{"stream"})

	itemsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopping_stream_dropped_total",
		Help: "Total items discarded or rejected because a stream queue was full",
	}, []string{"stream", "policy"})
)

var (
	// ErrStopped is returned by Emit once the context is cancelled. A
	// producer returning it ends the stream without error.
	ErrStopped = errors.New("stream stopped")

	// ErrQueueFull is returned by Emit under PolicyReject when the queue is full.
	ErrQueueFull = errors.New("stream queue full")
)

// Policy decides what Emit does when the queue is full.
type Policy int

const (
	// PolicyBlock waits for the consumer (or cancellation).
	PolicyBlock Policy = iota
	// PolicyDropOldest discards the oldest queued item to make room.
	PolicyDropOldest
	// PolicyReject fails the emit with ErrQueueFull.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicyBlock:
		return "block"
	case PolicyDropOldest:
		return "drop_oldest"
	case PolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "block", "drop_oldest" or "reject".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return PolicyBlock, nil
	case "drop_oldest", "drop-oldest":
		return PolicyDropOldest, nil
	case "reject":
		return PolicyReject, nil
	default:
		return PolicyBlock, fmt.Errorf("unknown backpressure policy %q", s)
	}
}

// Config holds stream configuration.
type Config struct {
	// Buffer is the queue capacity (default DefaultBuffer).
	Buffer int
	// Policy applies when the queue is full.
	Policy Policy
	// Name labels metrics.
	Name string
}

// DefaultConfig returns a blocking stream with the default buffer.
func DefaultConfig() Config {
	return Config{Buffer: DefaultBuffer, Policy: PolicyBlock, Name: "stream"}
}

// Emit hands one item to the consumer.
type Emit[T any] func(T) error

// Stream is the consumer side of a running producer.
type Stream[T any] struct {
	ch      chan T
	done    chan struct{}
	err     error
	dropped atomic.Int64
	config  Config
	logger  zerolog.Logger
}

// Go starts produce in a new goroutine and returns its stream. The channel
// is closed when produce returns, panics, or stops on cancellation.
func Go[T any](ctx context.Context, cfg Config, produce func(ctx context.Context, emit Emit[T]) error) *Stream[T] {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Name == "" {
		cfg.Name = "stream"
	}

	s := &Stream[T]{
		ch:     make(chan T, cfg.Buffer),
		done:   make(chan struct{}),
		config: cfg,
		// At most one drop warning per second per stream.
		logger: log.With().
			Str("component", "stream").
			Str("stream", cfg.Name).
			Logger().
			Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second}),
	}
	go s.run(ctx, produce)
	return s
}

func (s *Stream[T]) run(ctx context.Context, produce func(ctx context.Context, emit Emit[T]) error) {
	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("stream producer panic: %v", r)
		}
		close(s.done)
		close(s.ch)
	}()

	err := produce(ctx, s.emit(ctx))
	if err != nil && !isStop(ctx, err) {
		s.err = err
	}
}

func (s *Stream[T]) emit(ctx context.Context) Emit[T] {
	emitted := itemsEmittedTotal.WithLabelValues(s.config.Name)
	dropped := itemsDroppedTotal.WithLabelValues(s.config.Name, s.config.Policy.String())

	return func(v T) error {
		if ctx.Err() != nil {
			return ErrStopped
		}

		switch s.config.Policy {
		case PolicyDropOldest:
			for {
				select {
				case s.ch <- v:
					emitted.Inc()
					return nil
				default:
				}
				select {
				case <-s.ch:
					dropped.Inc()
					s.logDrop()
				default:
				}
			}

		case PolicyReject:
			select {
			case s.ch <- v:
				emitted.Inc()
				return nil
			default:
				dropped.Inc()
				s.logDrop()
				return ErrQueueFull
			}

		default:
			select {
			case s.ch <- v:
				emitted.Inc()
				return nil
			case <-ctx.Done():
				return ErrStopped
			}
		}
	}
}

func (s *Stream[T]) logDrop() {
	n := s.dropped.Add(1)
	s.logger.Warn().
		Str("policy", s.config.Policy.String()).
		Int("buffer", s.config.Buffer).
		Int64("dropped", n).
		Msg("Stream queue full, item dropped")
}

// C returns the channel to consume; it is closed when the producer ends.
func (s *Stream[T]) C() <-chan T {
	return s.ch
}

// Err returns the producer's terminal error once C is closed. Cancellation
// is not an error.
func (s *Stream[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Dropped returns the number of items discarded or rejected because the
// queue was full.
func (s *Stream[T]) Dropped() int64 {
	return s.dropped.Load()
}

// Collect reads s until it is closed and returns the items with the
// producer's error. After ctx is cancelled remaining items are drained and
// discarded so the producer can finish.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	items := make([]T, 0)
	for {
		select {
		case v, ok := <-s.C():
			if !ok {
				return items, s.Err()
			}
			items = append(items, v)
		case <-ctx.Done():
			for range s.C() {
			}
			return items, s.Err()
		}
	}
}

// FromSlice streams items in order.
func FromSlice[T any](ctx context.Context, cfg Config, items []T) *Stream[T] {
	return Go(ctx, cfg, func(ctx context.Context, emit Emit[T]) error {
		for _, item := range items {
			if err := emit(item); err != nil {
				return err
			}
		}
		return nil
	})
}

// isStop reports whether err only signals a cooperative stop.
func isStop(ctx context.Context, err error) bool {
	if errors.Is(err, ErrStopped) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
