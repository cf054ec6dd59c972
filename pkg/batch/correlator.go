// Package batch turns lists of operations into custombatch requests and
// correlates the unordered response entries back to the submitted ones by
// their caller-assigned batch id.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultMaxEntries is the largest number of entries sent in one request.
// Larger batches are split into several requests.
const DefaultMaxEntries = 1000

// Prometheus metrics for batch correlation.
var (
	batchEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopping_batch_entries_total",
		Help: "Total batch entries by response kind and outcome (ok, error, missing)",
	}, []string{"kind", "outcome"})

	batchKindMismatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopping_batch_kind_mismatch_total",
		Help: "Total batch responses whose kind did not match the expected kind",
	}, []string{"kind"})
)

// Common errors returned by the correlator.
var (
	// ErrDuplicateBatchID is returned when two entries share a batch id.
	ErrDuplicateBatchID = errors.New("duplicate batch id")

	// ErrInvalidMethod is returned for entries with an unknown method.
	ErrInvalidMethod = errors.New("invalid batch method")

	// ErrUnexpectedKind is wrapped by KindError.
	ErrUnexpectedKind = errors.New("unexpected batch response kind")

	// ErrMissingResult is returned in strict mode when submitted ids are
	// absent from the response.
	ErrMissingResult = errors.New("missing batch result")
)

// KindError reports a response whose kind discriminator is not the expected one.
type KindError struct {
	Expected string
	Got      string
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%v: got %q, want %q", ErrUnexpectedKind, e.Got, e.Expected)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *KindError) Unwrap() error {
	return ErrUnexpectedKind
}

// Config holds correlator configuration.
type Config struct {
	// ExpectedKind is the kind every response must carry. Empty disables the check.
	ExpectedKind string

	// MaxEntries caps the entries per request (default DefaultMaxEntries).
	MaxEntries int

	// Strict turns kind mismatches and missing results into errors. Without
	// it they are logged and counted, and the affected entries are left out
	// of the result.
	Strict bool
}

// Correlator executes batches through a Submitter.
type Correlator[T, R any] struct {
	sub    Submitter[T, R]
	config Config
	logger zerolog.Logger
}

// NewCorrelator creates a new correlator.
func NewCorrelator[T, R any](sub Submitter[T, R], cfg Config, logger zerolog.Logger) *Correlator[T, R] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	return &Correlator[T, R]{
		sub:    sub,
		config: cfg,
		logger: logger.With().Str("component", "batch").Logger(),
	}
}

// Execute submits entries and returns one result per submitted batch id.
// Submission failures are fatal. Cancellation stops before the next request
// and returns the results collected so far without error.
func (c *Correlator[T, R]) Execute(ctx context.Context, entries []Entry[T]) (map[int64]Result[R], error) {
	if err := validate(entries); err != nil {
		return nil, err
	}

	results := make(map[int64]Result[R], len(entries))
	if len(entries) == 0 {
		return results, nil
	}

	start := time.Now()
	kind := c.config.ExpectedKind
	var missing []int64

	chunks := lo.Chunk(entries, c.config.MaxEntries)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			c.logger.Debug().Int("chunk", i+1).Msg("Batch stopped (context cancelled)")
			return results, nil
		}

		resp, err := c.sub.Submit(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return results, nil
			}
			return nil, fmt.Errorf("submit batch chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if resp == nil {
			resp = &Response[R]{}
		}

		if kind != "" && resp.Kind != kind {
			batchKindMismatchTotal.WithLabelValues(kind).Inc()
			c.logger.Error().
				Str("kind", resp.Kind).
				Str("expected_kind", kind).
				Int("entries", len(chunk)).
				Msg("Unexpected batch response kind")
			if c.config.Strict {
				return nil, &KindError{Expected: kind, Got: resp.Kind}
			}
			continue
		}

		missing = append(missing, c.correlate(chunk, resp, results)...)
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		if c.config.Strict {
			return nil, fmt.Errorf("%w: batch ids %v", ErrMissingResult, missing)
		}
	}

	c.logger.Info().
		Str("kind", kind).
		Int("entries", len(entries)).
		Int("results", len(results)).
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results, nil
}

// correlate indexes the response entries of one chunk into results and
// returns the submitted ids that got no answer.
func (c *Correlator[T, R]) correlate(chunk []Entry[T], resp *Response[R], results map[int64]Result[R]) []int64 {
	kind := c.config.ExpectedKind
	submitted := lo.SliceToMap(chunk, func(e Entry[T]) (int64, struct{}) {
		return e.BatchID, struct{}{}
	})

	for _, r := range resp.Entries {
		if _, ok := submitted[r.BatchID]; !ok {
			c.logger.Warn().Int64("batch_id", r.BatchID).Msg("Ignoring result for unknown batch id")
			continue
		}
		if _, seen := results[r.BatchID]; seen {
			c.logger.Warn().Int64("batch_id", r.BatchID).Msg("Ignoring repeated result for batch id")
			continue
		}

		outcome := "ok"
		if !r.OK() {
			var zero R
			r.Value = zero
			outcome = "error"
		}
		results[r.BatchID] = r
		batchEntriesTotal.WithLabelValues(kind, outcome).Inc()

		c.logger.Debug().
			Int64("batch_id", r.BatchID).
			Str("outcome", outcome).
			Msg("Batch entry correlated")
	}

	var missing []int64
	for _, e := range chunk {
		if _, ok := results[e.BatchID]; ok {
			continue
		}
		missing = append(missing, e.BatchID)
		batchEntriesTotal.WithLabelValues(kind, "missing").Inc()
		c.logger.Warn().Int64("batch_id", e.BatchID).Str("kind", kind).Msg("Batch entry missing from response")
	}
	return missing
}

// ExecuteStream drains in until it is closed, then executes the collected
// entries as one logical batch. Cancellation while draining submits nothing
// and returns an empty result.
func (c *Correlator[T, R]) ExecuteStream(ctx context.Context, in <-chan Entry[T]) (map[int64]Result[R], error) {
	var entries []Entry[T]
	for {
		select {
		case <-ctx.Done():
			return map[int64]Result[R]{}, nil
		case e, ok := <-in:
			if !ok {
				return c.Execute(ctx, entries)
			}
			entries = append(entries, e)
		}
	}
}

func validate[T any](entries []Entry[T]) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if !e.Method.Valid() {
			return fmt.Errorf("%w %q (batch id %d)", ErrInvalidMethod, e.Method, e.BatchID)
		}
		if _, dup := seen[e.BatchID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateBatchID, e.BatchID)
		}
		seen[e.BatchID] = struct{}{}
	}
	return nil
}
