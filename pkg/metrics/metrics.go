// Package metrics exposes the Prometheus metrics of the Shopping Content client.
// All metrics are defined in their respective packages (content, pagination,
// batch, stream) and registered via promauto on the default registry.
//
// This package provides the /metrics handler and a reference for all
// available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the Prometheus registerer the client packages register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the Prometheus gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Request Metrics (pkg/content):
//   - shopping_requests_total{operation, status} (Counter): Requests by API operation and HTTP status
//   - shopping_request_duration_seconds{operation} (Histogram): Request duration by API operation
//   - shopping_errors_total{class} (Counter): Errors by class (client, auth, server, network, decode)
//
// Pagination Metrics (pkg/pagination):
//   - shopping_pages_fetched_total{resource} (Counter): List pages fetched by resource
//
// Batch Metrics (pkg/batch):
//   - shopping_batch_entries_total{kind, outcome} (Counter): Correlated entries by outcome (ok, error, missing)
//   - shopping_batch_kind_mismatch_total{kind} (Counter): Batch responses with an unexpected kind
//
// Stream Metrics (pkg/stream):
//   - shopping_stream_items_total{stream} (Counter): Items delivered into a stream queue
//   - shopping_stream_dropped_total{stream, policy} (Counter): Items dropped or rejected on a full queue
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(shopping_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(shopping_request_duration_seconds_bucket[5m]))
//
//   # Batch Entry Failure Ratio
//   sum(rate(shopping_batch_entries_total{outcome!="ok"}[5m])) /
//   sum(rate(shopping_batch_entries_total[5m]))
//
//   # Slow Consumers
//   rate(shopping_stream_dropped_total[5m]) > 0

// Handler returns the HTTP handler serving Gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
