package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the page size requested when none is configured.
const DefaultPageSize = 50

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopping_pages_fetched_total",
	Help: "Total pages fetched by resource",
}, []string{"resource"})

// ErrTooManyPages is returned when a walk exceeds Config.MaxPages.
var ErrTooManyPages = errors.New("too many pages")

// Config holds fetcher configuration
type Config struct {
	// PageSize is the maximum number of items requested per page
	PageSize int
	// MaxPages stops a walk that keeps returning cursors (0 = unlimited)
	MaxPages int
	// Resource labels logs and metrics (e.g. "products")
	Resource string
}

// DefaultConfig returns the default fetcher configuration
func DefaultConfig() Config {
	return Config{
		PageSize: DefaultPageSize,
		Resource: "unknown",
	}
}

// PageRequest asks for one page. An empty Cursor requests the first page.
type PageRequest struct {
	PageSize int
	Cursor   string
}

// Page is one page of results. An empty NextCursor marks the last page; a
// page with a cursor may still hold no items.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// PageFunc fetches a single page.
type PageFunc[T any] func(ctx context.Context, req PageRequest) (*Page[T], error)

// Fetcher drains a cursor-paginated collection one page at a time.
type Fetcher[T any] struct {
	fetch  PageFunc[T]
	config Config
}

// NewFetcher creates a new fetcher
func NewFetcher[T any](fetch PageFunc[T], config Config) *Fetcher[T] {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Resource == "" {
		config.Resource = "unknown"
	}

	return &Fetcher[T]{
		fetch:  fetch,
		config: config,
	}
}

// FetchAll returns every item of every page, in page order. A cancelled
// context stops the walk without error and returns the items gathered so far.
func (f *Fetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	items := make([]T, 0)
	err := f.Each(ctx, func(item T) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Each walks all pages and calls fn for every item in order. An error from
// fn stops the walk and is returned unchanged. The context is checked before
// every page request; cancellation ends the walk with a nil error.
func (f *Fetcher[T]) Each(ctx context.Context, fn func(T) error) error {
	start := time.Now()
	resource := f.config.Resource

	var (
		cursor string
		pages  int
		items  int
	)

	for {
		if ctx.Err() != nil {
			log.Debug().
				Str("resource", resource).
				Int("pages", pages).
				Int("items", items).
				Msg("Page walk stopped (context cancelled)")
			return nil
		}

		if f.config.MaxPages > 0 && pages >= f.config.MaxPages {
			return fmt.Errorf("%s: %w (limit %d)", resource, ErrTooManyPages, f.config.MaxPages)
		}

		page, err := f.fetch(ctx, PageRequest{PageSize: f.config.PageSize, Cursor: cursor})
		if err != nil {
			if ctx.Err() != nil {
				log.Debug().
					Str("resource", resource).
					Int("page", pages+1).
					Msg("Page request aborted (context cancelled)")
				return nil
			}
			log.Warn().
				Err(err).
				Str("resource", resource).
				Int("page", pages+1).
				Msg("Page fetch failed")
			return fmt.Errorf("fetch %s page %d: %w", resource, pages+1, err)
		}
		if page == nil {
			page = &Page[T]{}
		}

		pages++
		pagesFetchedTotal.WithLabelValues(resource).Inc()

		log.Debug().
			Str("resource", resource).
			Int("page", pages).
			Int("items", len(page.Items)).
			Bool("has_next", page.NextCursor != "").
			Msg("Page fetched")

		for _, item := range page.Items {
			if err := fn(item); err != nil {
				return err
			}
			items++
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	log.Info().
		Str("resource", resource).
		Int("pages", pages).
		Int("items", items).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return nil
}
