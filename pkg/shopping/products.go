// Package shopping binds the Content API client to pagination, batch
// correlation and streaming: one service per resource.
package shopping

import (
	"context"
	"slices"
	"strconv"

	"github.com/Sternrassler/shopping-content-client/pkg/batch"
	"github.com/Sternrassler/shopping-content-client/pkg/content"
	"github.com/Sternrassler/shopping-content-client/pkg/pagination"
	"github.com/Sternrassler/shopping-content-client/pkg/stream"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Options holds service configuration.
type Options struct {
	// MaxListPageSize is the page size of list calls (1..250).
	MaxListPageSize int
	// MaxPages bounds a single paginated walk (0 = unlimited).
	MaxPages int
	// MaxBatchEntries caps the entries sent per custombatch request.
	MaxBatchEntries int
	// StrictBatchKind turns batch kind mismatches and missing results into errors.
	StrictBatchKind bool
	// Stream configures every stream the service starts.
	Stream stream.Config
}

// DefaultOptions returns the default service options.
func DefaultOptions() Options {
	return Options{
		MaxListPageSize: pagination.DefaultPageSize,
		MaxBatchEntries: batch.DefaultMaxEntries,
		Stream:          stream.DefaultConfig(),
	}
}

// ProductService manages the merchant's products and their statuses.
type ProductService struct {
	client *content.Client
	opts   Options
	logger zerolog.Logger

	upserts  *batch.Correlator[*content.Product, *content.Product]
	deletes  *batch.Correlator[string, string]
	statuses *batch.Correlator[string, *content.ProductStatus]
}

// NewProductService creates a new product service.
func NewProductService(client *content.Client, opts Options, logger zerolog.Logger) *ProductService {
	if opts.MaxListPageSize <= 0 {
		opts.MaxListPageSize = pagination.DefaultPageSize
	}
	if opts.MaxBatchEntries <= 0 {
		opts.MaxBatchEntries = batch.DefaultMaxEntries
	}

	s := &ProductService{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "product-service").Logger(),
	}

	productsBatch := batch.Config{
		ExpectedKind: content.KindProductsCustomBatchResponse,
		MaxEntries:   opts.MaxBatchEntries,
		Strict:       opts.StrictBatchKind,
	}
	statusesBatch := productsBatch
	statusesBatch.ExpectedKind = content.KindProductStatusesCustomBatchResponse

	s.upserts = batch.NewCorrelator[*content.Product, *content.Product](batch.SubmitFunc[*content.Product, *content.Product](s.submitUpserts), productsBatch, logger)
	s.deletes = batch.NewCorrelator[string, string](batch.SubmitFunc[string, string](s.submitDeletes), productsBatch, logger)
	s.statuses = batch.NewCorrelator[string, *content.ProductStatus](batch.SubmitFunc[string, *content.ProductStatus](s.submitStatuses), statusesBatch, logger)

	return s
}

// Get fetches a single product.
func (s *ProductService) Get(ctx context.Context, id string) (*content.Product, error) {
	return s.client.GetProduct(ctx, id)
}

// List returns all products.
func (s *ProductService) List(ctx context.Context) ([]*content.Product, error) {
	return s.productFetcher().FetchAll(ctx)
}

// Stream streams all products page by page.
func (s *ProductService) Stream(ctx context.Context) *stream.Stream[*content.Product] {
	return fetchStream(ctx, s.streamConfig("products"), s.productFetcher())
}

// Upsert inserts or replaces a product.
func (s *ProductService) Upsert(ctx context.Context, p *content.Product) (*content.Product, error) {
	return s.client.InsertProduct(ctx, p)
}

// UpsertBatch inserts or replaces products keyed by batch id.
func (s *ProductService) UpsertBatch(ctx context.Context, products map[int64]*content.Product) (map[int64]batch.Result[*content.Product], error) {
	return s.upserts.Execute(ctx, toEntries(products, batch.MethodInsert))
}

// UpsertStream upserts every product received from in as one batch once in
// is closed. Batch ids are assigned 0..n-1 in arrival order.
func (s *ProductService) UpsertStream(ctx context.Context, in <-chan *content.Product) *stream.Stream[batch.Result[*content.Product]] {
	return batchStream(ctx, s.streamConfig("product_upserts"), s.upserts, numbered(ctx, in, batch.MethodInsert))
}

// Delete deletes a single product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	return s.client.DeleteProduct(ctx, id)
}

// DeleteBatch deletes products keyed by batch id. The result maps every
// answered batch id to its flattened error text, "" for a successful delete.
func (s *ProductService) DeleteBatch(ctx context.Context, ids map[int64]string) (map[int64]string, error) {
	results, err := s.deletes.Execute(ctx, toEntries(ids, batch.MethodDelete))
	if err != nil {
		return nil, err
	}
	return lo.MapValues(results, func(r batch.Result[string], _ int64) string {
		return r.FlatError()
	}), nil
}

// DeleteStream deletes every product id received from in as one batch once
// in is closed. Batch ids are assigned 0..n-1 in arrival order.
func (s *ProductService) DeleteStream(ctx context.Context, in <-chan string) *stream.Stream[batch.Result[string]] {
	return batchStream(ctx, s.streamConfig("product_deletes"), s.deletes, numbered(ctx, in, batch.MethodDelete))
}

// Status fetches the status of a single product.
func (s *ProductService) Status(ctx context.Context, id string) (*content.ProductStatus, error) {
	return s.client.GetProductStatus(ctx, id)
}

// Statuses returns the statuses of all products.
func (s *ProductService) Statuses(ctx context.Context) ([]*content.ProductStatus, error) {
	return s.statusFetcher().FetchAll(ctx)
}

// StreamStatuses streams the statuses of all products page by page.
func (s *ProductService) StreamStatuses(ctx context.Context) *stream.Stream[*content.ProductStatus] {
	return fetchStream(ctx, s.streamConfig("product_statuses"), s.statusFetcher())
}

// StatusBatch looks up the statuses of product ids keyed by batch id.
func (s *ProductService) StatusBatch(ctx context.Context, ids map[int64]string) (map[int64]batch.Result[*content.ProductStatus], error) {
	return s.statuses.Execute(ctx, toEntries(ids, batch.MethodGet))
}

// StatusStream looks up the statuses of every entry received from in as one
// batch once in is closed. Entries must use batch.MethodGet.
func (s *ProductService) StatusStream(ctx context.Context, in <-chan batch.Entry[string]) *stream.Stream[batch.Result[*content.ProductStatus]] {
	return batchStream(ctx, s.streamConfig("product_status_batch"), s.statuses, in)
}

// WithIssues returns the statuses of all products that carry item-level issues.
func (s *ProductService) WithIssues(ctx context.Context) ([]*content.ProductStatus, error) {
	statuses, err := s.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	withIssues := lo.Filter(statuses, func(st *content.ProductStatus, _ int) bool {
		return st.HasIssues()
	})

	s.logger.Info().
		Int("statuses", len(statuses)).
		Int("with_issues", len(withIssues)).
		Msg("Product issues collected")

	return withIssues, nil
}

func (s *ProductService) productFetcher() *pagination.Fetcher[*content.Product] {
	return pagination.NewFetcher(func(ctx context.Context, req pagination.PageRequest) (*pagination.Page[*content.Product], error) {
		resp, err := s.client.ListProducts(ctx, req.PageSize, req.Cursor)
		if err != nil {
			return nil, err
		}
		return &pagination.Page[*content.Product]{Items: resp.Resources, NextCursor: resp.NextPageToken}, nil
	}, s.fetchConfig("products"))
}

func (s *ProductService) statusFetcher() *pagination.Fetcher[*content.ProductStatus] {
	return pagination.NewFetcher(func(ctx context.Context, req pagination.PageRequest) (*pagination.Page[*content.ProductStatus], error) {
		resp, err := s.client.ListProductStatuses(ctx, req.PageSize, req.Cursor)
		if err != nil {
			return nil, err
		}
		return &pagination.Page[*content.ProductStatus]{Items: resp.Resources, NextCursor: resp.NextPageToken}, nil
	}, s.fetchConfig("product_statuses"))
}

func (s *ProductService) fetchConfig(resource string) pagination.Config {
	return pagination.Config{
		PageSize: s.opts.MaxListPageSize,
		MaxPages: s.opts.MaxPages,
		Resource: resource,
	}
}

func (s *ProductService) streamConfig(name string) stream.Config {
	cfg := s.opts.Stream
	cfg.Name = name
	return cfg
}

func (s *ProductService) submitUpserts(ctx context.Context, entries []batch.Entry[*content.Product]) (*batch.Response[*content.Product], error) {
	req := &content.ProductsCustomBatchRequest{
		Entries: lo.Map(entries, func(e batch.Entry[*content.Product], _ int) *content.ProductsCustomBatchRequestEntry {
			return &content.ProductsCustomBatchRequestEntry{BatchID: e.BatchID, Method: string(e.Method), Product: e.Item}
		}),
	}

	resp, err := s.client.CustomBatchProducts(ctx, req)
	if err != nil {
		return nil, err
	}

	return &batch.Response[*content.Product]{
		Kind: resp.Kind,
		Entries: lo.FilterMap(resp.Entries, func(e *content.ProductsCustomBatchResponseEntry, _ int) (batch.Result[*content.Product], bool) {
			if e == nil {
				return batch.Result[*content.Product]{}, false
			}
			return batch.Result[*content.Product]{BatchID: e.BatchID, Value: e.Product, Errors: itemErrors(e.Errors)}, true
		}),
	}, nil
}

// submitDeletes reports the deleted product id as the value of every
// successful entry.
func (s *ProductService) submitDeletes(ctx context.Context, entries []batch.Entry[string]) (*batch.Response[string], error) {
	ids := lo.SliceToMap(entries, func(e batch.Entry[string]) (int64, string) {
		return e.BatchID, e.Item
	})
	req := &content.ProductsCustomBatchRequest{
		Entries: lo.Map(entries, func(e batch.Entry[string], _ int) *content.ProductsCustomBatchRequestEntry {
			return &content.ProductsCustomBatchRequestEntry{BatchID: e.BatchID, Method: string(e.Method), ProductID: e.Item}
		}),
	}

	resp, err := s.client.CustomBatchProducts(ctx, req)
	if err != nil {
		return nil, err
	}

	return &batch.Response[string]{
		Kind: resp.Kind,
		Entries: lo.FilterMap(resp.Entries, func(e *content.ProductsCustomBatchResponseEntry, _ int) (batch.Result[string], bool) {
			if e == nil {
				return batch.Result[string]{}, false
			}
			return batch.Result[string]{BatchID: e.BatchID, Value: ids[e.BatchID], Errors: itemErrors(e.Errors)}, true
		}),
	}, nil
}

func (s *ProductService) submitStatuses(ctx context.Context, entries []batch.Entry[string]) (*batch.Response[*content.ProductStatus], error) {
	req := &content.ProductStatusesCustomBatchRequest{
		Entries: lo.Map(entries, func(e batch.Entry[string], _ int) *content.ProductStatusesCustomBatchRequestEntry {
			return &content.ProductStatusesCustomBatchRequestEntry{BatchID: e.BatchID, Method: string(e.Method), ProductID: e.Item}
		}),
	}

	resp, err := s.client.CustomBatchProductStatuses(ctx, req)
	if err != nil {
		return nil, err
	}

	return &batch.Response[*content.ProductStatus]{
		Kind: resp.Kind,
		Entries: lo.FilterMap(resp.Entries, func(e *content.ProductStatusesCustomBatchResponseEntry, _ int) (batch.Result[*content.ProductStatus], bool) {
			if e == nil {
				return batch.Result[*content.ProductStatus]{}, false
			}
			return batch.Result[*content.ProductStatus]{BatchID: e.BatchID, Value: e.ProductStatus, Errors: itemErrors(e.Errors)}, true
		}),
	}, nil
}

// itemErrors converts the wire error list of a batch entry. An error without
// items is reported under its numeric code.
func itemErrors(errs *content.Errors) []batch.ItemError {
	if errs.Empty() {
		return nil
	}
	items := lo.FilterMap(errs.Errors, func(e *content.ErrorItem, _ int) (batch.ItemError, bool) {
		if e == nil {
			return batch.ItemError{}, false
		}
		return batch.ItemError{Code: e.Reason, Message: e.Message}, true
	})
	if len(items) == 0 {
		return []batch.ItemError{{Code: strconv.FormatInt(errs.Code, 10), Message: errs.Message}}
	}
	return items
}

// toEntries builds batch entries ordered by batch id.
func toEntries[T any](items map[int64]T, method batch.Method) []batch.Entry[T] {
	ids := lo.Keys(items)
	slices.Sort(ids)
	return lo.Map(ids, func(id int64, _ int) batch.Entry[T] {
		return batch.Entry[T]{BatchID: id, Method: method, Item: items[id]}
	})
}
