package shopping

import (
	"context"
	"slices"

	"github.com/Sternrassler/shopping-content-client/pkg/batch"
	"github.com/Sternrassler/shopping-content-client/pkg/pagination"
	"github.com/Sternrassler/shopping-content-client/pkg/stream"
	"github.com/samber/lo"
)

// fetchStream emits every item of a paginated walk.
func fetchStream[T any](ctx context.Context, cfg stream.Config, f *pagination.Fetcher[T]) *stream.Stream[T] {
	return stream.Go(ctx, cfg, func(ctx context.Context, emit stream.Emit[T]) error {
		return f.Each(ctx, func(item T) error {
			return emit(item)
		})
	})
}

// batchStream executes the entries of in as one batch and emits the results
// ordered by batch id.
func batchStream[T, R any](ctx context.Context, cfg stream.Config, c *batch.Correlator[T, R], in <-chan batch.Entry[T]) *stream.Stream[batch.Result[R]] {
	return stream.Go(ctx, cfg, func(ctx context.Context, emit stream.Emit[batch.Result[R]]) error {
		results, err := c.ExecuteStream(ctx, in)
		if err != nil {
			return err
		}

		ids := lo.Keys(results)
		slices.Sort(ids)
		for _, id := range ids {
			if err := emit(results[id]); err != nil {
				return err
			}
		}
		return nil
	})
}

// numbered turns items into batch entries with ids 0..n-1 in arrival order.
// The returned channel closes when in closes or ctx is cancelled.
func numbered[T any](ctx context.Context, in <-chan T, method batch.Method) <-chan batch.Entry[T] {
	out := make(chan batch.Entry[T])
	go func() {
		defer close(out)
		var id int64
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- batch.Entry[T]{BatchID: id, Method: method, Item: item}:
					id++
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
