// Package pagination drains cursor-paginated Content API collections.
//
// List endpoints return at most maxResults items together with a
// nextPageToken; the collection ends at the first page without one. Pages
// are fetched strictly one after another because every request needs the
// cursor of the previous response.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(func(ctx context.Context, req pagination.PageRequest) (*pagination.Page[*content.Product], error) {
//		resp, err := client.ListProducts(ctx, req.PageSize, req.Cursor)
//		if err != nil {
//			return nil, err
//		}
//		return &pagination.Page[*content.Product]{Items: resp.Resources, NextCursor: resp.NextPageToken}, nil
//	}, pagination.DefaultConfig())
//	products, err := fetcher.FetchAll(ctx)
//
// The fetcher:
//   - Sends the first request without a cursor
//   - Keeps going while a cursor is returned, even across empty pages
//   - Fails the whole walk on the first request error (no retries)
//   - Treats context cancellation as a clean stop
package pagination
