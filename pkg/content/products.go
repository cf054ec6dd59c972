package content

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListProducts fetches one page of the merchant's products. An empty
// pageToken requests the first page.
func (c *Client) ListProducts(ctx context.Context, maxResults int, pageToken string) (*ProductsListResponse, error) {
	var out ProductsListResponse
	if err := c.Do(ctx, "products.list", http.MethodGet, c.merchantPath("products"), pageQuery(maxResults, pageToken), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct fetches a single product by its REST id.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var out Product
	if err := c.Do(ctx, "products.get", http.MethodGet, c.merchantPath("products/%s", url.PathEscape(productID)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InsertProduct inserts or replaces a product and returns the stored version.
func (c *Client) InsertProduct(ctx context.Context, product *Product) (*Product, error) {
	var out Product
	if err := c.Do(ctx, "products.insert", http.MethodPost, c.merchantPath("products"), nil, product, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct deletes a product by its REST id.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	return c.Do(ctx, "products.delete", http.MethodDelete, c.merchantPath("products/%s", url.PathEscape(productID)), nil, nil, nil)
}

// CustomBatchProducts submits several product operations in one request.
// Entries without a merchant id are sent for the client's merchant.
func (c *Client) CustomBatchProducts(ctx context.Context, req *ProductsCustomBatchRequest) (*ProductsCustomBatchResponse, error) {
	for _, e := range req.Entries {
		if e.MerchantID == 0 {
			e.MerchantID = c.config.MerchantID
		}
	}

	var out ProductsCustomBatchResponse
	if err := c.Do(ctx, "products.custombatch", http.MethodPost, "products/batch", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// pageQuery builds the maxResults/pageToken query of list calls.
func pageQuery(maxResults int, pageToken string) url.Values {
	q := url.Values{}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	return q
}
