package content

import (
	"context"
	"net/http"
	"net/url"
)

// ListProductStatuses fetches one page of product statuses.
func (c *Client) ListProductStatuses(ctx context.Context, maxResults int, pageToken string) (*ProductStatusesListResponse, error) {
	var out ProductStatusesListResponse
	if err := c.Do(ctx, "productstatuses.list", http.MethodGet, c.merchantPath("productstatuses"), pageQuery(maxResults, pageToken), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProductStatus fetches the status of a single product.
func (c *Client) GetProductStatus(ctx context.Context, productID string) (*ProductStatus, error) {
	var out ProductStatus
	if err := c.Do(ctx, "productstatuses.get", http.MethodGet, c.merchantPath("productstatuses/%s", url.PathEscape(productID)), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CustomBatchProductStatuses looks up several product statuses in one request.
// Entries without a merchant id are sent for the client's merchant.
func (c *Client) CustomBatchProductStatuses(ctx context.Context, req *ProductStatusesCustomBatchRequest) (*ProductStatusesCustomBatchResponse, error) {
	for _, e := range req.Entries {
		if e.MerchantID == 0 {
			e.MerchantID = c.config.MerchantID
		}
	}

	var out ProductStatusesCustomBatchResponse
	if err := c.Do(ctx, "productstatuses.custombatch", http.MethodPost, "productstatuses/batch", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
