package content

import (
	"context"
	"net/http"
)

// AuthInfo returns the accounts the authenticated identity has access to.
func (c *Client) AuthInfo(ctx context.Context) (*AccountsAuthInfoResponse, error) {
	var out AccountsAuthInfoResponse
	if err := c.Do(ctx, "accounts.authinfo", http.MethodGet, "accounts/authinfo", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetShippingSettings fetches the shipping settings of accountID.
func (c *Client) GetShippingSettings(ctx context.Context, accountID uint64) (*ShippingSettings, error) {
	var out ShippingSettings
	if err := c.Do(ctx, "shippingsettings.get", http.MethodGet, c.merchantPath("shippingsettings/%d", accountID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount fetches the account accountID.
func (c *Client) GetAccount(ctx context.Context, accountID uint64) (*Account, error) {
	var out Account
	if err := c.Do(ctx, "accounts.get", http.MethodGet, c.merchantPath("accounts/%d", accountID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
