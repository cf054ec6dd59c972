package shopping

import (
	"context"
	"errors"

	"github.com/Sternrassler/shopping-content-client/pkg/content"
	"github.com/rs/zerolog"
)

// ErrNoAccounts is returned when the authenticated identity cannot access
// any Merchant Center account.
var ErrNoAccounts = errors.New("authenticated user has no access to any Merchant Center accounts")

// MerchantConfig describes the account the authenticated identity acts for.
type MerchantConfig struct {
	MerchantID uint64 `json:"merchantId"`
	// IsMCA is set when MerchantID is a multi-client (aggregator) account.
	IsMCA bool `json:"isMCA"`
	// Accounts lists every identifier returned by authinfo.
	Accounts []*content.AccountIdentifier `json:"accounts,omitempty"`
}

// MerchantService reads account level settings.
type MerchantService struct {
	client *content.Client
	logger zerolog.Logger
}

// NewMerchantService creates a new merchant service.
func NewMerchantService(client *content.Client, logger zerolog.Logger) *MerchantService {
	return &MerchantService{
		client: client,
		logger: logger.With().Str("component", "merchant-service").Logger(),
	}
}

// Config resolves the merchant from authinfo: the first account identifier's
// merchant id, or its aggregator id when it has none.
func (s *MerchantService) Config(ctx context.Context) (*MerchantConfig, error) {
	s.logger.Info().Msg("Retrieving information for authenticated user")

	info, err := s.client.AuthInfo(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]*content.AccountIdentifier, 0, len(info.AccountIdentifiers))
	for _, id := range info.AccountIdentifiers {
		if id != nil {
			accounts = append(accounts, id)
		}
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	first := accounts[0]
	cfg := &MerchantConfig{MerchantID: first.MerchantID, Accounts: accounts}
	if cfg.MerchantID == 0 {
		cfg.MerchantID = first.AggregatorID
	}
	if cfg.MerchantID == 0 {
		return nil, ErrNoAccounts
	}

	// An MCA the user belongs to is listed as the aggregator of an identifier.
	for _, id := range accounts {
		if id.AggregatorID == cfg.MerchantID {
			cfg.IsMCA = true
			break
		}
		if id.MerchantID == cfg.MerchantID {
			break
		}
	}

	s.logger.Info().
		Uint64("merchant_id", cfg.MerchantID).
		Bool("is_mca", cfg.IsMCA).
		Msg("Merchant resolved")

	return cfg, nil
}

// ShippingSettings returns the shipping settings of the configured merchant.
func (s *MerchantService) ShippingSettings(ctx context.Context) (*content.ShippingSettings, error) {
	return s.client.GetShippingSettings(ctx, s.client.MerchantID())
}

// Account returns the configured merchant's account.
func (s *MerchantService) Account(ctx context.Context) (*content.Account, error) {
	return s.client.GetAccount(ctx, s.client.MerchantID())
}
