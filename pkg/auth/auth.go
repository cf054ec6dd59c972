// Package auth turns service-account credentials into OAuth2 token sources
// and authenticated HTTP clients for the Content API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ContentScope is the OAuth2 scope of the Shopping Content API.
const ContentScope = "https://www.googleapis.com/auth/content"

// ErrAuthentication is returned when credentials are absent or unusable.
var ErrAuthentication = errors.New("authentication failed")

// Authenticator holds the raw service-account key of one session.
type Authenticator struct {
	credentials []byte
	logger      zerolog.Logger
}

// NewAuthenticator creates an Authenticator for a service-account JSON key.
func NewAuthenticator(credentials []byte, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		credentials: credentials,
		logger:      logger.With().Str("component", "auth").Logger(),
	}
}

// AcquireToken returns a token source for scope, ContentScope when empty.
// Tokens are fetched lazily and refreshed by the returned source.
func (a *Authenticator) AcquireToken(ctx context.Context, scope string) (oauth2.TokenSource, error) {
	if scope == "" {
		scope = ContentScope
	}

	if len(a.credentials) == 0 {
		return nil, fmt.Errorf("%w: no service account credentials", ErrAuthentication)
	}

	cfg, err := google.JWTConfigFromJSON(a.credentials, scope)
	if err != nil {
		a.logger.Error().Err(err).Str("scope", scope).Msg("Invalid service account credentials")
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	a.logger.Debug().
		Str("scope", scope).
		Str("client_email", cfg.Email).
		Msg("Service account token source created")

	return oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx)), nil
}

// HTTPClient returns an HTTP client that authorizes every request with a
// token for scope.
func (a *Authenticator) HTTPClient(ctx context.Context, scope string, timeout time.Duration) (*http.Client, error) {
	ts, err := a.AcquireToken(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   http.DefaultTransport,
		},
		Timeout: timeout,
	}, nil
}
