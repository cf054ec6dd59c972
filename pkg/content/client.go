// Package content provides the HTTP client for the Google Shopping Content API
// (v2.1): wire types, endpoints, error classification and request metrics.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the production endpoint of the Content API v2.1.
const DefaultBaseURL = "https://shoppingcontent.googleapis.com/content/v2.1/"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// Prometheus metrics for Content API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopping_requests_total",
		Help: "Total Content API requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopping_request_duration_seconds",
		Help:    "Content API request duration in seconds by operation",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopping_errors_total",
		Help: "Total Content API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than auth failures.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401 and 403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents response bodies that could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// Client is the Content API client for a single merchant.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, including the version path.
	BaseURL string

	// MerchantID is the Merchant Center account all calls are made for (REQUIRED).
	MerchantID uint64

	// User-Agent header (REQUIRED)
	UserAgent string

	// HTTPClient performs the requests. It is expected to authenticate them,
	// see auth.Authenticator.HTTPClient. A plain client is used when nil.
	HTTPClient *http.Client

	// Timeout applies to the plain client created when HTTPClient is nil.
	Timeout time.Duration
}

// DefaultConfig returns a default configuration for the given merchant.
func DefaultConfig(merchantID uint64) Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		MerchantID: merchantID,
		UserAgent:  "shopping-content-client/1.0",
		Timeout:    30 * time.Second,
	}
}

// New creates a new Content API client.
func New(cfg Config) (*Client, error) {
	if cfg.MerchantID == 0 {
		return nil, fmt.Errorf("merchant id is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := log.With().Str("component", "content-client").Logger()

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/",
		config:     cfg,
		logger:     logger,
	}, nil
}

// MerchantID returns the merchant the client acts for.
func (c *Client) MerchantID() uint64 {
	return c.config.MerchantID
}

// Do performs a single API call. body, when non-nil, is sent as JSON; out,
// when non-nil, receives the decoded JSON response. op names the operation
// for logs and metrics (e.g. "products.list"). Failures are returned as
// *APIError and are never retried.
func (c *Client) Do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(op).Observe(time.Since(startTime).Seconds())
	}()

	endpoint := c.baseURL + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().
		Str("operation", op).
		Str("method", method).
		Msg("Executing Content API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(op, "network_error").Inc()
		if ctx.Err() == nil {
			c.logger.Error().Err(err).Str("operation", op).Msg("HTTP request failed")
		}
		return &APIError{
			ErrorClass: class,
			Operation:  op,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)

	if resp.StatusCode >= 400 {
		class := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(op, status).Inc()

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		message, reasons := parseErrorBody(raw, resp.Status)

		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Str("message", message).
			Msg("Content API request error")

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Operation:  op,
			Message:    message,
			Reasons:    reasons,
		}
		if resp.StatusCode == http.StatusNotFound {
			apiErr.Err = ErrNotFound
		}
		return apiErr
	}

	requestsTotal.WithLabelValues(op, status).Inc()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		c.logger.Error().Err(err).Str("operation", op).Msg("Failed to decode response")
		return &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Operation:  op,
			Message:    "decode response",
			Err:        err,
		}
	}

	return nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrorClassAuth
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// merchantPath prefixes a resource path with the configured merchant id.
func (c *Client) merchantPath(format string, args ...any) string {
	return strconv.FormatUint(c.config.MerchantID, 10) + "/" + fmt.Sprintf(format, args...)
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
