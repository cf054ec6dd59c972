// Package config loads the process configuration from defaults, a .env
// file, command line flags and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/Sternrassler/shopping-content-client/pkg/batch"
	"github.com/Sternrassler/shopping-content-client/pkg/content"
	"github.com/Sternrassler/shopping-content-client/pkg/logging"
	"github.com/Sternrassler/shopping-content-client/pkg/shopping"
	"github.com/Sternrassler/shopping-content-client/pkg/stream"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// MaxPageSize is the largest maxResults the list endpoints accept.
const MaxPageSize = 250

// Config holds the process configuration.
type Config struct {
	// Merchant
	MerchantID      uint64 `env:"SHOPPING_MERCHANT_ID"`
	MaxListPageSize int    `env:"SHOPPING_MAX_LIST_PAGE_SIZE"`

	// Credentials: a key file path, or the key JSON itself.
	CredentialPath string `env:"SHOPPING_SERVICE_ACCOUNT_CREDENTIAL_PATH"`
	CredentialJSON string `env:"SHOPPING_SERVICE_ACCOUNT_CREDENTIAL_JSON"`
	// CredentialBytes is derived from CredentialPath or CredentialJSON by Load.
	CredentialBytes []byte

	// Transport
	BaseURL   string        `env:"SHOPPING_BASE_URL"`
	UserAgent string        `env:"SHOPPING_USER_AGENT"`
	Timeout   time.Duration `env:"SHOPPING_TIMEOUT"`

	// Batch / stream
	MaxBatchEntries int    `env:"SHOPPING_MAX_BATCH_ENTRIES"`
	StrictBatchKind bool   `env:"SHOPPING_STRICT_BATCH_KIND"`
	StreamBuffer    int    `env:"SHOPPING_STREAM_BUFFER"`
	StreamPolicy    string `env:"SHOPPING_STREAM_POLICY"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"`
	LogPretty bool   `env:"LOG_PRETTY"`

	// Demo
	SaveDir     string `env:"SHOPPING_SAVE_DIR"`
	Take        int    `env:"SHOPPING_TAKE"`
	MetricsAddr string `env:"SHOPPING_METRICS_ADDR"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		MaxListPageSize: 50,
		BaseURL:         content.DefaultBaseURL,
		UserAgent:       "shopping-content-client/1.0",
		Timeout:         30 * time.Second,
		MaxBatchEntries: batch.DefaultMaxEntries,
		StreamBuffer:    stream.DefaultBuffer,
		StreamPolicy:    "block",
		LogLevel:        string(logging.LevelInfo),
		Take:            10,
	}
}

// Load builds the configuration: defaults, then envFiles (".env" when none
// are given; missing files are skipped), then flags from args, then the
// process environment, which wins. The env files never modify the process
// environment. Credentials are read last and the result is validated.
func Load(args []string, envFiles ...string) (Config, error) {
	cfg := Default()

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return Config{}, err
	}
	// .env values become the flag defaults.
	if err := env.Parse(&cfg, env.Options{Environment: dotenv}); err != nil {
		return Config{}, fmt.Errorf("parse env files: %w", err)
	}

	flags := pflag.NewFlagSet("shopping", pflag.ContinueOnError)
	flags.Uint64Var(&cfg.MerchantID, "merchant-id", cfg.MerchantID, "Merchant Center account id (env: SHOPPING_MERCHANT_ID)")
	flags.IntVar(&cfg.MaxListPageSize, "page-size", cfg.MaxListPageSize, "Items per list page, 1-250 (env: SHOPPING_MAX_LIST_PAGE_SIZE)")
	flags.StringVar(&cfg.CredentialPath, "credentials", cfg.CredentialPath, "Service account key file (env: SHOPPING_SERVICE_ACCOUNT_CREDENTIAL_PATH)")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Content API base URL (env: SHOPPING_BASE_URL)")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header (env: SHOPPING_USER_AGENT)")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout (env: SHOPPING_TIMEOUT)")
	flags.IntVar(&cfg.MaxBatchEntries, "batch-size", cfg.MaxBatchEntries, "Entries per custombatch request (env: SHOPPING_MAX_BATCH_ENTRIES)")
	flags.BoolVar(&cfg.StrictBatchKind, "strict-batch", cfg.StrictBatchKind, "Fail on unexpected batch responses (env: SHOPPING_STRICT_BATCH_KIND)")
	flags.IntVar(&cfg.StreamBuffer, "stream-buffer", cfg.StreamBuffer, "Stream queue capacity (env: SHOPPING_STREAM_BUFFER)")
	flags.StringVar(&cfg.StreamPolicy, "stream-policy", cfg.StreamPolicy, "Full queue policy: block, drop_oldest, reject (env: SHOPPING_STREAM_POLICY)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (env: LOG_LEVEL)")
	flags.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "Human readable logs (env: LOG_PRETTY)")
	flags.StringVar(&cfg.SaveDir, "save-dir", cfg.SaveDir, "Write demo results as JSON into this directory (env: SHOPPING_SAVE_DIR)")
	flags.IntVar(&cfg.Take, "take", cfg.Take, "Products whose status is looked up in the demo (env: SHOPPING_TAKE)")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve /metrics on this address (env: SHOPPING_METRICS_ADDR)")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	// Environment has the highest priority.
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	switch {
	case cfg.CredentialJSON != "":
		cfg.CredentialBytes = []byte(cfg.CredentialJSON)
	case cfg.CredentialPath != "":
		data, err := os.ReadFile(cfg.CredentialPath)
		if err != nil {
			return Config{}, fmt.Errorf("read credentials: %w", err)
		}
		cfg.CredentialBytes = data
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readEnvFiles merges envFiles without touching the process environment.
// The first file defining a key wins; missing files are skipped.
func readEnvFiles(files []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
		for k, v := range values {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.MerchantID == 0 {
		errs = append(errs, errors.New("merchant_id is required"))
	}
	if c.MaxListPageSize < 1 || c.MaxListPageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("max_list_page_size must be between 1 and %d (got %d)", MaxPageSize, c.MaxListPageSize))
	}
	if len(c.CredentialBytes) == 0 {
		errs = append(errs, errors.New("service account credentials are required"))
	}
	if c.UserAgent == "" {
		errs = append(errs, errors.New("user_agent is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive (got %s)", c.Timeout))
	}
	if c.MaxBatchEntries < 1 || c.MaxBatchEntries > batch.DefaultMaxEntries {
		errs = append(errs, fmt.Errorf("max_batch_entries must be between 1 and %d (got %d)", batch.DefaultMaxEntries, c.MaxBatchEntries))
	}
	if c.StreamBuffer < 1 {
		errs = append(errs, fmt.Errorf("stream_buffer must be positive (got %d)", c.StreamBuffer))
	}
	if _, err := stream.ParsePolicy(c.StreamPolicy); err != nil {
		errs = append(errs, err)
	}
	if !logging.LogLevel(c.LogLevel).Valid() {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if c.Take < 0 {
		errs = append(errs, fmt.Errorf("take must not be negative (got %d)", c.Take))
	}

	return errors.Join(errs...)
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Content returns the client configuration using httpClient for requests.
func (c Config) Content(httpClient *http.Client) content.Config {
	return content.Config{
		BaseURL:    c.BaseURL,
		MerchantID: c.MerchantID,
		UserAgent:  c.UserAgent,
		HTTPClient: httpClient,
		Timeout:    c.Timeout,
	}
}

// Shopping returns the service options.
func (c Config) Shopping() shopping.Options {
	policy, _ := stream.ParsePolicy(c.StreamPolicy)
	return shopping.Options{
		MaxListPageSize: c.MaxListPageSize,
		MaxBatchEntries: c.MaxBatchEntries,
		StrictBatchKind: c.StrictBatchKind,
		Stream: stream.Config{
			Buffer: c.StreamBuffer,
			Policy: policy,
		},
	}
}
