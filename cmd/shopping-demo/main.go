// Command shopping-demo walks a Merchant Center account: it resolves the
// merchant, reads its shipping settings, streams all products, looks up the
// status of the first few and reports products with item-level issues.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/shopping-content-client/internal/config"
	"github.com/Sternrassler/shopping-content-client/pkg/auth"
	"github.com/Sternrassler/shopping-content-client/pkg/content"
	"github.com/Sternrassler/shopping-content-client/pkg/logging"
	"github.com/Sternrassler/shopping-content-client/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(cfg.Logging())
	runID := uuid.NewString()
	logger := logging.NewLogger("demo").With().Str("run_id", runID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, runID, logger); err != nil {
		logger.Error().Err(err).Msg("Demo failed")
		os.Exit(1)
	}
}

func execute(ctx context.Context, cfg config.Config, runID string, logger zerolog.Logger) error {
	authenticator := auth.NewAuthenticator(cfg.CredentialBytes, logger)
	httpClient, err := authenticator.HTTPClient(ctx, auth.ContentScope, cfg.Timeout)
	if err != nil {
		return err
	}

	client, err := content.New(cfg.Content(httpClient))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	defer stopMetrics()

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(metricsCtx, cfg.MetricsAddr, logger)
		})
	}

	g.Go(func() error {
		defer stopMetrics()

		rep, err := run(gctx, client, cfg, logger)
		if err != nil {
			return err
		}
		rep.RunID = runID
		rep.Print(os.Stdout)

		if cfg.SaveDir != "" {
			return rep.Save(cfg.SaveDir)
		}
		return nil
	})

	return g.Wait()
}
