package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sternrassler/shopping-content-client/internal/config"
	"github.com/Sternrassler/shopping-content-client/pkg/batch"
	"github.com/Sternrassler/shopping-content-client/pkg/content"
	"github.com/Sternrassler/shopping-content-client/pkg/shopping"
	"github.com/Sternrassler/shopping-content-client/pkg/stream"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// report is the outcome of one demo run.
type report struct {
	RunID    string                                 `json:"runId"`
	Merchant *shopping.MerchantConfig               `json:"merchant"`
	Account  *content.Account                       `json:"account,omitempty"`
	Shipping *content.ShippingSettings              `json:"shipping,omitempty"`
	Products []*content.Product                     `json:"products"`
	Statuses []batch.Result[*content.ProductStatus] `json:"statuses"`
	Issues   []*content.ProductStatus               `json:"issues"`
	// Dropped counts items lost to the stream policy.
	Dropped int64 `json:"dropped"`
}

func run(ctx context.Context, client *content.Client, cfg config.Config, logger zerolog.Logger) (*report, error) {
	merchants := shopping.NewMerchantService(client, logger)
	products := shopping.NewProductService(client, cfg.Shopping(), logger)

	mc, err := merchants.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve merchant: %w", err)
	}
	if mc.MerchantID != client.MerchantID() {
		logger.Warn().
			Uint64("configured", client.MerchantID()).
			Uint64("resolved", mc.MerchantID).
			Msg("Configured merchant differs from the authenticated account")
	}

	rep := &report{Merchant: mc}

	if rep.Account, err = merchants.Account(ctx); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if rep.Shipping, err = merchants.ShippingSettings(ctx); err != nil {
		return nil, fmt.Errorf("get shipping settings: %w", err)
	}

	listing := products.Stream(ctx)
	if rep.Products, err = stream.Collect(ctx, listing); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	rep.Dropped += listing.Dropped()

	ids := lo.Map(lo.Subset(rep.Products, 0, uint(cfg.Take)), func(p *content.Product, _ int) string {
		return p.ID
	})
	if rep.Statuses, err = lookupStatuses(ctx, products, ids); err != nil {
		return nil, fmt.Errorf("product statuses: %w", err)
	}

	if rep.Issues, err = products.WithIssues(ctx); err != nil {
		return nil, fmt.Errorf("product issues: %w", err)
	}

	return rep, nil
}

// lookupStatuses feeds ids into a status stream while consuming its results.
func lookupStatuses(ctx context.Context, svc *shopping.ProductService, ids []string) ([]batch.Result[*content.ProductStatus], error) {
	in := make(chan batch.Entry[string])
	results := svc.StatusStream(ctx, in)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(in)
		for i, id := range ids {
			select {
			case in <- batch.Entry[string]{BatchID: int64(i), Method: batch.MethodGet, Item: id}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var out []batch.Result[*content.ProductStatus]
	g.Go(func() error {
		var err error
		out, err = stream.Collect(gctx, results)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Print writes a human readable summary.
func (r *report) Print(w io.Writer) {
	fmt.Fprintf(w, "Merchant %d (MCA: %t)\n", r.Merchant.MerchantID, r.Merchant.IsMCA)
	if r.Account != nil {
		fmt.Fprintf(w, "Account: %s\n", r.Account.Name)
	}
	if r.Shipping != nil {
		fmt.Fprintf(w, "Shipping services: %d\n", len(r.Shipping.Services))
	}
	fmt.Fprintf(w, "Products: %d\n", len(r.Products))

	for _, res := range r.Statuses {
		if !res.OK() {
			fmt.Fprintf(w, "  [%d] error: %s\n", res.BatchID, res.FlatError())
			continue
		}
		if res.Value == nil {
			continue
		}
		fmt.Fprintf(w, "  [%d] %s: %d destinations, %d issues\n",
			res.BatchID, res.Value.ProductID, len(res.Value.DestinationStatuses), len(res.Value.ItemLevelIssues))
	}

	fmt.Fprintf(w, "Products with issues: %d\n", len(r.Issues))
	for _, st := range r.Issues {
		for _, issue := range st.ItemLevelIssues {
			fmt.Fprintf(w, "  %s: %s (%s)\n", st.ProductID, issue.Description, issue.Servability)
		}
	}
	if r.Dropped > 0 {
		fmt.Fprintf(w, "Dropped items: %d\n", r.Dropped)
	}
}

// Save writes the report sections as indented JSON files into dir.
func (r *report) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}

	files := map[string]any{
		"merchant.json": r.Merchant,
		"shipping.json": r.Shipping,
		"products.json": r.Products,
		"statuses.json": r.Statuses,
		"issues.json":   r.Issues,
	}
	for _, name := range lo.Keys(files) {
		data, err := json.MarshalIndent(files[name], "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
