// Command reconcile recomputes the balance stock snapshot from the ledger.
// Usage: go run ./cmd/reconcile
package main

import (
	"context"
	"fmt"
	"log"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cfg.Log)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	snap, err := a.Engine.Recalculate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-40s %12s %14s %14s\n", "PRODUCT", "BALANCE", "TAXABLE", "INVOICE")
	for _, r := range snap.Rows {
		fmt.Printf("%-40s %12.3f %14.2f %14.2f\n", r.ProductName, r.BalanceQty, r.TaxableValue, r.InvoiceValue)
	}
	fmt.Printf("%d products, %d stale rows pruned\n", len(snap.Rows), snap.Pruned)
	if snap.Warning != nil {
		fmt.Println("warning:", snap.Warning)
	}
	return nil
}
