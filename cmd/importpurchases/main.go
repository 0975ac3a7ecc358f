// Command importpurchases loads purchase invoice lines from an .xlsx file and
// recomputes the balance stock. The whole file is rejected if any row is invalid.
// Usage: importpurchases <file.xlsx> [sheet]
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/domain"
	"stockledger/internal/logging"
	"stockledger/internal/purchaseimport"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: importpurchases <file.xlsx> [sheet]")
	}
	sheet := ""
	if len(args) == 2 {
		sheet = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cfg.Log)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	inputs, err := purchaseimport.Read(f, sheet)
	if err != nil {
		return err
	}
	logger.WithField("rows", len(inputs)).Info("spreadsheet parsed")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	inserted, err := a.Ledger.ImportPurchases(ctx, inputs, domain.SourceImport)
	if err != nil {
		return fmt.Errorf("imported %d of %d rows: %w", inserted, len(inputs), err)
	}
	rows, err := a.Ledger.ListBalanceStock(ctx)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"inserted": inserted, "products": len(rows)}).Info("purchases imported")
	return nil
}
