// Command sync runs one POS synchronization cycle and prints the result.
// Usage: sync <salon|customer> [start_date end_date]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/domain"
	"stockledger/internal/logging"
	"stockledger/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("usage: sync <salon|customer> [start_date end_date]")
	}
	classification, ok := domain.ParseClassification(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidClassification, args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(cfg.Log)

	var window domain.DateWindow
	if len(args) == 3 {
		loc := cfg.Sync.Location()
		if window.Start, err = time.ParseInLocation(service.DateLayout, args[1], loc); err != nil {
			return fmt.Errorf("%w: start_date: %v", domain.ErrInvalidDateRange, err)
		}
		if window.End, err = time.ParseInLocation(service.DateLayout, args[2], loc); err != nil {
			return fmt.Errorf("%w: end_date: %v", domain.ErrInvalidDateRange, err)
		}
	}

	// a signal stops the run; what was already written is still reconciled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.Sync.Sync(ctx, classification, window)
	if result == nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		return encErr
	}
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("sync finished with status %s", result.Status)
	}
	return nil
}
