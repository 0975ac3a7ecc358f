package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// The per-stream not-found errors also match ErrNotFound.
	ErrPurchaseNotFound    = fmt.Errorf("purchase %w", ErrNotFound)
	ErrSaleNotFound        = fmt.Errorf("sale %w", ErrNotFound)
	ErrConsumptionNotFound = fmt.Errorf("consumption %w", ErrNotFound)

	ErrDuplicatePurchase           = errors.New("purchase with this id already exists")
	ErrInvalidInput                = errors.New("invalid input")
	ErrInvalidDateRange            = errors.New("invalid date range")
	ErrInvalidClassification       = errors.New("invalid sync classification")
	ErrItemNormalization           = errors.New("order item could not be normalized")
	ErrUpsertChunk                 = errors.New("upsert chunk failed")
	ErrReconciliationInconsistency = errors.New("ledger inconsistency")
	ErrReconciliationFailed        = errors.New("balance stock reconciliation failed")
	ErrExternalFetch               = errors.New("external order source unavailable")
	ErrSyncInProgress              = errors.New("a sync for this classification is already running")
	ErrLockNotObtained             = errors.New("lock could not be obtained")
)
