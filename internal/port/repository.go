package port

import (
	"context"

	"github.com/google/uuid"

	"stockledger/internal/domain"
)

// PurchaseRepository defines the contract for purchase ledger persistence.
// Purchases are keyed by their caller-supplied id and are never deduplicated.
type PurchaseRepository interface {
	Insert(ctx context.Context, purchases []domain.PurchaseEvent) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseEvent, error)
	List(ctx context.Context, filter domain.LedgerFilter) ([]domain.PurchaseEvent, int, error)
	ListAll(ctx context.Context) ([]domain.PurchaseEvent, error)
	// Latest returns the most recent purchase of a product by date, or
	// domain.ErrNotFound when the product was never purchased.
	Latest(ctx context.Context, productName string) (*domain.PurchaseEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SaleRepository defines the contract for sale ledger persistence.
// Upsert ignores rows whose (invoice_no, product_name) already exists and
// returns the number of rows actually inserted.
type SaleRepository interface {
	Upsert(ctx context.Context, sales []domain.SaleEvent) (int, error)
	List(ctx context.Context, filter domain.LedgerFilter) ([]domain.SaleEvent, int, error)
	ListAll(ctx context.Context) ([]domain.SaleEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConsumptionRepository defines the contract for consumption ledger persistence.
// Upsert ignores rows whose (order_id, product_name) already exists.
type ConsumptionRepository interface {
	Upsert(ctx context.Context, consumptions []domain.ConsumptionEvent) (int, error)
	List(ctx context.Context, filter domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error)
	ListAll(ctx context.Context) ([]domain.ConsumptionEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BalanceStockRepository defines the contract for the derived balance snapshot.
type BalanceStockRepository interface {
	Upsert(ctx context.Context, rows []domain.BalanceStock) error
	List(ctx context.Context) ([]domain.BalanceStock, error)
	// DeleteExcept removes every row whose product is not in keep.
	DeleteExcept(ctx context.Context, keep []string) (int, error)
}

// SyncRunRepository defines the contract for sync run history.
type SyncRunRepository interface {
	Create(ctx context.Context, run *domain.SyncRun) error
	Finish(ctx context.Context, run *domain.SyncRun) error
	// ListRecent returns runs newest first; an empty classification matches all.
	ListRecent(ctx context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error)
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}
