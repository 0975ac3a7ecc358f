// Package memory is a process-local record store for development and tests.
// It honours the same natural-key and not-found semantics as the PostgreSQL
// repositories.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

// Store holds every table behind one lock.
type Store struct {
	mu           sync.RWMutex
	purchases    map[uuid.UUID]domain.PurchaseEvent
	sales        map[string]domain.SaleEvent
	consumptions map[string]domain.ConsumptionEvent
	balances     map[string]domain.BalanceStock
	runs         []domain.SyncRun
	now          func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		purchases:    make(map[uuid.UUID]domain.PurchaseEvent),
		sales:        make(map[string]domain.SaleEvent),
		consumptions: make(map[string]domain.ConsumptionEvent),
		balances:     make(map[string]domain.BalanceStock),
		now:          time.Now,
	}
}

// Purchases returns the purchase table.
func (s *Store) Purchases() port.PurchaseRepository { return purchaseRepo{s} }

// Sales returns the sale table.
func (s *Store) Sales() port.SaleRepository { return saleRepo{s} }

// Consumptions returns the consumption table.
func (s *Store) Consumptions() port.ConsumptionRepository { return consumptionRepo{s} }

// BalanceStock returns the balance snapshot table.
func (s *Store) BalanceStock() port.BalanceStockRepository { return balanceRepo{s} }

// SyncRuns returns the sync run history.
func (s *Store) SyncRuns() port.SyncRunRepository { return syncRunRepo{s} }

// PingContext always succeeds.
func (s *Store) PingContext(context.Context) error { return nil }

func matches(f domain.LedgerFilter, product string, date time.Time) bool {
	if f.ProductName != "" && f.ProductName != product {
		return false
	}
	if f.From != nil && date.Before(*f.From) {
		return false
	}
	if f.To != nil && date.After(*f.To) {
		return false
	}
	return true
}

func page[T any](rows []T, f domain.LedgerFilter) []T {
	total := len(rows)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return rows[start:end]
}

// newestFirst orders by date, then creation time, then id, all descending.
func newestFirst(aDate, bDate, aCreated, bCreated time.Time, aID, bID uuid.UUID) int {
	if c := bDate.Compare(aDate); c != 0 {
		return c
	}
	if c := bCreated.Compare(aCreated); c != 0 {
		return c
	}
	return cmp.Compare(bID.String(), aID.String())
}

type purchaseRepo struct{ s *Store }

func (r purchaseRepo) Insert(_ context.Context, purchases []domain.PurchaseEvent) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(purchases))
	for _, p := range purchases {
		if _, ok := r.s.purchases[p.ID]; ok || seen[p.ID] {
			return 0, domain.ErrDuplicatePurchase
		}
		seen[p.ID] = true
	}
	now := r.s.now().UTC()
	for _, p := range purchases {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		r.s.purchases[p.ID] = p
	}
	return len(purchases), nil
}

func (r purchaseRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PurchaseEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	return &p, nil
}

func (r purchaseRepo) sorted(f domain.LedgerFilter) []domain.PurchaseEvent {
	out := make([]domain.PurchaseEvent, 0, len(r.s.purchases))
	for _, p := range r.s.purchases {
		if matches(f, p.ProductName, p.Date) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.PurchaseEvent) int {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

func (r purchaseRepo) List(_ context.Context, f domain.LedgerFilter) ([]domain.PurchaseEvent, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.sorted(f)
	return slices.Clone(page(all, f)), len(all), nil
}

func (r purchaseRepo) ListAll(_ context.Context) ([]domain.PurchaseEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(domain.LedgerFilter{}), nil
}

func (r purchaseRepo) Latest(_ context.Context, productName string) (*domain.PurchaseEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.sorted(domain.LedgerFilter{ProductName: productName})
	if len(all) == 0 {
		return nil, domain.ErrPurchaseNotFound
	}
	return &all[0], nil
}

func (r purchaseRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.purchases[id]; !ok {
		return domain.ErrPurchaseNotFound
	}
	delete(r.s.purchases, id)
	return nil
}

type saleRepo struct{ s *Store }

func (r saleRepo) Upsert(_ context.Context, sales []domain.SaleEvent) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now().UTC()
	inserted := 0
	for _, e := range sales {
		k := e.SaleKey()
		if _, ok := r.s.sales[k]; ok {
			continue
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		r.s.sales[k] = e
		inserted++
	}
	return inserted, nil
}

func (r saleRepo) sorted(f domain.LedgerFilter) []domain.SaleEvent {
	out := make([]domain.SaleEvent, 0, len(r.s.sales))
	for _, e := range r.s.sales {
		if matches(f, e.ProductName, e.Date) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domain.SaleEvent) int {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

func (r saleRepo) List(_ context.Context, f domain.LedgerFilter) ([]domain.SaleEvent, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.sorted(f)
	return slices.Clone(page(all, f)), len(all), nil
}

func (r saleRepo) ListAll(_ context.Context) ([]domain.SaleEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(domain.LedgerFilter{}), nil
}

func (r saleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, e := range r.s.sales {
		if e.ID == id {
			delete(r.s.sales, k)
			return nil
		}
	}
	return domain.ErrSaleNotFound
}

type consumptionRepo struct{ s *Store }

func (r consumptionRepo) Upsert(_ context.Context, consumptions []domain.ConsumptionEvent) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now().UTC()
	inserted := 0
	for _, e := range consumptions {
		k := e.ConsumptionKey()
		if _, ok := r.s.consumptions[k]; ok {
			continue
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		r.s.consumptions[k] = e
		inserted++
	}
	return inserted, nil
}

func (r consumptionRepo) sorted(f domain.LedgerFilter) []domain.ConsumptionEvent {
	out := make([]domain.ConsumptionEvent, 0, len(r.s.consumptions))
	for _, e := range r.s.consumptions {
		if matches(f, e.ProductName, e.Date) {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b domain.ConsumptionEvent) int {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return out
}

func (r consumptionRepo) List(_ context.Context, f domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.sorted(f)
	return slices.Clone(page(all, f)), len(all), nil
}

func (r consumptionRepo) ListAll(_ context.Context) ([]domain.ConsumptionEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(domain.LedgerFilter{}), nil
}

func (r consumptionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, e := range r.s.consumptions {
		if e.ID == id {
			delete(r.s.consumptions, k)
			return nil
		}
	}
	return domain.ErrConsumptionNotFound
}

type balanceRepo struct{ s *Store }

func (r balanceRepo) Upsert(_ context.Context, rows []domain.BalanceStock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range rows {
		r.s.balances[b.ProductName] = b
	}
	return nil
}

func (r balanceRepo) List(_ context.Context) ([]domain.BalanceStock, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.BalanceStock, 0, len(r.s.balances))
	for _, b := range r.s.balances {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.BalanceStock) int { return cmp.Compare(a.ProductName, b.ProductName) })
	return out, nil
}

func (r balanceRepo) DeleteExcept(_ context.Context, keep []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	deleted := 0
	for name := range r.s.balances {
		if !slices.Contains(keep, name) {
			delete(r.s.balances, name)
			deleted++
		}
	}
	return deleted, nil
}

type syncRunRepo struct{ s *Store }

func (r syncRunRepo) Create(_ context.Context, run *domain.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.s.now().UTC()
	}
	r.s.runs = append(r.s.runs, *run)
	return nil
}

func (r syncRunRepo) Finish(_ context.Context, run *domain.SyncRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.runs {
		if r.s.runs[i].ID == run.ID {
			if run.FinishedAt == nil {
				now := r.s.now().UTC()
				run.FinishedAt = &now
			}
			r.s.runs[i] = *run
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r syncRunRepo) ListRecent(_ context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.SyncRun, 0, len(r.s.runs))
	for i := len(r.s.runs) - 1; i >= 0; i-- {
		run := r.s.runs[i]
		if classification != "" && run.Classification != classification {
			continue
		}
		out = append(out, run)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
