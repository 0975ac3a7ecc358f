// Package reconcile derives the balance stock snapshot from the three ledger
// streams.
package reconcile

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

// LockKey serializes recomputation across the whole system.
const LockKey = "balance-recompute"

// InconsistencyWarning reports products that appear in sales or consumptions
// but were never purchased. They are left out of the snapshot.
type InconsistencyWarning struct {
	Products []string
}

func (w *InconsistencyWarning) Error() string {
	return fmt.Sprintf("%d product(s) have outflows without purchases: %s",
		len(w.Products), strings.Join(w.Products, ", "))
}

func (w *InconsistencyWarning) Unwrap() error { return domain.ErrReconciliationInconsistency }

// Clamp records one negative total that was raised to zero.
type Clamp struct {
	ProductName string
	Field       string
	Value       float64
}

// Snapshot is the outcome of a recomputation.
type Snapshot struct {
	Rows    []domain.BalanceStock
	Clamps  []Clamp
	Warning *InconsistencyWarning
	Pruned  int
}

type totals struct {
	qty     decimal.Decimal
	amounts [5]decimal.Decimal
}

func (t *totals) add(qty float64, a domain.Amounts) {
	t.qty = t.qty.Add(decimal.NewFromFloat(qty))
	for i, v := range amountFields(a) {
		t.amounts[i] = t.amounts[i].Add(decimal.NewFromFloat(v))
	}
}

func (t *totals) sub(o *totals) {
	if o == nil {
		return
	}
	t.qty = t.qty.Sub(o.qty)
	for i := range t.amounts {
		t.amounts[i] = t.amounts[i].Sub(o.amounts[i])
	}
}

var fieldNames = [5]string{"taxable_value", "igst", "cgst", "sgst", "invoice_value"}

func amountFields(a domain.Amounts) [5]float64 {
	return [5]float64{a.TaxableValue, a.IGST, a.CGST, a.SGST, a.InvoiceValue}
}

// Compute is the pure balance derivation. It never touches the store.
func Compute(
	purchases []domain.PurchaseEvent,
	sales []domain.SaleEvent,
	consumptions []domain.ConsumptionEvent,
	now time.Time,
) Snapshot {
	in := make(map[string]*totals)
	latest := make(map[string]domain.PurchaseEvent)
	for _, p := range purchases {
		t, ok := in[p.ProductName]
		if !ok {
			t = &totals{}
			in[p.ProductName] = t
		}
		t.add(p.Quantity, p.Amounts)
		if cur, ok := latest[p.ProductName]; !ok || newer(p, cur) {
			latest[p.ProductName] = p
		}
	}

	out := make(map[string]*totals)
	orphans := make(map[string]struct{})
	outflow := func(name string, qty float64, a domain.Amounts) {
		if _, ok := in[name]; !ok {
			orphans[name] = struct{}{}
			return
		}
		t, ok := out[name]
		if !ok {
			t = &totals{}
			out[name] = t
		}
		t.add(qty, a)
	}
	for _, s := range sales {
		outflow(s.ProductName, s.Quantity, s.Amounts)
	}
	for _, c := range consumptions {
		outflow(c.ProductName, c.Quantity, c.Amounts)
	}

	var snap Snapshot
	for name, t := range in {
		bal := *t
		bal.sub(out[name])

		qty, clamped := clampZero(bal.qty)
		if clamped {
			snap.Clamps = append(snap.Clamps, Clamp{ProductName: name, Field: "balance_qty", Value: bal.qty.InexactFloat64()})
		}
		var vals [5]float64
		for i, d := range bal.amounts {
			v, clamped := clampZero(d)
			if clamped {
				snap.Clamps = append(snap.Clamps, Clamp{ProductName: name, Field: fieldNames[i], Value: d.Round(2).InexactFloat64()})
			}
			vals[i] = v
		}

		lp := latest[name]
		snap.Rows = append(snap.Rows, domain.BalanceStock{
			ProductName: name,
			HSNCode:     lp.HSNCode,
			Units:       lp.Units,
			BalanceQty:  qty,
			Amounts: domain.Amounts{
				TaxableValue: vals[0],
				IGST:         vals[1],
				CGST:         vals[2],
				SGST:         vals[3],
				InvoiceValue: vals[4],
			},
			LastUpdated: now,
		})
	}
	slices.SortFunc(snap.Rows, func(a, b domain.BalanceStock) int { return cmp.Compare(a.ProductName, b.ProductName) })
	slices.SortFunc(snap.Clamps, func(a, b Clamp) int {
		if c := cmp.Compare(a.ProductName, b.ProductName); c != 0 {
			return c
		}
		return cmp.Compare(a.Field, b.Field)
	})

	if len(orphans) > 0 {
		names := make([]string, 0, len(orphans))
		for n := range orphans {
			names = append(names, n)
		}
		slices.Sort(names)
		snap.Warning = &InconsistencyWarning{Products: names}
	}
	return snap
}

func newer(a, b domain.PurchaseEvent) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func clampZero(d decimal.Decimal) (float64, bool) {
	d = d.Round(2)
	if d.IsNegative() {
		return 0, true
	}
	return d.InexactFloat64(), false
}

// Engine recomputes and persists the balance snapshot.
type Engine struct {
	purchases    port.PurchaseRepository
	sales        port.SaleRepository
	consumptions port.ConsumptionRepository
	balances     port.BalanceStockRepository
	locker       port.Locker
	events       port.EventPublisher
	logger       logrus.FieldLogger
	now          func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(
	purchases port.PurchaseRepository,
	sales port.SaleRepository,
	consumptions port.ConsumptionRepository,
	balances port.BalanceStockRepository,
	locker port.Locker,
	events port.EventPublisher,
	logger logrus.FieldLogger,
) *Engine {
	return &Engine{
		purchases:    purchases,
		sales:        sales,
		consumptions: consumptions,
		balances:     balances,
		locker:       locker,
		events:       events,
		logger:       logger.WithField("component", "reconcile"),
		now:          time.Now,
	}
}

// Recalculate rebuilds the snapshot from a full scan of the ledger. Store
// failures wrap domain.ErrReconciliationFailed; an inconsistency is reported
// on the snapshot and never fails the call.
func (e *Engine) Recalculate(ctx context.Context) (*Snapshot, error) {
	release, err := e.locker.Acquire(ctx, LockKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReconciliationFailed, err)
	}
	defer release()

	purchases, err := e.purchases.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading purchases: %w", domain.ErrReconciliationFailed, err)
	}
	sales, err := e.sales.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading sales: %w", domain.ErrReconciliationFailed, err)
	}
	consumptions, err := e.consumptions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading consumptions: %w", domain.ErrReconciliationFailed, err)
	}

	snap := Compute(purchases, sales, consumptions, e.now().UTC())
	for _, c := range snap.Clamps {
		e.logger.WithFields(logrus.Fields{
			"product": c.ProductName,
			"field":   c.Field,
			"value":   c.Value,
		}).Warn("negative balance clamped to zero")
	}
	if snap.Warning != nil {
		e.logger.WithField("products", snap.Warning.Products).Warn(snap.Warning.Error())
	}

	if len(snap.Rows) > 0 {
		if err := e.balances.Upsert(ctx, snap.Rows); err != nil {
			return nil, fmt.Errorf("%w: saving snapshot: %w", domain.ErrReconciliationFailed, err)
		}
	}
	keep := make([]string, len(snap.Rows))
	for i, r := range snap.Rows {
		keep[i] = r.ProductName
	}
	pruned, err := e.balances.DeleteExcept(ctx, keep)
	if err != nil {
		return nil, fmt.Errorf("%w: pruning snapshot: %w", domain.ErrReconciliationFailed, err)
	}
	snap.Pruned = pruned

	e.logger.WithFields(logrus.Fields{
		"products": len(snap.Rows),
		"pruned":   pruned,
		"clamps":   len(snap.Clamps),
	}).Info("balance stock recalculated")

	e.events.Publish(ctx, domain.LedgerEvent{
		Type:     domain.EventBalanceStockUpdated,
		Count:    len(snap.Rows),
		Products: keep,
	})
	return &snap, nil
}
