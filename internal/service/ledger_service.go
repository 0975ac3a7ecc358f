package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/gst"
	"stockledger/internal/ledger"
	"stockledger/internal/port"
	"stockledger/internal/reconcile"
)

// DateLayout is the calendar-day format accepted on every input.
const DateLayout = "2006-01-02"

// Reconciler recomputes the balance stock snapshot.
type Reconciler interface {
	Recalculate(ctx context.Context) (*reconcile.Snapshot, error)
}

// RecordPurchaseInput is the DTO for a manually entered purchase line.
// Tags are shared by gin binding and the service-side validator.
type RecordPurchaseInput struct {
	ID                 *uuid.UUID `json:"id"`
	Date               string     `json:"date" binding:"required,datetime=2006-01-02"`
	ProductName        string     `json:"product_name" binding:"required,max=255"`
	HSNCode            string     `json:"hsn_code" binding:"omitempty,max=16"`
	Units              string     `json:"units" binding:"omitempty,max=32"`
	InvoiceNo          string     `json:"invoice_no" binding:"omitempty,max=100"`
	Quantity           float64    `json:"quantity" binding:"gt=0"`
	MRPInclGST         float64    `json:"mrp_incl_gst" binding:"gte=0"`
	DiscountPercentage float64    `json:"discount_percentage" binding:"gte=0,lte=100"`
	GSTPercentage      float64    `json:"gst_percentage" binding:"gte=0"`
	IsInterstate       bool       `json:"is_interstate"`
}

// LedgerService defines the manual ledger and balance stock contract.
type LedgerService interface {
	// RecordPurchase stores one purchase and recomputes the balance stock.
	RecordPurchase(ctx context.Context, input *RecordPurchaseInput) (*domain.PurchaseEvent, error)
	// ImportPurchases validates every input before writing any of them, then
	// recomputes the balance stock over whatever was written.
	ImportPurchases(ctx context.Context, inputs []RecordPurchaseInput, source domain.EventSource) (int, error)
	ListPurchases(ctx context.Context, filter domain.LedgerFilter) ([]domain.PurchaseEvent, int, error)
	ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.SaleEvent, int, error)
	ListConsumptions(ctx context.Context, filter domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error)
	// Delete removes one event and recomputes the balance stock.
	Delete(ctx context.Context, kind domain.EventKind, id uuid.UUID) error
	RecalculateBalanceStock(ctx context.Context) ([]domain.BalanceStock, error)
	ListBalanceStock(ctx context.Context) ([]domain.BalanceStock, error)
}

type ledgerService struct {
	purchases    port.PurchaseRepository
	sales        port.SaleRepository
	consumptions port.ConsumptionRepository
	balances     port.BalanceStockRepository
	gateway      *ledger.Gateway
	reconciler   Reconciler
	cache        port.BalanceCache
	events       port.EventPublisher
	validate     *validator.Validate
	logger       logrus.FieldLogger
}

// NewLedgerService creates a new LedgerService implementation.
func NewLedgerService(
	purchases port.PurchaseRepository,
	sales port.SaleRepository,
	consumptions port.ConsumptionRepository,
	balances port.BalanceStockRepository,
	gateway *ledger.Gateway,
	reconciler Reconciler,
	cache port.BalanceCache,
	events port.EventPublisher,
	logger logrus.FieldLogger,
) LedgerService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return &ledgerService{
		purchases:    purchases,
		sales:        sales,
		consumptions: consumptions,
		balances:     balances,
		gateway:      gateway,
		reconciler:   reconciler,
		cache:        cache,
		events:       events,
		validate:     v,
		logger:       logger.WithField("component", "service.ledger"),
	}
}

func (s *ledgerService) RecordPurchase(ctx context.Context, input *RecordPurchaseInput) (*domain.PurchaseEvent, error) {
	p, err := s.buildPurchase(input, domain.SourceManual)
	if err != nil {
		return nil, err
	}
	if _, err := s.purchases.Insert(ctx, []domain.PurchaseEvent{*p}); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"purchase_id": p.ID, "product": p.ProductName}).Info("purchase recorded")
	s.changed(ctx, domain.EventKindPurchase, 1, []string{p.ProductName})
	if _, err := s.recompute(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ledgerService) ImportPurchases(ctx context.Context, inputs []RecordPurchaseInput, source domain.EventSource) (int, error) {
	purchases := make([]domain.PurchaseEvent, 0, len(inputs))
	var errs []error
	for i := range inputs {
		p, err := s.buildPurchase(&inputs[i], source)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		purchases = append(purchases, *p)
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	inserted, err := s.gateway.InsertPurchases(ctx, purchases)
	if inserted > 0 {
		s.changed(ctx, domain.EventKindPurchase, inserted, productNames(purchases[:inserted]))
		if _, rerr := s.recompute(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	if err != nil {
		return inserted, err
	}
	s.logger.WithField("inserted", inserted).Info("purchases imported")
	return inserted, nil
}

func (s *ledgerService) buildPurchase(input *RecordPurchaseInput, source domain.EventSource) (*domain.PurchaseEvent, error) {
	input.ProductName = strings.TrimSpace(input.ProductName)
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	date, err := time.Parse(DateLayout, input.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date: %v", domain.ErrInvalidInput, err)
	}
	line, err := gst.ComputeLine(gst.LineInput{
		PriceInclGST:    input.MRPInclGST,
		DiscountPercent: input.DiscountPercentage,
		GSTPercent:      input.GSTPercentage,
		Quantity:        input.Quantity,
		Interstate:      input.IsInterstate,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	if input.ID != nil && *input.ID != uuid.Nil {
		id = *input.ID
	}
	return &domain.PurchaseEvent{
		ID:                 id,
		Date:               date,
		ProductName:        input.ProductName,
		HSNCode:            strings.TrimSpace(input.HSNCode),
		Units:              strings.TrimSpace(input.Units),
		InvoiceNo:          strings.TrimSpace(input.InvoiceNo),
		Quantity:           input.Quantity,
		MRPInclGST:         input.MRPInclGST,
		DiscountPercentage: input.DiscountPercentage,
		GSTPercentage:      input.GSTPercentage,
		CostPerUnitExGST:   line.UnitCostExclGST,
		IsInterstate:       input.IsInterstate,
		Amounts:            line.Amounts,
		Source:             source,
	}, nil
}

func (s *ledgerService) ListPurchases(ctx context.Context, filter domain.LedgerFilter) ([]domain.PurchaseEvent, int, error) {
	return s.purchases.List(ctx, filter)
}

func (s *ledgerService) ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.SaleEvent, int, error) {
	return s.sales.List(ctx, filter)
}

func (s *ledgerService) ListConsumptions(ctx context.Context, filter domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error) {
	return s.consumptions.List(ctx, filter)
}

func (s *ledgerService) Delete(ctx context.Context, kind domain.EventKind, id uuid.UUID) error {
	var err error
	switch kind {
	case domain.EventKindPurchase:
		err = s.purchases.Delete(ctx, id)
	case domain.EventKindSale:
		err = s.sales.Delete(ctx, id)
	case domain.EventKindConsumption:
		err = s.consumptions.Delete(ctx, id)
	default:
		return fmt.Errorf("%w: unknown event kind %q", domain.ErrInvalidInput, kind)
	}
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{"kind": kind, "id": id}).Info("ledger event deleted")
	s.changed(ctx, kind, 1, nil)
	_, err = s.recompute(ctx)
	return err
}

func (s *ledgerService) RecalculateBalanceStock(ctx context.Context) ([]domain.BalanceStock, error) {
	return s.recompute(ctx)
}

// recompute rebuilds the snapshot and primes the cache with it.
func (s *ledgerService) recompute(ctx context.Context) ([]domain.BalanceStock, error) {
	snap, err := s.reconciler.Recalculate(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, snap.Rows); err != nil {
		s.logger.WithError(err).Warn("caching balance stock failed")
	}
	return snap.Rows, nil
}

// ListBalanceStock reads through the snapshot cache.
func (s *ledgerService) ListBalanceStock(ctx context.Context) ([]domain.BalanceStock, error) {
	rows, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("reading balance cache failed")
	} else if ok {
		return rows, nil
	}

	rows, err = s.balances.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, rows); err != nil {
		s.logger.WithError(err).Warn("caching balance stock failed")
	}
	return rows, nil
}

func (s *ledgerService) changed(ctx context.Context, kind domain.EventKind, count int, products []string) {
	s.events.Publish(ctx, domain.LedgerEvent{
		Type:     domain.EventLedgerChanged,
		Kind:     kind,
		Count:    count,
		Products: products,
	})
}

func productNames(ps []domain.PurchaseEvent) []string {
	seen := make(map[string]bool, len(ps))
	var names []string
	for _, p := range ps {
		if !seen[p.ProductName] {
			seen[p.ProductName] = true
			names = append(names, p.ProductName)
		}
	}
	return names
}
