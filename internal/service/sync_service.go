package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"stockledger/internal/domain"
	"stockledger/internal/ledger"
	"stockledger/internal/normalizer"
	"stockledger/internal/ordersource"
	"stockledger/internal/port"
	"stockledger/internal/retry"
)

// SyncOptions tunes the synchronization cycle.
type SyncOptions struct {
	WindowDays int
	Location   *time.Location
	// LockWait bounds how long a sync waits for another instance to finish.
	LockWait    time.Duration
	FetchRetry  retry.Policy
	CallTimeout time.Duration
	// ReconcileTimeout bounds the detached recompute after a cancelled run.
	ReconcileTimeout  time.Duration
	DefaultGST        float64
	FallbackCostRatio float64
	Now               func() time.Time
}

// SyncService defines the POS synchronization contract.
type SyncService interface {
	// Sync runs one end-to-end cycle for a classification. A zero or invalid
	// window is replaced by the trailing default window. When the cycle
	// aborts after it started, the failed result is returned with the error.
	Sync(ctx context.Context, classification domain.Classification, window domain.DateWindow) (*domain.SyncResult, error)
	ListRuns(ctx context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error)
}

type syncService struct {
	source     port.OrderSource
	purchases  port.PurchaseRepository
	gateway    *ledger.Gateway
	reconciler Reconciler
	runs       port.SyncRunRepository
	locker     port.Locker
	events     port.EventPublisher
	opts       SyncOptions
	logger     logrus.FieldLogger
	inflight   singleflight.Group
}

// NewSyncService creates a new SyncService implementation.
func NewSyncService(
	source port.OrderSource,
	purchases port.PurchaseRepository,
	gateway *ledger.Gateway,
	reconciler Reconciler,
	runs port.SyncRunRepository,
	locker port.Locker,
	events port.EventPublisher,
	opts SyncOptions,
	logger logrus.FieldLogger,
) SyncService {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 2 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.ReconcileTimeout <= 0 {
		opts.ReconcileTimeout = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &syncService{
		source:     source,
		purchases:  purchases,
		gateway:    gateway,
		reconciler: reconciler,
		runs:       runs,
		locker:     locker,
		events:     events,
		opts:       opts,
		logger:     logger.WithField("component", "service.sync"),
	}
}

// SyncLockKey is the named lock guarding one classification across instances.
func SyncLockKey(c domain.Classification) string { return "sync:" + string(c) }

func (s *syncService) ListRuns(ctx context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error) {
	return s.runs.ListRecent(ctx, classification, limit)
}

func (s *syncService) Sync(ctx context.Context, classification domain.Classification, window domain.DateWindow) (*domain.SyncResult, error) {
	c, ok := domain.ParseClassification(string(classification))
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidClassification, classification)
	}

	// concurrent calls in this process share the first caller's run
	v, err, _ := s.inflight.Do(string(c), func() (interface{}, error) {
		return s.guarded(ctx, c, window)
	})
	res, _ := v.(*domain.SyncResult)
	return res, err
}

func (s *syncService) guarded(ctx context.Context, c domain.Classification, window domain.DateWindow) (*domain.SyncResult, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	release, err := s.locker.Acquire(lockCtx, SyncLockKey(c))
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrLockNotObtained) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, c)
		}
		return nil, err
	}
	defer release()
	return s.run(ctx, c, window)
}

// ClampWindow returns the window to sync and whether it was defaulted.
func ClampWindow(w domain.DateWindow, now time.Time, loc *time.Location, days int) (domain.DateWindow, bool) {
	today := dayIn(now, loc)
	def := domain.DateWindow{Start: today.AddDate(0, 0, -days), End: today}
	if w.Start.IsZero() || w.End.IsZero() {
		return def, true
	}
	start, end := dayIn(w.Start, loc), dayIn(w.End, loc)
	if end.After(today) || start.After(end) {
		return def, true
	}
	return domain.DateWindow{Start: start, End: end}, false
}

func dayIn(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// lineRef locates the items behind one event's natural key.
type lineRef struct {
	orderID string
	product string
	items   int
}

func (s *syncService) run(ctx context.Context, c domain.Classification, requested domain.DateWindow) (*domain.SyncResult, error) {
	window, defaulted := ClampWindow(requested, s.opts.Now(), s.opts.Location, s.opts.WindowDays)
	run := &domain.SyncRun{
		Classification: c,
		StartDate:      window.Start,
		EndDate:        window.End,
		Status:         domain.SyncRunStatusRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"run_id":         run.ID,
		"classification": c,
		"start_date":     window.Start.Format(DateLayout),
		"end_date":       window.End.Format(DateLayout),
	})
	if defaulted {
		log.Info("sync window defaulted")
	}

	result := &domain.SyncResult{
		RunID:           run.ID,
		Classification:  c,
		Window:          window,
		WindowDefaulted: defaulted,
		Stats:           domain.ProcessingStats{Errors: []domain.ProcessingError{}},
	}

	orders, err := s.fetch(ctx, c, window, log)
	if err != nil {
		result.Status = domain.SyncRunStatusFailed
		if ctx.Err() != nil {
			result.Status = domain.SyncRunStatusIncomplete
			result.Incomplete = true
		}
		s.finish(ctx, run, result, err.Error(), log)
		return result, err
	}

	n := normalizer.New(s.purchases, normalizer.Options{
		DefaultGST:        s.opts.DefaultGST,
		FallbackCostRatio: s.opts.FallbackCostRatio,
		Location:          s.opts.Location,
		Now:               s.opts.Now,
	}, log)

	stats := &result.Stats
	var sales []domain.SaleEvent
	var consumptions []domain.ConsumptionEvent
	saleLines := make(map[string]lineRef)
	consumptionLines := make(map[string]lineRef)
	for _, order := range orders {
		res := n.Normalize(ctx, order)
		stats.Total += res.Items
		stats.Processed += res.Items
		stats.Failed += len(res.Errors)
		for _, ie := range res.Errors {
			stats.Errors = append(stats.Errors, domain.ProcessingError{
				OrderID:     ie.OrderID,
				ProductName: ie.ProductName,
				Stage:       "normalize",
				Message:     ie.Error(),
			})
		}
		for _, e := range res.Sales {
			k := e.SaleKey()
			if _, dup := saleLines[k]; !dup {
				saleLines[k] = lineRef{orderID: e.OrderID, product: e.ProductName, items: res.Lines[k]}
			}
			sales = append(sales, e)
		}
		for _, e := range res.Consumptions {
			k := e.ConsumptionKey()
			if _, dup := consumptionLines[k]; !dup {
				consumptionLines[k] = lineRef{orderID: e.OrderID, product: e.ProductName, items: res.Lines[k]}
			}
			consumptions = append(consumptions, e)
		}
	}

	var changedProducts []string
	for _, w := range []struct {
		rep   ledger.Report
		lines map[string]lineRef
	}{
		{s.gateway.WriteSales(ctx, sales), saleLines},
		{s.gateway.WriteConsumptions(ctx, consumptions), consumptionLines},
	} {
		result.InsertedCount += w.rep.Inserted
		for _, ce := range w.rep.Errors {
			for _, k := range ce.Keys {
				ref := w.lines[k]
				stats.Failed += ref.items
				stats.Errors = append(stats.Errors, domain.ProcessingError{
					OrderID:     ref.orderID,
					ProductName: ref.product,
					Stage:       "upsert",
					Message:     ce.Err.Error(),
				})
			}
		}
		if w.rep.Inserted > 0 {
			s.events.Publish(ctx, domain.LedgerEvent{Type: domain.EventLedgerChanged, Kind: w.rep.Kind, Count: w.rep.Inserted})
			changedProducts = append(changedProducts, productsOf(w.lines, w.rep.FailedKeys)...)
		}
	}
	stats.Succeeded = stats.Processed - stats.Failed
	result.Incomplete = ctx.Err() != nil

	rerr := s.reconcile(ctx, result, log)

	result.Status = status(result)
	result.Success = result.Status == domain.SyncRunStatusSuccess
	summary := summarize(stats.Errors)
	if rerr != nil {
		summary = strings.TrimSpace("reconcile: " + rerr.Error() + "\n" + summary)
	}
	s.finish(ctx, run, result, summary, log)

	s.events.Publish(context.WithoutCancel(ctx), domain.LedgerEvent{
		Type:     domain.EventSyncCompleted,
		Count:    result.InsertedCount,
		Products: changedProducts,
	})
	if rerr != nil {
		return result, rerr
	}
	return result, nil
}

func (s *syncService) fetch(ctx context.Context, c domain.Classification, w domain.DateWindow, log logrus.FieldLogger) ([]domain.Order, error) {
	policy := s.opts.FetchRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Warn("order fetch failed, retrying")
	}

	var orders []domain.Order
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		defer cancel()
		var err error
		orders, err = s.source.FetchOrders(callCtx, domain.OrderQuery{StartDate: w.Start, EndDate: w.End, Classification: c})
		var fe *ordersource.FetchError
		if errors.As(err, &fe) && !fe.Retryable {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, domain.ErrExternalFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrExternalFetch, err)
		}
		log.WithError(err).Error("order fetch failed")
		return nil, err
	}
	log.WithField("orders", len(orders)).Info("orders fetched")
	return orders, nil
}

// reconcile recomputes balances. A cancelled run only recomputes when it
// wrote something, and does so on a detached context.
func (s *syncService) reconcile(ctx context.Context, result *domain.SyncResult, log logrus.FieldLogger) error {
	rctx := ctx
	if result.Incomplete {
		if result.InsertedCount == 0 {
			return nil
		}
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.opts.ReconcileTimeout)
		defer cancel()
	}

	snap, err := s.reconciler.Recalculate(rctx)
	if err != nil {
		result.ReconciliationError = err.Error()
		log.WithError(err).Error("balance recompute after sync failed")
		return err
	}
	result.BalanceProducts = len(snap.Rows)
	if snap.Warning != nil {
		result.Stats.Errors = append(result.Stats.Errors, domain.ProcessingError{
			Stage:   "reconcile",
			Message: snap.Warning.Error(),
		})
	}
	return nil
}

func (s *syncService) finish(ctx context.Context, run *domain.SyncRun, result *domain.SyncResult, summary string, log logrus.FieldLogger) {
	run.Status = result.Status
	run.Total = result.Stats.Total
	run.Processed = result.Stats.Processed
	run.Succeeded = result.Stats.Succeeded
	run.Failed = result.Stats.Failed
	run.InsertedCount = result.InsertedCount
	run.ErrorSummary = summary
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Error("recording sync run failed")
	}
	log.WithFields(logrus.Fields{
		"status":    run.Status,
		"total":     run.Total,
		"succeeded": run.Succeeded,
		"failed":    run.Failed,
		"inserted":  run.InsertedCount,
	}).Info("sync finished")
}

func status(r *domain.SyncResult) domain.SyncRunStatus {
	switch {
	case r.Incomplete:
		return domain.SyncRunStatusIncomplete
	case r.ReconciliationError != "":
		return domain.SyncRunStatusFailed
	case r.Stats.Total > 0 && r.Stats.Succeeded == 0:
		return domain.SyncRunStatusFailed
	case r.Stats.Failed > 0:
		return domain.SyncRunStatusPartial
	default:
		return domain.SyncRunStatusSuccess
	}
}

func summarize(errs []domain.ProcessingError) string {
	const maxLines = 10
	var b strings.Builder
	for i, e := range errs {
		if i == maxLines {
			fmt.Fprintf(&b, "... and %d more", len(errs)-maxLines)
			break
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(e.Stage + ": " + e.Message)
	}
	return b.String()
}

func productsOf(lines map[string]lineRef, failed []string) []string {
	skip := make(map[string]bool, len(failed))
	for _, k := range failed {
		skip[k] = true
	}
	seen := make(map[string]bool)
	var out []string
	for k, ref := range lines {
		if skip[k] || seen[ref.product] {
			continue
		}
		seen[ref.product] = true
		out = append(out, ref.product)
	}
	slices.Sort(out)
	return out
}
