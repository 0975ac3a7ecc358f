package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	"stockledger/internal/event"
	"stockledger/internal/ledger"
	"stockledger/internal/lock"
	"stockledger/internal/ordersource"
	"stockledger/internal/port"
	"stockledger/internal/reconcile"
	"stockledger/internal/repository/memory"
	"stockledger/internal/retry"
	"stockledger/internal/service"
	"stockledger/mocks"
)

var ist = time.FixedZone("IST", 19800)

// 2026-03-15 15:30 IST
var syncNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

type syncEnv struct {
	store  *memory.Store
	source *mocks.MockOrderSource
	locker *lock.Local
	svc    service.SyncService
}

type syncEnvOptions struct {
	sales       port.SaleRepository
	reconciler  service.Reconciler
	chunkSize   int
	parallelism int
}

func newSyncEnv(t *testing.T, o syncEnvOptions) *syncEnv {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	store := memory.New()
	_, err := store.Purchases().Insert(context.Background(), []domain.PurchaseEvent{{
		ID:               uuid.New(),
		Date:             time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ProductName:      "Shampoo",
		HSNCode:          "3305",
		Units:            "btl",
		Quantity:         10,
		MRPInclGST:       118,
		GSTPercentage:    18,
		CostPerUnitExGST: 100,
		Amounts:          domain.Amounts{TaxableValue: 1000, CGST: 90, SGST: 90, InvoiceValue: 1180},
	}})
	require.NoError(t, err)

	sales := o.sales
	if sales == nil {
		sales = store.Sales()
	}
	quick := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	gw := ledger.NewGateway(store.Purchases(), sales, store.Consumptions(), ledger.Options{
		ChunkSize:   o.chunkSize,
		Parallelism: o.parallelism,
		Retry:       quick,
	}, logger)

	locker := lock.NewLocal()
	engine := reconcile.NewEngine(store.Purchases(), sales, store.Consumptions(), store.BalanceStock(),
		locker, event.Noop{}, logger)
	var reconciler service.Reconciler = engine
	if o.reconciler != nil {
		reconciler = o.reconciler
	}
	source := new(mocks.MockOrderSource)
	svc := service.NewSyncService(source, store.Purchases(), gw, reconciler, store.SyncRuns(), locker, event.Noop{},
		service.SyncOptions{
			WindowDays:        30,
			Location:          ist,
			LockWait:          20 * time.Millisecond,
			FetchRetry:        quick,
			DefaultGST:        18,
			FallbackCostRatio: 0.5,
			Now:               func() time.Time { return syncNow },
		}, logger)
	return &syncEnv{store: store, source: source, locker: locker, svc: svc}
}

func marchWindow() domain.DateWindow {
	return domain.DateWindow{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, ist),
		End:   time.Date(2026, 3, 14, 0, 0, 0, 0, ist),
	}
}

func shampooOrder(id string, salon bool, qty float64) domain.Order {
	return domain.Order{
		ID:                 domain.FlexString(id),
		CreatedAt:          time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC),
		ClientName:         "Asha",
		IsSalonConsumption: salon,
		Items: []domain.OrderItem{
			{Name: "Haircut", Price: 500.0, Quantity: 1.0, Type: "service"},
			{Name: "Shampoo", Price: 118.0, Quantity: qty, Type: "product"},
		},
	}
}

// --- Sync ---

func TestSyncService_Sync_IdempotentReplay(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	orders := []domain.Order{shampooOrder("1", false, 3)}
	env.source.On("FetchOrders", mock.Anything, mock.Anything).Return(orders, nil)
	ctx := context.Background()

	first, err := env.svc.Sync(ctx, domain.ClassificationCustomer, marchWindow())
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, domain.SyncRunStatusSuccess, first.Status)
	assert.Equal(t, 1, first.InsertedCount)
	assert.Equal(t, 1, first.Stats.Succeeded)
	assert.False(t, first.WindowDefaulted)

	balanceAfterFirst, err := env.store.BalanceStock().List(ctx)
	require.NoError(t, err)

	second, err := env.svc.Sync(ctx, domain.ClassificationCustomer, marchWindow())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Zero(t, second.InsertedCount)

	sales, err := env.store.Sales().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "POS-1", sales[0].InvoiceNo)

	balance, err := env.store.BalanceStock().List(ctx)
	require.NoError(t, err)
	require.Len(t, balance, 1)
	assert.InDelta(t, 7, balance[0].BalanceQty, 0.0001)
	assert.InDelta(t, 700, balance[0].TaxableValue, 0.001)
	assert.Equal(t, balanceAfterFirst[0].BalanceQty, balance[0].BalanceQty)
	assert.Equal(t, balanceAfterFirst[0].Amounts, balance[0].Amounts)

	runs, err := env.svc.ListRuns(ctx, domain.ClassificationCustomer, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSyncService_Sync_PartialFailureIsolation(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	order := domain.Order{ID: "500", CreatedAt: time.Date(2026, 3, 12, 6, 0, 0, 0, time.UTC)}
	for i := 1; i <= 10; i++ {
		item := domain.OrderItem{Name: fmt.Sprintf("Product %02d", i), Price: 100.0, Quantity: 1.0, Type: "product"}
		if i == 4 {
			item.Quantity = "lots"
		}
		order.Items = append(order.Items, item)
	}
	env.source.On("FetchOrders", mock.Anything, mock.Anything).Return([]domain.Order{order}, nil)

	res, err := env.svc.Sync(context.Background(), domain.ClassificationCustomer, marchWindow())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Stats.Total)
	assert.Equal(t, 10, res.Stats.Processed)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 9, res.Stats.Succeeded)
	assert.Equal(t, 9, res.InsertedCount)
	assert.Equal(t, domain.SyncRunStatusPartial, res.Status)
	assert.False(t, res.Success)

	var normalizeErrs int
	for _, e := range res.Stats.Errors {
		if e.Stage == "normalize" {
			normalizeErrs++
			assert.Equal(t, "500", e.OrderID)
		}
	}
	assert.Equal(t, 1, normalizeErrs)

	sales, err := env.store.Sales().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, sales, 9)
	for _, s := range sales {
		assert.True(t, s.CostIsEstimated)
	}
}

func TestSyncService_Sync_SalonOrderBecomesConsumption(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	env.source.On("FetchOrders", mock.Anything, mock.MatchedBy(func(q domain.OrderQuery) bool {
		return q.Classification == domain.ClassificationSalon
	})).Return([]domain.Order{shampooOrder("77", true, 2)}, nil)

	res, err := env.svc.Sync(context.Background(), domain.ClassificationSalon, marchWindow())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.BalanceProducts)

	cons, err := env.store.Consumptions().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, cons, 1)
	assert.Equal(t, "77", cons[0].OrderID)
	assert.InDelta(t, 100, cons[0].PurchaseCostPerUnitExGST, 0.001)

	balance, err := env.store.BalanceStock().List(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 8, balance[0].BalanceQty, 0.0001)
}

func TestSyncService_Sync_DefaultsWindow(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	wantStart := time.Date(2026, 2, 13, 0, 0, 0, 0, ist)
	wantEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, ist)
	env.source.On("FetchOrders", mock.Anything, mock.MatchedBy(func(q domain.OrderQuery) bool {
		return q.StartDate.Equal(wantStart) && q.EndDate.Equal(wantEnd)
	})).Return([]domain.Order{}, nil)

	tests := []struct {
		name   string
		window domain.DateWindow
	}{
		{"zero", domain.DateWindow{}},
		{"end in future", domain.DateWindow{Start: marchWindow().Start, End: syncNow.AddDate(0, 0, 3)}},
		{"start after end", domain.DateWindow{Start: marchWindow().End, End: marchWindow().Start}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.svc.Sync(context.Background(), domain.ClassificationCustomer, tt.window)
			require.NoError(t, err)
			assert.True(t, res.WindowDefaulted)
			assert.True(t, res.Window.Start.Equal(wantStart))
			assert.True(t, res.Window.End.Equal(wantEnd))
			assert.Equal(t, domain.SyncRunStatusSuccess, res.Status)
		})
	}
	env.source.AssertExpectations(t)
}

func TestSyncService_Sync_FetchRetriesThenFails(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	env.source.On("FetchOrders", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Twice()

	res, err := env.svc.Sync(context.Background(), domain.ClassificationCustomer, marchWindow())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalFetch)
	env.source.AssertExpectations(t)

	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, domain.SyncRunStatusFailed, res.Status)
	assert.NotEqual(t, uuid.Nil, res.RunID)
	assert.Zero(t, res.Stats.Total)
	assert.NotNil(t, res.Stats.Errors)

	runs, err := env.svc.ListRuns(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.SyncRunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorSummary, "connection refused")
}

func TestSyncService_Sync_PermanentFetchErrorNotRetried(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	env.source.On("FetchOrders", mock.Anything, mock.Anything).
		Return(nil, &ordersource.FetchError{StatusCode: 401, Err: errors.New("bad key")}).Once()

	_, err := env.svc.Sync(context.Background(), domain.ClassificationCustomer, marchWindow())
	assert.ErrorIs(t, err, domain.ErrExternalFetch)
	env.source.AssertNumberOfCalls(t, "FetchOrders", 1)
}

func TestSyncService_Sync_InProgressElsewhere(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	release, err := env.locker.Acquire(context.Background(), service.SyncLockKey(domain.ClassificationSalon))
	require.NoError(t, err)
	defer release()

	_, err = env.svc.Sync(context.Background(), domain.ClassificationSalon, marchWindow())
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	env.source.AssertNotCalled(t, "FetchOrders", mock.Anything, mock.Anything)

	// the other classification is independent
	env.source.On("FetchOrders", mock.Anything, mock.Anything).Return([]domain.Order{}, nil)
	_, err = env.svc.Sync(context.Background(), domain.ClassificationCustomer, marchWindow())
	assert.NoError(t, err)
}

func TestSyncService_Sync_ReconcileFailureFailsRun(t *testing.T) {
	reconciler := new(mocks.MockReconciler)
	reconciler.On("Recalculate", mock.Anything).
		Return(nil, fmt.Errorf("%w: loading sales: connection reset", domain.ErrReconciliationFailed))
	env := newSyncEnv(t, syncEnvOptions{reconciler: reconciler})
	env.source.On("FetchOrders", mock.Anything, mock.Anything).Return([]domain.Order{shampooOrder("1", false, 3)}, nil)

	res, err := env.svc.Sync(context.Background(), domain.ClassificationCustomer, marchWindow())
	assert.ErrorIs(t, err, domain.ErrReconciliationFailed)
	require.NotNil(t, res)
	assert.Equal(t, domain.SyncRunStatusFailed, res.Status)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.InsertedCount)
	assert.Equal(t, 1, res.Stats.Succeeded)
	assert.Contains(t, res.ReconciliationError, "connection reset")

	runs, err := env.svc.ListRuns(context.Background(), domain.ClassificationCustomer, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.SyncRunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorSummary, "reconcile:")
}

func TestSyncService_Sync_ConcurrentCallsShareOneRun(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	started := make(chan struct{}, 2)
	gate := make(chan struct{})
	env.source.On("FetchOrders", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			started <- struct{}{}
			<-gate
		}).
		Return([]domain.Order{shampooOrder("1", false, 3)}, nil)

	var wg sync.WaitGroup
	results := make([]*domain.SyncResult, 2)
	errs := make([]error, 2)
	call := func(i int) {
		defer wg.Done()
		results[i], errs[i] = env.svc.Sync(context.Background(), domain.ClassificationCustomer, marchWindow())
	}

	wg.Add(1)
	go call(0)
	<-started
	wg.Add(1)
	go call(1)
	// let the second caller join the in-flight run
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Same(t, results[0], results[1])
	assert.Equal(t, 1, results[0].InsertedCount)
	env.source.AssertNumberOfCalls(t, "FetchOrders", 1)

	sales, err := env.store.Sales().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	balance, err := env.store.BalanceStock().List(context.Background())
	require.NoError(t, err)
	require.Len(t, balance, 1)
	assert.InDelta(t, 7, balance[0].BalanceQty, 0.0001)

	runs, err := env.svc.ListRuns(context.Background(), domain.ClassificationCustomer, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSyncService_Sync_InvalidClassification(t *testing.T) {
	env := newSyncEnv(t, syncEnvOptions{})
	_, err := env.svc.Sync(context.Background(), domain.Classification("wholesale"), marchWindow())
	assert.ErrorIs(t, err, domain.ErrInvalidClassification)
}

// cancellingSales cancels the sync context after it writes its first chunk.
type cancellingSales struct {
	port.SaleRepository
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingSales) Upsert(ctx context.Context, sales []domain.SaleEvent) (int, error) {
	n, err := c.SaleRepository.Upsert(ctx, sales)
	c.once.Do(c.cancel)
	return n, err
}

func TestSyncService_Sync_CancelledRunIsIncompleteButReconciled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := memory.New()
	sales := &cancellingSales{SaleRepository: base.Sales(), cancel: cancel}
	env := newSyncEnv(t, syncEnvOptions{sales: sales, chunkSize: 1, parallelism: 1})

	orders := []domain.Order{shampooOrder("1", false, 1), shampooOrder("2", false, 1), shampooOrder("3", false, 1)}
	env.source.On("FetchOrders", mock.Anything, mock.Anything).Return(orders, nil)

	res, err := env.svc.Sync(ctx, domain.ClassificationCustomer, marchWindow())
	require.NoError(t, err)
	assert.True(t, res.Incomplete)
	assert.Equal(t, domain.SyncRunStatusIncomplete, res.Status)
	assert.Equal(t, 1, res.InsertedCount)
	assert.Equal(t, 2, res.Stats.Failed)
	assert.Empty(t, res.ReconciliationError)
	assert.Equal(t, 1, res.BalanceProducts)

	written, err := base.Sales().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, written, 1)

	balance, err := env.store.BalanceStock().List(context.Background())
	require.NoError(t, err)
	require.Len(t, balance, 1)
	assert.InDelta(t, 9, balance[0].BalanceQty, 0.0001)
}
