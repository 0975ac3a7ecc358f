package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	"stockledger/internal/ledger"
	"stockledger/internal/repository/memory"
	"stockledger/internal/retry"
	"stockledger/mocks"
)

var fastRetry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

func sales(n int) []domain.SaleEvent {
	out := make([]domain.SaleEvent, n)
	for i := range out {
		out[i] = domain.SaleEvent{
			InvoiceNo:   fmt.Sprintf("INV-%d", i),
			ProductName: "Shampoo",
			Quantity:    1,
			Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func TestGateway_WriteSales_DedupesAndIsIdempotent(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	store := memory.New()
	g := ledger.NewGateway(store.Purchases(), store.Sales(), store.Consumptions(),
		ledger.Options{ChunkSize: 2, Parallelism: 2, Retry: fastRetry}, logger)

	batch := append(sales(3), sales(1)...)
	rep := g.WriteSales(context.Background(), batch)

	assert.Equal(t, 3, rep.Submitted)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, 3, rep.Inserted)
	assert.Zero(t, rep.Failed)
	assert.Len(t, rep.Chunks, 2)

	again := g.WriteSales(context.Background(), batch)
	assert.Zero(t, again.Inserted)
	assert.Equal(t, 3, again.Ignored)

	rows, err := store.Sales().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestGateway_WriteSales_FailedChunkIsIsolated(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	repo := new(mocks.MockSaleRepo)
	boom := errors.New("connection reset")
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(s []domain.SaleEvent) bool {
		return s[0].InvoiceNo == "INV-2"
	})).Return(0, boom)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(2, nil)

	g := ledger.NewGateway(nil, repo, nil,
		ledger.Options{ChunkSize: 2, Parallelism: 1, Retry: fastRetry}, logger)
	rep := g.WriteSales(context.Background(), sales(6))

	assert.Equal(t, 6, rep.Submitted)
	assert.Equal(t, 4, rep.Inserted)
	assert.Equal(t, 2, rep.Failed)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, 1, rep.Errors[0].Chunk)
	assert.ErrorIs(t, rep.Errors[0], domain.ErrUpsertChunk)
	assert.ErrorIs(t, rep.Errors[0], boom)
	assert.Len(t, rep.FailedKeys, 2)
	assert.Contains(t, ledger.DescribeKey(rep.FailedKeys[0]), "INV-2 / Shampoo")
	assert.NotEmpty(t, hook.AllEntries())
	// first attempt plus one retry for the failing chunk
	repo.AssertNumberOfCalls(t, "Upsert", 4)
}

func TestGateway_WriteSales_CancelledBeforeStart(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	repo := new(mocks.MockSaleRepo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := ledger.NewGateway(nil, repo, nil, ledger.Options{ChunkSize: 2, Retry: fastRetry}, logger)
	rep := g.WriteSales(ctx, sales(4))

	assert.Equal(t, 4, rep.Failed)
	assert.Len(t, rep.Errors, 2)
	assert.ErrorIs(t, rep.Errors[0], context.Canceled)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestGateway_InsertPurchases_StopsAtFirstFailure(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	repo := new(mocks.MockPurchaseRepo)
	repo.On("Insert", mock.Anything, mock.Anything).Return(2, nil).Once()
	repo.On("Insert", mock.Anything, mock.Anything).Return(0, errors.New("disk full"))

	g := ledger.NewGateway(repo, nil, nil, ledger.Options{ChunkSize: 2, Retry: retry.Policy{MaxAttempts: 1}}, logger)
	purchases := make([]domain.PurchaseEvent, 5)
	n, err := g.InsertPurchases(context.Background(), purchases)

	assert.Equal(t, 2, n)
	var chunkErr *ledger.UpsertChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 1, chunkErr.Chunk)
	assert.Equal(t, domain.EventKindPurchase, chunkErr.Kind)
	repo.AssertNumberOfCalls(t, "Insert", 2)
}
