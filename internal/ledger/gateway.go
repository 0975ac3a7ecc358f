// Package ledger writes normalized events to the record store idempotently.
package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stockledger/internal/domain"
	"stockledger/internal/port"
	"stockledger/internal/retry"
)

// Options tunes chunking and retries.
type Options struct {
	ChunkSize   int
	Parallelism int
	// CallTimeout bounds each individual store call, separately from retries.
	CallTimeout time.Duration
	Retry       retry.Policy
}

// DefaultOptions matches the production sync settings.
var DefaultOptions = Options{
	ChunkSize:   20,
	Parallelism: 4,
	CallTimeout: 30 * time.Second,
	Retry:       retry.DefaultPolicy,
}

// UpsertChunkError reports a chunk that could not be written.
type UpsertChunkError struct {
	Kind  domain.EventKind
	Chunk int
	Keys  []string
	Err   error
}

func (e *UpsertChunkError) Error() string {
	return fmt.Sprintf("%s chunk %d (%d records): %v", e.Kind, e.Chunk, len(e.Keys), e.Err)
}

func (e *UpsertChunkError) Unwrap() []error {
	return []error{domain.ErrUpsertChunk, e.Err}
}

// ChunkReport is the outcome of one chunk.
type ChunkReport struct {
	Index    int
	Size     int
	Inserted int
	Ignored  int
	Err      error
}

// Report aggregates the outcome of one write batch.
type Report struct {
	Kind domain.EventKind
	// Submitted counts records after in-batch deduplication.
	Submitted  int
	Duplicates int
	Inserted   int
	Ignored    int
	Failed     int
	Chunks     []ChunkReport
	Errors     []*UpsertChunkError
	// FailedKeys holds the natural keys of every record in a failed chunk.
	FailedKeys []string
}

// Gateway deduplicates and chunk-writes ledger events.
type Gateway struct {
	purchases    port.PurchaseRepository
	sales        port.SaleRepository
	consumptions port.ConsumptionRepository
	opts         Options
	logger       logrus.FieldLogger
}

// NewGateway creates a Gateway. Zero options take DefaultOptions values.
func NewGateway(
	purchases port.PurchaseRepository,
	sales port.SaleRepository,
	consumptions port.ConsumptionRepository,
	opts Options,
	logger logrus.FieldLogger,
) *Gateway {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions.ChunkSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultOptions.Parallelism
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions.CallTimeout
	}
	return &Gateway{
		purchases:    purchases,
		sales:        sales,
		consumptions: consumptions,
		opts:         opts,
		logger:       logger.WithField("component", "ledger.gateway"),
	}
}

// WriteSales upserts sales keyed by (invoice_no, product_name).
func (g *Gateway) WriteSales(ctx context.Context, sales []domain.SaleEvent) Report {
	return writeBatch(ctx, g, domain.EventKindSale, sales,
		func(s domain.SaleEvent) string { return s.SaleKey() },
		g.sales.Upsert)
}

// WriteConsumptions upserts consumptions keyed by (order_id, product_name).
func (g *Gateway) WriteConsumptions(ctx context.Context, consumptions []domain.ConsumptionEvent) Report {
	return writeBatch(ctx, g, domain.EventKindConsumption, consumptions,
		func(c domain.ConsumptionEvent) string { return c.ConsumptionKey() },
		g.consumptions.Upsert)
}

// InsertPurchases writes purchases in chunks without deduplication, stopping
// at the first failed chunk. It returns how many rows were inserted before
// the failure.
func (g *Gateway) InsertPurchases(ctx context.Context, purchases []domain.PurchaseEvent) (int, error) {
	inserted := 0
	for i, batch := range chunk(purchases, g.opts.ChunkSize) {
		n, err := g.call(ctx, func(ctx context.Context) (int, error) {
			return g.purchases.Insert(ctx, batch)
		})
		if err != nil {
			return inserted, &UpsertChunkError{Kind: domain.EventKindPurchase, Chunk: i, Keys: purchaseKeys(batch), Err: err}
		}
		inserted += n
	}
	return inserted, nil
}

func writeBatch[T any](
	ctx context.Context,
	g *Gateway,
	kind domain.EventKind,
	records []T,
	key func(T) string,
	write func(context.Context, []T) (int, error),
) Report {
	unique, dupes := dedupe(records, key)
	chunks := chunk(unique, g.opts.ChunkSize)
	rep := Report{
		Kind:       kind,
		Submitted:  len(unique),
		Duplicates: dupes,
		Chunks:     make([]ChunkReport, len(chunks)),
	}
	log := g.logger.WithField("kind", kind)

	var eg errgroup.Group
	eg.SetLimit(g.opts.Parallelism)
	var mu sync.Mutex

	finish := func(i int, c []T, inserted int, err error) {
		cr := ChunkReport{Index: i, Size: len(c)}
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			cr.Err = err
			keys := make([]string, len(c))
			for j, r := range c {
				keys[j] = key(r)
			}
			rep.Errors = append(rep.Errors, &UpsertChunkError{Kind: kind, Chunk: i, Keys: keys, Err: err})
			rep.FailedKeys = append(rep.FailedKeys, keys...)
			rep.Failed += len(c)
			log.WithFields(logrus.Fields{"chunk": i, "size": len(c)}).WithError(err).Error("upsert chunk failed")
		} else {
			cr.Inserted = inserted
			cr.Ignored = len(c) - inserted
			rep.Inserted += cr.Inserted
			rep.Ignored += cr.Ignored
		}
		rep.Chunks[i] = cr
	}

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			finish(i, c, 0, fmt.Errorf("not started: %w", context.Cause(ctx)))
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, c, 0, fmt.Errorf("not started: %w", context.Cause(ctx)))
				return nil
			}
			n, err := g.call(ctx, func(ctx context.Context) (int, error) { return write(ctx, c) })
			finish(i, c, n, err)
			return nil
		})
	}
	_ = eg.Wait()

	// errors arrive in completion order
	slices.SortFunc(rep.Errors, func(a, b *UpsertChunkError) int { return cmp.Compare(a.Chunk, b.Chunk) })
	log.WithFields(logrus.Fields{
		"submitted":  rep.Submitted,
		"duplicates": rep.Duplicates,
		"inserted":   rep.Inserted,
		"ignored":    rep.Ignored,
		"failed":     rep.Failed,
	}).Debug("batch written")
	return rep
}

// call runs one store write under the retry policy with a per-attempt timeout.
func (g *Gateway) call(ctx context.Context, op func(ctx context.Context) (int, error)) (int, error) {
	var n int
	err := retry.Do(ctx, g.opts.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
		var err error
		n, err = op(callCtx)
		return err
	})
	return n, err
}

func dedupe[T any](records []T, key func(T) string) ([]T, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

func chunk[T any](records []T, size int) [][]T {
	if len(records) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

func purchaseKeys(ps []domain.PurchaseEvent) []string {
	keys := make([]string, len(ps))
	for i, p := range ps {
		keys[i] = p.ID.String()
	}
	return keys
}

// DescribeKey renders a natural key for logs and error summaries.
func DescribeKey(key string) string {
	return strings.ReplaceAll(key, "\x00", " / ")
}
