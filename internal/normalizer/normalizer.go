// Package normalizer turns point-of-sale orders into canonical ledger events.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/gst"
)

// CostLookup finds the most recent purchase of a product.
type CostLookup interface {
	Latest(ctx context.Context, productName string) (*domain.PurchaseEvent, error)
}

// Options tunes defaults applied while normalizing.
type Options struct {
	DefaultGST        float64
	FallbackCostRatio float64
	// Location decides which calendar day an order's timestamp falls on.
	Location *time.Location
	Now      func() time.Time
}

// ItemError reports a line item that could not be normalized. The item is
// skipped; the rest of the order is unaffected.
type ItemError struct {
	OrderID     string
	Index       int
	ProductName string
	Reason      string
	Err         error
}

func (e *ItemError) Error() string {
	msg := fmt.Sprintf("order %s item %d", e.OrderID, e.Index)
	if e.ProductName != "" {
		msg += fmt.Sprintf(" (%s)", e.ProductName)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ItemError) Unwrap() []error {
	if e.Err != nil {
		return []error{domain.ErrItemNormalization, e.Err}
	}
	return []error{domain.ErrItemNormalization}
}

// OrderNote records what the normalizer had to assume for one order.
type OrderNote struct {
	OrderID           string   `json:"order_id"`
	DefaultedGST      []string `json:"defaulted_gst,omitempty"`
	UnmatchedProducts []string `json:"unmatched_products,omitempty"`
	EstimatedCosts    []string `json:"estimated_costs,omitempty"`
	MergedProducts    []string `json:"merged_products,omitempty"`
	SkippedItems      int      `json:"skipped_items,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// Empty reports whether nothing noteworthy happened.
func (n OrderNote) Empty() bool {
	return len(n.DefaultedGST) == 0 && len(n.UnmatchedProducts) == 0 &&
		len(n.EstimatedCosts) == 0 && len(n.MergedProducts) == 0 && len(n.Errors) == 0
}

// Result is the normalized view of one order.
type Result struct {
	Sales        []domain.SaleEvent
	Consumptions []domain.ConsumptionEvent
	// Items is the number of product line items seen, valid or not.
	Items int
	// Lines maps each event's natural key to the number of items merged into it.
	Lines  map[string]int
	Errors []*ItemError
	Note   OrderNote
}

type costBasis struct {
	purchase *domain.PurchaseEvent
	err      error
}

// Normalizer converts orders for a single sync run. Cost lookups are cached
// for the lifetime of the value, so create one per run.
type Normalizer struct {
	costs  CostLookup
	opts   Options
	logger logrus.FieldLogger

	mu    sync.Mutex
	cache map[string]costBasis
}

// New creates a Normalizer. Zero options fall back to 18% GST, a 0.5 cost
// ratio and UTC.
func New(costs CostLookup, opts Options, logger logrus.FieldLogger) *Normalizer {
	if opts.DefaultGST <= 0 {
		opts.DefaultGST = 18
	}
	if opts.FallbackCostRatio <= 0 {
		opts.FallbackCostRatio = 0.5
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Normalizer{
		costs:  costs,
		opts:   opts,
		logger: logger.WithField("component", "normalizer"),
		cache:  make(map[string]costBasis),
	}
}

// line is one validated item before merging.
type line struct {
	index       int
	name        string
	consumption bool
	qty         float64
	priceIncl   float64
	discount    float64
	gstRate     float64
	hsn         string
	units       string
	cost        float64
	estimated   bool
	computed    gst.Line
}

// Normalize converts one order. It never fails as a whole: malformed items
// are reported in Result.Errors.
func (n *Normalizer) Normalize(ctx context.Context, order domain.Order) Result {
	orderID := strings.TrimSpace(order.ID.String())
	res := Result{
		Lines: make(map[string]int),
		Note:  OrderNote{OrderID: orderID},
	}
	log := n.logger.WithField("order_id", orderID)

	var lines []line
	for i, item := range order.Items {
		if !strings.EqualFold(strings.TrimSpace(item.Type), domain.ItemTypeProduct) {
			continue
		}
		res.Items++

		ln, err := n.parseItem(ctx, orderID, i, order, item, &res.Note)
		if err != nil {
			res.Errors = append(res.Errors, err)
			res.Note.SkippedItems++
			res.Note.Errors = append(res.Note.Errors, err.Error())
			log.WithError(err).Warn("skipping malformed order item")
			continue
		}
		lines = append(lines, ln)
	}

	if orderID == "" && len(lines) > 0 {
		// without an id there is no natural key for any event of the order
		for _, ln := range lines {
			err := &ItemError{Index: ln.index, ProductName: ln.name, Reason: "order has no id"}
			res.Errors = append(res.Errors, err)
			res.Note.Errors = append(res.Note.Errors, err.Error())
		}
		res.Note.SkippedItems += len(lines)
		return res
	}

	day := n.orderDay(order.CreatedAt)
	now := n.opts.Now().UTC()
	for _, group := range mergeLines(lines, &res.Note) {
		if group.consumption {
			ev := n.consumption(order, orderID, day, now, group)
			res.Consumptions = append(res.Consumptions, ev)
			res.Lines[ev.ConsumptionKey()] = group.items
		} else {
			ev := n.sale(order, orderID, day, now, group)
			res.Sales = append(res.Sales, ev)
			res.Lines[ev.SaleKey()] = group.items
		}
	}
	return res
}

func (n *Normalizer) parseItem(ctx context.Context, orderID string, idx int, order domain.Order, item domain.OrderItem, note *OrderNote) (line, *ItemError) {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		name = strings.TrimSpace(item.ServiceName)
	}
	fail := func(reason string, err error) *ItemError {
		return &ItemError{OrderID: orderID, Index: idx, ProductName: name, Reason: reason, Err: err}
	}
	if item.DecodeErr != nil {
		return line{}, fail("malformed item", item.DecodeErr)
	}
	if name == "" {
		return line{}, fail("missing name", nil)
	}

	qty, _, ok := number(firstPresent(item.Quantity, item.Qty))
	if !ok {
		return line{}, fail("quantity is not numeric", nil)
	}
	if qty <= 0 {
		return line{}, fail(fmt.Sprintf("quantity must be positive, got %v", qty), nil)
	}

	price, _, ok := number(item.Price)
	if !ok {
		return line{}, fail("price is not numeric", nil)
	}
	if price < 0 {
		return line{}, fail(fmt.Sprintf("price must not be negative, got %v", price), nil)
	}

	discount := 0.0
	if d, present, ok := number(item.DiscountPercentage); present {
		if !ok {
			return line{}, fail("discount_percentage is not numeric", nil)
		}
		discount = d
	}

	basis := n.lookup(ctx, name)
	if basis.err != nil {
		return line{}, fail("cost lookup failed", basis.err)
	}

	var rate float64
	if g, present, ok := number(item.GSTPercentage); present {
		if !ok {
			return line{}, fail("gst_percentage is not numeric", nil)
		}
		rate = g
	} else if basis.purchase != nil {
		rate = basis.purchase.GSTPercentage
	} else {
		rate = n.opts.DefaultGST
		note.DefaultedGST = appendOnce(note.DefaultedGST, name)
	}

	computed, err := gst.ComputeLine(gst.LineInput{
		PriceInclGST:    price,
		DiscountPercent: discount,
		GSTPercent:      rate,
		Quantity:        qty,
	})
	if err != nil {
		return line{}, fail("invalid tax input", err)
	}

	ln := line{
		index:       idx,
		name:        name,
		consumption: order.IsSalonConsumption || item.IsSalonConsumption,
		qty:         qty,
		priceIncl:   price,
		discount:    discount,
		gstRate:     rate,
		hsn:         strings.TrimSpace(item.HSNCode.String()),
		units:       strings.TrimSpace(item.Units),
		computed:    computed,
	}
	if basis.purchase != nil {
		ln.cost = basis.purchase.CostPerUnitExGST
		if ln.hsn == "" {
			ln.hsn = basis.purchase.HSNCode
		}
		if ln.units == "" {
			ln.units = basis.purchase.Units
		}
	} else {
		// rate and price were validated by ComputeLine
		ln.cost, _ = gst.EstimateCost(price, rate, n.opts.FallbackCostRatio)
		ln.estimated = true
		note.UnmatchedProducts = appendOnce(note.UnmatchedProducts, name)
		note.EstimatedCosts = appendOnce(note.EstimatedCosts, name)
	}
	return ln, nil
}

func (n *Normalizer) lookup(ctx context.Context, name string) costBasis {
	n.mu.Lock()
	cached, ok := n.cache[name]
	n.mu.Unlock()
	if ok {
		return cached
	}

	p, err := n.costs.Latest(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		cached = costBasis{}
	case err != nil:
		// not cached, a later item may succeed
		return costBasis{err: err}
	default:
		cached = costBasis{purchase: p}
	}

	n.mu.Lock()
	n.cache[name] = cached
	n.mu.Unlock()
	return cached
}

func (n *Normalizer) orderDay(ts time.Time) time.Time {
	if ts.IsZero() {
		ts = n.opts.Now()
	}
	local := ts.In(n.opts.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func (n *Normalizer) sale(order domain.Order, orderID string, day, now time.Time, g merged) domain.SaleEvent {
	invoiceNo := "POS-" + orderID
	return domain.SaleEvent{
		ID:                       domain.SaleID(invoiceNo, g.name),
		OrderID:                  orderID,
		InvoiceNo:                invoiceNo,
		Date:                     day,
		ProductName:              g.name,
		HSNCode:                  g.hsn,
		Units:                    g.units,
		ClientName:               strings.TrimSpace(order.ClientName),
		Quantity:                 g.qty,
		UnitPriceInclGST:         g.priceIncl,
		DiscountPercentage:       g.discount,
		GSTPercentage:            g.gstRate,
		Amounts:                  g.amounts,
		PurchaseCostPerUnitExGST: g.cost,
		CostIsEstimated:          g.estimated,
		CreatedAt:                now,
	}
}

func (n *Normalizer) consumption(order domain.Order, orderID string, day, now time.Time, g merged) domain.ConsumptionEvent {
	voucher := strings.TrimSpace(order.RequisitionVoucherNo.String())
	if voucher == "" {
		voucher = "RV-" + orderID
	}
	purpose := strings.TrimSpace(order.ConsumptionPurpose)
	if purpose == "" {
		purpose = "Salon use"
	}
	return domain.ConsumptionEvent{
		ID:                       domain.ConsumptionID(orderID, g.name),
		OrderID:                  orderID,
		RequisitionVoucherNo:     voucher,
		Purpose:                  purpose,
		Date:                     day,
		ProductName:              g.name,
		HSNCode:                  g.hsn,
		Units:                    g.units,
		ClientName:               strings.TrimSpace(order.ClientName),
		Quantity:                 g.qty,
		UnitPriceInclGST:         g.priceIncl,
		DiscountPercentage:       g.discount,
		GSTPercentage:            g.gstRate,
		Amounts:                  g.amounts,
		PurchaseCostPerUnitExGST: g.cost,
		CostIsEstimated:          g.estimated,
		CreatedAt:                now,
	}
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
