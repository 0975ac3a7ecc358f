package normalizer

import (
	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
)

// merged is every line of one product and stream inside a single order.
type merged struct {
	name        string
	consumption bool
	items       int
	qty         float64
	priceIncl   float64
	discount    float64
	gstRate     float64
	hsn         string
	units       string
	cost        float64
	estimated   bool
	amounts     domain.Amounts
}

type mergeKey struct {
	name        string
	consumption bool
}

// mergeLines folds lines sharing a product and stream so the natural key of
// the resulting events is unique within the order. Amounts are summed;
// unit price and discount become quantity-weighted averages.
func mergeLines(lines []line, note *OrderNote) []merged {
	type acc struct {
		first    line
		items    int
		qty      decimal.Decimal
		gross    decimal.Decimal
		discount decimal.Decimal
		amounts  [5]decimal.Decimal
	}

	order := make([]mergeKey, 0, len(lines))
	groups := make(map[mergeKey]*acc, len(lines))
	for _, ln := range lines {
		k := mergeKey{name: ln.name, consumption: ln.consumption}
		a, ok := groups[k]
		if !ok {
			a = &acc{first: ln}
			groups[k] = a
			order = append(order, k)
		} else {
			note.MergedProducts = appendOnce(note.MergedProducts, ln.name)
		}
		q := decimal.NewFromFloat(ln.qty)
		a.items++
		a.qty = a.qty.Add(q)
		a.gross = a.gross.Add(decimal.NewFromFloat(ln.priceIncl).Mul(q))
		a.discount = a.discount.Add(decimal.NewFromFloat(ln.discount).Mul(q))
		c := ln.computed.Amounts
		for i, v := range []float64{c.TaxableValue, c.IGST, c.CGST, c.SGST, c.InvoiceValue} {
			a.amounts[i] = a.amounts[i].Add(decimal.NewFromFloat(v))
		}
	}

	out := make([]merged, 0, len(order))
	for _, k := range order {
		a := groups[k]
		m := merged{
			name:        k.name,
			consumption: k.consumption,
			items:       a.items,
			qty:         a.qty.InexactFloat64(),
			priceIncl:   a.first.priceIncl,
			discount:    a.first.discount,
			gstRate:     a.first.gstRate,
			hsn:         a.first.hsn,
			units:       a.first.units,
			cost:        a.first.cost,
			estimated:   a.first.estimated,
			amounts: domain.Amounts{
				TaxableValue: a.amounts[0].Round(2).InexactFloat64(),
				IGST:         a.amounts[1].Round(2).InexactFloat64(),
				CGST:         a.amounts[2].Round(2).InexactFloat64(),
				SGST:         a.amounts[3].Round(2).InexactFloat64(),
				InvoiceValue: a.amounts[4].Round(2).InexactFloat64(),
			},
		}
		if a.items > 1 && !a.qty.IsZero() {
			m.priceIncl = a.gross.Div(a.qty).Round(2).InexactFloat64()
			m.discount = a.discount.Div(a.qty).Round(2).InexactFloat64()
		}
		out = append(out, m)
	}
	return out
}
