// Package gst implements Indian GST decomposition and composition arithmetic.
//
// Every chain of operations is carried in arbitrary precision and rounded once
// to two decimal places (half away from zero) when the result leaves the package.
package gst

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
)

var (
	hundred    = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
	one        = decimal.NewFromInt(1)
)

// InvalidInputError reports a numeric input outside its allowed domain.
type InvalidInputError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("gst: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return domain.ErrInvalidInput
}

// Decomposition is a GST-inclusive price split into its exclusive price and tax.
type Decomposition struct {
	PriceExclGST float64
	GSTAmount    float64
}

// Split is the tax amount divided between the IGST or CGST/SGST heads.
type Split struct {
	IGST float64
	CGST float64
	SGST float64
}

// Total returns the sum of all three heads.
func (s Split) Total() float64 {
	return decimal.NewFromFloat(s.IGST).
		Add(decimal.NewFromFloat(s.CGST)).
		Add(decimal.NewFromFloat(s.SGST)).
		Round(2).InexactFloat64()
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(x float64) float64 {
	return round2(decimal.NewFromFloat(x))
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Decompose splits a GST-inclusive price into its exclusive price and GST amount.
func Decompose(priceInclGST, gstPercent float64) (Decomposition, error) {
	if err := checkPrice("price_incl_gst", priceInclGST); err != nil {
		return Decomposition{}, err
	}
	if err := checkRate(gstPercent); err != nil {
		return Decomposition{}, err
	}
	incl := decimal.NewFromFloat(priceInclGST)
	excl := exclusive(incl, decimal.NewFromFloat(gstPercent))
	return Decomposition{
		PriceExclGST: round2(excl),
		GSTAmount:    round2(incl.Sub(excl)),
	}, nil
}

// ApplyDiscount reduces an exclusive price by discountPercent.
func ApplyDiscount(priceExclGST, discountPercent float64) (float64, error) {
	if err := checkPrice("price_excl_gst", priceExclGST); err != nil {
		return 0, err
	}
	if err := checkDiscount(discountPercent); err != nil {
		return 0, err
	}
	return round2(discounted(decimal.NewFromFloat(priceExclGST), decimal.NewFromFloat(discountPercent))), nil
}

// SplitGST computes the tax heads on a taxable value.
func SplitGST(taxableValue, gstPercent float64, isInterstate bool) (Split, error) {
	if err := checkPrice("taxable_value", taxableValue); err != nil {
		return Split{}, err
	}
	if err := checkRate(gstPercent); err != nil {
		return Split{}, err
	}
	igst, cgst, sgst := split(decimal.NewFromFloat(taxableValue), decimal.NewFromFloat(gstPercent), isInterstate)
	return Split{IGST: round2(igst), CGST: round2(cgst), SGST: round2(sgst)}, nil
}

// ComposeInvoiceValue sums taxable value and the three tax heads.
func ComposeInvoiceValue(taxableValue, igst, cgst, sgst float64) float64 {
	return round2(decimal.NewFromFloat(taxableValue).
		Add(decimal.NewFromFloat(igst)).
		Add(decimal.NewFromFloat(cgst)).
		Add(decimal.NewFromFloat(sgst)))
}

// Compose is the inverse of Decompose.
func Compose(priceExclGST, gstAmount float64) float64 {
	return round2(decimal.NewFromFloat(priceExclGST).Add(decimal.NewFromFloat(gstAmount)))
}

// LineInput describes one invoice line priced GST-inclusive.
type LineInput struct {
	PriceInclGST    float64
	DiscountPercent float64
	GSTPercent      float64
	Quantity        float64
	Interstate      bool
}

// Line is the fully computed monetary view of one invoice line.
type Line struct {
	UnitPriceExclGST float64
	UnitCostExclGST  float64
	domain.Amounts
}

// ComputeLine runs decompose, discount, quantity, split and invoice value as a
// single chain and rounds only the final figures.
func ComputeLine(in LineInput) (Line, error) {
	if err := checkPrice("price_incl_gst", in.PriceInclGST); err != nil {
		return Line{}, err
	}
	if err := checkRate(in.GSTPercent); err != nil {
		return Line{}, err
	}
	if err := checkDiscount(in.DiscountPercent); err != nil {
		return Line{}, err
	}
	if in.Quantity < 0 {
		return Line{}, &InvalidInputError{Field: "quantity", Value: in.Quantity, Reason: "must not be negative"}
	}

	rate := decimal.NewFromFloat(in.GSTPercent)
	excl := exclusive(decimal.NewFromFloat(in.PriceInclGST), rate)
	cost := discounted(excl, decimal.NewFromFloat(in.DiscountPercent))
	taxable := cost.Mul(decimal.NewFromFloat(in.Quantity))
	igst, cgst, sgst := split(taxable, rate, in.Interstate)

	return Line{
		UnitPriceExclGST: round2(excl),
		UnitCostExclGST:  round2(cost),
		Amounts: domain.Amounts{
			TaxableValue: round2(taxable),
			IGST:         round2(igst),
			CGST:         round2(cgst),
			SGST:         round2(sgst),
			InvoiceValue: round2(taxable.Add(igst).Add(cgst).Add(sgst)),
		},
	}, nil
}

// EstimateCost returns ratio times the GST-exclusive unit price, for stock
// with no purchase to take a cost from.
func EstimateCost(priceInclGST, gstPercent, ratio float64) (float64, error) {
	if err := checkPrice("price_incl_gst", priceInclGST); err != nil {
		return 0, err
	}
	if err := checkRate(gstPercent); err != nil {
		return 0, err
	}
	if ratio < 0 {
		return 0, &InvalidInputError{Field: "cost_ratio", Value: ratio, Reason: "must not be negative"}
	}
	excl := exclusive(decimal.NewFromFloat(priceInclGST), decimal.NewFromFloat(gstPercent))
	return round2(excl.Mul(decimal.NewFromFloat(ratio))), nil
}

func exclusive(incl, rate decimal.Decimal) decimal.Decimal {
	return incl.DivRound(one.Add(rate.Div(hundred)), 16)
}

func discounted(excl, discount decimal.Decimal) decimal.Decimal {
	return excl.Mul(one.Sub(discount.Div(hundred)))
}

func split(taxable, rate decimal.Decimal, interstate bool) (igst, cgst, sgst decimal.Decimal) {
	if interstate {
		return taxable.Mul(rate).Div(hundred), decimal.Zero, decimal.Zero
	}
	half := taxable.Mul(rate).Div(twoHundred)
	return decimal.Zero, half, half
}

func checkPrice(field string, v float64) error {
	if v < 0 {
		return &InvalidInputError{Field: field, Value: v, Reason: "must not be negative"}
	}
	return nil
}

func checkRate(v float64) error {
	if v < 0 {
		return &InvalidInputError{Field: "gst_percentage", Value: v, Reason: "must not be negative"}
	}
	return nil
}

func checkDiscount(v float64) error {
	if v < 0 || v > 100 {
		return &InvalidInputError{Field: "discount_percentage", Value: v, Reason: "must be within [0, 100]"}
	}
	return nil
}
