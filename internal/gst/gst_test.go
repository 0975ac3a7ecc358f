package gst_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	"stockledger/internal/gst"
)

func TestDecompose_Shampoo(t *testing.T) {
	d, err := gst.Decompose(118, 18)
	require.NoError(t, err)
	assert.Equal(t, 100.0, d.PriceExclGST)
	assert.Equal(t, 18.0, d.GSTAmount)
}

func TestDecompose_NegativeRate(t *testing.T) {
	_, err := gst.Decompose(100, -1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var inv *gst.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "gst_percentage", inv.Field)
}

func TestDecompose_NegativePrice(t *testing.T) {
	_, err := gst.Decompose(-5, 18)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDecompose_ZeroRate(t *testing.T) {
	d, err := gst.Decompose(250, 0)
	require.NoError(t, err)
	assert.Equal(t, 250.0, d.PriceExclGST)
	assert.Equal(t, 0.0, d.GSTAmount)
}

func TestDecompose_RoundTrip(t *testing.T) {
	prices := []float64{0.01, 1, 9.99, 49.5, 99.99, 118, 236.4, 1234.56, 99999.99}
	rates := []float64{0, 3, 5, 12, 18, 28}
	for _, p := range prices {
		for _, g := range rates {
			t.Run(fmt.Sprintf("%v@%v", p, g), func(t *testing.T) {
				d, err := gst.Decompose(p, g)
				require.NoError(t, err)
				back := gst.Compose(d.PriceExclGST, d.GSTAmount)
				assert.InDelta(t, p, back, 0.0100001)
			})
		}
	}
}

func TestApplyDiscount(t *testing.T) {
	got, err := gst.ApplyDiscount(100, 10)
	require.NoError(t, err)
	assert.Equal(t, 90.0, got)

	got, err = gst.ApplyDiscount(100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	got, err = gst.ApplyDiscount(100, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestApplyDiscount_OutOfRange(t *testing.T) {
	_, err := gst.ApplyDiscount(100, -0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = gst.ApplyDiscount(100, 100.01)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSplitGST_IntraState(t *testing.T) {
	s, err := gst.SplitGST(1000, 18, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.IGST)
	assert.Equal(t, 90.0, s.CGST)
	assert.Equal(t, 90.0, s.SGST)
}

func TestSplitGST_Interstate(t *testing.T) {
	s, err := gst.SplitGST(1000, 18, true)
	require.NoError(t, err)
	assert.Equal(t, 180.0, s.IGST)
	assert.Equal(t, 0.0, s.CGST)
	assert.Equal(t, 0.0, s.SGST)
}

func TestSplitGST_SumsToTotal(t *testing.T) {
	values := []float64{0, 0.37, 10, 333.33, 1000, 12345.67}
	rates := []float64{0, 5, 12, 18, 28}
	for _, v := range values {
		for _, g := range rates {
			for _, inter := range []bool{true, false} {
				s, err := gst.SplitGST(v, g, inter)
				require.NoError(t, err)
				// each of the two intra-state halves may round by half a paisa
				assert.InDelta(t, v*g/100, s.Total(), 0.011, "value=%v rate=%v interstate=%v", v, g, inter)
			}
		}
	}
}

func TestComposeInvoiceValue(t *testing.T) {
	assert.Equal(t, 1180.0, gst.ComposeInvoiceValue(1000, 0, 90, 90))
	assert.Equal(t, 0.3, gst.ComposeInvoiceValue(0.1, 0.2, 0, 0))
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.01, gst.Round2(1.005))
	assert.Equal(t, 2.68, gst.Round2(2.675))
	assert.Equal(t, -1.01, gst.Round2(-1.005))
	assert.Equal(t, 0.0, gst.Round2(0.004))
}

func TestComputeLine_Shampoo(t *testing.T) {
	line, err := gst.ComputeLine(gst.LineInput{PriceInclGST: 118, GSTPercent: 18, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 100.0, line.UnitPriceExclGST)
	assert.Equal(t, 100.0, line.UnitCostExclGST)
	assert.Equal(t, 1000.0, line.TaxableValue)
	assert.Equal(t, 90.0, line.CGST)
	assert.Equal(t, 90.0, line.SGST)
	assert.Equal(t, 0.0, line.IGST)
	assert.Equal(t, 1180.0, line.InvoiceValue)
}

func TestComputeLine_RoundsOnce(t *testing.T) {
	// 99/1.18 = 83.898305..., rounding the unit price first would give 83.90 * 7 = 587.30
	line, err := gst.ComputeLine(gst.LineInput{PriceInclGST: 99, GSTPercent: 18, Quantity: 7})
	require.NoError(t, err)
	assert.Equal(t, 587.29, line.TaxableValue)
	assert.Equal(t, 83.9, line.UnitPriceExclGST)
}

func TestComputeLine_DiscountInterstate(t *testing.T) {
	line, err := gst.ComputeLine(gst.LineInput{
		PriceInclGST:    236,
		DiscountPercent: 10,
		GSTPercent:      18,
		Quantity:        2,
		Interstate:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 180.0, line.UnitCostExclGST)
	assert.Equal(t, 360.0, line.TaxableValue)
	assert.Equal(t, 64.8, line.IGST)
	assert.Equal(t, 0.0, line.CGST)
	assert.Equal(t, 424.8, line.InvoiceValue)
}

func TestComputeLine_InvoiceInvariant(t *testing.T) {
	for _, p := range []float64{1.11, 17.5, 118, 499.99} {
		for _, q := range []float64{1, 3, 7.5} {
			line, err := gst.ComputeLine(gst.LineInput{PriceInclGST: p, GSTPercent: 12, DiscountPercent: 5, Quantity: q})
			require.NoError(t, err)
			sum := line.TaxableValue + line.IGST + line.CGST + line.SGST
			assert.LessOrEqual(t, math.Abs(sum-line.InvoiceValue), 0.02)
		}
	}
}

func TestComputeLine_Invalid(t *testing.T) {
	cases := []gst.LineInput{
		{PriceInclGST: -1, GSTPercent: 18, Quantity: 1},
		{PriceInclGST: 10, GSTPercent: -18, Quantity: 1},
		{PriceInclGST: 10, GSTPercent: 18, DiscountPercent: 101, Quantity: 1},
		{PriceInclGST: 10, GSTPercent: 18, Quantity: -1},
	}
	for _, in := range cases {
		_, err := gst.ComputeLine(in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", in)
	}
}

func TestEstimateCost_RoundsOnce(t *testing.T) {
	// exclusive price is exactly 10.005; rounding it first would give 5.01
	cost, err := gst.EstimateCost(11.8059, 18, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 5.00, cost, 0.0001)

	cost, err = gst.EstimateCost(236, 18, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cost)

	_, err = gst.EstimateCost(100, 18, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
