package invoices

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func items(pairs ...float64) []LineItem {
	out := make([]LineItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, LineItem{Quantity: dec(pairs[i]), UnitPrice: dec(pairs[i+1])})
	}
	return out
}

func TestComputeTotalsExample(t *testing.T) {
	totals, err := ComputeTotals(items(2, 100, 1, 50), dec(20), dec(10))
	require.NoError(t, err)

	require.True(t, totals.SubTotal.Equal(dec(250)), "sub total %s", totals.SubTotal)
	require.True(t, totals.DiscountAmount.Equal(dec(25)), "discount %s", totals.DiscountAmount)
	require.True(t, totals.TaxableAmount.Equal(dec(225)), "taxable %s", totals.TaxableAmount)
	require.True(t, totals.TaxAmount.Equal(dec(45)), "tax %s", totals.TaxAmount)
	require.True(t, totals.TotalAmount.Equal(dec(270)), "total %s", totals.TotalAmount)
}

func TestComputeTotalsZeroRatesEqualsSubTotal(t *testing.T) {
	totals, err := ComputeTotals(items(3, 40, 2, 15.5), decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	require.True(t, totals.TotalAmount.Equal(totals.SubTotal))
	require.True(t, totals.DiscountAmount.IsZero())
	require.True(t, totals.TaxAmount.IsZero())
}

func TestComputeTotalsFormula(t *testing.T) {
	cases := []struct {
		name     string
		discount float64
		tax      float64
	}{
		{"no rates", 0, 0},
		{"discount only", 12.5, 0},
		{"tax only", 0, 18},
		{"both", 7, 20},
		{"full discount", 100, 20},
		{"full tax", 10, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := ComputeTotals(items(4, 9.99, 1, 120), dec(tc.tax), dec(tc.discount))
			require.NoError(t, err)

			// totalAmount = subTotal × (1 − discount/100) × (1 + tax/100)
			expected := totals.SubTotal.
				Mul(decimal.NewFromInt(1).Sub(dec(tc.discount).Div(hundred))).
				Mul(decimal.NewFromInt(1).Add(dec(tc.tax).Div(hundred)))
			require.True(t, totals.TotalAmount.Equal(expected),
				"total %s expected %s", totals.TotalAmount, expected)
		})
	}
}

func TestComputeTotalsIdempotent(t *testing.T) {
	in := items(2, 100, 1, 50)
	first, err := ComputeTotals(in, dec(20), dec(10))
	require.NoError(t, err)
	second, err := ComputeTotals(in, dec(20), dec(10))
	require.NoError(t, err)
	require.True(t, first.TotalAmount.Equal(second.TotalAmount))
	require.True(t, first.SubTotal.Equal(second.SubTotal))
}

func TestComputeTotalsRejectsBadInput(t *testing.T) {
	valid := items(1, 10)

	_, err := ComputeTotals(valid, dec(101), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = ComputeTotals(valid, decimal.Zero, dec(-1))
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = ComputeTotals(items(-1, 10), decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidLineItem)

	_, err = ComputeTotals(items(1, -10), decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidLineItem)

	_, err = ComputeTotals(nil, decimal.Zero, decimal.Zero)
	require.ErrorIs(t, err, ErrEmptyInvoice)
}

func TestComputeTotalsNoIntermediateRounding(t *testing.T) {
	// 3 × 33.33 = 99.99; 5% discount and 20% tax keep fractional
	// intermediates that must survive until the final rounding boundary.
	totals, err := ComputeTotals(items(3, 33.33), dec(20), dec(5))
	require.NoError(t, err)

	require.True(t, totals.SubTotal.Equal(dec(99.99)))
	require.True(t, totals.DiscountAmount.Equal(dec(4.9995)))
	require.True(t, totals.TotalAmount.Equal(dec(113.9886)), "total %s", totals.TotalAmount)

	rounded := totals.Round(0)
	require.True(t, rounded.TotalAmount.Equal(dec(114)))
}

func TestBalanceDerivation(t *testing.T) {
	totals, err := ComputeTotals(items(2, 100, 1, 50), dec(20), dec(10))
	require.NoError(t, err)

	payments := []Payment{
		{Amount: dec(100)},
		{Amount: dec(70)},
	}
	paid := TotalPaid(payments)
	require.True(t, paid.Equal(dec(170)))
	require.True(t, Balance(totals, paid).Equal(dec(100)))
}
