package invoices

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives the monetary totals of an invoice from its line items
// and percentage rates. The discount applies to the pre-discount subtotal and
// tax applies to the discounted amount:
//
//	subTotal       = Σ(quantity × unitPrice)
//	discountAmount = subTotal × discountRate/100
//	taxableAmount  = subTotal − discountAmount
//	taxAmount      = taxableAmount × taxRate/100
//	totalAmount    = taxableAmount + taxAmount
//
// The function is pure: identical inputs always yield identical outputs, and
// no rounding is applied to intermediate values.
func ComputeTotals(items []LineItem, taxRate, discountRate decimal.Decimal) (Totals, error) {
	if err := validateRate(taxRate); err != nil {
		return Totals{}, err
	}
	if err := validateRate(discountRate); err != nil {
		return Totals{}, err
	}
	if len(items) == 0 {
		return Totals{}, ErrEmptyInvoice
	}

	subTotal := decimal.Zero
	for _, item := range items {
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidLineItem
		}
		subTotal = subTotal.Add(item.Quantity.Mul(item.UnitPrice))
	}

	discountAmount := subTotal.Mul(discountRate).Div(hundred)
	taxableAmount := subTotal.Sub(discountAmount)
	taxAmount := taxableAmount.Mul(taxRate).Div(hundred)

	return Totals{
		SubTotal:       subTotal,
		DiscountAmount: discountAmount,
		TaxableAmount:  taxableAmount,
		TaxAmount:      taxAmount,
		TotalAmount:    taxableAmount.Add(taxAmount),
	}, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return ErrInvalidRate
	}
	return nil
}

// TotalPaid sums the amounts of a payment history.
func TotalPaid(payments []Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Balance returns totalAmount − totalPaid. A successful payment sequence can
// never drive it negative because each payment is checked against the balance
// under a row lock before it is appended.
func Balance(totals Totals, totalPaid decimal.Decimal) decimal.Decimal {
	return totals.TotalAmount.Sub(totalPaid)
}

// Round returns a copy of the totals rounded to the given number of decimal
// places. Used at the response boundary only; internal arithmetic stays exact.
func (t Totals) Round(places int32) Totals {
	return Totals{
		SubTotal:       t.SubTotal.Round(places),
		DiscountAmount: t.DiscountAmount.Round(places),
		TaxableAmount:  t.TaxableAmount.Round(places),
		TaxAmount:      t.TaxAmount.Round(places),
		TotalAmount:    t.TotalAmount.Round(places),
	}
}
