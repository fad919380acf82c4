package invoices

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice statuses. Transitions are unrestricted:
// any status may move to any other, and status is never derived from the
// payment balance.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "pending"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s InvoiceStatus) bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash      PaymentMethod = "cash"
	MethodBank      PaymentMethod = "bank"
	MethodCheck     PaymentMethod = "check"
	MethodMobile    PaymentMethod = "mobile"
	MethodSimulated PaymentMethod = "simulated"
)

// ValidMethod reports whether m is one of the known payment methods.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodBank, MethodCheck, MethodMobile, MethodSimulated:
		return true
	}
	return false
}

// LineItem is a single billable row on an invoice.
type LineItem struct {
	ID          int64
	InvoiceID   int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Payment is one append-only entry in an invoice's payment history.
type Payment struct {
	ID        int64
	InvoiceID int64
	Amount    decimal.Decimal
	Method    PaymentMethod
	PaidAt    time.Time
	Reference string
	CreatedAt time.Time
}

// Totals bundles the derived monetary amounts of an invoice. All values are
// kept at full precision; rounding happens only at the response boundary.
type Totals struct {
	SubTotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxableAmount  decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Invoice model. Totals are always recomputed from Items/TaxRate/DiscountRate
// on every mutation, never trusted as stored values.
type Invoice struct {
	ID           int64
	Number       string
	ClientID     int64
	Items        []LineItem
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Totals       Totals
	Status       InvoiceStatus
	Notes        string
	IssuedAt     time.Time
	DueAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvoiceWithDetails carries an invoice together with its payment history and
// derived payment state.
type InvoiceWithDetails struct {
	Invoice
	ClientName string
	Payments   []Payment
	TotalPaid  decimal.Decimal
	Balance    decimal.Decimal
}

// FullyPaid reports whether the outstanding balance has reached zero. It is a
// convenience derivation only: status stays whatever the caller set it to.
func (d *InvoiceWithDetails) FullyPaid() bool {
	return d.Balance.LessThanOrEqual(decimal.Zero)
}

// Domain errors.
var (
	ErrNotFound        = errors.New("invoices: not found")
	ErrInvalidRate     = errors.New("invoices: rate must be between 0 and 100")
	ErrInvalidLineItem = errors.New("invoices: quantity and unit price must be non-negative")
	ErrEmptyInvoice    = errors.New("invoices: at least one line item required")
	ErrInvalidAmount   = errors.New("invoices: payment amount must be positive")
	ErrInvalidMethod   = errors.New("invoices: unknown payment method")
	ErrInvalidStatus   = errors.New("invoices: unknown status")
	ErrOverpayment     = errors.New("invoices: payment exceeds outstanding balance")
	ErrLocked          = errors.New("invoices: items and rates cannot change once payments exist")
)
