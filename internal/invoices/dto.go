package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

// moneyPlaces is the rounding applied at the response boundary. The ledger
// currency carries no subunits, so responses show whole units.
const moneyPlaces = 0

type lineItemRequest struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type createInvoiceRequest struct {
	ClientID     int64             `json:"client_id" validate:"required,gt=0"`
	Items        []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	TaxRate      float64           `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountRate float64           `json:"discount_rate" validate:"gte=0,lte=100"`
	Notes        string            `json:"notes,omitempty"`
	IssuedAt     *time.Time        `json:"issued_at,omitempty"`
	DueAt        *time.Time        `json:"due_at,omitempty"`
}

type updateInvoiceRequest struct {
	Items        []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	TaxRate      float64           `json:"tax_rate" validate:"gte=0,lte=100"`
	DiscountRate float64           `json:"discount_rate" validate:"gte=0,lte=100"`
	Notes        string            `json:"notes,omitempty"`
	DueAt        *time.Time        `json:"due_at,omitempty"`
}

type recordPaymentRequest struct {
	Amount    float64    `json:"amount" validate:"required,gt=0"`
	Method    string     `json:"method" validate:"required"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	Reference string     `json:"reference,omitempty"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type lineItemResponse struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type paymentResponse struct {
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paid_at"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type invoiceResponse struct {
	ID             int64              `json:"id"`
	Number         string             `json:"number"`
	ClientID       int64              `json:"client_id"`
	Items          []lineItemResponse `json:"items,omitempty"`
	TaxRate        float64            `json:"tax_rate"`
	DiscountRate   float64            `json:"discount_rate"`
	SubTotal       float64            `json:"sub_total"`
	DiscountAmount float64            `json:"discount_amount"`
	TaxAmount      float64            `json:"tax_amount"`
	TotalAmount    float64            `json:"total_amount"`
	Status         string             `json:"status"`
	Notes          string             `json:"notes,omitempty"`
	IssuedAt       time.Time          `json:"issued_at"`
	DueAt          time.Time          `json:"due_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type invoiceDetailResponse struct {
	invoiceResponse
	ClientName string            `json:"client_name,omitempty"`
	Payments   []paymentResponse `json:"payments"`
	TotalPaid  float64           `json:"total_paid"`
	Balance    float64           `json:"balance"`
	FullyPaid  bool              `json:"fully_paid"`
}

func money(d decimal.Decimal) float64 {
	return d.Round(moneyPlaces).InexactFloat64()
}

func toInvoiceResponse(inv *Invoice) invoiceResponse {
	totals := inv.Totals.Round(moneyPlaces)
	items := make([]lineItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, lineItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity.InexactFloat64(),
			UnitPrice:   item.UnitPrice.InexactFloat64(),
		})
	}
	return invoiceResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		ClientID:       inv.ClientID,
		Items:          items,
		TaxRate:        inv.TaxRate.InexactFloat64(),
		DiscountRate:   inv.DiscountRate.InexactFloat64(),
		SubTotal:       totals.SubTotal.InexactFloat64(),
		DiscountAmount: totals.DiscountAmount.InexactFloat64(),
		TaxAmount:      totals.TaxAmount.InexactFloat64(),
		TotalAmount:    totals.TotalAmount.InexactFloat64(),
		Status:         string(inv.Status),
		Notes:          inv.Notes,
		IssuedAt:       inv.IssuedAt,
		DueAt:          inv.DueAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toInvoiceDetailResponse(d *InvoiceWithDetails) invoiceDetailResponse {
	payments := make([]paymentResponse, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, paymentResponse{
			ID:        p.ID,
			Amount:    money(p.Amount),
			Method:    string(p.Method),
			PaidAt:    p.PaidAt,
			Reference: p.Reference,
			CreatedAt: p.CreatedAt,
		})
	}
	return invoiceDetailResponse{
		invoiceResponse: toInvoiceResponse(&d.Invoice),
		ClientName:      d.ClientName,
		Payments:        payments,
		TotalPaid:       money(d.TotalPaid),
		Balance:         money(d.Balance),
		FullyPaid:       d.FullyPaid(),
	}
}
