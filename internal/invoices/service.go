package invoices

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-crm/meridian/internal/shared"
)

// CreateInvoiceInput describes a new invoice.
type CreateInvoiceInput struct {
	ClientID     int64
	Items        []LineItemInput
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Notes        string
	IssuedAt     time.Time
	DueAt        time.Time
}

// UpdateInvoiceInput describes an edit to items and rates.
type UpdateInvoiceInput struct {
	Items        []LineItemInput
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Notes        string
	DueAt        time.Time
}

// LineItemInput is one requested line item.
type LineItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// RecordPaymentInput describes a payment submission.
type RecordPaymentInput struct {
	Amount         decimal.Decimal
	Method         PaymentMethod
	PaidAt         time.Time
	Reference      string
	IdempotencyKey string
}

// CreateInvoiceRecord is the repository-level shape of a validated invoice.
type CreateInvoiceRecord struct {
	Number       string
	ClientID     int64
	Items        []LineItem
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Totals       Totals
	Notes        string
	IssuedAt     time.Time
	DueAt        time.Time
}

// UpdateInvoiceRecord is the repository-level shape of a validated edit.
type UpdateInvoiceRecord struct {
	Items        []LineItem
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Totals       Totals
	Notes        string
	DueAt        time.Time
}

// PaymentRecord is the repository-level shape of a validated payment.
type PaymentRecord struct {
	Amount    decimal.Decimal
	Method    PaymentMethod
	PaidAt    time.Time
	Reference string
}

// ListInvoicesRequest filters invoice listings.
type ListInvoicesRequest struct {
	Status   InvoiceStatus
	ClientID int64
	FromDate time.Time
	ToDate   time.Time
	Limit    int
	Offset   int
}

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	GenerateNumber(ctx context.Context, year int) (string, error)
	CreateInvoice(ctx context.Context, input CreateInvoiceRecord) (*Invoice, error)
	ReplaceInvoice(ctx context.Context, id int64, input UpdateInvoiceRecord) (*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	AddPayment(ctx context.Context, invoiceID int64, input PaymentRecord) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	SetStatus(ctx context.Context, id int64, status InvoiceStatus) error
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard protects mutating endpoints from duplicate submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// CacheBumper invalidates derived analytics after ledger mutations.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// Service handles invoice business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditRecorder
	idem  IdempotencyGuard
	bump  CacheBumper
	now   func() time.Time
}

// NewService builds Service instance. audit, idem and bump may be nil.
func NewService(repo RepositoryPort, audit AuditRecorder, idem IdempotencyGuard, bump CacheBumper) *Service {
	return &Service{repo: repo, audit: audit, idem: idem, bump: bump, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Create validates a new invoice, derives its totals and persists it with a
// freshly generated number.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (*Invoice, error) {
	if input.ClientID <= 0 {
		return nil, ErrInvalidLineItem
	}
	items := toLineItems(input.Items)
	totals, err := ComputeTotals(items, input.TaxRate, input.DiscountRate)
	if err != nil {
		return nil, err
	}

	issuedAt := input.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}
	dueAt := input.DueAt
	if dueAt.IsZero() {
		dueAt = issuedAt.AddDate(0, 0, 30)
	}

	number, err := s.repo.GenerateNumber(ctx, issuedAt.Year())
	if err != nil {
		return nil, err
	}

	return s.repo.CreateInvoice(ctx, CreateInvoiceRecord{
		Number:       number,
		ClientID:     input.ClientID,
		Items:        items,
		TaxRate:      input.TaxRate,
		DiscountRate: input.DiscountRate,
		Totals:       totals,
		Notes:        input.Notes,
		IssuedAt:     issuedAt,
		DueAt:        dueAt,
	})
}

// Update recomputes totals from the submitted items and rates and rewrites the
// invoice. Invoices with recorded payments are locked and return ErrLocked.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInvoiceInput) (*Invoice, error) {
	items := toLineItems(input.Items)
	totals, err := ComputeTotals(items, input.TaxRate, input.DiscountRate)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.ReplaceInvoice(ctx, id, UpdateInvoiceRecord{
		Items:        items,
		TaxRate:      input.TaxRate,
		DiscountRate: input.DiscountRate,
		Totals:       totals,
		Notes:        input.Notes,
		DueAt:        input.DueAt,
	})
	if err != nil {
		return nil, err
	}
	s.bumpCache(ctx)
	return inv, nil
}

// Get returns an invoice with its line items.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// GetWithDetails returns an invoice with payment history and balance.
func (s *Service) GetWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error) {
	return s.repo.GetInvoiceWithDetails(ctx, id)
}

// List returns invoices matching the filter plus the total for the filter.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListInvoices(ctx, req)
}

// RecordPayment appends a payment to the invoice's history after validating
// amount and method. The balance precondition (amount ≤ balance) is enforced
// by the repository under a row lock; on violation the invoice is untouched
// and ErrOverpayment is returned.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, input RecordPaymentInput) (*Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !ValidMethod(input.Method) {
		return nil, ErrInvalidMethod
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	if s.idem != nil && input.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "invoices.payment"); err != nil {
			return nil, err
		}
	}

	payment, err := s.repo.AddPayment(ctx, invoiceID, PaymentRecord{
		Amount:    input.Amount,
		Method:    input.Method,
		PaidAt:    paidAt,
		Reference: reference,
	})
	if err != nil {
		if s.idem != nil && input.IdempotencyKey != "" {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return nil, err
	}

	s.recordAudit(ctx, "invoice.payment.recorded", invoiceID, map[string]any{
		"amount":    payment.Amount.String(),
		"method":    string(payment.Method),
		"reference": payment.Reference,
	})
	s.bumpCache(ctx)
	return payment, nil
}

// SetStatus assigns a status. Any of the three values may follow any other;
// the balance is not consulted.
func (s *Service) SetStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.recordAudit(ctx, "invoice.status.changed", id, map[string]any{"status": string(status)})
	s.bumpCache(ctx)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) bumpCache(ctx context.Context) {
	if s.bump == nil {
		return
	}
	_ = s.bump.Bump(ctx)
}

func toLineItems(inputs []LineItemInput) []LineItem {
	items := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, LineItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
		})
	}
	return items
}
