package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-crm/meridian/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateNumber reserves the next invoice number for the given year using an
// atomic upsert on the per-year counter row.
func (r *Repository) GenerateNumber(ctx context.Context, year int) (string, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "INV", fmt.Sprintf("%d", year)).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d-%06d", year, seq), nil
}

// CreateInvoice persists a new invoice with its line items in one transaction.
func (r *Repository) CreateInvoice(ctx context.Context, input CreateInvoiceRecord) (*Invoice, error) {
	var inv *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO invoices (
				number, client_id, tax_rate, discount_rate,
				sub_total, discount_amount, tax_amount, total_amount,
				status, notes, issued_at, due_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
			RETURNING id, created_at, updated_at`

		result := Invoice{
			Number:       input.Number,
			ClientID:     input.ClientID,
			TaxRate:      input.TaxRate,
			DiscountRate: input.DiscountRate,
			Totals:       input.Totals,
			Status:       StatusPending,
			Notes:        input.Notes,
			IssuedAt:     input.IssuedAt,
			DueAt:        input.DueAt,
		}
		err := tx.QueryRow(ctx, query,
			input.Number,
			input.ClientID,
			input.TaxRate,
			input.DiscountRate,
			input.Totals.SubTotal,
			input.Totals.DiscountAmount,
			input.Totals.TaxAmount,
			input.Totals.TotalAmount,
			string(StatusPending),
			input.Notes,
			input.IssuedAt,
			input.DueAt,
		).Scan(&result.ID, &result.CreatedAt, &result.UpdatedAt)
		if err != nil {
			return err
		}

		items, err := insertItems(ctx, tx, result.ID, input.Items)
		if err != nil {
			return err
		}
		result.Items = items
		result.Totals.TaxableAmount = input.Totals.TaxableAmount
		inv = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID int64, items []LineItem) ([]LineItem, error) {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			invoiceID, item.Description, item.Quantity, item.UnitPrice,
		).Scan(&id)
		if err != nil {
			return nil, err
		}
		item.ID = id
		item.InvoiceID = invoiceID
		out = append(out, item)
	}
	return out, nil
}

// ReplaceInvoice rewrites the line items and rates of an invoice. It refuses
// to touch an invoice that already has payments recorded against it, since the
// payment history was accepted against the current total.
func (r *Repository) ReplaceInvoice(ctx context.Context, id int64, input UpdateInvoiceRecord) (*Invoice, error) {
	var inv *Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT true FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var paymentCount int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_payments WHERE invoice_id = $1`, id).Scan(&paymentCount); err != nil {
			return err
		}
		if paymentCount > 0 {
			return ErrLocked
		}

		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
			return err
		}
		items, err := insertItems(ctx, tx, id, input.Items)
		if err != nil {
			return err
		}

		result := Invoice{
			ID:           id,
			TaxRate:      input.TaxRate,
			DiscountRate: input.DiscountRate,
			Totals:       input.Totals,
			Notes:        input.Notes,
			DueAt:        input.DueAt,
			Items:        items,
		}
		err = tx.QueryRow(ctx, `
			UPDATE invoices SET
				tax_rate = $2, discount_rate = $3,
				sub_total = $4, discount_amount = $5, tax_amount = $6, total_amount = $7,
				notes = $8, due_at = $9, updated_at = NOW()
			WHERE id = $1
			RETURNING number, client_id, status, issued_at, created_at, updated_at`,
			id,
			input.TaxRate,
			input.DiscountRate,
			input.Totals.SubTotal,
			input.Totals.DiscountAmount,
			input.Totals.TaxAmount,
			input.Totals.TotalAmount,
			input.Notes,
			input.DueAt,
		).Scan(&result.Number, &result.ClientID, &result.Status, &result.IssuedAt, &result.CreatedAt, &result.UpdatedAt)
		if err != nil {
			return err
		}
		inv = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInvoice retrieves an invoice with its line items.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `
		SELECT id, number, client_id, tax_rate, discount_rate,
			sub_total, discount_amount, tax_amount, total_amount,
			status, notes, issued_at, due_at, created_at, updated_at
		FROM invoices
		WHERE id = $1`

	var inv Invoice
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &inv.TaxRate, &inv.DiscountRate,
		&inv.Totals.SubTotal, &inv.Totals.DiscountAmount, &inv.Totals.TaxAmount, &inv.Totals.TotalAmount,
		&inv.Status, &inv.Notes, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Totals.TaxableAmount = inv.Totals.SubTotal.Sub(inv.Totals.DiscountAmount)

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return &inv, nil
}

func (r *Repository) listItems(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetInvoiceWithDetails retrieves an invoice with its payment history and
// derived payment state.
func (r *Repository) GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	var clientName string
	_ = r.pool.QueryRow(ctx, `SELECT name FROM clients WHERE id = $1`, inv.ClientID).Scan(&clientName)

	payments, err := r.ListPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	paid := TotalPaid(payments)
	return &InvoiceWithDetails{
		Invoice:    *inv,
		ClientName: clientName,
		Payments:   payments,
		TotalPaid:  paid,
		Balance:    Balance(inv.Totals, paid),
	}, nil
}

// ListInvoices returns a page of invoices plus the total count for the filter.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argNum := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.ClientID > 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argNum)
		args = append(args, req.ClientID)
		argNum++
	}
	if !req.FromDate.IsZero() {
		where += fmt.Sprintf(" AND issued_at >= $%d", argNum)
		args = append(args, req.FromDate)
		argNum++
	}
	if !req.ToDate.IsZero() {
		where += fmt.Sprintf(" AND issued_at <= $%d", argNum)
		args = append(args, req.ToDate)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, number, client_id, tax_rate, discount_rate,
			sub_total, discount_amount, tax_amount, total_amount,
			status, notes, issued_at, due_at, created_at, updated_at
		FROM invoices %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		err := rows.Scan(
			&inv.ID, &inv.Number, &inv.ClientID, &inv.TaxRate, &inv.DiscountRate,
			&inv.Totals.SubTotal, &inv.Totals.DiscountAmount, &inv.Totals.TaxAmount, &inv.Totals.TotalAmount,
			&inv.Status, &inv.Notes, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		inv.Totals.TaxableAmount = inv.Totals.SubTotal.Sub(inv.Totals.DiscountAmount)
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// AddPayment appends a payment to the invoice's history. The invoice row is
// locked for the duration of the balance check so concurrent submissions can
// never jointly overpay against a stale balance.
func (r *Repository) AddPayment(ctx context.Context, invoiceID int64, input PaymentRecord) (*Payment, error) {
	var payment *Payment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var total decimal.Decimal
		err := tx.QueryRow(ctx, `SELECT total_amount FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID).Scan(&total)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var paid decimal.Decimal
		if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1`, invoiceID).Scan(&paid); err != nil {
			return err
		}
		if input.Amount.GreaterThan(total.Sub(paid)) {
			return ErrOverpayment
		}

		result := Payment{
			InvoiceID: invoiceID,
			Amount:    input.Amount,
			Method:    input.Method,
			PaidAt:    input.PaidAt,
			Reference: input.Reference,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO invoice_payments (invoice_id, amount, method, paid_at, reference, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, created_at`,
			invoiceID, input.Amount, string(input.Method), input.PaidAt, input.Reference,
		).Scan(&result.ID, &result.CreatedAt)
		if err != nil {
			return err
		}
		payment = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments returns the payment history of an invoice in record order.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, method, paid_at, reference, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt, &p.Reference, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SetStatus assigns the invoice status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverdue returns pending invoices past their due date that still carry an
// outstanding balance.
func (r *Repository) ListOverdue(ctx context.Context, asOf time.Time) ([]InvoiceWithDetails, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.number, i.client_id, i.total_amount, i.due_at,
			COALESCE(c.name, ''), COALESCE(SUM(p.amount), 0)
		FROM invoices i
		LEFT JOIN clients c ON c.id = i.client_id
		LEFT JOIN invoice_payments p ON p.invoice_id = i.id
		WHERE i.status = 'pending' AND i.due_at < $1
		GROUP BY i.id, c.name
		HAVING i.total_amount > COALESCE(SUM(p.amount), 0)
		ORDER BY i.due_at`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceWithDetails
	for rows.Next() {
		var d InvoiceWithDetails
		if err := rows.Scan(&d.ID, &d.Number, &d.ClientID, &d.Totals.TotalAmount, &d.DueAt, &d.ClientName, &d.TotalPaid); err != nil {
			return nil, err
		}
		d.Balance = d.Totals.TotalAmount.Sub(d.TotalPaid)
		out = append(out, d)
	}
	return out, rows.Err()
}
