package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind the dashboard.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) KPISummary(ctx context.Context) (KPISummary, error) {
	summary := KPISummary{InvoiceCounts: make(map[string]int)}

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM invoice_payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.status <> 'cancelled'`,
	).Scan(&summary.RevenueCollected)
	if err != nil {
		return KPISummary{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.total_amount - COALESCE(paid.amount, 0)), 0)
		FROM invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount) AS amount
			FROM invoice_payments
			GROUP BY invoice_id
		) paid ON paid.invoice_id = i.id
		WHERE i.status = 'pending'`,
	).Scan(&summary.OutstandingBalance)
	if err != nil {
		return KPISummary{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM invoices GROUP BY status`)
	if err != nil {
		return KPISummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return KPISummary{}, err
		}
		summary.InvoiceCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return KPISummary{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE status IN ('open', 'in_progress')`,
	).Scan(&summary.OpenTickets)
	if err != nil {
		return KPISummary{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(value), 0) FROM opportunities WHERE stage NOT IN ('won', 'lost')`,
	).Scan(&summary.PipelineValue)
	if err != nil {
		return KPISummary{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM clients WHERE is_active`,
	).Scan(&summary.ActiveClients)
	if err != nil {
		return KPISummary{}, err
	}

	return summary, nil
}

// InvoiceAging buckets unpaid pending invoices by days past due.
func (r *Repository) InvoiceAging(ctx context.Context, asOf time.Time) ([]AgingBucket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			CASE
				WHEN i.due_at >= $1 THEN 'current'
				WHEN $1::date - i.due_at::date <= 30 THEN '1-30'
				WHEN $1::date - i.due_at::date <= 60 THEN '31-60'
				WHEN $1::date - i.due_at::date <= 90 THEN '61-90'
				WHEN $1::date - i.due_at::date <= 120 THEN '91-120'
				ELSE '120+'
			END AS bucket,
			COUNT(*),
			COALESCE(SUM(i.total_amount - COALESCE(paid.amount, 0)), 0)
		FROM invoices i
		LEFT JOIN (
			SELECT invoice_id, SUM(amount) AS amount
			FROM invoice_payments
			GROUP BY invoice_id
		) paid ON paid.invoice_id = i.id
		WHERE i.status = 'pending'
		  AND i.total_amount - COALESCE(paid.amount, 0) > 0
		GROUP BY bucket`,
		asOf,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]AgingBucket)
	for rows.Next() {
		var b AgingBucket
		if err := rows.Scan(&b.Bucket, &b.Count, &b.Amount); err != nil {
			return nil, err
		}
		byName[b.Bucket] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stable bucket order, zero-filled so the dashboard always shows all bands.
	order := []string{"current", "1-30", "31-60", "61-90", "91-120", "120+"}
	out := make([]AgingBucket, 0, len(order))
	for _, name := range order {
		b, ok := byName[name]
		if !ok {
			b = AgingBucket{Bucket: name}
		}
		out = append(out, b)
	}
	return out, nil
}

// MonthlyRevenue returns collected payment totals per month, oldest first.
func (r *Repository) MonthlyRevenue(ctx context.Context, months int) ([]RevenuePoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(date_trunc('month', p.paid_at), 'YYYY-MM') AS month,
		       COALESCE(SUM(p.amount), 0)
		FROM invoice_payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.status <> 'cancelled'
		  AND p.paid_at >= date_trunc('month', NOW()) - ($1 - 1) * INTERVAL '1 month'
		GROUP BY month
		ORDER BY month`,
		months,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RevenuePoint
	for rows.Next() {
		var p RevenuePoint
		if err := rows.Scan(&p.Month, &p.Amount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
