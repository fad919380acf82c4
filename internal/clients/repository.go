package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists clients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, company, email, phone, address, city, country, notes, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone,
		&c.Address, &c.City, &c.Country, &c.Notes, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) CreateClient(ctx context.Context, input CreateClientRecord) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clients (name, company, email, phone, address, city, country, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING `+clientColumns,
		input.Name, input.Company, input.Email, input.Phone,
		input.Address, input.City, input.Country, input.Notes,
	)
	return scanClient(row)
}

func (r *Repository) GetClient(ctx context.Context, id int64) (*Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (r *Repository) ListClients(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.IsActive != nil {
		where += fmt.Sprintf(" AND is_active = $%d", argPos)
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR company ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clients "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM clients %s ORDER BY name LIMIT $%d OFFSET $%d`,
		clientColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone,
			&c.Address, &c.City, &c.Country, &c.Notes, &c.IsActive,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *Repository) UpdateClient(ctx context.Context, id int64, input UpdateClientRecord) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE clients
		SET name = $2, company = $3, email = $4, phone = $5,
		    address = $6, city = $7, country = $8, notes = $9,
		    is_active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING `+clientColumns,
		id, input.Name, input.Company, input.Email, input.Phone,
		input.Address, input.City, input.Country, input.Notes, input.IsActive,
	)
	return scanClient(row)
}

// BillingEmail returns the client's email, or "" when none is on file.
func (r *Repository) BillingEmail(ctx context.Context, id int64) (string, error) {
	var email *string
	err := r.pool.QueryRow(ctx, `SELECT email FROM clients WHERE id = $1`, id).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if email == nil {
		return "", nil
	}
	return *email, nil
}

func (r *Repository) DeleteClient(ctx context.Context, id int64) error {
	// Soft delete keeps invoice and ticket history referencing the client intact.
	tag, err := r.pool.Exec(ctx, `UPDATE clients SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
