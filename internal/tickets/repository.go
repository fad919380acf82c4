package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for tickets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextSequence reserves the next ticket sequence for the given year. The
// upsert increments the per-year counter row atomically, so two concurrent
// creations can never observe the same value. Counting existing rows is
// deliberately not used: it races under concurrent writes.
func (r *Repository) NextSequence(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, "TKT", fmt.Sprintf("%d", year)).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// CreateTicket persists a new ticket under its assigned number. A unique
// index on ticket number backstops the sequence counter; violations map to
// ErrDuplicateNumber so the caller can retry with a fresh sequence.
func (r *Repository) CreateTicket(ctx context.Context, input CreateTicketRecord) (*Ticket, error) {
	query := `
		INSERT INTO tickets (number, client_id, subject, description, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	ticket := Ticket{
		Number:      input.Number,
		ClientID:    input.ClientID,
		Subject:     input.Subject,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      StatusOpen,
	}
	err := r.pool.QueryRow(ctx, query,
		input.Number,
		input.ClientID,
		input.Subject,
		input.Description,
		string(input.Priority),
		string(StatusOpen),
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateNumber
		}
		return nil, err
	}
	return &ticket, nil
}

// GetTicket retrieves a ticket by ID.
func (r *Repository) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	query := `
		SELECT id, number, client_id, subject, description, priority, status,
			assignee_id, created_at, updated_at, resolved_at
		FROM tickets
		WHERE id = $1`

	var t Ticket
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Number, &t.ClientID, &t.Subject, &t.Description, &t.Priority, &t.Status,
		&t.AssigneeID, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTickets returns a page of tickets plus the total count for the filter.
func (r *Repository) ListTickets(ctx context.Context, req ListTicketsRequest) ([]Ticket, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argNum := 1

	if req.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.Priority != "" {
		where += fmt.Sprintf(" AND priority = $%d", argNum)
		args = append(args, string(req.Priority))
		argNum++
	}
	if req.ClientID > 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argNum)
		args = append(args, req.ClientID)
		argNum++
	}
	if req.AssigneeID > 0 {
		where += fmt.Sprintf(" AND assignee_id = $%d", argNum)
		args = append(args, req.AssigneeID)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tickets "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, number, client_id, subject, description, priority, status,
			assignee_id, created_at, updated_at, resolved_at
		FROM tickets %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		err := rows.Scan(
			&t.ID, &t.Number, &t.ClientID, &t.Subject, &t.Description, &t.Priority, &t.Status,
			&t.AssigneeID, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// UpdateTicket rewrites the mutable fields. Number is never touched.
func (r *Repository) UpdateTicket(ctx context.Context, id int64, input UpdateTicketRecord) (*Ticket, error) {
	query := `
		UPDATE tickets SET
			subject = $2, description = $3, priority = $4, assignee_id = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, number, client_id, subject, description, priority, status,
			assignee_id, created_at, updated_at, resolved_at`

	var t Ticket
	err := r.pool.QueryRow(ctx, query, id, input.Subject, input.Description, string(input.Priority), input.AssigneeID).Scan(
		&t.ID, &t.Number, &t.ClientID, &t.Subject, &t.Description, &t.Priority, &t.Status,
		&t.AssigneeID, &t.CreatedAt, &t.UpdatedAt, &t.ResolvedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetStatus assigns the ticket status, stamping resolved_at when the ticket
// moves to resolved or closed and clearing it when it reopens. A ticket closed
// after being resolved keeps its original resolution time.
func (r *Repository) SetStatus(ctx context.Context, id int64, status TicketStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET
			status = $2,
			resolved_at = CASE
				WHEN $2 = 'resolved' OR $2 = 'closed' THEN COALESCE(resolved_at, NOW())
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddComment appends a comment to the ticket thread.
func (r *Repository) AddComment(ctx context.Context, input CreateCommentRecord) (*Comment, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM tickets WHERE id = $1`, input.TicketID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	comment := Comment{
		TicketID: input.TicketID,
		AuthorID: input.AuthorID,
		Body:     input.Body,
		Internal: input.Internal,
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO ticket_comments (ticket_id, author_id, body, internal, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		input.TicketID, input.AuthorID, input.Body, input.Internal,
	).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns the ticket thread in chronological order.
func (r *Repository) ListComments(ctx context.Context, ticketID int64) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ticket_id, author_id, body, internal, created_at
		FROM ticket_comments
		WHERE ticket_id = $1
		ORDER BY id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.Body, &c.Internal, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
