package opportunities

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/platform/db"
)

// Repository persists opportunities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const opportunityColumns = `id, client_id, title, stage, value, probability, expected_close_at, notes, closed_at, created_at, updated_at`

func scanOpportunity(row pgx.Row) (*Opportunity, error) {
	var o Opportunity
	err := row.Scan(
		&o.ID, &o.ClientID, &o.Title, &o.Stage, &o.Value, &o.Probability,
		&o.ExpectedCloseAt, &o.Notes, &o.ClosedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repository) CreateOpportunity(ctx context.Context, input CreateOpportunityRecord) (*Opportunity, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO opportunities (client_id, title, stage, value, probability, expected_close_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+opportunityColumns,
		input.ClientID, input.Title, input.Stage, input.Value,
		input.Probability, input.ExpectedCloseAt, input.Notes,
	)
	return scanOpportunity(row)
}

func (r *Repository) GetOpportunity(ctx context.Context, id int64) (*Opportunity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
	return scanOpportunity(row)
}

func (r *Repository) ListOpportunities(ctx context.Context, req ListOpportunitiesRequest) ([]Opportunity, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	argPos := 1

	if req.Stage != "" {
		where += fmt.Sprintf(" AND stage = $%d", argPos)
		args = append(args, req.Stage)
		argPos++
	}
	if req.ClientID > 0 {
		where += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, req.ClientID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM opportunities %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		opportunityColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		var o Opportunity
		if err := rows.Scan(
			&o.ID, &o.ClientID, &o.Title, &o.Stage, &o.Value, &o.Probability,
			&o.ExpectedCloseAt, &o.Notes, &o.ClosedAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *Repository) UpdateOpportunity(ctx context.Context, id int64, input UpdateOpportunityRecord) (*Opportunity, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE opportunities
		SET title = $2, value = $3, probability = $4,
		    expected_close_at = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+opportunityColumns,
		id, input.Title, input.Value, input.Probability, input.ExpectedCloseAt, input.Notes,
	)
	return scanOpportunity(row)
}

// SetStage moves the opportunity and appends the transition to stage history
// in one transaction.
func (r *Repository) SetStage(ctx context.Context, id int64, stage Stage) (*Opportunity, error) {
	var out *Opportunity
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current Stage
		err := tx.QueryRow(ctx, `SELECT stage FROM opportunities WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if current == stage {
			row := tx.QueryRow(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
			out, err = scanOpportunity(row)
			return err
		}

		row := tx.QueryRow(ctx, `
			UPDATE opportunities
			SET stage = $2,
			    closed_at = CASE WHEN $2 IN ('won', 'lost') THEN NOW() ELSE NULL END,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+opportunityColumns,
			id, stage,
		)
		out, err = scanOpportunity(row)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO opportunity_stage_events (opportunity_id, from_stage, to_stage, changed_at)
			VALUES ($1, $2, $3, NOW())`,
			id, current, stage,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListStageEvents(ctx context.Context, opportunityID int64) ([]StageEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, opportunity_id, from_stage, to_stage, changed_at
		FROM opportunity_stage_events
		WHERE opportunity_id = $1
		ORDER BY changed_at, id`,
		opportunityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageEvent
	for rows.Next() {
		var e StageEvent
		if err := rows.Scan(&e.ID, &e.OpportunityID, &e.FromStage, &e.ToStage, &e.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
