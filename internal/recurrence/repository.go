package recurrence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists recurring transaction definitions.
type Repository interface {
	List(ctx context.Context) ([]Definition, error)
	ListDue(ctx context.Context, now time.Time) ([]Definition, error)
	Get(ctx context.Context, id int64) (Definition, error)
	Create(ctx context.Context, d Definition) (Definition, error)
	Update(ctx context.Context, d Definition) (Definition, error)
	Delete(ctx context.Context, id int64) error
	SetNextRun(ctx context.Context, id int64, next time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed recurrence repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const definitionColumns = `id, name, from_account_id, to_account_id, amount, frequency, first_run, next_run, nature, is_active, created_at, updated_at`

func scanDefinition(row pgx.Row) (Definition, error) {
	var d Definition
	err := row.Scan(&d.ID, &d.Name, &d.FromAccountID, &d.ToAccountID, &d.Amount, &d.Frequency, &d.FirstRun, &d.NextRun, &d.Nature, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *repository) List(ctx context.Context) ([]Definition, error) {
	return r.list(ctx, `SELECT `+definitionColumns+` FROM recurring_transactions ORDER BY id`)
}

func (r *repository) ListDue(ctx context.Context, now time.Time) ([]Definition, error) {
	return r.list(ctx, `SELECT `+definitionColumns+` FROM recurring_transactions
WHERE is_active AND next_run <= $1 ORDER BY id`, now)
}

func (r *repository) list(ctx context.Context, query string, args ...any) ([]Definition, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Definition, error) {
	d, err := scanDefinition(r.db.QueryRow(ctx, `SELECT `+definitionColumns+` FROM recurring_transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Definition{}, ErrDefinitionNotFound
	}
	return d, err
}

func (r *repository) Create(ctx context.Context, d Definition) (Definition, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO recurring_transactions
(name, from_account_id, to_account_id, amount, frequency, first_run, next_run, nature, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		d.Name, d.FromAccountID, d.ToAccountID, d.Amount, d.Frequency, d.FirstRun, d.NextRun, d.Nature, d.IsActive)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Definition{}, err
	}
	return d, nil
}

func (r *repository) Update(ctx context.Context, d Definition) (Definition, error) {
	row := r.db.QueryRow(ctx, `UPDATE recurring_transactions SET
name=$2, from_account_id=$3, to_account_id=$4, amount=$5, frequency=$6, first_run=$7, next_run=$8, nature=$9, is_active=$10, updated_at=now()
WHERE id=$1 RETURNING updated_at`,
		d.ID, d.Name, d.FromAccountID, d.ToAccountID, d.Amount, d.Frequency, d.FirstRun, d.NextRun, d.Nature, d.IsActive)
	if err := row.Scan(&d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrDefinitionNotFound
		}
		return Definition{}, err
	}
	return d, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recurring_transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

func (r *repository) SetNextRun(ctx context.Context, id int64, next time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE recurring_transactions SET next_run = $2, updated_at = now() WHERE id = $1`, id, next)
	return err
}
