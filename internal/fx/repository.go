package fx

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads and stores the current exchange rate table.
// A single current rate is kept per pair; there is no historical series.
type Repository interface {
	Load(ctx context.Context) (RateTable, error)
	Upsert(ctx context.Context, from, to string, rate float64) error
	Delete(ctx context.Context, from, to string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed rate repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Load(ctx context.Context) (RateTable, error) {
	rows, err := r.db.Query(ctx, `SELECT from_code, to_code, rate FROM fx_rates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	table := RateTable{}
	for rows.Next() {
		var from, to string
		var rate float64
		if err := rows.Scan(&from, &to, &rate); err != nil {
			return nil, err
		}
		if table[from] == nil {
			table[from] = map[string]float64{}
		}
		table[from][to] = rate
	}
	return table, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, from, to string, rate float64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO fx_rates (from_code, to_code, rate)
VALUES ($1,$2,$3)
ON CONFLICT (from_code, to_code) DO UPDATE SET rate = EXCLUDED.rate, updated_at = now()`, from, to, rate)
	return err
}

func (r *repository) Delete(ctx context.Context, from, to string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM fx_rates WHERE from_code = $1 AND to_code = $2`, from, to)
	return err
}
