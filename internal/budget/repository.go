package budget

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists plans and period records.
type Repository interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	ListPlansByStatus(ctx context.Context, status PlanStatus) ([]Plan, error)
	GetPlan(ctx context.Context, id int64) (Plan, error)
	CreatePlan(ctx context.Context, p Plan) (Plan, error)
	UpdatePlan(ctx context.Context, p Plan) (Plan, error)
	DeletePlan(ctx context.Context, id int64) error

	ListPeriods(ctx context.Context, planID int64, round int) ([]PeriodRecord, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes period writes inside a transaction so a commit
// applies its whole diff or none of it.
type TxRepository interface {
	UpsertPeriod(ctx context.Context, rec PeriodRecord) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed budget repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const planColumns = `id, name, plan_type, category_id, period, hard_limit, limit_currency, soft_limit_enabled,
account_filter_mode, account_filter_ids, included_category_ids, start_date, status, round_number, rounds, created_at, updated_at`

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.CategoryID, &p.Period, &p.HardLimit, &p.LimitCurrency, &p.SoftLimitEnabled,
		&p.AccountFilterMode, &p.AccountFilterIDs, &p.IncludedCategoryIDs, &p.StartDate, &p.Status, &p.RoundNumber, &p.Rounds, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) ListPlans(ctx context.Context) ([]Plan, error) {
	return r.listPlans(ctx, `SELECT `+planColumns+` FROM budget_plans ORDER BY id`)
}

func (r *repository) ListPlansByStatus(ctx context.Context, status PlanStatus) ([]Plan, error) {
	return r.listPlans(ctx, `SELECT `+planColumns+` FROM budget_plans WHERE status = $1 ORDER BY id`, status)
}

func (r *repository) listPlans(ctx context.Context, query string, args ...any) ([]Plan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var plans []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *repository) GetPlan(ctx context.Context, id int64) (Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM budget_plans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Plan{}, ErrPlanNotFound
	}
	return p, err
}

func (r *repository) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO budget_plans
(name, plan_type, category_id, period, hard_limit, limit_currency, soft_limit_enabled, account_filter_mode, account_filter_ids, included_category_ids, start_date, status, round_number, rounds)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id, created_at, updated_at`,
		p.Name, p.Type, p.CategoryID, p.Period, p.HardLimit, p.LimitCurrency, p.SoftLimitEnabled,
		p.AccountFilterMode, p.AccountFilterIDs, p.IncludedCategoryIDs, p.StartDate, p.Status, p.RoundNumber, p.Rounds)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (r *repository) UpdatePlan(ctx context.Context, p Plan) (Plan, error) {
	row := r.db.QueryRow(ctx, `UPDATE budget_plans SET
name=$2, plan_type=$3, category_id=$4, period=$5, hard_limit=$6, limit_currency=$7, soft_limit_enabled=$8,
account_filter_mode=$9, account_filter_ids=$10, included_category_ids=$11, start_date=$12, status=$13, round_number=$14, rounds=$15, updated_at=now()
WHERE id=$1 RETURNING updated_at`,
		p.ID, p.Name, p.Type, p.CategoryID, p.Period, p.HardLimit, p.LimitCurrency, p.SoftLimitEnabled,
		p.AccountFilterMode, p.AccountFilterIDs, p.IncludedCategoryIDs, p.StartDate, p.Status, p.RoundNumber, p.Rounds)
	if err := row.Scan(&p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, err
	}
	return p, nil
}

func (r *repository) DeletePlan(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM budget_plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

const periodColumns = `id, plan_id, round_number, period_index, period_start, period_end, actual_amount, hard_limit, soft_limit, indicator_status`

func (r *repository) ListPeriods(ctx context.Context, planID int64, round int) ([]PeriodRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM budget_periods
WHERE plan_id = $1 AND round_number = $2 ORDER BY period_index`, planID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodRecord
	for rows.Next() {
		var rec PeriodRecord
		if err := rows.Scan(&rec.ID, &rec.PlanID, &rec.RoundNumber, &rec.Index, &rec.Start, &rec.End, &rec.Actual, &rec.HardLimit, &rec.SoftLimit, &rec.Indicator); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) UpsertPeriod(ctx context.Context, rec PeriodRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO budget_periods
(plan_id, round_number, period_index, period_start, period_end, actual_amount, hard_limit, soft_limit, indicator_status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (plan_id, round_number, period_index) DO UPDATE SET
period_start = EXCLUDED.period_start,
period_end = EXCLUDED.period_end,
actual_amount = EXCLUDED.actual_amount,
hard_limit = EXCLUDED.hard_limit,
soft_limit = EXCLUDED.soft_limit,
indicator_status = EXCLUDED.indicator_status,
updated_at = now()`,
		rec.PlanID, rec.RoundNumber, rec.Index, rec.Start, rec.End, rec.Actual, rec.HardLimit, rec.SoftLimit, rec.Indicator)
	return err
}
