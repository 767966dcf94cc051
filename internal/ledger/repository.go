package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository encapsulates DB operations for accounts, transactions and
// calibrations.
type Repository interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	CreateAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	// TransactionsInWindow returns entries touching the account with
	// date in (after, until], ordered by (date, id). A zero after means
	// unbounded past.
	TransactionsInWindow(ctx context.Context, accountID int64, after, until time.Time) ([]Transaction, error)

	ListCalibrations(ctx context.Context, accountID int64) ([]Calibration, error)
	LatestCalibrationOnOrBefore(ctx context.Context, accountID int64, at time.Time) (*Calibration, error)
	EarliestCalibrationAfter(ctx context.Context, accountID int64, at time.Time) (*Calibration, error)
	LatestCalibration(ctx context.Context, accountID int64) (*Calibration, error)
	CreateCalibration(ctx context.Context, c Calibration) (Calibration, error)
	DeleteCalibration(ctx context.Context, id int64) error
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID   int64
	From        time.Time
	To          time.Time
	NeedsReview *bool
	Starred     *bool
	Limit       int
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed ledger repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, name, type, class, is_group, currency, parent_id, is_active, sort_order, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Class, &a.IsGroup, &a.Currency, &a.ParentID, &a.IsActive, &a.SortOrder, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r *repository) CreateAccount(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (name, type, class, is_group, currency, parent_id, is_active, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		a.Name, a.Type, a.Class, a.IsGroup, a.Currency, a.ParentID, a.IsActive, a.SortOrder)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *repository) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET name=$2, type=$3, class=$4, is_group=$5, currency=$6, parent_id=$7, is_active=$8, sort_order=$9, updated_at=now()
WHERE id=$1 RETURNING updated_at`,
		a.ID, a.Name, a.Type, a.Class, a.IsGroup, a.Currency, a.ParentID, a.IsActive, a.SortOrder)
	if err := row.Scan(&a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrAccountReferenced
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

const transactionColumns = `id, from_account_id, to_account_id, amount, from_amount, to_amount, date, is_opening, is_large_expense, needs_review, is_starred, nature, source_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.FromAmount, &t.ToAmount, &t.Date, &t.IsOpening, &t.IsLargeExpense, &t.NeedsReview, &t.IsStarred, &t.Nature, &t.SourceID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *repository) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(cond string, val any) {
		query += ` AND ` + cond
		args = append(args, val)
		idx++
	}
	if f.AccountID != 0 {
		query += ` AND (from_account_id = $1 OR to_account_id = $1)`
		args = append(args, f.AccountID)
		idx++
	}
	if !f.From.IsZero() {
		add(`date >= $`+strconv.Itoa(idx), f.From)
	}
	if !f.To.IsZero() {
		add(`date <= $`+strconv.Itoa(idx), f.To)
	}
	if f.NeedsReview != nil {
		add(`needs_review = $`+strconv.Itoa(idx), *f.NeedsReview)
	}
	if f.Starred != nil {
		add(`is_starred = $`+strconv.Itoa(idx), *f.Starred)
	}
	query += ` ORDER BY date, id`
	if f.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(idx)
		args = append(args, f.Limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

func (r *repository) CreateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO transactions (from_account_id, to_account_id, amount, from_amount, to_amount, date, is_opening, is_large_expense, needs_review, is_starred, nature, source_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id, created_at, updated_at`,
		t.FromAccountID, t.ToAccountID, t.Amount, t.FromAmount, t.ToAmount, t.Date, t.IsOpening, t.IsLargeExpense, t.NeedsReview, t.IsStarred, t.Nature, t.SourceID)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *repository) TransactionsInWindow(ctx context.Context, accountID int64, after, until time.Time) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
WHERE (from_account_id = $1 OR to_account_id = $1) AND date <= $2`
	args := []any{accountID, until}
	if !after.IsZero() {
		query += ` AND date > $3`
		args = append(args, after)
	}
	query += ` ORDER BY date, id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const calibrationColumns = `id, account_id, balance, date, source, is_opening, created_at`

func scanCalibration(row pgx.Row) (Calibration, error) {
	var c Calibration
	err := row.Scan(&c.ID, &c.AccountID, &c.Balance, &c.Date, &c.Source, &c.IsOpening, &c.CreatedAt)
	return c, err
}

func (r *repository) ListCalibrations(ctx context.Context, accountID int64) ([]Calibration, error) {
	rows, err := r.db.Query(ctx, `SELECT `+calibrationColumns+` FROM calibrations WHERE account_id = $1 ORDER BY date, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Calibration
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) LatestCalibrationOnOrBefore(ctx context.Context, accountID int64, at time.Time) (*Calibration, error) {
	c, err := scanCalibration(r.db.QueryRow(ctx, `SELECT `+calibrationColumns+` FROM calibrations
WHERE account_id = $1 AND date <= $2 ORDER BY date DESC, id DESC LIMIT 1`, accountID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) EarliestCalibrationAfter(ctx context.Context, accountID int64, at time.Time) (*Calibration, error) {
	c, err := scanCalibration(r.db.QueryRow(ctx, `SELECT `+calibrationColumns+` FROM calibrations
WHERE account_id = $1 AND date > $2 ORDER BY date, id LIMIT 1`, accountID, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) LatestCalibration(ctx context.Context, accountID int64) (*Calibration, error) {
	c, err := scanCalibration(r.db.QueryRow(ctx, `SELECT `+calibrationColumns+` FROM calibrations
WHERE account_id = $1 ORDER BY date DESC, id DESC LIMIT 1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) CreateCalibration(ctx context.Context, c Calibration) (Calibration, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO calibrations (account_id, balance, date, source, is_opening)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, c.AccountID, c.Balance, c.Date, c.Source, c.IsOpening)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return Calibration{}, err
	}
	return c, nil
}

func (r *repository) DeleteCalibration(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM calibrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCalibrationNotFound
	}
	return nil
}
