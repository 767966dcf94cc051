// Package balance derives point-in-time account balances by anchored
// projection: the nearest user-confirmed calibration in either time
// direction plus the ledger deltas between the anchor and the target date.
package balance

import (
	"context"
	"math"
	"time"

	"github.com/homeledger/homeledger/internal/ledger"
)

// LedgerReader is the slice of the ledger repository the calculator needs.
type LedgerReader interface {
	LatestCalibrationOnOrBefore(ctx context.Context, accountID int64, at time.Time) (*ledger.Calibration, error)
	EarliestCalibrationAfter(ctx context.Context, accountID int64, at time.Time) (*ledger.Calibration, error)
	TransactionsInWindow(ctx context.Context, accountID int64, after, until time.Time) ([]ledger.Transaction, error)
}

// Calculator computes theoretical balances.
type Calculator struct {
	ledger LedgerReader
}

// NewCalculator constructs a calculator over the ledger.
func NewCalculator(reader LedgerReader) *Calculator {
	return &Calculator{ledger: reader}
}

// BalanceAt returns the account balance as of the given date.
//
// The latest calibration at or before asOf anchors a forward projection over
// the window (anchor, asOf]. With no such anchor, the earliest calibration
// after asOf anchors a backward projection over (asOf, anchor] with the delta
// sign inverted. With no calibration at all the full ledger up to asOf is
// summed from zero. Missing data is never an error: an account with no
// calibrations and no transactions balances to 0.
func (c *Calculator) BalanceAt(ctx context.Context, accountID int64, asOf time.Time) (float64, error) {
	anchor, err := c.ledger.LatestCalibrationOnOrBefore(ctx, accountID, asOf)
	if err != nil {
		return 0, err
	}
	if anchor != nil {
		txs, err := c.ledger.TransactionsInWindow(ctx, accountID, anchor.Date, asOf)
		if err != nil {
			return 0, err
		}
		credits, debits := window(accountID, txs)
		return round2(anchor.Balance + credits - debits), nil
	}

	future, err := c.ledger.EarliestCalibrationAfter(ctx, accountID, asOf)
	if err != nil {
		return 0, err
	}
	if future != nil {
		txs, err := c.ledger.TransactionsInWindow(ctx, accountID, asOf, future.Date)
		if err != nil {
			return 0, err
		}
		credits, debits := window(accountID, txs)
		return round2(future.Balance - credits + debits), nil
	}

	txs, err := c.ledger.TransactionsInWindow(ctx, accountID, time.Time{}, asOf)
	if err != nil {
		return 0, err
	}
	credits, debits := window(accountID, txs)
	return round2(credits - debits), nil
}

// window sums credits and debits for the account, preferring the
// currency-specific leg amount over the canonical amount.
func window(accountID int64, txs []ledger.Transaction) (credits, debits float64) {
	for _, t := range txs {
		if t.ToAccountID == accountID {
			credits += t.CreditAmount()
		}
		if t.FromAccountID == accountID {
			debits += t.DebitAmount()
		}
	}
	return credits, debits
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
