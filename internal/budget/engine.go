package budget

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
)

// LedgerSource is the slice of the ledger the engine reads.
type LedgerSource interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error)
}

// RateProvider supplies a converter over the current rate table. Actuals are
// converted at the rate in effect at computation time; there is no
// per-transaction historical rate.
type RateProvider interface {
	Converter(ctx context.Context) (*fx.Converter, error)
}

// Engine computes period records for a plan from the transaction ledger.
type Engine struct {
	ledger LedgerSource
	rates  RateProvider
	logger *slog.Logger
}

// NewEngine wires the period engine.
func NewEngine(source LedgerSource, rates RateProvider, logger *slog.Logger) *Engine {
	return &Engine{ledger: source, rates: rates, logger: logger}
}

// softLimitWindow is how many elapsed preceding periods feed the soft limit.
const softLimitWindow = 3

// starMinimumPeriods is the elapsed-period count required before a star can
// be awarded; a quartile over fewer periods is noise.
const starMinimumPeriods = 4

// ComputePeriods produces the full period set of the plan's current round,
// from the start date through the period containing asOf (capped by the
// round length when one is configured). The result is pure: nothing is
// written.
func (e *Engine) ComputePeriods(ctx context.Context, plan Plan, asOf time.Time) ([]PeriodRecord, error) {
	curIdx := PeriodIndexAt(plan.StartDate, plan.Period, asOf)
	if curIdx < 0 {
		return nil, nil
	}
	lastIdx := curIdx
	if plan.Rounds > 0 && lastIdx >= plan.Rounds {
		lastIdx = plan.Rounds - 1
	}

	accounts, err := e.accountIndex(ctx)
	if err != nil {
		return nil, err
	}
	_, lastEnd := PeriodBounds(plan.StartDate, plan.Period, lastIdx)
	txs, err := e.ledger.ListTransactions(ctx, ledger.TransactionFilter{
		From: plan.StartDate,
		To:   lastEnd,
	})
	if err != nil {
		return nil, err
	}
	conv, err := e.rates.Converter(ctx)
	if err != nil {
		return nil, err
	}

	actuals := make([]float64, lastIdx+1)
	for _, t := range txs {
		amount, code, ok := e.match(plan, t, accounts)
		if !ok {
			continue
		}
		idx := PeriodIndexAt(plan.StartDate, plan.Period, t.Date)
		if idx < 0 || idx > lastIdx {
			continue
		}
		converted, _ := conv.Convert(amount, code, plan.LimitCurrency)
		actuals[idx] += converted
	}
	for i := range actuals {
		actuals[i] = round2(actuals[i])
	}

	var elapsedActuals []float64
	for i := 0; i <= lastIdx; i++ {
		if _, end := PeriodBounds(plan.StartDate, plan.Period, i); !end.After(asOf) {
			elapsedActuals = append(elapsedActuals, actuals[i])
		}
	}

	records := make([]PeriodRecord, 0, lastIdx+1)
	for i := 0; i <= lastIdx; i++ {
		start, end := PeriodBounds(plan.StartDate, plan.Period, i)
		rec := PeriodRecord{
			PlanID:      plan.ID,
			RoundNumber: plan.RoundNumber,
			Index:       i,
			Start:       start,
			End:         end,
			Actual:      actuals[i],
			HardLimit:   plan.HardLimit,
			Indicator:   IndicatorNone,
		}
		if plan.SoftLimitEnabled {
			rec.SoftLimit = softLimit(actuals, i)
		}
		if !end.After(asOf) {
			rec.Indicator = classify(rec, elapsedActuals)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (e *Engine) accountIndex(ctx context.Context) (map[int64]ledger.Account, error) {
	accounts, err := e.ledger.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]ledger.Account, len(accounts))
	for _, a := range accounts {
		index[a.ID] = a
	}
	return index, nil
}

// match decides whether a transaction counts against the plan and returns
// the spend amount in the real leg's currency.
func (e *Engine) match(plan Plan, t ledger.Transaction, accounts map[int64]ledger.Account) (float64, string, bool) {
	if t.IsOpening {
		return 0, "", false
	}
	from, okFrom := accounts[t.FromAccountID]
	to, okTo := accounts[t.ToAccountID]
	if !okFrom || !okTo {
		return 0, "", false
	}
	if !passesAccountFilter(plan, from.ID) {
		return 0, "", false
	}
	kind := t.Kind(from, to)

	switch plan.Type {
	case PlanTypeCategory:
		if kind != ledger.KindExpense || plan.CategoryID == nil || to.ID != *plan.CategoryID {
			return 0, "", false
		}
	default: // PlanTypeTotal
		switch kind {
		case ledger.KindExpense:
			if len(plan.IncludedCategoryIDs) > 0 && !containsID(plan.IncludedCategoryIDs, to.ID) {
				return 0, "", false
			}
		case ledger.KindTransfer:
			// A transfer has no category leg. It counts as spend only
			// when no category scope is set and the destination is
			// outside the plan's account scope: money leaving the
			// watched accounts.
			if len(plan.IncludedCategoryIDs) > 0 || passesAccountFilter(plan, to.ID) {
				return 0, "", false
			}
		default:
			return 0, "", false
		}
	}
	return t.DebitAmount(), from.CurrencyCode(), true
}

func passesAccountFilter(plan Plan, accountID int64) bool {
	switch plan.AccountFilterMode {
	case FilterInclude:
		return containsID(plan.AccountFilterIDs, accountID)
	case FilterExclude:
		return !containsID(plan.AccountFilterIDs, accountID)
	default:
		return true
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// softLimit is the mean actual of the up-to-three most recent elapsed
// periods strictly preceding index i, nil when none precede it.
func softLimit(actuals []float64, i int) *float64 {
	lo := i - softLimitWindow
	if lo < 0 {
		lo = 0
	}
	if lo == i {
		return nil
	}
	var sum float64
	for j := lo; j < i; j++ {
		sum += actuals[j]
	}
	mean := round2(sum / float64(i-lo))
	return &mean
}

// classify grades a fully elapsed period.
func classify(rec PeriodRecord, elapsedActuals []float64) Indicator {
	soft := rec.SoftLimit
	if soft != nil && rec.Actual <= *soft && inBestQuartile(rec.Actual, elapsedActuals) {
		return IndicatorStar
	}
	if rec.Actual <= rec.HardLimit || (soft != nil && rec.Actual <= *soft) {
		return IndicatorGreen
	}
	return IndicatorRed
}

// inBestQuartile reports whether actual sits in the best (lowest-spend)
// quartile of the elapsed periods.
func inBestQuartile(actual float64, elapsed []float64) bool {
	if len(elapsed) < starMinimumPeriods {
		return false
	}
	sorted := append([]float64(nil), elapsed...)
	sort.Float64s(sorted)
	cutoff := sorted[(len(sorted)+3)/4-1]
	return actual <= cutoff
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
