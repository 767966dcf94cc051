package budget

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
)

type fakeLedger struct {
	accounts []ledger.Account
	txs      []ledger.Transaction
}

func (f *fakeLedger) ListAccounts(context.Context) ([]ledger.Account, error) {
	return f.accounts, nil
}

func (f *fakeLedger) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range f.txs {
		if !filter.From.IsZero() && t.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !t.Date.Before(filter.To) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type stubRates struct {
	table fx.RateTable
}

func (s stubRates) Converter(context.Context) (*fx.Converter, error) {
	return fx.NewConverter(s.table, nil), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func currencyPtr(s string) *string { return &s }

func idPtr(v int64) *int64 { return &v }

func groceriesWorld() *fakeLedger {
	return &fakeLedger{
		accounts: []ledger.Account{
			{ID: 1, Name: "Bank", Type: ledger.AccountTypeAsset, Class: ledger.AccountClassReal, Currency: currencyPtr("USD"), IsActive: true},
			{ID: 10, Name: "Groceries", Type: ledger.AccountTypeExpense, Class: ledger.AccountClassNominal, IsActive: true},
		},
	}
}

func weeklyPlan() Plan {
	return Plan{
		ID:                1,
		Name:              "groceries",
		Type:              PlanTypeCategory,
		CategoryID:        idPtr(10),
		Period:            PeriodWeekly,
		HardLimit:         1700,
		LimitCurrency:     "USD",
		SoftLimitEnabled:  true,
		AccountFilterMode: FilterAll,
		StartDate:         date(2024, time.January, 1),
		Status:            PlanStatusActive,
		RoundNumber:       1,
	}
}

func spend(id int64, amount float64, on time.Time) ledger.Transaction {
	return ledger.Transaction{ID: id, FromAccountID: 1, ToAccountID: 10, Amount: amount, Date: on}
}

func TestComputePeriodsSoftLimitAndIndicators(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 1500, date(2024, time.January, 2)),
		spend(2, 1700, date(2024, time.January, 9)),
		spend(3, 1600, date(2024, time.January, 16)),
		spend(4, 1550, date(2024, time.January, 23)),
		spend(5, 100, date(2024, time.January, 29)),
	}
	engine := NewEngine(world, stubRates{}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), weeklyPlan(), date(2024, time.January, 29))
	require.NoError(t, err)
	require.Len(t, records, 5)

	require.Nil(t, records[0].SoftLimit)
	require.Equal(t, 1500.0, records[0].Actual)
	require.Equal(t, IndicatorGreen, records[0].Indicator)

	require.NotNil(t, records[3].SoftLimit)
	// mean of 1500, 1700, 1600
	require.Equal(t, 1600.0, *records[3].SoftLimit)
	require.Equal(t, 1550.0, records[3].Actual)
	require.Equal(t, IndicatorGreen, records[3].Indicator)

	// period 4 has started but not elapsed
	require.Equal(t, 100.0, records[4].Actual)
	require.Equal(t, IndicatorNone, records[4].Indicator)
	require.NotNil(t, records[4].SoftLimit)
	require.Equal(t, 1616.67, *records[4].SoftLimit)
}

func TestComputePeriodsRedOverBothLimits(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 1800, date(2024, time.January, 2)),
	}
	engine := NewEngine(world, stubRates{}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), weeklyPlan(), date(2024, time.January, 8))
	require.NoError(t, err)
	require.Equal(t, IndicatorRed, records[0].Indicator)
}

func TestComputePeriodsStarRequiresBestQuartile(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 1500, date(2024, time.January, 2)),
		spend(2, 1700, date(2024, time.January, 9)),
		spend(3, 1600, date(2024, time.January, 16)),
		spend(4, 900, date(2024, time.January, 23)),
	}
	engine := NewEngine(world, stubRates{}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), weeklyPlan(), date(2024, time.January, 29))
	require.NoError(t, err)
	require.Equal(t, IndicatorStar, records[3].Indicator)

	// Three elapsed periods are too few for a star even under the soft limit.
	world.txs = world.txs[:3]
	world.txs[2] = spend(3, 900, date(2024, time.January, 16))
	records, err = engine.ComputePeriods(context.Background(), weeklyPlan(), date(2024, time.January, 22))
	require.NoError(t, err)
	require.Equal(t, IndicatorGreen, records[2].Indicator)
}

func TestComputePeriodsConvertsCurrency(t *testing.T) {
	world := groceriesWorld()
	world.accounts = append(world.accounts, ledger.Account{
		ID: 2, Name: "CNY Bank", Type: ledger.AccountTypeAsset, Class: ledger.AccountClassReal,
		Currency: currencyPtr("CNY"), IsActive: true,
	})
	world.txs = []ledger.Transaction{
		{ID: 1, FromAccountID: 2, ToAccountID: 10, Amount: 1000, Date: date(2024, time.January, 2)},
	}
	engine := NewEngine(world, stubRates{table: fx.RateTable{"CNY": {"USD": 0.14}}}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), weeklyPlan(), date(2024, time.January, 8))
	require.NoError(t, err)
	require.Equal(t, 140.0, records[0].Actual)
}

func TestComputePeriodsSkipsOpeningAndFilteredAccounts(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 500, date(2024, time.January, 2)),
		{ID: 2, FromAccountID: 1, ToAccountID: 10, Amount: 900, Date: date(2024, time.January, 3), IsOpening: true},
	}
	plan := weeklyPlan()
	plan.AccountFilterMode = FilterExclude
	plan.AccountFilterIDs = []int64{1}
	engine := NewEngine(world, stubRates{}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), plan, date(2024, time.January, 8))
	require.NoError(t, err)
	require.Equal(t, 0.0, records[0].Actual)

	plan.AccountFilterMode = FilterAll
	plan.AccountFilterIDs = nil
	records, err = engine.ComputePeriods(context.Background(), plan, date(2024, time.January, 8))
	require.NoError(t, err)
	require.Equal(t, 500.0, records[0].Actual)
}

func TestComputePeriodsTotalPlanScoping(t *testing.T) {
	world := groceriesWorld()
	world.accounts = append(world.accounts,
		ledger.Account{ID: 11, Name: "Rent", Type: ledger.AccountTypeExpense, Class: ledger.AccountClassNominal, IsActive: true},
		ledger.Account{ID: 3, Name: "Savings", Type: ledger.AccountTypeAsset, Class: ledger.AccountClassReal, Currency: currencyPtr("USD"), IsActive: true},
	)
	world.txs = []ledger.Transaction{
		spend(1, 300, date(2024, time.January, 2)),
		{ID: 2, FromAccountID: 1, ToAccountID: 11, Amount: 200, Date: date(2024, time.January, 3)},
		{ID: 3, FromAccountID: 1, ToAccountID: 3, Amount: 1000, Date: date(2024, time.January, 4)},
	}

	plan := weeklyPlan()
	plan.Type = PlanTypeTotal
	plan.CategoryID = nil
	plan.IncludedCategoryIDs = []int64{10}
	engine := NewEngine(world, stubRates{}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), plan, date(2024, time.January, 8))
	require.NoError(t, err)
	require.Equal(t, 300.0, records[0].Actual)

	// Without category scope, a transfer leaving the watched accounts counts.
	plan.IncludedCategoryIDs = nil
	plan.AccountFilterMode = FilterInclude
	plan.AccountFilterIDs = []int64{1}
	records, err = engine.ComputePeriods(context.Background(), plan, date(2024, time.January, 8))
	require.NoError(t, err)
	require.Equal(t, 1500.0, records[0].Actual)
}

func TestComputePeriodsBeforeStart(t *testing.T) {
	engine := NewEngine(groceriesWorld(), stubRates{}, testLogger())
	records, err := engine.ComputePeriods(context.Background(), weeklyPlan(), date(2023, time.December, 31))
	require.NoError(t, err)
	require.Nil(t, records)
}

func TestComputePeriodsRoundsCap(t *testing.T) {
	world := groceriesWorld()
	plan := weeklyPlan()
	plan.Rounds = 2
	engine := NewEngine(world, stubRates{}, testLogger())

	records, err := engine.ComputePeriods(context.Background(), plan, date(2024, time.February, 15))
	require.NoError(t, err)
	require.Len(t, records, 2)
}
