package budget

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/homeledger/homeledger/internal/ledger"
)

type memRepo struct {
	plans        map[int64]Plan
	periods      []PeriodRecord
	nextPlanID   int64
	nextPeriodID int64
}

func newMemRepo() *memRepo {
	return &memRepo{plans: make(map[int64]Plan)}
}

func (m *memRepo) ListPlans(context.Context) ([]Plan, error) {
	out := make([]Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) ListPlansByStatus(_ context.Context, status PlanStatus) ([]Plan, error) {
	var out []Plan
	for _, p := range m.plans {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) GetPlan(_ context.Context, id int64) (Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

func (m *memRepo) CreatePlan(_ context.Context, p Plan) (Plan, error) {
	m.nextPlanID++
	p.ID = m.nextPlanID
	m.plans[p.ID] = p
	return p, nil
}

func (m *memRepo) UpdatePlan(_ context.Context, p Plan) (Plan, error) {
	if _, ok := m.plans[p.ID]; !ok {
		return Plan{}, ErrPlanNotFound
	}
	m.plans[p.ID] = p
	return p, nil
}

func (m *memRepo) DeletePlan(_ context.Context, id int64) error {
	if _, ok := m.plans[id]; !ok {
		return ErrPlanNotFound
	}
	delete(m.plans, id)
	kept := m.periods[:0]
	for _, rec := range m.periods {
		if rec.PlanID != id {
			kept = append(kept, rec)
		}
	}
	m.periods = kept
	return nil
}

func (m *memRepo) ListPeriods(_ context.Context, planID int64, round int) ([]PeriodRecord, error) {
	var out []PeriodRecord
	for _, rec := range m.periods {
		if rec.PlanID == planID && rec.RoundNumber == round {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*memTx)(m))
}

type memTx memRepo

func (m *memTx) UpsertPeriod(_ context.Context, rec PeriodRecord) error {
	for i, existing := range m.periods {
		if existing.PlanID == rec.PlanID && existing.RoundNumber == rec.RoundNumber && existing.Index == rec.Index {
			rec.ID = existing.ID
			m.periods[i] = rec
			return nil
		}
	}
	m.nextPeriodID++
	rec.ID = m.nextPeriodID
	m.periods = append(m.periods, rec)
	return nil
}

func newBudgetService(world *fakeLedger) (*Service, *memRepo) {
	repo := newMemRepo()
	engine := NewEngine(world, stubRates{}, testLogger())
	return NewService(repo, engine, nil, testLogger()), repo
}

func TestCreatePlanStartsFirstRound(t *testing.T) {
	svc, _ := newBudgetService(groceriesWorld())
	plan := weeklyPlan()
	plan.ID = 0
	plan.Status = PlanStatusPaused
	plan.RoundNumber = 7

	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, PlanStatusActive, created.Status)
	require.Equal(t, 1, created.RoundNumber)

	plan.Name = ""
	_, err = svc.CreatePlan(context.Background(), plan)
	require.Error(t, err)
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _ := newBudgetService(groceriesWorld())
	plan := weeklyPlan()
	plan.ID = 0
	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)

	paused, err := svc.Pause(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, PlanStatusPaused, paused.Status)

	_, err = svc.Pause(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	resumed, err := svc.Resume(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, PlanStatusActive, resumed.Status)

	_, err = svc.Restart(context.Background(), created.ID, date(2024, time.January, 10))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCommitPersistsReport(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 100, date(2024, time.January, 2)),
	}
	svc, _ := newBudgetService(world)
	plan := weeklyPlan()
	plan.ID = 0
	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)

	asOf := date(2024, time.January, 8)
	report, err := svc.DryRun(context.Background(), created.ID, asOf)
	require.NoError(t, err)
	require.NotEmpty(t, report.Changes)

	require.NoError(t, svc.Commit(context.Background(), report))

	periods, err := svc.Periods(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	require.Equal(t, 100.0, periods[0].Actual)
	require.Equal(t, IndicatorGreen, periods[0].Indicator)

	// The committed report is now stale: its additions already exist.
	require.ErrorIs(t, svc.Commit(context.Background(), report), ErrStaleReport)

	// A fresh dry run against current storage finds nothing to change.
	report, err = svc.DryRun(context.Background(), created.ID, asOf)
	require.NoError(t, err)
	require.Empty(t, report.Changes)
}

func TestCommitRejectsWrongRound(t *testing.T) {
	svc, _ := newBudgetService(groceriesWorld())
	plan := weeklyPlan()
	plan.ID = 0
	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)

	report, err := svc.DryRun(context.Background(), created.ID, date(2024, time.January, 8))
	require.NoError(t, err)
	report.RoundNumber = 99

	require.ErrorIs(t, svc.Commit(context.Background(), report), ErrStaleReport)
}

func TestRefreshExpiresFinishedRound(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 100, date(2024, time.January, 2)),
	}
	svc, repo := newBudgetService(world)
	plan := weeklyPlan()
	plan.ID = 0
	plan.Rounds = 1
	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)

	require.NoError(t, svc.Refresh(context.Background(), created.ID, date(2024, time.January, 10)))

	stored, err := repo.GetPlan(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, PlanStatusExpired, stored.Status)

	periods, err := svc.Periods(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, periods, 1)

	restarted, err := svc.Restart(context.Background(), created.ID, date(2024, time.January, 10))
	require.NoError(t, err)
	require.Equal(t, 2, restarted.RoundNumber)
	require.Equal(t, date(2024, time.January, 15), restarted.StartDate)
}

func TestDryRunBeforePlanStart(t *testing.T) {
	svc, _ := newBudgetService(groceriesWorld())
	plan := weeklyPlan()
	plan.ID = 0
	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)

	_, err = svc.DryRun(context.Background(), created.ID, date(2023, time.December, 1))
	require.ErrorIs(t, err, ErrPlanNotStarted)

	// Refresh quietly skips a plan that has not started.
	require.NoError(t, svc.Refresh(context.Background(), created.ID, date(2023, time.December, 1)))
}

func TestRefreshSkipsPausedPlans(t *testing.T) {
	world := groceriesWorld()
	world.txs = []ledger.Transaction{
		spend(1, 100, date(2024, time.January, 2)),
	}
	svc, _ := newBudgetService(world)
	plan := weeklyPlan()
	plan.ID = 0
	created, err := svc.CreatePlan(context.Background(), plan)
	require.NoError(t, err)
	_, err = svc.Pause(context.Background(), created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Refresh(context.Background(), created.ID, date(2024, time.January, 10)))

	periods, err := svc.Periods(context.Background(), created.ID)
	require.NoError(t, err)
	require.Empty(t, periods)
}
