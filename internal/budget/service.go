package budget

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Invalidator signals dependent read paths after a write.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages plan lifecycle and coordinates the engine with storage.
type Service struct {
	repo       Repository
	engine     *Engine
	invalidate Invalidator
	logger     *slog.Logger
}

// NewService wires the budget service.
func NewService(repo Repository, engine *Engine, invalidate Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, invalidate: invalidate, logger: logger}
}

// ListPlans returns all plans.
func (s *Service) ListPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.ListPlans(ctx)
}

// GetPlan fetches one plan.
func (s *Service) GetPlan(ctx context.Context, id int64) (Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// CreatePlan validates and stores a plan in its first active round.
func (s *Service) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	p.Status = PlanStatusActive
	p.RoundNumber = 1
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	created, err := s.repo.CreatePlan(ctx, p)
	if err != nil {
		return Plan{}, err
	}
	s.bump(ctx)
	return created, nil
}

// UpdatePlan stores plan edits; lifecycle fields go through the dedicated
// transitions.
func (s *Service) UpdatePlan(ctx context.Context, p Plan) (Plan, error) {
	current, err := s.repo.GetPlan(ctx, p.ID)
	if err != nil {
		return Plan{}, err
	}
	p.Status = current.Status
	p.RoundNumber = current.RoundNumber
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	updated, err := s.repo.UpdatePlan(ctx, p)
	if err != nil {
		return Plan{}, err
	}
	s.bump(ctx)
	return updated, nil
}

// DeletePlan removes a plan and its periods.
func (s *Service) DeletePlan(ctx context.Context, id int64) error {
	if err := s.repo.DeletePlan(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Pause holds period advancement on an active plan.
func (s *Service) Pause(ctx context.Context, id int64) (Plan, error) {
	return s.transition(ctx, id, PlanStatusActive, PlanStatusPaused, nil)
}

// Resume reactivates a paused plan.
func (s *Service) Resume(ctx context.Context, id int64) (Plan, error) {
	return s.transition(ctx, id, PlanStatusPaused, PlanStatusActive, nil)
}

// Restart spawns a new round of an expired plan, starting at the next period
// boundary and incrementing the round number.
func (s *Service) Restart(ctx context.Context, id int64, asOf time.Time) (Plan, error) {
	return s.transition(ctx, id, PlanStatusExpired, PlanStatusActive, func(p *Plan) {
		idx := PeriodIndexAt(p.StartDate, p.Period, asOf)
		p.StartDate = PeriodStart(p.StartDate, p.Period, idx+1)
		p.RoundNumber++
	})
}

func (s *Service) transition(ctx context.Context, id int64, from, to PlanStatus, mutate func(*Plan)) (Plan, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	if plan.Status != from {
		return Plan{}, ErrInvalidTransition
	}
	plan.Status = to
	if mutate != nil {
		mutate(&plan)
	}
	updated, err := s.repo.UpdatePlan(ctx, plan)
	if err != nil {
		return Plan{}, err
	}
	s.bump(ctx)
	return updated, nil
}

// Periods lists the stored period records of the plan's current round.
func (s *Service) Periods(ctx context.Context, planID int64) ([]PeriodRecord, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPeriods(ctx, plan.ID, plan.RoundNumber)
}

// DryRun computes the recalculation diff for a plan without writing.
func (s *Service) DryRun(ctx context.Context, planID int64, asOf time.Time) (Report, error) {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return Report{}, err
	}
	if asOf.Before(plan.StartDate) {
		return Report{}, ErrPlanNotStarted
	}
	existing, err := s.repo.ListPeriods(ctx, plan.ID, plan.RoundNumber)
	if err != nil {
		return Report{}, err
	}
	return s.engine.DryRun(ctx, plan, existing, asOf)
}

// Commit applies a previously reviewed dry-run report. The stored periods
// must still match the report's old values, otherwise the report is stale
// and a fresh dry run is required.
func (s *Service) Commit(ctx context.Context, report Report) error {
	plan, err := s.repo.GetPlan(ctx, report.PlanID)
	if err != nil {
		return err
	}
	if plan.RoundNumber != report.RoundNumber {
		return ErrStaleReport
	}
	existing, err := s.repo.ListPeriods(ctx, plan.ID, plan.RoundNumber)
	if err != nil {
		return err
	}
	stored := make(map[int]PeriodRecord, len(existing))
	for _, rec := range existing {
		stored[rec.Index] = rec
	}
	for _, change := range report.Changes {
		old, ok := stored[change.Index]
		if change.Added != !ok {
			return ErrStaleReport
		}
		if ok && math.Abs(old.Actual-change.OldActual) >= amountEpsilon {
			return ErrStaleReport
		}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, change := range report.Changes {
			rec := PeriodRecord{
				PlanID:      plan.ID,
				RoundNumber: plan.RoundNumber,
				Index:       change.Index,
				Start:       change.Start,
				End:         change.End,
				Actual:      change.NewActual,
				HardLimit:   plan.HardLimit,
				SoftLimit:   change.NewSoftLimit,
				Indicator:   change.NewIndicator,
			}
			if existing, ok := stored[change.Index]; ok {
				rec.ID = existing.ID
			}
			if err := tx.UpsertPeriod(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Refresh brings an active plan's periods up to date as of the given time,
// expiring the plan when its round has fully elapsed. Paused plans are left
// untouched.
func (s *Service) Refresh(ctx context.Context, planID int64, asOf time.Time) error {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Status != PlanStatusActive || asOf.Before(plan.StartDate) {
		return nil
	}
	report, err := s.DryRun(ctx, planID, asOf)
	if err != nil {
		return err
	}
	if len(report.Changes) > 0 {
		if err := s.Commit(ctx, report); err != nil {
			return err
		}
	}
	if plan.Rounds > 0 && PeriodIndexAt(plan.StartDate, plan.Period, asOf) >= plan.Rounds {
		plan.Status = PlanStatusExpired
		if _, err := s.repo.UpdatePlan(ctx, plan); err != nil {
			return err
		}
		s.bump(ctx)
	}
	return nil
}

// RefreshAll refreshes every active plan; one plan failing does not stop the
// others.
func (s *Service) RefreshAll(ctx context.Context, asOf time.Time) error {
	plans, err := s.repo.ListPlansByStatus(ctx, PlanStatusActive)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		if err := s.Refresh(ctx, plan.ID, asOf); err != nil {
			s.logger.Warn("budget refresh failed",
				slog.Int64("plan_id", plan.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
}
