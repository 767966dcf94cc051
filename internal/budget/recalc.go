package budget

import (
	"context"
	"math"
	"time"
)

// Recalculation is split in two phases on purpose: a dry run computes a diff
// without touching storage, and a commit applies exactly that diff. The
// caller can review what a full recomputation would rewrite before history
// is overwritten.

// PeriodChange is one period's old-versus-new values.
type PeriodChange struct {
	Index        int       `json:"index"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Added        bool      `json:"added"`
	OldActual    float64   `json:"old_actual"`
	NewActual    float64   `json:"new_actual"`
	OldSoftLimit *float64  `json:"old_soft_limit,omitempty"`
	NewSoftLimit *float64  `json:"new_soft_limit,omitempty"`
	OldIndicator Indicator `json:"old_indicator"`
	NewIndicator Indicator `json:"new_indicator"`
}

// Report lists every period a recalculation would change.
type Report struct {
	PlanID      int64          `json:"plan_id"`
	RoundNumber int            `json:"round_number"`
	AsOf        time.Time      `json:"as_of"`
	Changes     []PeriodChange `json:"changes"`
}

const amountEpsilon = 0.005

// DryRun recomputes the plan's periods and diffs them against the stored
// records. It performs no writes.
func (e *Engine) DryRun(ctx context.Context, plan Plan, existing []PeriodRecord, asOf time.Time) (Report, error) {
	report := Report{PlanID: plan.ID, RoundNumber: plan.RoundNumber, AsOf: asOf}
	fresh, err := e.ComputePeriods(ctx, plan, asOf)
	if err != nil {
		return Report{}, err
	}
	stored := make(map[int]PeriodRecord, len(existing))
	for _, rec := range existing {
		stored[rec.Index] = rec
	}
	for _, rec := range fresh {
		old, ok := stored[rec.Index]
		change := PeriodChange{
			Index:        rec.Index,
			Start:        rec.Start,
			End:          rec.End,
			Added:        !ok,
			NewActual:    rec.Actual,
			NewSoftLimit: rec.SoftLimit,
			NewIndicator: rec.Indicator,
		}
		if ok {
			change.OldActual = old.Actual
			change.OldSoftLimit = old.SoftLimit
			change.OldIndicator = old.Indicator
			if !periodDiffers(old, rec) {
				continue
			}
		} else {
			change.OldIndicator = IndicatorNone
		}
		report.Changes = append(report.Changes, change)
	}
	return report, nil
}

func periodDiffers(old, fresh PeriodRecord) bool {
	if math.Abs(old.Actual-fresh.Actual) >= amountEpsilon {
		return true
	}
	if !floatPtrEqual(old.SoftLimit, fresh.SoftLimit) {
		return true
	}
	if math.Abs(old.HardLimit-fresh.HardLimit) >= amountEpsilon {
		return true
	}
	return old.Indicator != fresh.Indicator
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return math.Abs(*a-*b) < amountEpsilon
}
