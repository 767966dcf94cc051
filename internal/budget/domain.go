package budget

import (
	"errors"
	"fmt"
	"time"
)

// PlanType scopes what a plan tracks.
type PlanType string

const (
	// PlanTypeCategory tracks spend against a single expense category.
	PlanTypeCategory PlanType = "CATEGORY"
	// PlanTypeTotal tracks overall spend across expense categories.
	PlanTypeTotal PlanType = "TOTAL"
)

// PeriodUnit is the plan period length.
type PeriodUnit string

const (
	PeriodWeekly  PeriodUnit = "WEEKLY"
	PeriodMonthly PeriodUnit = "MONTHLY"
)

// PlanStatus enumerates plan lifecycle states.
type PlanStatus string

const (
	PlanStatusActive  PlanStatus = "ACTIVE"
	PlanStatusPaused  PlanStatus = "PAUSED"
	PlanStatusExpired PlanStatus = "EXPIRED"
)

// FilterMode restricts which real accounts a plan watches.
type FilterMode string

const (
	FilterAll     FilterMode = "ALL"
	FilterInclude FilterMode = "INCLUDE"
	FilterExclude FilterMode = "EXCLUDE"
)

// Indicator classifies an elapsed period's outcome.
type Indicator string

const (
	IndicatorStar  Indicator = "STAR"
	IndicatorGreen Indicator = "GREEN"
	IndicatorRed   Indicator = "RED"
	IndicatorNone  Indicator = "NONE"
)

// Plan is a budget plan definition. Rounds limits how many periods a round
// runs before the plan expires; 0 means open-ended.
type Plan struct {
	ID                  int64
	Name                string
	Type                PlanType
	CategoryID          *int64
	Period              PeriodUnit
	HardLimit           float64
	LimitCurrency       string
	SoftLimitEnabled    bool
	AccountFilterMode   FilterMode
	AccountFilterIDs    []int64
	IncludedCategoryIDs []int64
	StartDate           time.Time
	Status              PlanStatus
	RoundNumber         int
	Rounds              int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PeriodRecord is one window of a plan. Start is inclusive, End exclusive.
// Actual is recomputed as transactions arrive; SoftLimit is nil until a
// preceding period has elapsed.
type PeriodRecord struct {
	ID          int64
	PlanID      int64
	RoundNumber int
	Index       int
	Start       time.Time
	End         time.Time
	Actual      float64
	HardLimit   float64
	SoftLimit   *float64
	Indicator   Indicator
}

var (
	// ErrPlanNotFound indicates a missing plan.
	ErrPlanNotFound = errors.New("budget: plan not found")
	// ErrInvalidTransition indicates a lifecycle change not allowed from
	// the current status.
	ErrInvalidTransition = errors.New("budget: invalid status transition")
	// ErrPlanNotStarted indicates the as-of date precedes the start date.
	ErrPlanNotStarted = errors.New("budget: plan has not started")
	// ErrStaleReport indicates a commit whose dry-run report no longer
	// matches the stored periods.
	ErrStaleReport = errors.New("budget: recalculation report is stale")
)

// Validate checks a plan definition.
func (p Plan) Validate() error {
	if p.Name == "" {
		return errors.New("budget: plan name required")
	}
	switch p.Type {
	case PlanTypeCategory:
		if p.CategoryID == nil {
			return errors.New("budget: category plan requires a category")
		}
	case PlanTypeTotal:
	default:
		return fmt.Errorf("budget: unknown plan type %q", p.Type)
	}
	switch p.Period {
	case PeriodWeekly, PeriodMonthly:
	default:
		return fmt.Errorf("budget: unknown period unit %q", p.Period)
	}
	if p.HardLimit <= 0 {
		return errors.New("budget: hard limit must be positive")
	}
	if p.LimitCurrency == "" {
		return errors.New("budget: limit currency required")
	}
	switch p.AccountFilterMode {
	case FilterAll:
	case FilterInclude, FilterExclude:
		if len(p.AccountFilterIDs) == 0 {
			return errors.New("budget: account filter requires account ids")
		}
	default:
		return fmt.Errorf("budget: unknown filter mode %q", p.AccountFilterMode)
	}
	if p.StartDate.IsZero() {
		return errors.New("budget: start date required")
	}
	if p.Rounds < 0 {
		return errors.New("budget: rounds cannot be negative")
	}
	return nil
}
