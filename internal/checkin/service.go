// Package checkin runs the daily maintenance pass: post due recurring
// transactions, refresh active budget plans, and flag accounts overdue for a
// calibration. It is invoked by an external trigger (HTTP or the worker
// cron) and runs to completion synchronously, at most once per logical day.
package checkin

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homeledger/homeledger/internal/ledger"
)

// RecurrenceRunner posts due recurring transactions.
type RecurrenceRunner interface {
	RunDue(ctx context.Context, now time.Time) (int, error)
}

// BudgetRefresher brings active plans up to date.
type BudgetRefresher interface {
	RefreshAll(ctx context.Context, asOf time.Time) error
}

// LedgerReader is the slice of the ledger the reminder scan needs.
type LedgerReader interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	LatestCalibration(ctx context.Context, accountID int64) (*ledger.Calibration, error)
}

// Reminder flags an account overdue for a fresh calibration.
type Reminder struct {
	AccountID       int64      `json:"account_id"`
	AccountName     string     `json:"account_name"`
	LastCalibration *time.Time `json:"last_calibration,omitempty"`
}

// Result summarises one check-in run.
type Result struct {
	Ran             bool       `json:"ran"`
	Date            string     `json:"date"`
	RecurringPosted int        `json:"recurring_posted"`
	Reminders       []Reminder `json:"reminders"`
}

// Service orchestrates the daily check-in.
type Service struct {
	redis      *redis.Client
	recurrence RecurrenceRunner
	budgets    BudgetRefresher
	ledger     LedgerReader
	staleAfter time.Duration
	logger     *slog.Logger
}

// NewService wires the check-in service. staleAfter is how old a latest
// calibration may get before the account is flagged.
func NewService(rdb *redis.Client, recurrence RecurrenceRunner, budgets BudgetRefresher, reader LedgerReader, staleAfter time.Duration, logger *slog.Logger) *Service {
	return &Service{redis: rdb, recurrence: recurrence, budgets: budgets, ledger: reader, staleAfter: staleAfter, logger: logger}
}

// Run performs the check-in for the logical day containing now. A Redis
// latch keeps repeat triggers on the same day from re-running the pass.
func (s *Service) Run(ctx context.Context, now time.Time) (Result, error) {
	day := now.Format("2006-01-02")
	result := Result{Date: day}

	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, "homeledger:checkin:"+day, 1, 48*time.Hour).Result()
		if err != nil {
			return result, err
		}
		if !acquired {
			s.logger.Info("check-in already ran", slog.String("date", day))
			return result, nil
		}
	}
	result.Ran = true

	posted, err := s.recurrence.RunDue(ctx, now)
	if err != nil {
		s.logger.Warn("recurring run failed", slog.Any("error", err))
	}
	result.RecurringPosted = posted

	if err := s.budgets.RefreshAll(ctx, now); err != nil {
		s.logger.Warn("budget refresh failed", slog.Any("error", err))
	}

	reminders, err := s.calibrationReminders(ctx, now)
	if err != nil {
		s.logger.Warn("calibration reminder scan failed", slog.Any("error", err))
	}
	result.Reminders = reminders

	s.logger.Info("check-in complete",
		slog.String("date", day),
		slog.Int("recurring_posted", result.RecurringPosted),
		slog.Int("reminders", len(result.Reminders)))
	return result, nil
}

// calibrationReminders flags active real leaf accounts whose latest
// calibration is missing or older than the staleness window.
func (s *Service) calibrationReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	accounts, err := s.ledger.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var reminders []Reminder
	for _, a := range accounts {
		if a.IsGroup || !a.IsActive || a.Class != ledger.AccountClassReal {
			continue
		}
		latest, err := s.ledger.LatestCalibration(ctx, a.ID)
		if err != nil {
			s.logger.Warn("latest calibration lookup failed",
				slog.Int64("account_id", a.ID), slog.Any("error", err))
			continue
		}
		if latest == nil {
			reminders = append(reminders, Reminder{AccountID: a.ID, AccountName: a.Name})
			continue
		}
		if now.Sub(latest.Date) > s.staleAfter {
			t := latest.Date
			reminders = append(reminders, Reminder{AccountID: a.ID, AccountName: a.Name, LastCalibration: &t})
		}
	}
	return reminders, nil
}
