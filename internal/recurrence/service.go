package recurrence

import (
	"context"
	"log/slog"
	"time"

	"github.com/homeledger/homeledger/internal/ledger"
)

// Poster is the slice of the ledger service used to post due transactions.
type Poster interface {
	Post(ctx context.Context, in ledger.PostingInput) (ledger.Transaction, error)
}

// Service manages recurring definitions and posts the ones that fall due.
type Service struct {
	repo   Repository
	poster Poster
	logger *slog.Logger
}

// NewService wires the recurrence service.
func NewService(repo Repository, poster Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger}
}

// List returns all definitions.
func (s *Service) List(ctx context.Context) ([]Definition, error) {
	return s.repo.List(ctx)
}

// Create validates and stores a definition with its first next-run date.
func (s *Service) Create(ctx context.Context, d Definition) (Definition, error) {
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	d.NextRun = d.FirstRun
	return s.repo.Create(ctx, d)
}

// Update validates and stores definition changes, recomputing the next run
// when the schedule changed.
func (s *Service) Update(ctx context.Context, d Definition, now time.Time) (Definition, error) {
	if err := d.Validate(); err != nil {
		return Definition{}, err
	}
	freq, err := ParseFrequency(d.Frequency)
	if err != nil {
		return Definition{}, err
	}
	if d.NextRun.IsZero() || d.NextRun.Before(d.FirstRun) {
		d.NextRun = d.FirstRun
	}
	if !d.NextRun.After(now) && d.FirstRun.Before(now) {
		d.NextRun = freq.NextRunAfter(d.FirstRun, now)
	}
	return s.repo.Update(ctx, d)
}

// Delete removes a definition.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// RunDue posts every due definition once, dated at its most recent due
// occurrence, then advances next-run past any overdue dates until a future
// date remains. One failing definition does not stop the rest. Returns the
// number of postings made.
func (s *Service) RunDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}
	posted := 0
	for _, def := range due {
		freq, err := ParseFrequency(def.Frequency)
		if err != nil {
			s.logger.Warn("skipping recurring definition",
				slog.Int64("definition_id", def.ID), slog.Any("error", err))
			continue
		}
		runDate, ok := freq.LastDueAt(def.FirstRun, now)
		if !ok {
			continue
		}
		_, err = s.poster.Post(ctx, ledger.PostingInput{
			FromAccountID: def.FromAccountID,
			ToAccountID:   def.ToAccountID,
			Amount:        def.Amount,
			Date:          runDate,
			Nature:        def.Nature,
		})
		if err != nil {
			s.logger.Warn("recurring posting failed",
				slog.Int64("definition_id", def.ID), slog.Any("error", err))
			continue
		}
		next := freq.NextRunAfter(def.FirstRun, now)
		if err := s.repo.SetNextRun(ctx, def.ID, next); err != nil {
			return posted, err
		}
		posted++
	}
	return posted, nil
}
