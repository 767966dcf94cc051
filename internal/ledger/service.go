package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/homeledger/homeledger/internal/fx"
)

// RateProvider supplies a converter over the current rate table.
type RateProvider interface {
	Converter(ctx context.Context) (*fx.Converter, error)
}

// Invalidator signals dependent read paths after a write. The ledger itself
// holds no cache.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service enforces posting and calibration rules on top of the repository.
type Service struct {
	repo       Repository
	rates      RateProvider
	invalidate Invalidator
	logger     *slog.Logger
}

// NewService wires the ledger service.
func NewService(repo Repository, rates RateProvider, invalidate Invalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, rates: rates, invalidate: invalidate, logger: logger}
}

// ListAccounts returns all accounts ordered by sort key.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// GetAccount fetches one account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// CreateAccount validates and stores a new account.
func (s *Service) CreateAccount(ctx context.Context, a Account) (Account, error) {
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}
	created, err := s.repo.CreateAccount(ctx, a)
	if err != nil {
		return Account{}, err
	}
	s.bump(ctx)
	return created, nil
}

// UpdateAccount validates and stores account changes.
func (s *Service) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}
	updated, err := s.repo.UpdateAccount(ctx, a)
	if err != nil {
		return Account{}, err
	}
	s.bump(ctx)
	return updated, nil
}

// DeleteAccount removes an account unless postings or calibrations still
// reference it.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

func validateAccount(a Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("ledger: account name required")
	}
	switch a.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeIncome, AccountTypeExpense:
	default:
		return fmt.Errorf("ledger: unknown account type %q", a.Type)
	}
	switch a.Class {
	case AccountClassReal, AccountClassNominal:
	default:
		return fmt.Errorf("ledger: unknown account class %q", a.Class)
	}
	if a.IsGroup {
		if a.Currency != nil {
			return errors.New("ledger: group accounts carry no currency")
		}
		return nil
	}
	if a.Class == AccountClassReal {
		if a.Currency == nil || *a.Currency == "" {
			return ErrCurrencyRequired
		}
		if !fx.ValidCode(*a.Currency) {
			return fmt.Errorf("%w: %s", ErrInvalidCurrency, *a.Currency)
		}
	}
	return nil
}

// ListTransactions lists postings per filter.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, f)
}

// Post validates and records a double-entry transaction. For a transfer
// between two real accounts in different currencies a missing to-amount is
// completed from the current rate table.
func (s *Service) Post(ctx context.Context, in PostingInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	from, err := s.repo.GetAccount(ctx, in.FromAccountID)
	if err != nil {
		return Transaction{}, err
	}
	to, err := s.repo.GetAccount(ctx, in.ToAccountID)
	if err != nil {
		return Transaction{}, err
	}
	for _, leg := range []Account{from, to} {
		if leg.IsGroup {
			return Transaction{}, fmt.Errorf("%w: %s", ErrGroupPosting, leg.Name)
		}
		if !leg.IsActive {
			return Transaction{}, fmt.Errorf("%w: %s", ErrInactiveAccount, leg.Name)
		}
	}

	crossCurrency := from.Class == AccountClassReal && to.Class == AccountClassReal &&
		from.CurrencyCode() != to.CurrencyCode()
	if (in.FromAmount != nil || in.ToAmount != nil) && !crossCurrency {
		return Transaction{}, ErrNominalCrossCurrency
	}

	t := Transaction{
		FromAccountID:  in.FromAccountID,
		ToAccountID:    in.ToAccountID,
		Amount:         in.Amount,
		FromAmount:     in.FromAmount,
		ToAmount:       in.ToAmount,
		Date:           in.Date,
		IsOpening:      in.IsOpening,
		IsLargeExpense: in.IsLargeExpense,
		NeedsReview:    in.NeedsReview,
		IsStarred:      in.IsStarred,
		Nature:         in.Nature,
		SourceID:       uuid.New(),
	}
	if crossCurrency {
		if err := s.completeLegs(ctx, &t, from, to); err != nil {
			return Transaction{}, err
		}
	}

	created, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	s.bump(ctx)
	return created, nil
}

// completeLegs fills leg amounts on a cross-currency transfer. The canonical
// amount is in the from-account currency.
func (s *Service) completeLegs(ctx context.Context, t *Transaction, from, to Account) error {
	if t.FromAmount == nil {
		v := t.Amount
		t.FromAmount = &v
	}
	if t.ToAmount == nil {
		conv, err := s.rates.Converter(ctx)
		if err != nil {
			return err
		}
		converted, ok := conv.Convert(*t.FromAmount, from.CurrencyCode(), to.CurrencyCode())
		if !ok {
			s.logger.Warn("cross-currency posting without rate, using identity",
				slog.String("from", from.CurrencyCode()), slog.String("to", to.CurrencyCode()))
		}
		t.ToAmount = &converted
	}
	return nil
}

// DeleteTransaction removes a posting.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// ListCalibrations returns an account's calibrations ordered by date.
func (s *Service) ListCalibrations(ctx context.Context, accountID int64) ([]Calibration, error) {
	return s.repo.ListCalibrations(ctx, accountID)
}

// Calibrate records a user-confirmed balance anchor. A non-opening
// calibration whose balance is within tolerance of the immediately preceding
// one is rejected: it would anchor nothing.
func (s *Service) Calibrate(ctx context.Context, in CalibrationInput) (Calibration, error) {
	if err := in.Validate(); err != nil {
		return Calibration{}, err
	}
	account, err := s.repo.GetAccount(ctx, in.AccountID)
	if err != nil {
		return Calibration{}, err
	}
	if account.IsGroup || account.Class != AccountClassReal {
		return Calibration{}, errors.New("ledger: only real leaf accounts can be calibrated")
	}
	if !in.IsOpening {
		prev, err := s.repo.LatestCalibrationOnOrBefore(ctx, in.AccountID, in.Date)
		if err != nil {
			return Calibration{}, err
		}
		if prev != nil && math.Abs(in.Balance-prev.Balance) < CalibrationTolerance {
			return Calibration{}, ErrDuplicateCalibration
		}
	}
	created, err := s.repo.CreateCalibration(ctx, Calibration{
		AccountID: in.AccountID,
		Balance:   in.Balance,
		Date:      in.Date,
		Source:    in.Source,
		IsOpening: in.IsOpening,
	})
	if err != nil {
		return Calibration{}, err
	}
	s.bump(ctx)
	return created, nil
}

// DeleteCalibration removes a calibration anchor.
func (s *Service) DeleteCalibration(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCalibration(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Kind derives the semantic type of a transaction from its legs.
func (s *Service) Kind(ctx context.Context, t Transaction) (TransactionKind, error) {
	from, err := s.repo.GetAccount(ctx, t.FromAccountID)
	if err != nil {
		return "", err
	}
	to, err := s.repo.GetAccount(ctx, t.ToAccountID)
	if err != nil {
		return "", err
	}
	return t.Kind(from, to), nil
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	if err := s.invalidate.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.Any("error", err))
	}
}
