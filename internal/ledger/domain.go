package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates account categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountClass separates monetary accounts from classification accounts.
type AccountClass string

const (
	// AccountClassReal marks an account holding actual money in a currency.
	AccountClassReal AccountClass = "REAL"
	// AccountClassNominal marks a category account used only as the
	// counter-leg of a posting. Its balance is never read as money.
	AccountClassNominal AccountClass = "NOMINAL"
)

// CalibrationSource enumerates how a calibration was recorded.
type CalibrationSource string

const (
	CalibrationSourceManual CalibrationSource = "MANUAL"
	CalibrationSourceImport CalibrationSource = "IMPORT"
)

// TransactionKind is the semantic transaction type. It is derived from the
// account pairing on every read and never stored.
type TransactionKind string

const (
	KindExpense  TransactionKind = "EXPENSE"
	KindIncome   TransactionKind = "INCOME"
	KindTransfer TransactionKind = "TRANSFER"
	KindOpening  TransactionKind = "OPENING"
)

// Account models a node of the account tree.
type Account struct {
	ID        int64
	Name      string
	Type      AccountType
	Class     AccountClass
	IsGroup   bool
	Currency  *string
	ParentID  *int64
	IsActive  bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrencyCode returns the account currency or "" for groups and nominals.
func (a Account) CurrencyCode() string {
	if a.Currency == nil {
		return ""
	}
	return *a.Currency
}

// Transaction is a double-entry movement between two leaf accounts.
// Amount is the canonical amount; FromAmount/ToAmount are set only on a
// genuine cross-currency transfer between two real accounts.
type Transaction struct {
	ID             int64
	FromAccountID  int64
	ToAccountID    int64
	Amount         float64
	FromAmount     *float64
	ToAmount       *float64
	Date           time.Time
	IsOpening      bool
	IsLargeExpense bool
	NeedsReview    bool
	IsStarred      bool
	Nature         string
	SourceID       uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreditAmount is the amount received by the to-account, preferring the
// currency-specific leg over the canonical amount.
func (t Transaction) CreditAmount() float64 {
	if t.ToAmount != nil {
		return *t.ToAmount
	}
	return t.Amount
}

// DebitAmount is the amount leaving the from-account.
func (t Transaction) DebitAmount() float64 {
	if t.FromAmount != nil {
		return *t.FromAmount
	}
	return t.Amount
}

// Calibration is a user-confirmed true balance at a point in time, the
// trusted anchor for balance projection.
type Calibration struct {
	ID        int64
	AccountID int64
	Balance   float64
	Date      time.Time
	Source    CalibrationSource
	IsOpening bool
	CreatedAt time.Time
}

// CalibrationTolerance is the minimum balance movement between consecutive
// calibrations; anything closer is rejected as no-op noise.
const CalibrationTolerance = 0.01

var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrCalibrationNotFound indicates a missing calibration.
	ErrCalibrationNotFound = errors.New("ledger: calibration not found")
	// ErrGroupPosting indicates a posting targeting a group account.
	ErrGroupPosting = errors.New("ledger: cannot post to a group account")
	// ErrSameAccount indicates both legs reference one account.
	ErrSameAccount = errors.New("ledger: from and to account must differ")
	// ErrInactiveAccount indicates a posting against a deactivated account.
	ErrInactiveAccount = errors.New("ledger: account is inactive")
	// ErrNominalCrossCurrency indicates leg amounts on a posting touching a
	// nominal account; conversion only applies between two real accounts.
	ErrNominalCrossCurrency = errors.New("ledger: leg amounts require two real accounts")
	// ErrCurrencyRequired indicates a real leaf account without a currency.
	ErrCurrencyRequired = errors.New("ledger: real leaf account requires a currency")
	// ErrInvalidCurrency indicates a malformed currency code.
	ErrInvalidCurrency = errors.New("ledger: invalid currency code")
	// ErrAccountReferenced indicates deletion blocked by existing postings
	// or calibrations.
	ErrAccountReferenced = errors.New("ledger: account is referenced and cannot be deleted")
	// ErrDuplicateCalibration indicates the new balance is within tolerance
	// of the previous calibration; wait for the balance to change.
	ErrDuplicateCalibration = errors.New("ledger: balance unchanged since last calibration")
)

// Kind derives the semantic transaction type from the two legs.
func (t Transaction) Kind(from, to Account) TransactionKind {
	if t.IsOpening {
		return KindOpening
	}
	switch {
	case to.Class == AccountClassNominal && to.Type == AccountTypeExpense:
		return KindExpense
	case from.Class == AccountClassNominal && from.Type == AccountTypeIncome:
		return KindIncome
	default:
		return KindTransfer
	}
}

// PostingInput groups fields required to record a transaction.
type PostingInput struct {
	FromAccountID  int64
	ToAccountID    int64
	Amount         float64
	FromAmount     *float64
	ToAmount       *float64
	Date           time.Time
	IsOpening      bool
	IsLargeExpense bool
	NeedsReview    bool
	IsStarred      bool
	Nature         string
}

// Validate ensures posting input meets minimum criteria before account
// lookups happen.
func (in PostingInput) Validate() error {
	if in.FromAccountID == 0 || in.ToAccountID == 0 {
		return errors.New("ledger: both legs require an account")
	}
	if in.FromAccountID == in.ToAccountID {
		return ErrSameAccount
	}
	if in.Amount <= 0 {
		return fmt.Errorf("ledger: amount must be positive, got %.2f", in.Amount)
	}
	if in.FromAmount != nil && *in.FromAmount <= 0 {
		return errors.New("ledger: from amount must be positive")
	}
	if in.ToAmount != nil && *in.ToAmount <= 0 {
		return errors.New("ledger: to amount must be positive")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: date required")
	}
	return nil
}

// CalibrationInput groups fields required to record a calibration.
type CalibrationInput struct {
	AccountID int64
	Balance   float64
	Date      time.Time
	Source    CalibrationSource
	IsOpening bool
}

// Validate checks field-level constraints.
func (in CalibrationInput) Validate() error {
	if in.AccountID == 0 {
		return errors.New("ledger: account required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: date required")
	}
	switch in.Source {
	case CalibrationSourceManual, CalibrationSourceImport:
	case "":
		return errors.New("ledger: calibration source required")
	default:
		return fmt.Errorf("ledger: unknown calibration source %q", in.Source)
	}
	return nil
}
