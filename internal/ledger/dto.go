package ledger

import "time"

// CreateAccountRequest is the JSON body for creating or updating an account.
type CreateAccountRequest struct {
	Name      string  `json:"name" validate:"required"`
	Type      string  `json:"type" validate:"required,oneof=ASSET LIABILITY INCOME EXPENSE"`
	Class     string  `json:"class" validate:"required,oneof=REAL NOMINAL"`
	IsGroup   bool    `json:"is_group"`
	Currency  *string `json:"currency,omitempty"`
	ParentID  *int64  `json:"parent_id,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
	SortOrder int     `json:"sort_order"`
}

func (r CreateAccountRequest) toAccount(id int64) Account {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return Account{
		ID:        id,
		Name:      r.Name,
		Type:      AccountType(r.Type),
		Class:     AccountClass(r.Class),
		IsGroup:   r.IsGroup,
		Currency:  r.Currency,
		ParentID:  r.ParentID,
		IsActive:  active,
		SortOrder: r.SortOrder,
	}
}

// CreateTransactionRequest is the JSON body for posting a transaction.
type CreateTransactionRequest struct {
	FromAccountID  int64     `json:"from_account_id" validate:"required"`
	ToAccountID    int64     `json:"to_account_id" validate:"required"`
	Amount         float64   `json:"amount" validate:"required,gt=0"`
	FromAmount     *float64  `json:"from_amount,omitempty"`
	ToAmount       *float64  `json:"to_amount,omitempty"`
	Date           time.Time `json:"date" validate:"required"`
	IsOpening      bool      `json:"is_opening"`
	IsLargeExpense bool      `json:"is_large_expense"`
	NeedsReview    bool      `json:"needs_review"`
	IsStarred      bool      `json:"is_starred"`
	Nature         string    `json:"nature"`
}

func (r CreateTransactionRequest) toInput() PostingInput {
	return PostingInput{
		FromAccountID:  r.FromAccountID,
		ToAccountID:    r.ToAccountID,
		Amount:         r.Amount,
		FromAmount:     r.FromAmount,
		ToAmount:       r.ToAmount,
		Date:           r.Date,
		IsOpening:      r.IsOpening,
		IsLargeExpense: r.IsLargeExpense,
		NeedsReview:    r.NeedsReview,
		IsStarred:      r.IsStarred,
		Nature:         r.Nature,
	}
}

// CreateCalibrationRequest is the JSON body for recording a calibration.
type CreateCalibrationRequest struct {
	AccountID int64     `json:"account_id" validate:"required"`
	Balance   float64   `json:"balance"`
	Date      time.Time `json:"date" validate:"required"`
	Source    string    `json:"source" validate:"required,oneof=MANUAL IMPORT"`
	IsOpening bool      `json:"is_opening"`
}

func (r CreateCalibrationRequest) toInput() CalibrationInput {
	return CalibrationInput{
		AccountID: r.AccountID,
		Balance:   r.Balance,
		Date:      r.Date,
		Source:    CalibrationSource(r.Source),
		IsOpening: r.IsOpening,
	}
}
