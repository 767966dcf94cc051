package recurrence

import (
	"errors"
	"time"
)

// Definition is a recurring transaction template.
type Definition struct {
	ID            int64
	Name          string
	FromAccountID int64
	ToAccountID   int64
	Amount        float64
	Frequency     string
	FirstRun      time.Time
	NextRun       time.Time
	Nature        string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ErrDefinitionNotFound indicates a missing definition.
var ErrDefinitionNotFound = errors.New("recurrence: definition not found")

// Validate checks a definition before storage.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("recurrence: name required")
	}
	if d.FromAccountID == 0 || d.ToAccountID == 0 {
		return errors.New("recurrence: both legs require an account")
	}
	if d.Amount <= 0 {
		return errors.New("recurrence: amount must be positive")
	}
	if _, err := ParseFrequency(d.Frequency); err != nil {
		return err
	}
	if d.FirstRun.IsZero() {
		return errors.New("recurrence: first run date required")
	}
	return nil
}
