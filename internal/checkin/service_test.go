package checkin

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/homeledger/homeledger/internal/ledger"
)

type stubRecurrence struct {
	posted int
	calls  int
}

func (s *stubRecurrence) RunDue(context.Context, time.Time) (int, error) {
	s.calls++
	return s.posted, nil
}

type stubBudgets struct {
	calls int
}

func (s *stubBudgets) RefreshAll(context.Context, time.Time) error {
	s.calls++
	return nil
}

type stubLedger struct {
	accounts     []ledger.Account
	calibrations map[int64]*ledger.Calibration
}

func (s *stubLedger) ListAccounts(context.Context) ([]ledger.Account, error) {
	return s.accounts, nil
}

func (s *stubLedger) LatestCalibration(_ context.Context, accountID int64) (*ledger.Calibration, error) {
	return s.calibrations[accountID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func currencyPtr(s string) *string { return &s }

func newCheckinService(t *testing.T, reader *stubLedger) (*Service, *stubRecurrence, *stubBudgets) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rec := &stubRecurrence{posted: 2}
	bud := &stubBudgets{}
	svc := NewService(client, rec, bud, reader, 30*24*time.Hour, testLogger())
	return svc, rec, bud
}

func TestRunOncePerDay(t *testing.T) {
	svc, rec, bud := newCheckinService(t, &stubLedger{})
	now := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)

	first, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	require.True(t, first.Ran)
	require.Equal(t, "2024-03-05", first.Date)
	require.Equal(t, 2, first.RecurringPosted)
	require.Equal(t, 1, rec.calls)
	require.Equal(t, 1, bud.calls)

	// Same day, later trigger: the latch holds.
	second, err := svc.Run(context.Background(), now.Add(6*time.Hour))
	require.NoError(t, err)
	require.False(t, second.Ran)
	require.Equal(t, 1, rec.calls)
	require.Equal(t, 1, bud.calls)

	// Next day runs again.
	third, err := svc.Run(context.Background(), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.True(t, third.Ran)
	require.Equal(t, 2, rec.calls)
}

func TestCalibrationReminders(t *testing.T) {
	now := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)
	fresh := now.AddDate(0, 0, -3)
	stale := now.AddDate(0, 0, -45)

	reader := &stubLedger{
		accounts: []ledger.Account{
			{ID: 1, Name: "Never Calibrated", Class: ledger.AccountClassReal, Currency: currencyPtr("USD"), IsActive: true},
			{ID: 2, Name: "Fresh", Class: ledger.AccountClassReal, Currency: currencyPtr("USD"), IsActive: true},
			{ID: 3, Name: "Stale", Class: ledger.AccountClassReal, Currency: currencyPtr("USD"), IsActive: true},
			{ID: 4, Name: "Groceries", Class: ledger.AccountClassNominal, IsActive: true},
			{ID: 5, Name: "Group", Class: ledger.AccountClassReal, IsGroup: true, IsActive: true},
			{ID: 6, Name: "Closed", Class: ledger.AccountClassReal, Currency: currencyPtr("USD")},
		},
		calibrations: map[int64]*ledger.Calibration{
			2: {AccountID: 2, Balance: 100, Date: fresh},
			3: {AccountID: 3, Balance: 100, Date: stale},
		},
	}
	svc, _, _ := newCheckinService(t, reader)

	result, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	require.True(t, result.Ran)
	require.Len(t, result.Reminders, 2)

	require.Equal(t, int64(1), result.Reminders[0].AccountID)
	require.Nil(t, result.Reminders[0].LastCalibration)

	require.Equal(t, int64(3), result.Reminders[1].AccountID)
	require.NotNil(t, result.Reminders[1].LastCalibration)
	require.Equal(t, stale, *result.Reminders[1].LastCalibration)
}
