package balance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
)

func strptr(s string) *string { return &s }

func intptr(v int64) *int64 { return &v }

func TestBuildTreeOrdering(t *testing.T) {
	accounts := []ledger.Account{
		{ID: 1, Name: "Cash", IsGroup: true, SortOrder: 2},
		{ID: 2, Name: "Wallet", ParentID: intptr(1), SortOrder: 1},
		{ID: 3, Name: "Bank", ParentID: intptr(1), SortOrder: 0},
		{ID: 4, Name: "Investments", IsGroup: true, SortOrder: 1},
	}
	roots := BuildTree(accounts)
	if len(roots) != 2 {
		t.Fatalf("got %d roots", len(roots))
	}
	if roots[0].Account.Name != "Investments" || roots[1].Account.Name != "Cash" {
		t.Fatalf("root order: %s, %s", roots[0].Account.Name, roots[1].Account.Name)
	}
	children := roots[1].Children
	if len(children) != 2 || children[0].Account.Name != "Bank" || children[1].Account.Name != "Wallet" {
		t.Fatalf("child order wrong: %+v", children)
	}
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	accounts := []ledger.Account{
		{ID: 2, Name: "Dangling", ParentID: intptr(99)},
	}
	roots := BuildTree(accounts)
	if len(roots) != 1 || roots[0].Account.ID != 2 {
		t.Fatalf("orphan lost: %+v", roots)
	}
}

func TestAggregateConvertsAndSums(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := &fakeReader{
		calibrations: []ledger.Calibration{
			{ID: 1, AccountID: 2, Balance: 100, Date: day(2024, time.January, 1)},
			{ID: 2, AccountID: 3, Balance: 720, Date: day(2024, time.January, 1)},
		},
	}
	accounts := []ledger.Account{
		{ID: 1, Name: "All", Type: ledger.AccountTypeAsset, Class: ledger.AccountClassReal, IsGroup: true},
		{ID: 2, Name: "USD Bank", Type: ledger.AccountTypeAsset, Class: ledger.AccountClassReal, Currency: strptr("USD"), ParentID: intptr(1)},
		{ID: 3, Name: "CNY Bank", Type: ledger.AccountTypeAsset, Class: ledger.AccountClassReal, Currency: strptr("CNY"), ParentID: intptr(1)},
	}
	roots := BuildTree(accounts)
	agg := NewAggregator(NewCalculator(reader), logger)
	conv := fx.NewConverter(fx.RateTable{"CNY": {"USD": 0.14}}, logger)

	agg.Aggregate(context.Background(), roots, "USD", conv, day(2024, time.January, 31))

	group := roots[0]
	// 100 USD + 720 CNY * 0.14 = 200.80 USD
	if group.Balance != 200.80 {
		t.Fatalf("group balance: got %v, want 200.80", group.Balance)
	}
	if group.Currency != "USD" {
		t.Fatalf("group currency: got %q", group.Currency)
	}
	// Leaves keep their native currency balance.
	if group.Children[1].Balance != 720 || group.Children[1].Currency != "CNY" {
		t.Fatalf("leaf mutated: %+v", group.Children[1])
	}
}

func TestAggregateMissingRateKeepsAmount(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := &fakeReader{
		calibrations: []ledger.Calibration{
			{ID: 1, AccountID: 2, Balance: 500, Date: day(2024, time.January, 1)},
		},
	}
	accounts := []ledger.Account{
		{ID: 1, Name: "All", Class: ledger.AccountClassReal, IsGroup: true},
		{ID: 2, Name: "JPY Bank", Class: ledger.AccountClassReal, Currency: strptr("JPY"), ParentID: intptr(1)},
	}
	roots := BuildTree(accounts)
	agg := NewAggregator(NewCalculator(reader), logger)
	conv := fx.NewConverter(nil, logger)

	agg.Aggregate(context.Background(), roots, "USD", conv, day(2024, time.January, 31))

	if roots[0].Balance != 500 {
		t.Fatalf("soft-fail aggregation: got %v, want 500", roots[0].Balance)
	}
}
