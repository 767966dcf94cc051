package balance

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
)

// Node is an account with its computed balance and children.
type Node struct {
	Account  ledger.Account `json:"account"`
	Balance  float64        `json:"balance"`
	Currency string         `json:"currency"`
	Children []*Node        `json:"children,omitempty"`
}

// BuildTree arranges accounts into their parent/child hierarchy. Ordering is
// stable at every level: sort order first, then name. Accounts referencing an
// unknown parent surface as roots rather than disappearing.
func BuildTree(accounts []ledger.Account) []*Node {
	nodes := make(map[int64]*Node, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &Node{Account: a, Currency: a.CurrencyCode()}
	}
	var roots []*Node
	for _, a := range accounts {
		n := nodes[a.ID]
		if a.ParentID != nil {
			if parent, ok := nodes[*a.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	var order func([]*Node)
	order = func(level []*Node) {
		sort.SliceStable(level, func(i, j int) bool {
			a, b := level[i].Account, level[j].Account
			if a.SortOrder != b.SortOrder {
				return a.SortOrder < b.SortOrder
			}
			return a.Name < b.Name
		})
		for _, n := range level {
			order(n.Children)
		}
	}
	order(roots)
	return roots
}

// Aggregator rolls leaf balances up the account tree in a target currency.
type Aggregator struct {
	calc   *Calculator
	logger *slog.Logger
}

// NewAggregator wires the balance calculator.
func NewAggregator(calc *Calculator, logger *slog.Logger) *Aggregator {
	return &Aggregator{calc: calc, logger: logger}
}

const leafConcurrency = 4

// Aggregate fills balances depth-first. Leaves get their balance as of asOf;
// a group's balance is the currency-converted sum of its children, and its
// currency becomes the target currency since a group has no intrinsic one.
// A failure computing one leaf is logged and contributes 0; it never aborts
// the rest of the tree.
func (a *Aggregator) Aggregate(ctx context.Context, roots []*Node, target string, conv *fx.Converter, asOf time.Time) {
	leaves := collectLeaves(roots)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(leafConcurrency)
	for _, leaf := range leaves {
		g.Go(func() error {
			bal, err := a.calc.BalanceAt(gctx, leaf.Account.ID, asOf)
			if err != nil {
				a.logger.Warn("leaf balance failed, contributing 0",
					slog.Int64("account_id", leaf.Account.ID), slog.Any("error", err))
				bal = 0
			}
			mu.Lock()
			leaf.Balance = bal
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, root := range roots {
		rollUp(root, target, conv)
	}
}

func collectLeaves(roots []*Node) []*Node {
	var leaves []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		if len(n.Children) == 0 && !n.Account.IsGroup {
			if n.Account.Class == ledger.AccountClassReal {
				leaves = append(leaves, n)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return leaves
}

func rollUp(n *Node, target string, conv *fx.Converter) float64 {
	if len(n.Children) == 0 && !n.Account.IsGroup {
		converted, _ := conv.Convert(n.Balance, n.Currency, target)
		return converted
	}
	var sum float64
	for _, c := range n.Children {
		sum += rollUp(c, target, conv)
	}
	n.Balance = round2(sum)
	n.Currency = target
	return n.Balance
}
