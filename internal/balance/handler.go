package balance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/homeledger/homeledger/internal/cache"
	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
	"github.com/homeledger/homeledger/internal/shared"
)

// AccountLister supplies the accounts making up the tree.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
}

// RateProvider supplies a converter over the current rate table.
type RateProvider interface {
	Converter(ctx context.Context) (*fx.Converter, error)
}

// Handler serves the aggregated balance tree.
type Handler struct {
	accounts        AccountLister
	aggregator      *Aggregator
	rates           RateProvider
	cache           *cache.Cache
	defaultCurrency string
	logger          *slog.Logger
}

// NewHandler constructs the balance handler.
func NewHandler(logger *slog.Logger, accounts AccountLister, aggregator *Aggregator, rates RateProvider, c *cache.Cache, defaultCurrency string) *Handler {
	return &Handler{
		accounts:        accounts,
		aggregator:      aggregator,
		rates:           rates,
		cache:           c,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// MountRoutes attaches balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tree", h.Tree)
}

// Tree returns the account hierarchy with balances aggregated into the
// requested reporting currency, read through the cache.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	target := strings.ToUpper(r.URL.Query().Get("currency"))
	if target == "" {
		target = h.defaultCurrency
	}
	if !fx.ValidCode(target) {
		shared.WriteError(w, http.StatusBadRequest, ledger.ErrInvalidCurrency)
		return
	}
	ctx := r.Context()
	day := time.Now().Format("2006-01-02")
	key, err := h.cache.BuildKey(ctx, "balance", "tree", target, day)
	if err != nil {
		h.fail(w, "build cache key", err)
		return
	}
	var roots []*Node
	err = h.cache.FetchJSON(ctx, key, &roots, func(ctx context.Context) (interface{}, error) {
		return h.computeTree(ctx, target)
	})
	if err != nil {
		h.fail(w, "aggregate tree", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, roots)
}

func (h *Handler) computeTree(ctx context.Context, target string) ([]*Node, error) {
	accounts, err := h.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	// Nominal accounts classify postings; their balances are not money
	// and stay out of the tree.
	real := accounts[:0:0]
	for _, a := range accounts {
		if a.Class == ledger.AccountClassReal || a.IsGroup {
			real = append(real, a)
		}
	}
	conv, err := h.rates.Converter(ctx)
	if err != nil {
		return nil, err
	}
	roots := BuildTree(real)
	h.aggregator.Aggregate(ctx, roots, target, conv, time.Now())
	return roots, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
}
