package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/homeledger/homeledger/internal/balance"
	"github.com/homeledger/homeledger/internal/budget"
	"github.com/homeledger/homeledger/internal/checkin"
	"github.com/homeledger/homeledger/internal/fx"
	"github.com/homeledger/homeledger/internal/ledger"
	"github.com/homeledger/homeledger/internal/recurrence"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config            *Config
	LedgerHandler     *ledger.Handler
	BalanceHandler    *balance.Handler
	FXHandler         *fx.Handler
	BudgetHandler     *budget.Handler
	RecurrenceHandler *recurrence.Handler
	CheckinHandler    *checkin.Handler
}

// NewRouter constructs the chi.Router with homeledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{Config: params.Config}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		params.LedgerHandler.MountRoutes(r)
		r.Route("/balances", params.BalanceHandler.MountRoutes)
		r.Route("/fx", params.FXHandler.MountRoutes)
		r.Route("/budgets", params.BudgetHandler.MountRoutes)
		r.Route("/recurring", params.RecurrenceHandler.MountRoutes)
		r.Route("/checkin", params.CheckinHandler.MountRoutes)
	})

	return r
}
