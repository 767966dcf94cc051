package fx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/homeledger/homeledger/internal/shared"
)

// Invalidator signals dependent read paths after a rate change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Handler manages the exchange rate table over JSON.
type Handler struct {
	repo       Repository
	invalidate Invalidator
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewHandler constructs the fx handler.
func NewHandler(logger *slog.Logger, repo Repository, invalidate Invalidator) *Handler {
	return &Handler{repo: repo, invalidate: invalidate, logger: logger, validate: validator.New()}
}

// MountRoutes attaches fx routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rates", h.ListRates)
	r.Put("/rates", h.UpsertRate)
}

// UpsertRateRequest is the JSON body for setting a rate.
type UpsertRateRequest struct {
	From string  `json:"from" validate:"required,len=3"`
	To   string  `json:"to" validate:"required,len=3"`
	Rate float64 `json:"rate" validate:"required,gt=0"`
}

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	table, err := h.repo.Load(r.Context())
	if err != nil {
		h.logger.Error("load rates", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
		return
	}
	shared.WriteJSON(w, http.StatusOK, table)
}

func (h *Handler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	var req UpsertRateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	from, to := strings.ToUpper(req.From), strings.ToUpper(req.To)
	if !ValidCode(from) || !ValidCode(to) || from == to {
		shared.WriteError(w, http.StatusUnprocessableEntity, errors.New("fx: invalid currency pair"))
		return
	}
	if err := h.repo.Upsert(r.Context(), from, to, req.Rate); err != nil {
		h.logger.Error("upsert rate", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
		return
	}
	if h.invalidate != nil {
		if err := h.invalidate.Bump(r.Context()); err != nil {
			h.logger.Warn("cache bump failed", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
