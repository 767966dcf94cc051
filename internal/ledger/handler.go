package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/homeledger/homeledger/internal/shared"
)

// Handler exposes the ledger over JSON.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Post("/", h.CreateAccount)
		r.Put("/{id}", h.UpdateAccount)
		r.Delete("/{id}", h.DeleteAccount)
		r.Get("/{id}/calibrations", h.ListCalibrations)
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.ListTransactions)
		r.Post("/", h.CreateTransaction)
		r.Delete("/{id}", h.DeleteTransaction)
	})
	r.Route("/calibrations", func(r chi.Router) {
		r.Post("/", h.CreateCalibration)
		r.Delete("/{id}", h.DeleteCalibration)
	})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, accounts)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.CreateAccount(r.Context(), req.toAccount(0))
	if err != nil {
		h.reject(w, "create account", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.UpdateAccount(r.Context(), req.toAccount(id))
	if err != nil {
		h.reject(w, "update account", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		h.reject(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f := TransactionFilter{}
	q := r.URL.Query()
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
			return
		}
		f.AccountID = id
	}
	for key, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
				return
			}
			*dst = t
		}
	}
	for key, dst := range map[string]**bool{"needs_review": &f.NeedsReview, "starred": &f.Starred} {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
				return
			}
			*dst = &b
		}
	}
	txs, err := h.service.ListTransactions(r.Context(), f)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, txs)
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.service.Post(r.Context(), req.toInput())
	if err != nil {
		h.reject(w, "post transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, tx)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		h.reject(w, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCalibrations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	calibrations, err := h.service.ListCalibrations(r.Context(), id)
	if err != nil {
		h.fail(w, "list calibrations", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, calibrations)
}

func (h *Handler) CreateCalibration(w http.ResponseWriter, r *http.Request) {
	var req CreateCalibrationRequest
	if !h.decode(w, r, &req) {
		return
	}
	calibration, err := h.service.Calibrate(r.Context(), req.toInput())
	if err != nil {
		h.reject(w, "create calibration", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, calibration)
}

func (h *Handler) DeleteCalibration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCalibration(r.Context(), id); err != nil {
		h.reject(w, "delete calibration", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// reject maps domain rejections to 4xx and everything else to 500.
func (h *Handler) reject(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrCalibrationNotFound):
		shared.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrGroupPosting),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrInactiveAccount),
		errors.Is(err, ErrNominalCrossCurrency),
		errors.Is(err, ErrCurrencyRequired),
		errors.Is(err, ErrInvalidCurrency):
		shared.WriteError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrDuplicateCalibration),
		errors.Is(err, ErrAccountReferenced):
		shared.WriteError(w, http.StatusConflict, err)
	default:
		h.fail(w, op, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
		return 0, false
	}
	return id, true
}
