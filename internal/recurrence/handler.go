package recurrence

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

// Handler exposes recurring transaction definitions over JSON.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the recurrence handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches recurrence routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// DefinitionRequest is the JSON body for a recurring definition.
type DefinitionRequest struct {
	Name          string    `json:"name" validate:"required"`
	FromAccountID int64     `json:"from_account_id" validate:"required"`
	ToAccountID   int64     `json:"to_account_id" validate:"required"`
	Amount        float64   `json:"amount" validate:"required,gt=0"`
	Frequency     string    `json:"frequency" validate:"required"`
	FirstRun      time.Time `json:"first_run" validate:"required"`
	Nature        string    `json:"nature"`
	IsActive      *bool     `json:"is_active,omitempty"`
}

func (r DefinitionRequest) toDefinition(id int64) Definition {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return Definition{
		ID:            id,
		Name:          r.Name,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        r.Amount,
		Frequency:     r.Frequency,
		FirstRun:      r.FirstRun,
		Nature:        r.Nature,
		IsActive:      active,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list definitions", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, defs)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req DefinitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	def, err := h.service.Create(r.Context(), req.toDefinition(0))
	if err != nil {
		h.reject(w, "create definition", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, def)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
		return
	}
	var req DefinitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	def, err := h.service.Update(r.Context(), req.toDefinition(id), time.Now())
	if err != nil {
		h.reject(w, "update definition", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, def)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.reject(w, "delete definition", err)
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

func (h *Handler) reject(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrDefinitionNotFound):
		shared.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrBadFrequency):
		shared.WriteError(w, http.StatusUnprocessableEntity, err)
	default:
		h.fail(w, op, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
}
