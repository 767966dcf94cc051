package budget

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

// Handler exposes budget plans and periods over JSON.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the budget handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches budget routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ListPlans)
	r.Post("/", h.CreatePlan)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetPlan)
		r.Put("/", h.UpdatePlan)
		r.Delete("/", h.DeletePlan)
		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)
		r.Post("/restart", h.Restart)
		r.Get("/periods", h.Periods)
		r.Post("/recalc/dry-run", h.DryRun)
		r.Post("/recalc/commit", h.Commit)
	})
}

// PlanRequest is the JSON body for creating or updating a plan.
type PlanRequest struct {
	Name                string    `json:"name" validate:"required"`
	Type                string    `json:"plan_type" validate:"required,oneof=CATEGORY TOTAL"`
	CategoryID          *int64    `json:"category_id,omitempty"`
	Period              string    `json:"period" validate:"required,oneof=WEEKLY MONTHLY"`
	HardLimit           float64   `json:"hard_limit" validate:"required,gt=0"`
	LimitCurrency       string    `json:"limit_currency" validate:"required,len=3"`
	SoftLimitEnabled    bool      `json:"soft_limit_enabled"`
	AccountFilterMode   string    `json:"account_filter_mode" validate:"required,oneof=ALL INCLUDE EXCLUDE"`
	AccountFilterIDs    []int64   `json:"account_filter_ids"`
	IncludedCategoryIDs []int64   `json:"included_category_ids"`
	StartDate           time.Time `json:"start_date" validate:"required"`
	Rounds              int       `json:"rounds" validate:"gte=0"`
}

func (r PlanRequest) toPlan(id int64) Plan {
	return Plan{
		ID:                  id,
		Name:                r.Name,
		Type:                PlanType(r.Type),
		CategoryID:          r.CategoryID,
		Period:              PeriodUnit(r.Period),
		HardLimit:           r.HardLimit,
		LimitCurrency:       r.LimitCurrency,
		SoftLimitEnabled:    r.SoftLimitEnabled,
		AccountFilterMode:   FilterMode(r.AccountFilterMode),
		AccountFilterIDs:    r.AccountFilterIDs,
		IncludedCategoryIDs: r.IncludedCategoryIDs,
		StartDate:           r.StartDate,
		Rounds:              r.Rounds,
	}
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		h.fail(w, "list plans", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plans)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	plan, err := h.service.GetPlan(r.Context(), id)
	if err != nil {
		h.reject(w, "get plan", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.service.CreatePlan(r.Context(), req.toPlan(0))
	if err != nil {
		h.reject(w, "create plan", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, plan)
}

func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.service.UpdatePlan(r.Context(), req.toPlan(id))
	if err != nil {
		h.reject(w, "update plan", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePlan(r.Context(), id); err != nil {
		h.reject(w, "delete plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64) (Plan, error) {
		return h.service.Pause(r.Context(), id)
	})
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64) (Plan, error) {
		return h.service.Resume(r.Context(), id)
	})
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(id int64) (Plan, error) {
		return h.service.Restart(r.Context(), id, time.Now())
	})
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, fn func(int64) (Plan, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	plan, err := fn(id)
	if err != nil {
		h.reject(w, "plan transition", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) Periods(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	periods, err := h.service.Periods(r.Context(), id)
	if err != nil {
		h.reject(w, "list periods", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, periods)
}

func (h *Handler) DryRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	report, err := h.service.DryRun(r.Context(), id, time.Now())
	if err != nil {
		h.reject(w, "recalc dry run", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var report Report
	if err := shared.DecodeJSON(r, &report); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if report.PlanID != id {
		shared.WriteError(w, http.StatusBadRequest, errors.New("budget: report plan mismatch"))
		return
	}
	if err := h.service.Commit(r.Context(), report); err != nil {
		h.reject(w, "recalc commit", err)
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
	case errors.Is(err, ErrPlanNotFound):
		shared.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPlanNotStarted):
		shared.WriteError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrStaleReport):
		shared.WriteError(w, http.StatusConflict, err)
	default:
		h.fail(w, op, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.WriteError(w, http.StatusBadRequest, shared.ErrBadRequest)
		return 0, false
	}
	return id, true
}
