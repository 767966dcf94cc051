package checkin

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/homeledger/homeledger/internal/shared"
)

// Handler exposes the manual check-in trigger.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the check-in handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches check-in routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Run)
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Run(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("check-in", slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
