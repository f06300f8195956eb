package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/service"
)

type consumeResponse struct {
	OK         bool        `json:"ok"`
	Plan       domain.Plan `json:"plan"`
	Remaining  int         `json:"remaining"`
	DailyLimit int         `json:"daily_limit"`
}

type usageResponse struct {
	OK bool `json:"ok"`
	*domain.UsageSnapshot
}

// UsageHandler serves the daily reading counter.
type UsageHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger}
}

// RegisterRoutes registers usage routes.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/usage/consume", requireUser(http.HandlerFunc(h.Consume)))
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Today)))
}

// Consume handles POST /api/usage/consume. A spent allowance renders as
// 429 daily_limit_reached.
func (h *UsageHandler) Consume(w http.ResponseWriter, r *http.Request) {
	consumed, err := h.usage.Consume(r.Context(), auth.GetUserFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, consumeResponse{
		OK:         true,
		Plan:       consumed.Plan,
		Remaining:  consumed.Remaining,
		DailyLimit: consumed.DailyLimit,
	})
}

// Today handles GET /api/usage.
func (h *UsageHandler) Today(w http.ResponseWriter, r *http.Request) {
	snap, err := h.usage.Today(r.Context(), auth.GetUserFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usageResponse{OK: true, UsageSnapshot: snap})
}
